package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"genie/internal/config"
	"genie/pkg/color"
	"genie/pkg/interpreter"
	"genie/pkg/parser"
	"genie/pkg/scope"
	"genie/pkg/tree"
)

var (
	// ErrSyntax is returned when the program cannot be decoded or bound.
	ErrSyntax = errors.New("program rejected")
	// ErrScope is returned when the scope checker finds violations.
	ErrScope = errors.New("scope check failed")
)

type Driver struct {
	Help       bool   // Show help message
	Verbose    bool   // Enable verbose output
	NoColor    bool   // Disable colored output
	CheckOnly  bool   // Stop after the scope check
	ShowStats  bool   // Print collector statistics after the run
	ConfigFile string // Path to a YAML or TOML configuration file
	SourceFile string // Path to the program

	Out    io.Writer // program output, stdout when nil
	Report io.Writer // diagnostics and statistics, stdout when nil
}

// Run loads the program, binds it, checks scopes and, unless only a check
// was asked for, runs it.
func (opts *Driver) Run(ctx context.Context) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Report == nil {
		opts.Report = os.Stdout
	}
	log.Info("Processing file", "file", opts.SourceFile)

	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigFile); err != nil {
			return err
		}
		log.Debug("Loaded configuration", "file", cfg.Path)
	}

	input, err := os.ReadFile(opts.SourceFile)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", opts.SourceFile, err)
	}

	root, err := parser.ParseProgram(input)
	if err != nil {
		fmt.Fprintln(opts.Report, color.BrightRedText("=== Syntax Errors ==="))
		fmt.Fprintln(opts.Report, err)
		return fmt.Errorf("%w: %s", ErrSyntax, opts.SourceFile)
	}

	diags := scope.Check(root)
	if opts.Verbose {
		opts.printRanges(root)
	}
	if len(diags) > 0 {
		fmt.Fprintln(opts.Report, color.BrightRedText("=== Scope Errors ==="))
		for _, d := range diags {
			fmt.Fprintln(opts.Report, color.Error(d.Error()))
		}
		return fmt.Errorf("%w with %d errors", ErrScope, len(diags))
	}
	if opts.CheckOnly {
		fmt.Fprintln(opts.Report, color.GreenText("No scope violations"))
		return nil
	}

	rt := interpreter.New(append(cfg.Options(),
		interpreter.WithWriter(opts.Out),
		interpreter.WithLogger(log.Default()),
	)...)
	runErr := rt.Run(ctx, root)

	if opts.ShowStats {
		opts.printStats(rt.Stats())
	}
	if runErr != nil {
		var ie *interpreter.InternalError
		if errors.As(runErr, &ie) {
			return fmt.Errorf("interpreter aborted: %w", runErr)
		}
		return fmt.Errorf("runtime fault: %w", runErr)
	}
	return nil
}

// printRanges lists every range with the symbols it declares and the scopes
// the checker bound to them.
func (opts *Driver) printRanges(root *tree.Node) {
	fmt.Fprintln(opts.Report, color.GreenText("=== Ranges ==="))
	tree.Walk(root, func(n *tree.Node) bool {
		if n.Range == nil {
			return true
		}
		fmt.Fprintf(opts.Report, "%s %s (%d cells)\n",
			color.CyanText(fmt.Sprintf("level %d", n.Range.Level)), n.Attr, n.Range.Size)
		if len(n.Range.Symbols) == 0 {
			fmt.Fprintln(opts.Report, color.GrayText("  no declarations"))
		}
		for _, sym := range n.Range.Symbols {
			bound := "unknown"
			if sym.Scope != tree.ScopeUnknown {
				bound = fmt.Sprint(sym.Scope)
			}
			fmt.Fprintf(opts.Report, "  %s: %s @%d scope %s\n",
				color.YellowText(sym.Name), color.BlueText(sym.Mode.String()), sym.Offset, bound)
		}
		return true
	})
}

func (opts *Driver) printStats(s interpreter.Stats) {
	percent := 0.0
	if s.HeapCapacity > 0 {
		percent = 100 * float64(s.HeapUsed) / float64(s.HeapCapacity)
	}
	lines := []string{
		fmt.Sprintf("collections:   %s (%s preemptive)", humanize.Comma(int64(s.Collections)), humanize.Comma(int64(s.Preemptive))),
		fmt.Sprintf("freed:         %s handles, %s cells", humanize.Comma(int64(s.HandlesFreed)), humanize.Comma(int64(s.CellsFreed))),
		fmt.Sprintf("heap in use:   %s of %s cells (%s%%), %s handles",
			humanize.Comma(int64(s.HeapUsed)), humanize.Comma(int64(s.HeapCapacity)),
			humanize.FtoaWithDigits(percent, 1), humanize.Comma(int64(s.LiveHandles))),
		fmt.Sprintf("time in gc:    %s", s.Elapsed),
	}
	fmt.Fprintln(opts.Report, color.GreenText("=== Collector ==="))
	fmt.Fprintln(opts.Report, strings.Join(lines, "\n"))
}
