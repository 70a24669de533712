// Package config holds the interpreter's capacities and collection policy,
// read from a YAML or TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"genie/pkg/heap"
	"genie/pkg/interpreter"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents a genie configuration file.
type Config struct {
	Stacks    Stacks    `yaml:"stacks" toml:"stacks"`
	Heap      Heap      `yaml:"heap" toml:"heap"`
	Evaluator Evaluator `yaml:"evaluator" toml:"evaluator"`

	// Path is the file the configuration was loaded from (set at load time).
	Path string `yaml:"-" toml:"-"`
}

// Stacks sizes the frame stack and the evaluation stack, in cells.
type Stacks struct {
	FrameCells int `yaml:"frame-cells" toml:"frame-cells"`
	EvalCells  int `yaml:"eval-cells" toml:"eval-cells"`
}

// Heap sizes the heap and sets when the collector runs before it is full.
type Heap struct {
	Cells      int     `yaml:"cells" toml:"cells"`
	Handles    int     `yaml:"handles" toml:"handles"`
	HighWater  float64 `yaml:"high-water" toml:"high-water"`
	LowHandles int     `yaml:"low-handles" toml:"low-handles"`
}

// Evaluator bounds recursion and switches dispatch refinement.
type Evaluator struct {
	MaxDepth   int  `yaml:"max-depth" toml:"max-depth"`
	Specialise bool `yaml:"specialise" toml:"specialise"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Stacks: Stacks{
			FrameCells: interpreter.DefaultFrameCells,
			EvalCells:  interpreter.DefaultStackCells,
		},
		Heap: Heap{
			Cells:      interpreter.DefaultHeapCells,
			Handles:    interpreter.DefaultHandles,
			HighWater:  0.9,
			LowHandles: 16,
		},
		Evaluator: Evaluator{
			MaxDepth:   interpreter.DefaultMaxDepth,
			Specialise: true,
		},
	}
}

// Load reads a configuration file. The format follows the extension: .yaml
// and .yml for YAML, .toml for TOML. Settings missing from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return nil, fmt.Errorf("%s: unknown configuration format %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Path = path

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate reports every setting out of range.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Stacks.FrameCells > 0, "frame-cells must be positive, got %d", c.Stacks.FrameCells)
	check(c.Stacks.EvalCells > 0, "eval-cells must be positive, got %d", c.Stacks.EvalCells)
	check(c.Heap.Cells > 0, "heap cells must be positive, got %d", c.Heap.Cells)
	check(c.Heap.Handles > 0, "handles must be positive, got %d", c.Heap.Handles)
	check(c.Heap.HighWater > 0 && c.Heap.HighWater <= 1, "high-water must be in (0, 1], got %g", c.Heap.HighWater)
	check(c.Heap.LowHandles >= 0 && c.Heap.LowHandles < c.Heap.Handles,
		"low-handles must be below handles (%d), got %d", c.Heap.Handles, c.Heap.LowHandles)
	check(c.Evaluator.MaxDepth > 0, "max-depth must be positive, got %d", c.Evaluator.MaxDepth)

	return errors.Join(errs...)
}

// Options converts the configuration into interpreter options.
func (c *Config) Options() []interpreter.Option {
	opts := []interpreter.Option{
		interpreter.WithFrameStack(c.Stacks.FrameCells),
		interpreter.WithEvalStack(c.Stacks.EvalCells),
		interpreter.WithHeap(c.Heap.Cells, c.Heap.Handles),
		interpreter.WithPolicy(heap.Policy{HighWater: c.Heap.HighWater, LowHandles: c.Heap.LowHandles}),
		interpreter.WithMaxDepth(c.Evaluator.MaxDepth),
	}
	if !c.Evaluator.Specialise {
		opts = append(opts, interpreter.WithoutSpecialization())
	}
	return opts
}
