package color

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// ANSI colour numbers understood by every termenv profile
const (
	Red    = "1"
	Green  = "2"
	Yellow = "3"
	Blue   = "4"
	Cyan   = "6"
	Gray   = "8"

	BrightRed = "9"
)

var profile = termenv.ANSI

func init() {
	if os.Getenv("NO_COLOR") != "" || !isTerminal() {
		profile = termenv.Ascii
	}
}

func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func EnableColor(enable bool) {
	if enable {
		profile = termenv.ANSI
	} else {
		profile = termenv.Ascii
	}
}

func IsColorEnabled() bool {
	return profile != termenv.Ascii
}

func Colorize(color, text string) string {
	return profile.String(text).Foreground(profile.Color(color)).String()
}

func RedText(text string) string {
	return Colorize(Red, text)
}

func BrightRedText(text string) string {
	return Colorize(BrightRed, text)
}

func GreenText(text string) string {
	return Colorize(Green, text)
}

func YellowText(text string) string {
	return Colorize(Yellow, text)
}

func BlueText(text string) string {
	return Colorize(Blue, text)
}

func CyanText(text string) string {
	return Colorize(Cyan, text)
}

func GrayText(text string) string {
	return Colorize(Gray, text)
}

func BoldText(text string) string {
	return profile.String(text).Bold().String()
}

func Error(message string) string {
	return BrightRedText(BoldText("Error: ")) + message
}

func Warning(message string) string {
	return YellowText("Warning: ") + message
}

func Position(line, col int) string {
	return CyanText(fmt.Sprintf("%d:%d", line, col))
}
