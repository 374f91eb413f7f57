package color

import (
	"fmt"
	"os"

	"github.com/muesli/termenv"
)

var (
	Red       = termenv.ANSIRed
	Green     = termenv.ANSIGreen
	Yellow    = termenv.ANSIYellow
	Blue      = termenv.ANSIBlue
	Cyan      = termenv.ANSICyan
	Gray      = termenv.ANSIBrightBlack
	BrightRed = termenv.ANSIBrightRed
)

var (
	profile      = termenv.ANSI
	colorEnabled = true
)

func init() {
	if os.Getenv("NO_COLOR") != "" || termenv.NewOutput(os.Stdout).Profile == termenv.Ascii {
		colorEnabled = false
	}
}

func EnableColor(enable bool) {
	colorEnabled = enable
}

func IsColorEnabled() bool {
	return colorEnabled
}

func style(text string) termenv.Style {
	return termenv.String(text)
}

func Colorize(c termenv.ANSIColor, text string) string {
	if !colorEnabled {
		return text
	}
	return style(text).Foreground(profile.Convert(c)).String()
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
	if !colorEnabled {
		return text
	}
	return style(text).Bold().String()
}

func Error(message string) string {
	if !colorEnabled {
		return "Error: " + message
	}
	return BrightRedText("Error: ") + message
}

func Warning(message string) string {
	if !colorEnabled {
		return "Warning: " + message
	}
	return YellowText("Warning: ") + message
}

func Info(message string) string {
	if !colorEnabled {
		return message
	}
	return BlueText("Info: ") + message
}

func Success(message string) string {
	if !colorEnabled {
		return message
	}
	return GreenText("Success: ") + message
}

func Position(line, col int) string {
	pos := fmt.Sprintf("%d:%d", line, col)
	if !colorEnabled {
		return pos
	}
	return CyanText(pos)
}

func ErrorWithPosition(line, col int, message, context string) string {
	if !colorEnabled {
		return fmt.Sprintf("Error at %d:%d: %s\n%s", line, col, message, context)
	}

	return fmt.Sprintf("%s at %s: %s\n%s",
		BrightRedText(BoldText("Error")),
		Position(line, col),
		message,
		GrayText(context))
}
