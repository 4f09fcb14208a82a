package xlog

import "fmt"

// Copied from zap/internal/color
// - adds coloring functionality for TTY output.

const (
	colorRed     termColor = 31
	colorYellow  termColor = 33
	colorBlue    termColor = 34
	colorMagenta termColor = 35
)

type termColor uint8

func (c termColor) Add(s string) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", uint8(c), s)
}
