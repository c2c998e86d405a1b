package console

import (
	"fmt"
	"io"
	"os"

	"github.com/labstack/gommon/color"

	"github.com/talkincode/netpulse/internal/monitor"
)

// Display renders each status as one compact colorized line.
type Display struct {
	out io.Writer
}

func NewDisplay() *Display {
	return &Display{out: os.Stdout}
}

// Show writes the rendered status line.
func (d *Display) Show(s monitor.Status) {
	fmt.Fprintln(d.out, Render(s))
}

// Render formats a status snapshot as a single line, coloring the
// health label by severity.
func Render(s monitor.Status) string {
	label := s.Health.String()
	switch s.Health {
	case monitor.Excellent:
		label = color.Green(label)
	case monitor.Good:
		label = color.Cyan(label)
	case monitor.Degraded:
		label = color.Yellow(label)
	default:
		label = color.Red(label)
	}

	line := fmt.Sprintf("%s  %s", label, s.Message)
	if !s.Internet.Success && s.Internet.ErrorDetail != "" {
		line += fmt.Sprintf(" (%s)", s.Internet.ErrorDetail)
	}
	return fmt.Sprintf("%s  [%s]", line, s.Timestamp.Format("15:04:05"))
}
