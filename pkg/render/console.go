package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/xiaoha/batterywidget/pkg/types"
)

var (
	bandColor = map[Band]*color.Color{
		BandHigh:   color.New(color.FgGreen, color.Bold),
		BandMedium: color.New(color.FgYellow, color.Bold),
		BandLow:    color.New(color.FgRed, color.Bold),
	}
	errorColor = color.New(color.FgRed)
	dimColor   = color.New(color.Faint)
)

// Console prints one line per rendered state.
type Console struct {
	mu   sync.Mutex
	out  io.Writer
	text Formatter
}

func NewConsole(out io.Writer, text Formatter) *Console {
	return &Console{out: out, text: text}
}

func (c *Console) Render(id types.InstanceID, s types.DisplayState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, c.Line(id, s))
}

func (c *Console) OpenConfiguration(id types.InstanceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, "[%s] %s\n", id, dimColor.Sprintf("configure with: batterywidget configure %s --battery <battery-id>", id))
}

// Line formats s the way Render prints it.
func (c *Console) Line(id types.InstanceID, s types.DisplayState) string {
	t := c.text.Texts(s)

	switch s.Kind {
	case types.DisplayOk:
		return fmt.Sprintf("[%s] %s %s %s", id, bandColor[BandOf(s.Percentage)].Sprint(t.Headline), t.BatteryID, dimColor.Sprint(t.Updated))
	case types.DisplayError:
		return fmt.Sprintf("[%s] %s", id, errorColor.Sprint(t.Headline))
	default:
		return fmt.Sprintf("[%s] %s", id, dimColor.Sprint(t.Headline))
	}
}
