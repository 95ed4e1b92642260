// Package display renders the active item descriptions.
package display

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/andresmejia3/itemwatch/internal/presence"
)

// clearScreen resets the terminal (ESC c).
const clearScreen = "\x1bc"

// Display receives the active set once per cycle.
type Display interface {
	Show(entries []presence.Entry) error
}

// Terminal redraws the whole screen on every cycle.
type Terminal struct {
	w     io.Writer
	clear bool
}

// NewTerminal writes to w. When clear is false the screen is not reset between
// cycles, which is useful when stdout is redirected.
func NewTerminal(w io.Writer, clear bool) *Terminal {
	return &Terminal{w: w, clear: clear}
}

func (t *Terminal) Show(entries []presence.Entry) error {
	bw := bufio.NewWriter(t.w)
	if t.clear {
		bw.WriteString(clearScreen)
	}
	for _, e := range entries {
		d := e.Description
		fmt.Fprintf(bw, "%s\n  %s\n", d.Title, d.Quote)
		for _, p := range d.Paragraphs {
			fmt.Fprintf(bw, "  - %s\n", p)
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// Multi fans one cycle out to several displays. Every display is shown even if
// an earlier one fails; the errors are joined.
type Multi []Display

func (m Multi) Show(entries []presence.Entry) error {
	var errs []error
	for _, d := range m {
		if err := d.Show(entries); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
