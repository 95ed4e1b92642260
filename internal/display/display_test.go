package display

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/andresmejia3/itemwatch/internal/presence"
	"github.com/andresmejia3/itemwatch/internal/types"
)

func entries() []presence.Entry {
	now := time.Unix(0, 0)
	return []presence.Entry{
		{
			ID: 1,
			Description: types.Description{
				Title:      "The Sad Onion",
				Quote:      "Tears up",
				Paragraphs: []string{"+0.7 Tears", "Unlocked by default"},
			},
			FirstSeen: now,
			LastSeen:  now,
		},
		{
			ID:          10001,
			Description: types.Description{Title: "Swallowed Penny", Quote: "Gulp!"},
			FirstSeen:   now,
			LastSeen:    now,
		},
	}
}

func TestTerminalShow(t *testing.T) {
	tests := []struct {
		name  string
		clear bool
		want  string
	}{
		{
			name:  "With screen reset",
			clear: true,
			want: "\x1bcThe Sad Onion\n  Tears up\n  - +0.7 Tears\n  - Unlocked by default\n\n" +
				"Swallowed Penny\n  Gulp!\n\n",
		},
		{
			name:  "Plain output",
			clear: false,
			want: "The Sad Onion\n  Tears up\n  - +0.7 Tears\n  - Unlocked by default\n\n" +
				"Swallowed Penny\n  Gulp!\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewTerminal(&buf, tt.clear).Show(entries()); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("Show() wrote %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestTerminalShowEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTerminal(&buf, true).Show(nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != clearScreen {
		t.Errorf("Expected only the reset sequence, got %q", buf.String())
	}
}

type failing struct{ calls int }

func (f *failing) Show([]presence.Entry) error {
	f.calls++
	return errors.New("broken pipe")
}

func TestMultiShowsEveryDisplay(t *testing.T) {
	var buf bytes.Buffer
	bad := &failing{}
	m := Multi{bad, NewTerminal(&buf, false)}

	if err := m.Show(entries()); err == nil {
		t.Error("Expected the failing display's error, got nil")
	}
	if bad.calls != 1 || buf.Len() == 0 {
		t.Errorf("Expected both displays to run, got calls=%d written=%d", bad.calls, buf.Len())
	}
}
