package storekit

import (
	"errors"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in       string
		readable bool
		writable bool
		binary   bool
	}{
		{"r", true, false, false},
		{"rb", true, false, true},
		{"rt", true, false, false},
		{"r+", true, true, false},
		{"r+b", true, true, true},
		{"w", false, true, false},
		{"wb", false, true, true},
		{"w+", true, true, false},
		{"a", false, true, false},
		{"a+b", true, true, true},
		{"x", false, true, false},
		{"x+", true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseMode(tt.in)
			if err != nil {
				t.Fatalf("ParseMode(%q): %v", tt.in, err)
			}
			if m.Readable() != tt.readable {
				t.Errorf("Readable() = %v, want %v", m.Readable(), tt.readable)
			}
			if m.Writable() != tt.writable {
				t.Errorf("Writable() = %v, want %v", m.Writable(), tt.writable)
			}
			if m.Binary != tt.binary {
				t.Errorf("Binary = %v, want %v", m.Binary, tt.binary)
			}
		})
	}
}

func TestParseModeInvalid(t *testing.T) {
	tests := []string{
		"",     // no main mode
		"+",    // update without main mode
		"rw",   // two main modes
		"ra",   // two main modes
		"wx",   // two main modes
		"rr",   // duplicate
		"r++",  // duplicate
		"rbt",  // binary and text
		"z",    // unknown character
		"r+z",  // unknown character
		"wa+b", // two main modes
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			if _, err := ParseMode(in); !errors.Is(err, ErrInvalidMode) {
				t.Errorf("ParseMode(%q) err = %v, want ErrInvalidMode", in, err)
			}
		})
	}
}

func TestModeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"r", "r"},
		{"rt", "r"},
		{"+r", "r+"},
		{"br+", "r+b"},
		{"wb", "wb"},
		{"a+", "a+"},
	}
	for _, tt := range tests {
		m, err := ParseMode(tt.in)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", tt.in, err)
		}
		if got := m.String(); got != tt.want {
			t.Errorf("ParseMode(%q).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}
