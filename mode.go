package storekit

import (
	"fmt"
	"strings"
)

// Mode describes how a file is opened, mirroring the POSIX fopen mode
// string: exactly one of create ("x"), read ("r"), write ("w") or append
// ("a"), optionally combined with update ("+") and either binary ("b") or
// text ("t", the default).
type Mode struct {
	Create bool
	Read   bool
	Write  bool
	Append bool
	Update bool
	Binary bool
}

// ParseMode parses and validates a mode string. Invalid combinations are
// rejected with ErrInvalidMode before any I/O is attempted.
func ParseMode(s string) (Mode, error) {
	var m Mode
	text := false
	seen := map[rune]bool{}
	for _, c := range s {
		if seen[c] {
			return Mode{}, fmt.Errorf("%w: duplicate %q in %q", ErrInvalidMode, c, s)
		}
		seen[c] = true
		switch c {
		case 'x':
			m.Create = true
		case 'r':
			m.Read = true
		case 'w':
			m.Write = true
		case 'a':
			m.Append = true
		case '+':
			m.Update = true
		case 'b':
			m.Binary = true
		case 't':
			text = true
		default:
			return Mode{}, fmt.Errorf("%w: unknown %q in %q", ErrInvalidMode, c, s)
		}
	}
	n := 0
	for _, set := range []bool{m.Create, m.Read, m.Write, m.Append} {
		if set {
			n++
		}
	}
	if n != 1 {
		return Mode{}, fmt.Errorf("%w: must have exactly one of create/read/write/append in %q", ErrInvalidMode, s)
	}
	if m.Binary && text {
		return Mode{}, fmt.Errorf("%w: can't have text and binary mode at once in %q", ErrInvalidMode, s)
	}
	return m, nil
}

// Readable reports whether the mode permits reading.
func (m Mode) Readable() bool {
	return m.Read || m.Update
}

// Writable reports whether the mode permits writing.
func (m Mode) Writable() bool {
	return m.Create || m.Write || m.Append || m.Update
}

// Text reports whether the file is opened in text mode.
func (m Mode) Text() bool {
	return !m.Binary
}

// String renders the mode back into its canonical string form.
func (m Mode) String() string {
	var b strings.Builder
	switch {
	case m.Create:
		b.WriteByte('x')
	case m.Read:
		b.WriteByte('r')
	case m.Write:
		b.WriteByte('w')
	case m.Append:
		b.WriteByte('a')
	}
	if m.Update {
		b.WriteByte('+')
	}
	if m.Binary {
		b.WriteByte('b')
	}
	return b.String()
}
