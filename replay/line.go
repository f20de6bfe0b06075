// Package replay reads and writes the capture log and replays it against
// a daemon.
//
// One line per event:
//
//	2026-01-02.15:04:05.000000|c|SAI_OBJECT_TYPE_VLAN:oid:0x11000000000001|SAI_VLAN_ATTR_VLAN_ID=10
//
// The separators '|' and ',' and the escape '\' are escaped with a
// backslash inside keys, field names and values.
package replay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sairedis/sai"
)

const TimeFormat = "2006-01-02.15:04:05.000000"

// Opcodes.
const (
	OpCreate       = 'c'
	OpRemove       = 'r'
	OpSet          = 's'
	OpGet          = 'g'
	OpGetResponse  = 'G'
	OpNotification = 'n'
	OpSleep        = 'S'
	OpNotify       = 'a'
	OpNotifyResult = 'A'
	OpComment      = '#'
)

var (
	ErrMismatch = errors.New("replay mismatch")
	ErrBadLine  = errors.New("bad capture line")
)

type Line struct {
	Time   time.Time
	Op     byte
	Key    string
	Fields []sai.FieldValue
}

func (l Line) String() string {
	var b strings.Builder
	b.WriteString(l.Time.Format(TimeFormat))
	b.WriteByte('|')
	b.WriteByte(l.Op)
	b.WriteByte('|')
	escapeTo(&b, l.Key)
	if len(l.Fields) > 0 {
		b.WriteByte('|')
		for i, f := range l.Fields {
			if i > 0 {
				b.WriteByte(',')
			}
			escapeTo(&b, f.Field)
			b.WriteByte('=')
			escapeTo(&b, f.Value)
		}
	}
	return b.String()
}

func escapeTo(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '|', ',':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
}

// split cuts s at every unescaped sep and unescapes the parts. With n > 0
// at most n parts are returned and the last one keeps its escapes.
func split(s string, sep byte, n int) ([]string, error) {
	var res []string
	var cur strings.Builder
	last := func() bool { return n > 0 && len(res) == n-1 }
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			if i+1 == len(s) {
				return nil, fmt.Errorf("dangling escape: %w", ErrBadLine)
			}
			if last() {
				cur.WriteByte(c)
			}
			i++
			cur.WriteByte(s[i])
		case c == sep && !last():
			res = append(res, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(res, cur.String()), nil
}

// ParseLine is the inverse of Line.String.
func ParseLine(s string) (Line, error) {
	if strings.HasPrefix(s, "#") {
		return Line{Op: OpComment, Key: s[1:]}, nil
	}
	parts, err := split(s, '|', 4)
	if err != nil {
		return Line{}, err
	}
	if len(parts) < 2 || len(parts[1]) != 1 {
		return Line{}, fmt.Errorf("%q: %w", s, ErrBadLine)
	}
	var l Line
	l.Op = parts[1][0]
	if l.Op == OpComment {
		return l, nil
	}
	l.Time, err = time.ParseInLocation(TimeFormat, parts[0], time.Local)
	if err != nil {
		return Line{}, fmt.Errorf("%q: %v: %w", s, err, ErrBadLine)
	}
	if len(parts) > 2 {
		l.Key = parts[2]
	}
	if len(parts) > 3 && parts[3] != "" {
		items, err := split(parts[3], ',', -1)
		if err != nil {
			return Line{}, err
		}
		for _, it := range items {
			f, v, ok := strings.Cut(it, "=")
			if !ok {
				return Line{}, fmt.Errorf("field %q has no value: %w", it, ErrBadLine)
			}
			l.Fields = append(l.Fields, sai.FieldValue{Field: f, Value: v})
		}
	}
	return l, nil
}

// SleepDuration reads the delay of an OpSleep line: milliseconds, or a Go
// duration like 250us.
func (l Line) SleepDuration() (time.Duration, error) {
	if ms, err := strconv.ParseUint(l.Key, 10, 32); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(l.Key)
	if err != nil {
		return 0, fmt.Errorf("sleep %q: %w", l.Key, ErrBadLine)
	}
	return d, nil
}
