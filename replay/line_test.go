package replay

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sairedis/sai"
)

func TestLineFormat(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 20, 30, 123456000, time.Local)
	l := Line{Time: ts, Op: OpSet, Key: "SAI_OBJECT_TYPE_PORT:oid:0x1000000000002", Fields: []sai.FieldValue{
		{Field: "SAI_PORT_ATTR_HW_LANE_LIST", Value: "4:1,2,3,4"},
	}}
	s := l.String()
	assert.Equal(t, `2026-03-01.10:20:30.123456|s|SAI_OBJECT_TYPE_PORT:oid:0x1000000000002|SAI_PORT_ATTR_HW_LANE_LIST=4:1\,2\,3\,4`, s)

	back, err := ParseLine(s)
	require.NoError(t, err)
	assert.True(t, ts.Equal(back.Time))
	assert.Equal(t, l.Op, back.Op)
	assert.Equal(t, l.Key, back.Key)
	assert.Equal(t, l.Fields, back.Fields)
}

func TestLineEscapes(t *testing.T) {
	l := Line{Time: time.Now().Truncate(time.Microsecond), Op: OpCreate, Key: `a|b\c`, Fields: []sai.FieldValue{
		{Field: "X", Value: `p|q,r\s=t`},
		{Field: "Y", Value: ""},
	}}
	back, err := ParseLine(l.String())
	require.NoError(t, err)
	assert.Equal(t, l.Key, back.Key)
	assert.Equal(t, l.Fields, back.Fields)
}

func TestParseSpecialLines(t *testing.T) {
	l, err := ParseLine("# replayed by hand")
	require.NoError(t, err)
	assert.Equal(t, byte(OpComment), l.Op)

	l, err = ParseLine("2026-03-01.10:20:30.000000|S|15")
	require.NoError(t, err)
	d, err := l.SleepDuration()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Millisecond, d)

	l, err = ParseLine("2026-03-01.10:20:30.000000|S|250us")
	require.NoError(t, err)
	d, err = l.SleepDuration()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Microsecond, d)

	l, err = ParseLine("2026-03-01.10:20:30.000000|a|INIT_VIEW")
	require.NoError(t, err)
	assert.Equal(t, sai.ViewInit, l.Key)
	assert.Empty(t, l.Fields)
}

func TestParseBadLines(t *testing.T) {
	for _, s := range []string{
		"no separators",
		"2026-03-01.10:20:30.000000|cc|KEY",
		"yesterday|c|KEY",
		"2026-03-01.10:20:30.000000|c|KEY|novalue",
		`2026-03-01.10:20:30.000000|c|KEY\`,
	} {
		_, err := ParseLine(s)
		assert.ErrorIs(t, err, ErrBadLine, s)
	}
}

func TestRead(t *testing.T) {
	lines, err := Read(strings.NewReader("# header\n\n2026-03-01.10:20:30.000000|a|INIT_VIEW\n2026-03-01.10:20:30.000001|A|SAI_STATUS_SUCCESS\n"))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, byte(OpNotifyResult), lines[2].Op)

	_, err = Read(strings.NewReader("2026-03-01.10:20:30.000000|a|INIT_VIEW\nbroken\n"))
	assert.ErrorContains(t, err, "line 2")
}
