package replay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sairedis/sai"
)

func fixedClock() func() time.Time {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	return func() time.Time {
		ts = ts.Add(time.Millisecond)
		return ts
	}
}

func TestRecorderReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sairedis.rec")
	r, err := NewRecorder(path)
	require.NoError(t, err)
	r.now = fixedClock()

	r.Record(OpNotify, sai.ViewInit, nil)
	require.NoError(t, os.Rename(path, path+".1"))
	require.NoError(t, r.Reopen())
	r.Record(OpNotifyResult, "SAI_STATUS_SUCCESS", nil)
	require.NoError(t, r.Close())

	old, err := ReadFile(path + ".1")
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, sai.ViewInit, old[0].Key)

	cur, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, cur, 1)
	assert.Equal(t, byte(OpNotifyResult), cur[0].Op)
	assert.True(t, cur[0].Time.After(old[0].Time))
}

func TestSQLSinkMirrorsFile(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "capture.db")
	sink, err := OpenSQL("sqlite3", dsn)
	require.NoError(t, err)
	r, err := NewRecorder(filepath.Join(dir, "sairedis.rec"))
	require.NoError(t, err)
	r.now = fixedClock()
	r.WithSQL(sink)

	r.Record(OpCreate, "SAI_OBJECT_TYPE_VLAN:oid:0x11000000000001", []sai.FieldValue{{Field: "SAI_VLAN_ATTR_VLAN_ID", Value: "10"}})
	r.Record(OpGet, "SAI_OBJECT_TYPE_SWITCH:oid:0x10000000000001", []sai.FieldValue{{Field: "SAI_SWITCH_ATTR_PORT_LIST", Value: "8:null"}})
	r.Record(OpGetResponse, "SAI_STATUS_SUCCESS", []sai.FieldValue{{Field: "SAI_SWITCH_ATTR_PORT_LIST", Value: "1:oid:0x1000000000001"}})
	require.NoError(t, r.Close())

	fromFile, err := ReadFile(filepath.Join(dir, "sairedis.rec"))
	require.NoError(t, err)
	fromSQL, err := LoadSQL("sqlite3", dsn)
	require.NoError(t, err)
	require.Len(t, fromSQL, 3)
	for i := range fromFile {
		assert.Equal(t, fromFile[i].String(), fromSQL[i].String())
	}

	// reopening continues the sequence
	sink, err = OpenSQL("sqlite3", dsn)
	require.NoError(t, err)
	require.NoError(t, sink.Write(Line{Time: time.Now(), Op: OpRemove, Key: "SAI_OBJECT_TYPE_VLAN:oid:0x11000000000001"}))
	require.NoError(t, sink.Close())
	all, err := LoadSQL("sqlite3", dsn)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, byte(OpRemove), all[3].Op)
}
