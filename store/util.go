package store

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cockroachdb/pebble"
)

type Getter interface {
	Get(key []byte) ([]byte, io.Closer, error)
}
type Setter interface {
	Set(key, value []byte, _ *pebble.WriteOptions) error
}

func Int64ToByte(val int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(val))
	return buf
}
func ByteToInt64(d []byte) int64 {
	return int64(binary.LittleEndian.Uint64(d))
}

func GetInt64(key []byte, b Getter) (*int64, error) {
	d, closer, err := b.Get(key)
	if err != nil && err != pebble.ErrNotFound {
		return nil, fmt.Errorf("DB ERR %v", err.Error())
	}
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	defer closer.Close()
	seq := ByteToInt64(d)
	return &seq, nil
}

func SetInt64(key []byte, val int64, b Setter) error {
	return b.Set(key, Int64ToByte(val), pebble.NoSync)
}

// TableID|ID
func CompID1(prefix int, id string) []byte {
	b := make([]byte, 0, len(id)+1)
	b = append(b, byte(prefix))
	b = append(b, id...)
	return b
}

func FromCompID1(key []byte) string {
	return string(key[1:])
}

// TableID|Name|0|Seq
// seq is big endian so iteration follows sequence order
func compIDSeq(prefix int, name string, seq int64) []byte {
	b := make([]byte, 0, len(name)+10)
	b = append(b, byte(prefix))
	b = append(b, name...)
	b = append(b, 0)
	return binary.BigEndian.AppendUint64(b, uint64(seq))
}

// Uint64Key is TableID|value in big endian.
func Uint64Key(prefix int, v uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte{byte(prefix)}, v)
}

// KeyUint64 is the inverse of Uint64Key.
func KeyUint64(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[1:])
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
