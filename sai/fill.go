package sai

import "fmt"

// Fill answers a GET: for every requested attribute it copies the value
// found in have into req. A list whose request buffer is smaller than the
// stored list only gets its true count, and Fill then returns
// StatusBufferOverflow after processing the remaining attributes.
func Fill(md Metadata, t ObjectType, req []Attribute, have []Attribute) error {
	overflow := false
	for i := range req {
		m, ok := md.Attr(t, req[i].ID)
		if !ok {
			return fmt.Errorf("%s attr %d: %w", t, req[i].ID, StatusInvalidParameter)
		}
		src, ok := FindAttribute(have, req[i].ID)
		if !ok {
			return fmt.Errorf("%s is not set: %w", m.Name, StatusItemNotFound)
		}
		if !fillValue(m.ValueType, &req[i].Value, src.Value) {
			overflow = true
		}
	}
	if overflow {
		return StatusBufferOverflow
	}
	return nil
}

func fillValue(vt ValueType, dst *Value, src Value) bool {
	buf, _, isList := dst.ListCount(vt)
	if !isList {
		*dst = src.Clone()
		return true
	}
	n, _, _ := src.ListCount(vt)
	if buf < n {
		dst.SetListCount(vt, n)
		return false
	}
	*dst = src.Clone()
	return true
}
