// Package codec is the canonical text encoding shared by the client, the
// daemon and the capture log. Every value has exactly one encoding and
// decoding it yields the original value.
package codec

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"sairedis/sai"
)

var (
	// ErrUnknownAttribute means the two sides disagree on the schema.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrUnknownNotification is returned for notification names this
	// build does not understand.
	ErrUnknownNotification = errors.New("unknown notification")
)

// ObjectIDField carries the handle assigned by the daemon in a create
// response.
const ObjectIDField = "SAI_REDIS_OBJECT_ID"

// Fields of an apply-view failure response.
const (
	ApplyOpField  = "SAI_REDIS_APPLY_OP"
	ApplyKeyField = "SAI_REDIS_APPLY_KEY"
)

const (
	listSep   = ","
	countSep  = ":"
	maskSep   = "&mask:"
	emptyList = "null"
	disabled  = "disabled"
)

type Codec struct {
	md sai.Metadata
}

func New(md sai.Metadata) *Codec {
	return &Codec{md: md}
}

func (c *Codec) Metadata() sai.Metadata {
	return c.md
}

// EncodeAttributes encodes attrs of an object of type t. With countOnly,
// lists are reduced to their buffer size, which is how GET requests are
// sent.
func (c *Codec) EncodeAttributes(t sai.ObjectType, attrs []sai.Attribute, countOnly bool) ([]sai.FieldValue, error) {
	res := make([]sai.FieldValue, 0, len(attrs))
	for _, a := range attrs {
		m, ok := c.md.Attr(t, a.ID)
		if !ok {
			return nil, fmt.Errorf("%s attr 0x%x: %w", t, uint32(a.ID), ErrUnknownAttribute)
		}
		res = append(res, sai.FieldValue{
			Field: m.Name,
			Value: EncodeValue(m.ValueType, a.Value, countOnly),
		})
	}
	return res, nil
}

// DecodeAttributes is the inverse of EncodeAttributes.
func (c *Codec) DecodeAttributes(t sai.ObjectType, fvs []sai.FieldValue) ([]sai.Attribute, error) {
	res := make([]sai.Attribute, 0, len(fvs))
	for _, fv := range fvs {
		m, ok := c.md.AttrByName(t, fv.Field)
		if !ok {
			return nil, fmt.Errorf("%s %s: %w", t, fv.Field, ErrUnknownAttribute)
		}
		v, err := DecodeValue(m.ValueType, fv.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fv.Field, err)
		}
		res = append(res, sai.Attribute{ID: m.ID, Value: v})
	}
	return res, nil
}

// EncodeValue encodes v as shape vt.
func EncodeValue(vt sai.ValueType, v sai.Value, countOnly bool) string {
	if vt.IsACLField() {
		if v.Field == nil || !v.Field.Enable {
			return disabled
		}
		data := EncodeValue(vt.Inner(), v.Field.Data, countOnly)
		if !hasMask(vt) {
			return data
		}
		return data + maskSep + EncodeValue(vt.Inner(), v.Field.Mask, countOnly)
	}
	if vt.IsACLAction() {
		if v.Action == nil || !v.Action.Enable {
			return disabled
		}
		return EncodeValue(vt.Inner(), v.Action.Parameter, countOnly)
	}

	switch vt {
	case sai.ValueBool:
		return strconv.FormatBool(v.Bool)
	case sai.ValueChardata:
		return escape(v.Chardata)
	case sai.ValueU8, sai.ValueU16, sai.ValueU32, sai.ValueU64:
		return strconv.FormatUint(v.Uint, 10)
	case sai.ValueS8, sai.ValueS16, sai.ValueS32, sai.ValueS64:
		return strconv.FormatInt(v.Int, 10)
	case sai.ValueMAC:
		return v.MAC.String()
	case sai.ValueIPv4, sai.ValueIPv6, sai.ValueIPAddress:
		if !v.IP.IsValid() {
			return emptyList
		}
		return v.IP.String()
	case sai.ValueIPPrefix:
		if !v.Prefix.IsValid() {
			return emptyList
		}
		return v.Prefix.String()
	case sai.ValueObjectID:
		return v.OID.String()
	case sai.ValueObjectList:
		return encodeList(v.Objects, countOnly, func(id sai.ObjectID) string { return id.String() })
	case sai.ValueU8List, sai.ValueU16List, sai.ValueU32List, sai.ValueVLANList:
		return encodeList(v.Uints, countOnly, func(u uint64) string { return strconv.FormatUint(u, 10) })
	case sai.ValueS8List, sai.ValueS32List:
		return encodeList(v.Ints, countOnly, func(i int64) string { return strconv.FormatInt(i, 10) })
	case sai.ValueU32Range, sai.ValueS32Range:
		return strconv.FormatInt(v.Range.Min, 10) + listSep + strconv.FormatInt(v.Range.Max, 10)
	}
	return ""
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(vt sai.ValueType, s string) (sai.Value, error) {
	var v sai.Value
	if vt.IsACLField() {
		if s == disabled {
			v.Field = &sai.ACLField{}
			return v, nil
		}
		data, mask := s, ""
		if hasMask(vt) {
			i := strings.LastIndex(s, maskSep)
			if i < 0 {
				return v, invalid(vt, s)
			}
			data, mask = s[:i], s[i+len(maskSep):]
		}
		f := &sai.ACLField{Enable: true}
		var err error
		if f.Data, err = DecodeValue(vt.Inner(), data); err != nil {
			return v, err
		}
		if hasMask(vt) {
			if f.Mask, err = DecodeValue(vt.Inner(), mask); err != nil {
				return v, err
			}
		}
		v.Field = f
		return v, nil
	}
	if vt.IsACLAction() {
		if s == disabled {
			v.Action = &sai.ACLAction{}
			return v, nil
		}
		p, err := DecodeValue(vt.Inner(), s)
		if err != nil {
			return v, err
		}
		v.Action = &sai.ACLAction{Enable: true, Parameter: p}
		return v, nil
	}

	var err error
	switch vt {
	case sai.ValueBool:
		v.Bool, err = strconv.ParseBool(s)
	case sai.ValueChardata:
		v.Chardata, err = unescape(s)
	case sai.ValueU8:
		v.Uint, err = strconv.ParseUint(s, 10, 8)
	case sai.ValueU16:
		v.Uint, err = strconv.ParseUint(s, 10, 16)
	case sai.ValueU32:
		v.Uint, err = strconv.ParseUint(s, 10, 32)
	case sai.ValueU64:
		v.Uint, err = strconv.ParseUint(s, 10, 64)
	case sai.ValueS8:
		v.Int, err = strconv.ParseInt(s, 10, 8)
	case sai.ValueS16:
		v.Int, err = strconv.ParseInt(s, 10, 16)
	case sai.ValueS32:
		v.Int, err = strconv.ParseInt(s, 10, 32)
	case sai.ValueS64:
		v.Int, err = strconv.ParseInt(s, 10, 64)
	case sai.ValueMAC:
		v.MAC, err = sai.ParseMAC(s)
	case sai.ValueIPv4, sai.ValueIPv6, sai.ValueIPAddress:
		if s == emptyList {
			return v, nil
		}
		v.IP, err = netip.ParseAddr(s)
		if err == nil && (vt == sai.ValueIPv4 && !v.IP.Is4() || vt == sai.ValueIPv6 && !v.IP.Is6()) {
			return v, invalid(vt, s)
		}
	case sai.ValueIPPrefix:
		if s == emptyList {
			return v, nil
		}
		v.Prefix, err = netip.ParsePrefix(s)
	case sai.ValueObjectID:
		v.OID, err = sai.ParseObjectID(s)
	case sai.ValueObjectList:
		v.Objects, err = decodeList(s, sai.ParseObjectID)
	case sai.ValueU8List, sai.ValueU16List, sai.ValueU32List, sai.ValueVLANList:
		v.Uints, err = decodeList(s, func(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) })
	case sai.ValueS8List, sai.ValueS32List:
		v.Ints, err = decodeList(s, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
	case sai.ValueU32Range, sai.ValueS32Range:
		lo, hi, ok := strings.Cut(s, listSep)
		if !ok {
			return v, invalid(vt, s)
		}
		if v.Range.Min, err = strconv.ParseInt(lo, 10, 64); err == nil {
			v.Range.Max, err = strconv.ParseInt(hi, 10, 64)
		}
	default:
		return v, invalid(vt, s)
	}
	if err != nil {
		return v, fmt.Errorf("%q: %v: %w", s, err, sai.StatusInvalidParameter)
	}
	return v, nil
}

func hasMask(vt sai.ValueType) bool {
	switch vt.Inner() {
	case sai.ValueBool, sai.ValueObjectID, sai.ValueObjectList:
		return false
	}
	return true
}

func invalid(vt sai.ValueType, s string) error {
	return fmt.Errorf("bad value %q for type %d: %w", s, vt, sai.StatusInvalidParameter)
}

// <count>:<a>,<b>,... ; an empty item list is written as null.
func encodeList[T any](l sai.List[T], countOnly bool, f func(T) string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(l.Count), 10))
	b.WriteString(countSep)
	if countOnly || len(l.Items) == 0 {
		b.WriteString(emptyList)
		return b.String()
	}
	for i, v := range l.Items {
		if i > 0 {
			b.WriteString(listSep)
		}
		b.WriteString(f(v))
	}
	return b.String()
}

func decodeList[T any](s string, parse func(string) (T, error)) (sai.List[T], error) {
	var l sai.List[T]
	cnt, items, ok := strings.Cut(s, countSep)
	if !ok {
		return l, fmt.Errorf("list %q has no count", s)
	}
	n, err := strconv.ParseUint(cnt, 10, 32)
	if err != nil {
		return l, err
	}
	l.Count = uint32(n)
	switch items {
	case emptyList:
		return l, nil
	case "":
		l.Items = []T{}
		return l, nil
	}
	for _, it := range strings.Split(items, listSep) {
		v, err := parse(it)
		if err != nil {
			return l, err
		}
		l.Items = append(l.Items, v)
	}
	return l, nil
}

const hexDigits = "0123456789ABCDEF"

func needsEscape(c byte) bool {
	switch c {
	case '%', ',', '&', '|', ':', ';', '=', '\\':
		return true
	}
	return c < 0x20 || c >= 0x7f
}

func escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if needsEscape(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}
	b := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			b = append(b, '%', hexDigits[c>>4], hexDigits[c&15])
			continue
		}
		b = append(b, c)
	}
	return string(b)
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b = append(b, s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated escape in %q", s)
		}
		v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("bad escape in %q", s)
		}
		b = append(b, byte(v))
		i += 2
	}
	return string(b), nil
}

// EncodeStatus returns the wire form of a status.
func EncodeStatus(s sai.Status) string {
	return s.String()
}

// DecodeStatus is the inverse of EncodeStatus.
func DecodeStatus(s string) (sai.Status, error) {
	return sai.ParseStatus(s)
}
