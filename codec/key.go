package codec

import (
	"fmt"
	"net/netip"
	"strings"

	"sairedis/sai"
)

// EncodeKey renders an object key as "<object type>:<handle>" or, for entry
// families, "<object type>:<name>=<value>;<name>=<value>".
func EncodeKey(k sai.ObjectKey) string {
	t := k.Type.String()
	switch k.Type {
	case sai.ObjectTypeFDBEntry:
		return t + ":mac=" + k.FDB.MAC.String() + ";bvid=" + k.FDB.BridgeVLAN.String()
	case sai.ObjectTypeNeighborEntry:
		return t + ":rif=" + k.Neighbor.RIF.String() + ";ip=" + k.Neighbor.IP.String()
	case sai.ObjectTypeRouteEntry:
		return t + ":vr=" + k.Route.VR.String() + ";dest=" + k.Route.Prefix.String()
	}
	return t + ":" + k.OID.String()
}

// DecodeKey is the inverse of EncodeKey.
func DecodeKey(s string) (sai.ObjectKey, error) {
	var k sai.ObjectKey
	ts, rest, ok := strings.Cut(s, ":")
	if !ok {
		return k, badKey(s)
	}
	t, err := sai.ParseObjectType(ts)
	if err != nil {
		return k, err
	}
	k.Type = t
	if !t.IsEntry() {
		k.OID, err = sai.ParseObjectID(rest)
		if err != nil {
			return k, err
		}
		if k.OID != sai.NullObjectID && k.OID.Type() != t {
			return k, fmt.Errorf("key %q: handle is a %s: %w", s, k.OID.Type(), sai.StatusInvalidObjectID)
		}
		return k, nil
	}

	parts := map[string]string{}
	for _, p := range strings.Split(rest, ";") {
		name, val, ok := strings.Cut(p, "=")
		if !ok {
			return k, badKey(s)
		}
		parts[name] = val
	}
	switch t {
	case sai.ObjectTypeFDBEntry:
		if k.FDB.MAC, err = sai.ParseMAC(parts["mac"]); err != nil {
			return k, err
		}
		k.FDB.BridgeVLAN, err = sai.ParseObjectID(parts["bvid"])
	case sai.ObjectTypeNeighborEntry:
		if k.Neighbor.RIF, err = sai.ParseObjectID(parts["rif"]); err != nil {
			return k, err
		}
		k.Neighbor.IP, err = netip.ParseAddr(parts["ip"])
	case sai.ObjectTypeRouteEntry:
		if k.Route.VR, err = sai.ParseObjectID(parts["vr"]); err != nil {
			return k, err
		}
		k.Route.Prefix, err = netip.ParsePrefix(parts["dest"])
	}
	if err != nil {
		return k, fmt.Errorf("key %q: %v: %w", s, err, sai.StatusInvalidParameter)
	}
	return k, nil
}

func badKey(s string) error {
	return fmt.Errorf("bad object key %q: %w", s, sai.StatusInvalidParameter)
}
