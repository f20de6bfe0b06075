package sai

import "net/netip"

// FDBEntry addresses a learned or static bridge address.
type FDBEntry struct {
	MAC        MAC
	BridgeVLAN ObjectID
}

// NeighborEntry addresses a neighbor behind a router interface.
type NeighborEntry struct {
	RIF ObjectID
	IP  netip.Addr
}

// RouteEntry addresses a prefix inside a virtual router.
type RouteEntry struct {
	VR     ObjectID
	Prefix netip.Prefix
}

// ObjectKey addresses one object. Handle-keyed families use OID; the entry
// families use the matching structured member. ObjectKey is comparable.
type ObjectKey struct {
	Type     ObjectType
	OID      ObjectID
	FDB      FDBEntry
	Neighbor NeighborEntry
	Route    RouteEntry
}

// KeyOf returns the key of a handle-keyed object.
func KeyOf(id ObjectID) ObjectKey {
	return ObjectKey{Type: id.Type(), OID: id}
}

// FDBKey returns the key of an FDB entry.
func FDBKey(e FDBEntry) ObjectKey {
	return ObjectKey{Type: ObjectTypeFDBEntry, FDB: e}
}

// NeighborKey returns the key of a neighbor entry.
func NeighborKey(e NeighborEntry) ObjectKey {
	return ObjectKey{Type: ObjectTypeNeighborEntry, Neighbor: e}
}

// RouteKey returns the key of a route entry.
func RouteKey(e RouteEntry) ObjectKey {
	return ObjectKey{Type: ObjectTypeRouteEntry, Route: e}
}

// EmbeddedID returns a pointer to the single handle carried by an entry key,
// or nil for handle-keyed objects.
func (k *ObjectKey) EmbeddedID() *ObjectID {
	switch k.Type {
	case ObjectTypeFDBEntry:
		return &k.FDB.BridgeVLAN
	case ObjectTypeNeighborEntry:
		return &k.Neighbor.RIF
	case ObjectTypeRouteEntry:
		return &k.Route.VR
	}
	return nil
}
