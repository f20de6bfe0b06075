package vid

import (
	"fmt"

	"sairedis/codec"
	"sairedis/sai"
)

// MapFunc maps one handle to another.
type MapFunc func(id sai.ObjectID) (sai.ObjectID, error)

// Walk calls visit for every handle embedded in attrs, in attribute order.
// It is the only code that knows where handles live inside values, and
// visit may replace the handle in place.
func Walk(md sai.Metadata, t sai.ObjectType, attrs []sai.Attribute, visit func(*sai.ObjectID) error) error {
	for i := range attrs {
		m, ok := md.Attr(t, attrs[i].ID)
		if !ok {
			return fmt.Errorf("%s attr 0x%x: %w", t, uint32(attrs[i].ID), codec.ErrUnknownAttribute)
		}
		if !m.ValueType.CarriesObjectID() {
			continue
		}
		v := &attrs[i].Value
		switch {
		case m.ValueType.IsACLField():
			if v.Field == nil || !v.Field.Enable {
				continue
			}
			v = &v.Field.Data
		case m.ValueType.IsACLAction():
			if v.Action == nil || !v.Action.Enable {
				continue
			}
			v = &v.Action.Parameter
		}
		if err := walkValue(m.ValueType.Inner(), v, visit); err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
	}
	return nil
}

func walkValue(vt sai.ValueType, v *sai.Value, visit func(*sai.ObjectID) error) error {
	switch vt {
	case sai.ValueObjectID:
		return visit(&v.OID)
	case sai.ValueObjectList:
		for j := range v.Objects.Items {
			if err := visit(&v.Objects.Items[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Rewrite returns a copy of attrs with every embedded handle replaced by
// fn. The null handle is never passed to fn. On error attrs is untouched.
func Rewrite(md sai.Metadata, t sai.ObjectType, attrs []sai.Attribute, fn MapFunc) ([]sai.Attribute, error) {
	res := sai.CloneAttributes(attrs)
	err := Walk(md, t, res, func(id *sai.ObjectID) error {
		if *id == sai.NullObjectID {
			return nil
		}
		n, err := fn(*id)
		if err != nil {
			return err
		}
		*id = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RewriteKey maps the handle of a key: the object handle for handle keyed
// objects, the embedded handle for entries.
func RewriteKey(k sai.ObjectKey, fn MapFunc) (sai.ObjectKey, error) {
	id := &k.OID
	if e := k.EmbeddedID(); e != nil {
		id = e
	}
	if *id == sai.NullObjectID {
		return k, nil
	}
	n, err := fn(*id)
	if err != nil {
		return k, err
	}
	*id = n
	return k, nil
}

// Refs returns the non-null handles an object depends on: handles inside
// its attributes and the handle embedded in an entry key.
func Refs(md sai.Metadata, k sai.ObjectKey, attrs []sai.Attribute) ([]sai.ObjectID, error) {
	var res []sai.ObjectID
	if e := k.EmbeddedID(); e != nil && *e != sai.NullObjectID {
		res = append(res, *e)
	}
	err := Walk(md, k.Type, sai.CloneAttributes(attrs), func(id *sai.ObjectID) error {
		if *id != sai.NullObjectID {
			res = append(res, *id)
		}
		return nil
	})
	return res, err
}

// RewriteNotification returns a copy of n with every handle mapped by fn.
func RewriteNotification(md sai.Metadata, n sai.Notification, fn MapFunc) (sai.Notification, error) {
	one := func(id sai.ObjectID) (sai.ObjectID, error) {
		if id == sai.NullObjectID {
			return id, nil
		}
		return fn(id)
	}
	switch n := n.(type) {
	case sai.SwitchStateChange:
		id, err := one(n.SwitchID)
		n.SwitchID = id
		return n, err
	case sai.SwitchShutdownRequest:
		id, err := one(n.SwitchID)
		n.SwitchID = id
		return n, err
	case sai.PortStateChange:
		res := make(sai.PortStateChange, len(n))
		for i, p := range n {
			id, err := one(p.PortID)
			if err != nil {
				return nil, err
			}
			res[i] = sai.PortOperStatus{PortID: id, Status: p.Status}
		}
		return res, nil
	case sai.FDBEvents:
		res := make(sai.FDBEvents, len(n))
		for i, e := range n {
			bv, err := one(e.Entry.BridgeVLAN)
			if err != nil {
				return nil, err
			}
			attrs, err := Rewrite(md, sai.ObjectTypeFDBEntry, e.Attrs, fn)
			if err != nil {
				return nil, err
			}
			res[i] = sai.FDBEvent{Type: e.Type, Entry: sai.FDBEntry{MAC: e.Entry.MAC, BridgeVLAN: bv}, Attrs: attrs}
		}
		return res, nil
	case sai.PacketEvent:
		id, err := one(n.SwitchID)
		if err != nil {
			return nil, err
		}
		attrs, err := Rewrite(md, sai.ObjectTypeHostifPacket, n.Attrs, fn)
		if err != nil {
			return nil, err
		}
		return sai.PacketEvent{SwitchID: id, Data: n.Data, Attrs: attrs}, nil
	}
	return nil, fmt.Errorf("%T: %w", n, codec.ErrUnknownNotification)
}
