package codec

import (
	"fmt"

	json "github.com/goccy/go-json"

	"sairedis/sai"
)

type fieldJSON struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type switchStateJSON struct {
	SwitchID string `json:"switch_id"`
	Status   int    `json:"status"`
}

type fdbEventJSON struct {
	Event string      `json:"fdb_event"`
	Entry string      `json:"fdb_entry"`
	Attrs []fieldJSON `json:"list"`
}

type portStateJSON struct {
	PortID string `json:"port_id"`
	State  int    `json:"port_state"`
}

type shutdownJSON struct {
	SwitchID string `json:"switch_id"`
}

type packetJSON struct {
	SwitchID string      `json:"switch_id"`
	Data     []byte      `json:"packet"`
	Attrs    []fieldJSON `json:"list"`
}

// EncodeNotification returns the notification name and its JSON payload.
func (c *Codec) EncodeNotification(n sai.Notification) (string, string, error) {
	var v interface{}
	switch n := n.(type) {
	case sai.SwitchStateChange:
		v = switchStateJSON{SwitchID: n.SwitchID.String(), Status: n.Status}
	case sai.FDBEvents:
		evs := make([]fdbEventJSON, 0, len(n))
		for _, e := range n {
			attrs, err := c.encodeFields(sai.ObjectTypeFDBEntry, e.Attrs)
			if err != nil {
				return "", "", err
			}
			evs = append(evs, fdbEventJSON{
				Event: e.Type.String(),
				Entry: EncodeKey(sai.FDBKey(e.Entry)),
				Attrs: attrs,
			})
		}
		v = evs
	case sai.PortStateChange:
		ps := make([]portStateJSON, 0, len(n))
		for _, p := range n {
			ps = append(ps, portStateJSON{PortID: p.PortID.String(), State: p.Status})
		}
		v = ps
	case sai.SwitchShutdownRequest:
		v = shutdownJSON{SwitchID: n.SwitchID.String()}
	case sai.PacketEvent:
		attrs, err := c.encodeFields(sai.ObjectTypeHostifPacket, n.Attrs)
		if err != nil {
			return "", "", err
		}
		v = packetJSON{SwitchID: n.SwitchID.String(), Data: n.Data, Attrs: attrs}
	default:
		return "", "", fmt.Errorf("%T: %w", n, ErrUnknownNotification)
	}
	d, err := json.Marshal(v)
	if err != nil {
		return "", "", err
	}
	return n.NotificationName(), string(d), nil
}

// DecodeNotification is the inverse of EncodeNotification. Unknown names
// return ErrUnknownNotification.
func (c *Codec) DecodeNotification(name, payload string) (sai.Notification, error) {
	switch name {
	case sai.NotificationSwitchStateChange:
		var v switchStateJSON
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, err
		}
		id, err := sai.ParseObjectID(v.SwitchID)
		if err != nil {
			return nil, err
		}
		return sai.SwitchStateChange{SwitchID: id, Status: v.Status}, nil

	case sai.NotificationFDBEvent:
		var v []fdbEventJSON
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, err
		}
		res := make(sai.FDBEvents, 0, len(v))
		for _, e := range v {
			t, ok := sai.ParseFDBEventType(e.Event)
			if !ok {
				return nil, fmt.Errorf("fdb event %q: %w", e.Event, sai.StatusInvalidParameter)
			}
			k, err := DecodeKey(e.Entry)
			if err != nil {
				return nil, err
			}
			if k.Type != sai.ObjectTypeFDBEntry {
				return nil, fmt.Errorf("fdb event key %q: %w", e.Entry, sai.StatusInvalidParameter)
			}
			attrs, err := c.decodeFields(sai.ObjectTypeFDBEntry, e.Attrs)
			if err != nil {
				return nil, err
			}
			res = append(res, sai.FDBEvent{Type: t, Entry: k.FDB, Attrs: attrs})
		}
		return res, nil

	case sai.NotificationPortStateChange:
		var v []portStateJSON
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, err
		}
		res := make(sai.PortStateChange, 0, len(v))
		for _, p := range v {
			id, err := sai.ParseObjectID(p.PortID)
			if err != nil {
				return nil, err
			}
			res = append(res, sai.PortOperStatus{PortID: id, Status: p.State})
		}
		return res, nil

	case sai.NotificationSwitchShutdownRequest:
		var v shutdownJSON
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, err
		}
		id, err := sai.ParseObjectID(v.SwitchID)
		if err != nil {
			return nil, err
		}
		return sai.SwitchShutdownRequest{SwitchID: id}, nil

	case sai.NotificationPacketEvent:
		var v packetJSON
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, err
		}
		id, err := sai.ParseObjectID(v.SwitchID)
		if err != nil {
			return nil, err
		}
		attrs, err := c.decodeFields(sai.ObjectTypeHostifPacket, v.Attrs)
		if err != nil {
			return nil, err
		}
		return sai.PacketEvent{SwitchID: id, Data: v.Data, Attrs: attrs}, nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknownNotification)
}

func (c *Codec) encodeFields(t sai.ObjectType, attrs []sai.Attribute) ([]fieldJSON, error) {
	fvs, err := c.EncodeAttributes(t, attrs, false)
	if err != nil {
		return nil, err
	}
	res := make([]fieldJSON, len(fvs))
	for i, fv := range fvs {
		res[i] = fieldJSON{Field: fv.Field, Value: fv.Value}
	}
	return res, nil
}

func (c *Codec) decodeFields(t sai.ObjectType, fs []fieldJSON) ([]sai.Attribute, error) {
	fvs := make([]sai.FieldValue, len(fs))
	for i, f := range fs {
		fvs[i] = sai.FieldValue{Field: f.Field, Value: f.Value}
	}
	return c.DecodeAttributes(t, fvs)
}
