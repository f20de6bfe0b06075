package replay

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"sairedis/codec"
	"sairedis/sai"
	"sairedis/store"
	"sairedis/vid"
)

// Target is the call surface a capture is replayed against. *client.Client
// implements it.
type Target interface {
	Create(ctx context.Context, t sai.ObjectType, attrs []sai.Attribute) (sai.ObjectID, error)
	CreateEntry(ctx context.Context, key sai.ObjectKey, attrs []sai.Attribute) error
	Remove(ctx context.Context, key sai.ObjectKey) error
	Set(ctx context.Context, key sai.ObjectKey, attr sai.Attribute) error
	Get(ctx context.Context, key sai.ObjectKey, attrs []sai.Attribute) ([]sai.Attribute, error)
	NotifySyncd(ctx context.Context, op string) error
}

type PlayerOptions struct {
	Metadata sai.Metadata
	// SkipNotifySyncd ignores recorded view transitions.
	SkipNotifySyncd bool
	// UseTempView wraps the whole replay in one view transition.
	UseTempView bool
	Sleep       func(ctx context.Context, d time.Duration) error
}

// Player replays a capture. Recorded handles are matched to the handles
// the target hands out; a handle that matches two different objects is a
// mismatch, so a clean replay proves the target assigns handles the same
// way the recorded run did.
type Player struct {
	target Target
	opts   PlayerOptions
	codec  *codec.Codec
	md     sai.Metadata
	// recorded handle -> replayed handle
	ids *vid.Virtualizer
}

func NewPlayer(target Target, opts PlayerOptions) *Player {
	if opts.Metadata == nil {
		opts.Metadata = sai.DefaultMetadata()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	return &Player{
		target: target,
		opts:   opts,
		codec:  codec.New(opts.Metadata),
		md:     opts.Metadata,
		ids:    vid.New(store.NewMemory(), opts.Metadata),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pairs returns the recorded to replayed handle matching so far.
func (p *Player) Pairs() (map[sai.ObjectID]sai.ObjectID, error) {
	return p.ids.Pairs()
}

// Play replays lines in order and stops at the first failure. Every
// recorded call must succeed, and recorded get and view transition
// results must match.
func (p *Player) Play(ctx context.Context, lines []Line) error {
	if p.opts.UseTempView {
		if err := p.target.NotifySyncd(ctx, sai.ViewInit); err != nil {
			return fmt.Errorf("init view: %w", err)
		}
	}
	for i := 0; i < len(lines); i++ {
		l, n := lines[i], i+1
		var err error
		switch l.Op {
		case OpComment, OpNotification:
			continue
		case OpSleep:
			var d time.Duration
			if d, err = l.SleepDuration(); err == nil {
				log.Infof("sleep %s", d)
				err = p.opts.Sleep(ctx, d)
			}
		case OpCreate, OpRemove, OpSet:
			err = p.call(ctx, l)
		case OpGet:
			var resp Line
			if resp, i, err = result(lines, i, OpGetResponse); err == nil {
				err = p.get(ctx, l, resp)
			}
		case OpNotify:
			var resp Line
			if resp, i, err = result(lines, i, OpNotifyResult); err == nil {
				err = p.notify(ctx, l, resp)
			}
		default:
			err = fmt.Errorf("unexpected op %q: %w", l.Op, ErrBadLine)
		}
		if err != nil {
			return fmt.Errorf("line %d %c %s: %w", n, l.Op, l.Key, err)
		}
	}
	if p.opts.UseTempView {
		if err := p.target.NotifySyncd(ctx, sai.ViewApply); err != nil {
			return fmt.Errorf("apply view: %w", err)
		}
	}
	return nil
}

// result finds the line answering lines[i], skipping notifications that
// arrived in between.
func result(lines []Line, i int, op byte) (Line, int, error) {
	for j := i + 1; j < len(lines); j++ {
		switch lines[j].Op {
		case OpNotification, OpComment:
			continue
		case op:
			return lines[j], j, nil
		}
		return Line{}, i, fmt.Errorf("expected %c, got %c: %w", op, lines[j].Op, ErrBadLine)
	}
	return Line{}, i, fmt.Errorf("no %c line: %w", op, ErrBadLine)
}

func (p *Player) decode(l Line) (sai.ObjectKey, []sai.Attribute, error) {
	key, err := codec.DecodeKey(l.Key)
	if err != nil {
		return key, nil, fmt.Errorf("%v: %w", err, ErrBadLine)
	}
	attrs, err := p.codec.DecodeAttributes(key.Type, l.Fields)
	if err != nil {
		return key, nil, fmt.Errorf("%v: %w", err, ErrBadLine)
	}
	return key, attrs, nil
}

// translate maps recorded handles to replayed ones. A recorded handle
// that was never matched is a mismatch.
func (p *Player) translate(key sai.ObjectKey, attrs []sai.Attribute) (sai.ObjectKey, []sai.Attribute, error) {
	k, err := p.ids.TranslateKey(key, vid.ToReal)
	if err != nil {
		return key, nil, fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	a, err := p.ids.Translate(key.Type, attrs, vid.ToReal)
	if err != nil {
		return key, nil, fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	return k, a, nil
}

func (p *Player) call(ctx context.Context, l Line) error {
	key, attrs, err := p.decode(l)
	if err != nil {
		return err
	}
	if l.Op == OpCreate && !key.Type.IsEntry() {
		_, attrs, err = p.translate(sai.ObjectKey{Type: key.Type}, attrs)
		if err != nil {
			return err
		}
		id, err := p.target.Create(ctx, key.Type, attrs)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMismatch, err)
		}
		if prev, err := p.ids.Virtual(id); err == nil && key.Type == sai.ObjectTypeSwitch {
			// a switch created again inside a view transition is the same switch
			log.Debugf("switch %s already replayed as %s", id, prev)
			return nil
		}
		return p.match(key.OID, id)
	}
	k, attrs, err := p.translate(key, attrs)
	if err != nil {
		return err
	}
	switch l.Op {
	case OpCreate:
		err = p.target.CreateEntry(ctx, k, attrs)
	case OpRemove:
		err = p.target.Remove(ctx, k)
		if err == nil && !key.Type.IsEntry() {
			err = p.ids.Unbind(key.OID)
		}
	case OpSet:
		if len(attrs) != 1 {
			return fmt.Errorf("set with %d attributes: %w", len(attrs), ErrBadLine)
		}
		err = p.target.Set(ctx, k, attrs[0])
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMismatch, err)
	}
	return nil
}

func (p *Player) get(ctx context.Context, l, resp Line) error {
	key, attrs, err := p.decode(l)
	if err != nil {
		return err
	}
	k, err := p.ids.TranslateKey(key, vid.ToReal)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	want, err := codec.DecodeStatus(resp.Key)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrBadLine)
	}
	got, err := p.target.Get(ctx, k, attrs)
	if st := sai.StatusOf(err); st != want {
		return fmt.Errorf("%w: status %s, recorded %s", ErrMismatch, st, want)
	}
	if want != sai.StatusSuccess && want != sai.StatusBufferOverflow {
		return nil
	}
	rec, err := p.codec.DecodeAttributes(key.Type, resp.Fields)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrBadLine)
	}
	return p.compare(key.Type, got, rec)
}

// compare checks list lengths and handles of a get result against the
// recorded one. Other values may legitimately differ between switches.
func (p *Player) compare(t sai.ObjectType, got, rec []sai.Attribute) error {
	if len(got) != len(rec) {
		return fmt.Errorf("%w: %d attributes, recorded %d", ErrMismatch, len(got), len(rec))
	}
	for i := range got {
		if got[i].ID != rec[i].ID {
			return fmt.Errorf("%w: attribute 0x%x, recorded 0x%x", ErrMismatch, uint32(got[i].ID), uint32(rec[i].ID))
		}
		m, ok := p.md.Attr(t, got[i].ID)
		if !ok {
			return fmt.Errorf("%s attr 0x%x: %w", t, uint32(got[i].ID), codec.ErrUnknownAttribute)
		}
		gn, _, isList := got[i].Value.ListCount(m.ValueType)
		rn, _, _ := rec[i].Value.ListCount(m.ValueType)
		if isList && gn != rn {
			return fmt.Errorf("%w: %s has %d items, recorded %d", ErrMismatch, m.Name, gn, rn)
		}
		gids, err := vid.Refs(p.md, sai.ObjectKey{Type: t}, got[i:i+1])
		if err != nil {
			return err
		}
		rids, err := vid.Refs(p.md, sai.ObjectKey{Type: t}, rec[i:i+1])
		if err != nil {
			return err
		}
		if len(gids) != len(rids) {
			return fmt.Errorf("%w: %s has %d handles, recorded %d", ErrMismatch, m.Name, len(gids), len(rids))
		}
		for j := range gids {
			if err := p.match(rids[j], gids[j]); err != nil {
				return fmt.Errorf("%s: %w", m.Name, err)
			}
		}
	}
	return nil
}

// match pairs a recorded handle with a replayed one, or checks an
// existing pairing.
func (p *Player) match(recorded, got sai.ObjectID) error {
	if recorded.Type() != got.Type() {
		return fmt.Errorf("%w: replayed %s for recorded %s", ErrMismatch, got, recorded)
	}
	if prev, err := p.ids.Virtual(got); err == nil {
		if prev != recorded {
			return fmt.Errorf("%w: replayed %s was recorded as %s, not %s", ErrMismatch, got, prev, recorded)
		}
		return nil
	}
	if cur, err := p.ids.Real(recorded); err == nil {
		return fmt.Errorf("%w: recorded %s already replayed as %s, not %s", ErrMismatch, recorded, cur, got)
	}
	return p.ids.Bind(recorded, got)
}

func (p *Player) notify(ctx context.Context, l, resp Line) error {
	if p.opts.SkipNotifySyncd {
		log.Infof("skipping %s", l.Key)
		return nil
	}
	want, err := codec.DecodeStatus(resp.Key)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrBadLine)
	}
	err = p.target.NotifySyncd(ctx, l.Key)
	if st := sai.StatusOf(err); st != want {
		return fmt.Errorf("%w: %s returned %s, recorded %s", ErrMismatch, l.Key, st, want)
	}
	if want != sai.StatusSuccess {
		return fmt.Errorf("%w: recorded %s failed with %s", ErrMismatch, l.Key, want)
	}
	return nil
}
