// Package rawdev decodes kernel netlink hot-plug broadcast frames into
// typed partial device records, grounded on the same NUL-separated
// KEY=VALUE uevent format libudev and every Go kobject-uevent reader in
// the wild (including this package's own reference example) parse.
package rawdev

import (
	"bytes"
	"strconv"
)

// Action is one of the five verbs the kernel emits over the uevent socket.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionChange Action = "change"
	ActionBind   Action = "bind"
	ActionUnbind Action = "unbind"
)

func (a Action) valid() bool {
	switch a {
	case ActionAdd, ActionRemove, ActionChange, ActionBind, ActionUnbind:
		return true
	default:
		return false
	}
}

// Record is a partially-parsed hot-plug event. Only Action and Path are
// load-bearing for routing; the rest are best-effort.
//
// Its strings are copies of sub-slices of the frame passed to Parse — see
// Parse's doc comment for the borrowing discipline.
type Record struct {
	Action    Action
	Path      string
	Subsystem string
	DevName   string
	DevType   string
	BusNum    string
	DevNum    uint64
	HasDevNum bool
	Driver    string
	SeqNum    uint64
	HasSeqNum bool
}

// Parse decodes one netlink broadcast frame. It returns (nil, false) if the
// frame carries no ACTION key, ACTION is not one of the five known verbs,
// DEVNUM or SEQNUM fail to parse as unsigned integers, or no DEVPATH is
// present (spec requires a path for routing).
//
// The returned Record's string fields are subslices of frame converted with
// a single copying string() conversion each — Go strings are immutable and
// GC-tracked, so unlike the hand-rolled dual-view borrow the frame this was
// distilled from uses, there is no lifetime hazard from holding onto a
// Record after frame is reused; callers should still not do so, since the
// buffer-ring slot frame points into is recycled on the very next Step.
func Parse(frame []byte) (*Record, bool) {
	actionIdx := bytes.Index(frame, []byte("ACTION"))
	if actionIdx < 0 {
		return nil, false
	}
	frame = frame[actionIdx:]

	rec := &Record{}
	haveAction := false

	for _, tok := range bytes.Split(frame, []byte{0}) {
		if len(tok) == 0 {
			continue
		}
		eq := bytes.IndexByte(tok, '=')
		if eq <= 0 {
			continue
		}
		key := string(tok[:eq])
		val := string(tok[eq+1:])

		switch key {
		case "ACTION":
			a := Action(val)
			if !a.valid() {
				return nil, false
			}
			rec.Action = a
			haveAction = true
		case "DEVPATH":
			rec.Path = val
		case "SUBSYSTEM":
			rec.Subsystem = val
		case "DEVNAME":
			rec.DevName = val
		case "DEVTYPE":
			rec.DevType = val
		case "BUSNUM":
			rec.BusNum = val
		case "DEVNUM":
			n, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return nil, false
			}
			rec.DevNum = n
			rec.HasDevNum = true
		case "DRIVER":
			rec.Driver = val
		case "SEQNUM":
			n, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return nil, false
			}
			rec.SeqNum = n
			rec.HasSeqNum = true
		}
	}

	if !haveAction || rec.Path == "" {
		return nil, false
	}

	return rec, true
}

// Routable reports whether the record's action is one the demultiplexer
// surfaces as an event (add/remove); change/bind/unbind are dropped by the
// caller, not by Parse itself, matching spec's "filtered out before
// reaching the event stream" phrasing — Parse stays a pure decode step.
func (r *Record) Routable() bool {
	return r.Action == ActionAdd || r.Action == ActionRemove
}
