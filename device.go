package devring

import (
	"github.com/behrlich/go-devring/internal/rawdev"
	"github.com/behrlich/go-devring/internal/udevdb"
)

// Resource is anything a host program registers with a Context so its
// completions can be routed back by handle: a socket, a pipe, an open
// device node, anything that can report its own kernel file descriptor.
type Resource interface {
	Fd() int
}

// Handle is the process-map key: a 32-bit non-negative value derived from a
// resource's file descriptor, also used as the completion tag for I/O on
// that resource.
type Handle uint32

// handleOf derives a Handle from a resource's fd, reporting false if the fd
// is negative — a negative descriptor can never be a valid handle.
func handleOf(fd int) (Handle, bool) {
	if fd < 0 {
		return 0, false
	}
	return Handle(uint32(fd)), true
}

// RawDevice is the partially-parsed record the hot-plug path produces
// before any database enrichment — what a Removed event carries, since the
// database can no longer be consulted once a device is gone.
type RawDevice struct {
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

// EnrichedDevice is the full device record obtained either from the
// initial-device iterator or from a successful database lookup on a
// hot-plug add frame.
type EnrichedDevice struct {
	Syspath    string
	Subsystem  string
	DevName    string
	DevType    string
	Driver     string
	Properties map[string]string
}

func enrichedFromInfo(info *udevdb.DeviceInfo) EnrichedDevice {
	return EnrichedDevice{
		Syspath:    info.Syspath,
		Subsystem:  info.Subsystem,
		DevName:    info.DevName,
		DevType:    info.DevType,
		Driver:     info.Driver,
		Properties: info.Properties,
	}
}

// rawDeviceFromRecord converts a decoded hot-plug frame into the event
// payload carried on both DeviceRemoved and an unenrichable add (a
// lookup-failed add frame degrades to DeviceRemoved, since there is no
// enriched record to report).
func rawDeviceFromRecord(rec *rawdev.Record) RawDevice {
	return RawDevice{
		Path:      rec.Path,
		Subsystem: rec.Subsystem,
		DevName:   rec.DevName,
		DevType:   rec.DevType,
		BusNum:    rec.BusNum,
		DevNum:    rec.DevNum,
		HasDevNum: rec.HasDevNum,
		Driver:    rec.Driver,
		SeqNum:    rec.SeqNum,
		HasSeqNum: rec.HasSeqNum,
	}
}
