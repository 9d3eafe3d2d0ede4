package devring

import "syscall"

// Event is the closed sum type step() returns: a device arriving, a device
// leaving, or an I/O completion. The unexported marker method keeps the set
// of implementations fixed to this package.
type Event interface {
	isEvent()
}

// DeviceAdded reports a device now known to the kernel and successfully
// enriched, whether from the initial-device iterator or a hot-plug add
// frame whose database lookup succeeded.
type DeviceAdded struct {
	Device EnrichedDevice
}

func (DeviceAdded) isEvent() {}

// DeviceRemoved reports a device that has left. The database can no longer
// be consulted, so only the raw record is available — this also covers the
// case where an add frame's enrichment lookup failed, since there is no
// enriched record to report and the event is surfaced as a removal instead.
type DeviceRemoved struct {
	Device RawDevice
}

func (DeviceRemoved) isEvent() {}

// IOOutcome is the result of a previously submitted I/O, either a
// successful completion carrying the kernel's result value and CQE flag
// bits, or a negative kernel error code.
type IOOutcome struct {
	ok     bool
	result uint32
	flags  uint32
	errno  int32
}

// OK reports whether the completion succeeded.
func (o IOOutcome) OK() bool { return o.ok }

// Result returns the completion's unsigned result value. Valid only when OK().
func (o IOOutcome) Result() uint32 { return o.result }

// Flags returns the completion's CQE flag bits. Valid only when OK().
func (o IOOutcome) Flags() uint32 { return o.flags }

// Errno returns the negative kernel error code. Valid only when !OK().
func (o IOOutcome) Errno() int32 { return o.errno }

// GracefullyErrored reports whether a failed completion is one of the
// routine, expected failure modes (interrupted, timed out, ran out of
// provided buffers) rather than a genuine fault.
func (o IOOutcome) GracefullyErrored() bool {
	if o.ok {
		return false
	}
	switch syscall.Errno(-o.errno) {
	case syscall.EINTR, syscall.ETIME, syscall.ENOBUFS:
		return true
	default:
		return false
	}
}

func okOutcome(result, flags uint32) IOOutcome {
	return IOOutcome{ok: true, result: result, flags: flags}
}

func errOutcome(errno int32) IOOutcome {
	return IOOutcome{ok: false, errno: errno}
}

// IOCompletion reports that a previously submitted I/O against handle has
// completed.
type IOCompletion struct {
	Handle  Handle
	Outcome IOOutcome
}

func (IOCompletion) isEvent() {}
