package devring

import (
	"io"
	"syscall"

	"github.com/behrlich/go-devring/internal/logging"
	"github.com/behrlich/go-devring/internal/rawdev"
	"github.com/behrlich/go-devring/internal/udevdb"
	"github.com/behrlich/go-devring/internal/uring"
)

// lookupper is the device-database seam Context needs to enrich a hot-plug
// add frame into a full record. *udevdb.Enumerator in production; tests
// substitute a fake, the same seam udevdb itself uses against libudev.
type lookupper interface {
	Lookup(syspath string) (*udevdb.DeviceInfo, error)
}

// initialDeviceSource is the single-use startup enumeration cursor.
// *udevdb.InitialDevices in production.
type initialDeviceSource interface {
	Next() (*udevdb.DeviceInfo, bool)
}

// subsystemFilter reports whether a subsystem passes the filter configured
// on the hot-plug socket. *hotplug.Listener in production; an unset filter
// accepts everything.
type subsystemFilter interface {
	Accepts(subsystem string) bool
}

// Context is the event demultiplexer: one io_uring ring carrying both the
// hot-plug multishot receive and arbitrary caller I/O, plus the two maps a
// host program uses to track its own per-device resources by handle and by
// device identity. None of its methods block; Step reports "nothing yet"
// by returning a nil Event rather than waiting for one.
//
// A Context is not safe for concurrent use — Step and the map operations
// below are meant to be driven from a single goroutine's event loop, the
// same single-threaded discipline the ring's own SQ/CQ protocol assumes.
type Context[T Resource] struct {
	ring       uring.Ring
	bufRing    uring.BufRing
	listener   io.Closer
	listenerFd int
	filter     subsystemFilter
	lookup     lookupper
	initial    initialDeviceSource

	procs   map[Handle]T
	devices map[string]Handle

	observer  Observer
	lastFatal error
}

func newContext[T Resource](ring uring.Ring, bufRing uring.BufRing, lookup lookupper, initial initialDeviceSource) *Context[T] {
	return &Context[T]{
		ring:     ring,
		bufRing:  bufRing,
		lookup:   lookup,
		initial:  initial,
		procs:    make(map[Handle]T),
		devices:  make(map[string]Handle),
		observer: NoOpObserver{},
	}
}

// SetObserver installs the hook Step reports housekeeping events through.
// The zero value is NoOpObserver.
func (c *Context[T]) SetObserver(o Observer) {
	if o == nil {
		o = NoOpObserver{}
	}
	c.observer = o
}

// LastFatalError returns the most recent non-recoverable error Step
// absorbed rather than returned — currently only a failed multishot
// re-arm, which leaves the hot-plug path permanently stalled.
func (c *Context[T]) LastFatalError() error {
	return c.lastFatal
}

// Step advances the demultiplexer by exactly one unit of work and returns
// the Event it produced, or a nil Event if there was nothing to report this
// call. The initial-device iterator is drained completely before the ring
// is consulted at all, and at most one completion is consumed per call.
func (c *Context[T]) Step() (Event, error) {
	if c.initial != nil {
		if info, ok := c.initial.Next(); ok {
			c.observer.ObserveDeviceAdded(info.Syspath)
			return DeviceAdded{Device: enrichedFromInfo(info)}, nil
		}
		c.initial = nil
	}

	cqe, ok := c.ring.PeekCompletion()
	if !ok {
		return nil, nil
	}

	if cqe.UserData == HotplugSentinel {
		return c.stepHotplug(cqe)
	}
	return c.stepIO(cqe)
}

// stepHotplug handles a completion tagged with the reserved hot-plug
// sentinel: re-arming the multishot receive if the kernel dropped it,
// decoding the frame, and enriching or discarding it per action.
func (c *Context[T]) stepHotplug(cqe *uring.CQE) (Event, error) {
	if !cqe.More() {
		if err := c.rearm(); err != nil {
			logging.Default().Error("failed to re-arm hot-plug multishot receive", "error", err)
			c.lastFatal = err
			c.observer.ObserveRearmFailure(err)
			return nil, nil
		}
	}

	if cqe.Res <= 0 {
		return nil, nil
	}

	bufID := cqe.BufID()
	buf := c.bufRing.BufferByID(bufID)
	if buf == nil || int(cqe.Res) > len(buf) {
		c.observer.ObserveParseFailure()
		return nil, nil
	}
	frame := buf[:cqe.Res]

	rec, ok := rawdev.Parse(frame)
	c.bufRing.Recycle(bufID)
	if !ok {
		c.observer.ObserveParseFailure()
		return nil, nil
	}
	if !rec.Routable() {
		return nil, nil
	}
	if c.filter != nil && !c.filter.Accepts(rec.Subsystem) {
		return nil, nil
	}

	raw := rawDeviceFromRecord(rec)

	if rec.Action == rawdev.ActionRemove {
		c.observer.ObserveDeviceRemoved(raw.Path)
		return DeviceRemoved{Device: raw}, nil
	}

	info, err := c.lookup.Lookup("/sys" + raw.Path)
	if err != nil {
		c.observer.ObserveEnrichFailure(raw.Path)
		return DeviceRemoved{Device: raw}, nil
	}
	c.observer.ObserveDeviceAdded(info.Syspath)
	return DeviceAdded{Device: enrichedFromInfo(info)}, nil
}

// rearm re-prepares and resubmits the multishot receive after the kernel
// reports IORING_CQE_F_MORE unset, which ends the self-rearming request.
func (c *Context[T]) rearm() error {
	sqe, err := c.ring.PrepareEntry()
	if err != nil {
		return NewSubmissionError("rearm_multishot", err)
	}
	uring.PrepareMultishotRecv(sqe, int32(c.listenerFd), c.bufRing, HotplugSentinel)
	if _, err := c.ring.Submit(); err != nil {
		return NewSubmissionError("rearm_multishot", err)
	}
	return nil
}

// stepIO handles a completion tagged with a process-map handle: stale if
// the handle is no longer registered, otherwise classified graceful/fatal
// and surfaced as an IOCompletion.
func (c *Context[T]) stepIO(cqe *uring.CQE) (Event, error) {
	handle := Handle(uint32(cqe.UserData))
	if _, ok := c.procs[handle]; !ok {
		c.observer.ObserveStaleCompletion(handle)
		return nil, nil
	}

	var outcome IOOutcome
	fatal, graceful := false, false
	if cqe.Res < 0 {
		errno := syscall.Errno(-cqe.Res)
		graceful = gracefulErrno(errno)
		fatal = !graceful
		outcome = errOutcome(cqe.Res)
	} else {
		outcome = okOutcome(uint32(cqe.Res), cqe.Flags)
	}

	c.observer.ObserveIOCompletion(handle, uint64(outcome.result), 0, fatal, graceful)
	return IOCompletion{Handle: handle, Outcome: outcome}, nil
}

// AddDevice associates identity with resource's handle in the device map.
// If identity is already associated with a resource, the existing
// association is left untouched and resource is returned to the caller
// unchanged, since ownership was never transferred. Otherwise resource is
// adopted into the process map and the zero value is returned.
func (c *Context[T]) AddDevice(identity string, resource T) (T, error) {
	handle, ok := handleOf(resource.Fd())
	if !ok {
		return resource, NewOSError("add_device", syscall.EBADF)
	}
	if _, exists := c.devices[identity]; exists {
		return resource, nil
	}
	c.devices[identity] = handle
	c.procs[handle] = resource

	var zero T
	return zero, nil
}

// RemoveDevice removes identity's association and returns the resource
// that was registered under it, if any.
func (c *Context[T]) RemoveDevice(identity string) (T, bool) {
	handle, ok := c.devices[identity]
	if !ok {
		var zero T
		return zero, false
	}
	delete(c.devices, identity)
	resource, existed := c.procs[handle]
	delete(c.procs, handle)
	return resource, existed
}

// AddProcess inserts resource into the process map keyed by its own
// handle, bypassing the device map entirely. Insertion by an
// already-present handle evicts and returns the resource that was there
// (displacedOK is true); otherwise displacedOK is false.
func (c *Context[T]) AddProcess(resource T) (handle Handle, displaced T, displacedOK bool, err error) {
	h, ok := handleOf(resource.Fd())
	if !ok {
		err = NewOSError("add_process", syscall.EBADF)
		return
	}
	handle = h
	displaced, displacedOK = c.procs[h]
	c.procs[h] = resource
	return
}

// RemoveProcess removes and returns the resource registered at handle, if
// any. It does not touch the device map — a caller that inserted through
// AddDevice should use RemoveDevice instead to keep both maps consistent.
func (c *Context[T]) RemoveProcess(handle Handle) (T, bool) {
	resource, ok := c.procs[handle]
	delete(c.procs, handle)
	return resource, ok
}

// GetProcess returns the resource registered at handle without removing
// it.
func (c *Context[T]) GetProcess(handle Handle) (T, bool) {
	resource, ok := c.procs[handle]
	return resource, ok
}

// PrepareEntry returns a pointer to the next free submission queue slot for
// the caller to fill in with its own I/O, tagged with a UserData of the
// caller's choosing (conventionally a Handle from AddProcess/AddDevice).
func (c *Context[T]) PrepareEntry() (*uring.SQE, error) {
	sqe, err := c.ring.PrepareEntry()
	if err != nil {
		return nil, NewSubmissionError("prepare_entry", err)
	}
	return sqe, nil
}

// Submit flushes all entries prepared since the last Submit to the kernel.
func (c *Context[T]) Submit() (uint32, error) {
	return c.ring.Submit()
}

// RegisterBuffer registers an additional provided-buffer ring for the
// caller's own I/O, independent of the hot-plug buffer ring Build set up.
func (c *Context[T]) RegisterBuffer(entries uint16, bufSize uint32, bgid *uint16) (uring.BufRing, error) {
	return c.ring.RegisterBufferRing(entries, bufSize, bgid)
}

// UnregisterBuffer tears down a buffer ring previously returned by
// RegisterBuffer.
func (c *Context[T]) UnregisterBuffer(br uring.BufRing) error {
	return c.ring.UnregisterBufferRing(br)
}

// Close tears down the hot-plug socket and the ring. It does not close any
// resource the caller registered through AddDevice/AddProcess — those
// remain the caller's to close.
func (c *Context[T]) Close() error {
	var err error
	if c.listener != nil {
		if e := c.listener.Close(); e != nil {
			err = e
		}
	}
	if e := c.ring.Close(); e != nil {
		err = e
	}
	return err
}
