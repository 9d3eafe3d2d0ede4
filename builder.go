package devring

import (
	"fmt"

	"github.com/behrlich/go-devring/internal/constants"
	"github.com/behrlich/go-devring/internal/hotplug"
	"github.com/behrlich/go-devring/internal/udevdb"
	"github.com/behrlich/go-devring/internal/uring"
)

// Builder assembles a Context: the io_uring ring, the hot-plug netlink
// socket armed as a self-rearming multishot receive against a registered
// provided-buffer ring, and the device-database enumerator used both for
// startup enumeration and hot-plug add enrichment.
type Builder[T Resource] struct {
	ioEntries  uint32
	subsystems []string
}

// NewBuilder creates a Builder whose ring holds ioEntries in-flight caller
// submissions in addition to the one slot the hot-plug multishot receive
// always occupies.
func NewBuilder[T Resource](ioEntries uint32) *Builder[T] {
	return &Builder[T]{ioEntries: ioEntries}
}

// MatchSubsystems restricts both startup enumeration and hot-plug
// add/remove events to the given subsystems. Unset, every subsystem is
// reported.
func (b *Builder[T]) MatchSubsystems(subsystems ...string) *Builder[T] {
	b.subsystems = append(b.subsystems, subsystems...)
	return b
}

// Build opens the ring, the hot-plug socket, and the device database, arms
// the multishot receive against a freshly registered buffer ring, and
// returns a ready Context. *bufID is the first buffer group id to try;
// RegisterBufferRing's collision-retry protocol may advance it, and the
// winning id is written back through bufID.
func (b *Builder[T]) Build(bufID *uint16) (*Context[T], error) {
	ring, err := uring.New(b.ioEntries + 1)
	if err != nil {
		return nil, WrapOSError("io_uring_setup", err)
	}

	listener, err := hotplug.New()
	if err != nil {
		ring.Close()
		return nil, WrapOSError("netlink_bind", err)
	}
	for _, s := range b.subsystems {
		listener.MatchSubsystem(s)
	}

	enumerator := udevdb.New()
	for _, s := range b.subsystems {
		enumerator.MatchSubsystem(s)
	}
	initial, err := enumerator.Enumerate()
	if err != nil {
		listener.Close()
		ring.Close()
		return nil, fmt.Errorf("devring: enumerate: %w", err)
	}

	bufRing, err := ring.RegisterBufferRing(constants.BufferRingEntries, constants.BufferRingBufSize, bufID)
	if err != nil {
		listener.Close()
		ring.Close()
		return nil, WrapOSError("register_pbuf_ring", err)
	}

	sqe, err := ring.PrepareEntry()
	if err != nil {
		listener.Close()
		ring.Close()
		return nil, NewSubmissionError("arm_multishot", err)
	}
	uring.PrepareMultishotRecv(sqe, int32(listener.Fd()), bufRing, HotplugSentinel)
	if _, err := ring.Submit(); err != nil {
		listener.Close()
		ring.Close()
		return nil, NewSubmissionError("arm_multishot", err)
	}

	ctx := newContext[T](ring, bufRing, enumerator, initial)
	ctx.listener = listener
	ctx.listenerFd = listener.Fd()
	ctx.filter = listener
	return ctx, nil
}
