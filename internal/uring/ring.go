package uring

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-devring/internal/logging"
)

// SQE is a 64-byte submission queue entry (struct io_uring_sqe).
type SQE struct {
	Opcode      uint8
	Flags       uint8
	Ioprio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpFlags     uint32
	UserData    uint64
	BufIndex    uint16
	Personality uint16
	SpliceFdIn  int32
	Addr3       uint64
	_           uint64
}

// CQE is a 16-byte completion queue entry (struct io_uring_cqe).
type CQE struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

// BufID extracts the provided-buffer id from Flags when cqeFBuffer is set.
func (c *CQE) BufID() uint16 { return uint16(c.Flags >> 16) }

// More reports whether this is a multishot completion with another to follow.
func (c *CQE) More() bool { return c.Flags&cqeFMore != 0 }

type ringParams struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFD         uint32
	resv         [3]uint32
	sqOff        struct {
		head, tail, ringMask, ringEntries, flags, dropped, array, resv1 uint32
		userAddr                                                       uint64
	}
	cqOff struct {
		head, tail, ringMask, ringEntries, overflow, cqes, flags, resv1 uint32
		userAddr                                                       uint64
	}
}

// realRing is the production Ring: mmap'd SQ/CQ rings plus the register/enter
// syscalls needed to drive provided-buffer multishot receive.
type realRing struct {
	mu      sync.Mutex
	fd      int
	params  ringParams
	sqMem   []byte
	cqMem   []byte
	sqesMem []byte

	sqTail uint32 // local, not-yet-submitted tail
}

// New creates a ring sized to entries (rounded up by the kernel to a power
// of two).
func New(entries uint32) (Ring, error) {
	logger := logging.Default()
	logger.Debug("creating io_uring", "entries", entries)

	params := ringParams{sqEntries: entries, cqEntries: entries * 2, flags: setupCQSize}

	fd, _, errno := syscall.Syscall(sysIOURingSetup, uintptr(entries), uintptr(unsafe.Pointer(&params)), 0)
	if errno != 0 {
		logger.Error("io_uring_setup failed", "errno", errno)
		return nil, fmt.Errorf("io_uring_setup: %w", errno)
	}

	sqSize := params.sqOff.array + params.sqEntries*4
	cqSize := params.cqOff.cqes + params.cqEntries*uint32(unsafe.Sizeof(CQE{}))

	sqMem, err := unix.Mmap(int(fd), int64(offSQRing), int(sqSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		syscall.Close(int(fd))
		return nil, fmt.Errorf("mmap sq ring: %w", err)
	}

	cqMem, err := unix.Mmap(int(fd), int64(offCQRing), int(cqSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Munmap(sqMem)
		syscall.Close(int(fd))
		return nil, fmt.Errorf("mmap cq ring: %w", err)
	}

	sqesSize := int(params.sqEntries) * int(unsafe.Sizeof(SQE{}))
	sqesMem, err := unix.Mmap(int(fd), int64(offSQEs), sqesSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Munmap(cqMem)
		unix.Munmap(sqMem)
		syscall.Close(int(fd))
		return nil, fmt.Errorf("mmap sqes: %w", err)
	}

	r := &realRing{fd: int(fd), params: params, sqMem: sqMem, cqMem: cqMem, sqesMem: sqesMem}
	r.sqTail = *(*uint32)(unsafe.Pointer(&r.sqMem[r.params.sqOff.tail]))

	logger.Info("created io_uring", "entries", params.sqEntries)
	return r, nil
}

// Fd returns the ring's own file descriptor, for registration calls that
// need it (e.g. IORING_REGISTER_PBUF_RING).
func (r *realRing) Fd() int { return r.fd }

// Close unmaps ring memory and closes the ring fd.
func (r *realRing) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	unix.Munmap(r.sqesMem)
	unix.Munmap(r.cqMem)
	unix.Munmap(r.sqMem)
	return syscall.Close(r.fd)
}

// PrepareEntry returns a pointer to the next free SQE slot, or ErrRingFull
// if the queue has depth entries not yet flushed by Submit.
func (r *realRing) PrepareEntry() (*SQE, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head := *(*uint32)(unsafe.Pointer(&r.sqMem[r.params.sqOff.head]))
	if r.sqTail-head >= r.params.sqEntries {
		return nil, ErrRingFull
	}

	mask := r.params.sqEntries - 1
	idx := r.sqTail & mask
	slot := unsafe.Add(unsafe.Pointer(&r.sqesMem[0]), uintptr(idx)*unsafe.Sizeof(SQE{}))
	sqe := (*SQE)(slot)
	*sqe = SQE{}

	arr := unsafe.Add(unsafe.Pointer(&r.sqMem[r.params.sqOff.array]), uintptr(idx)*4)
	*(*uint32)(arr) = idx

	r.sqTail++
	return sqe, nil
}

// Submit publishes all prepared SQEs to the kernel with a single
// io_uring_enter syscall and returns the number of entries submitted.
func (r *realRing) Submit() (uint32, error) {
	r.mu.Lock()
	tailPtr := (*uint32)(unsafe.Pointer(&r.sqMem[r.params.sqOff.tail]))
	head := *(*uint32)(unsafe.Pointer(&r.sqMem[r.params.sqOff.head]))
	toSubmit := r.sqTail - head
	Sfence()
	*tailPtr = r.sqTail
	r.mu.Unlock()

	if toSubmit == 0 {
		return 0, nil
	}

	n, _, errno := syscall.Syscall6(sysIOURingEnter, uintptr(r.fd), uintptr(toSubmit), 0, uintptr(enterGetEvents), 0, 0)
	if errno != 0 {
		return 0, fmt.Errorf("io_uring_enter: %w", errno)
	}
	return uint32(n), nil
}

// PeekCompletion returns the oldest unconsumed CQE, if any, consuming it.
// It never blocks — Context.Step relies on that to guarantee step() itself
// never blocks.
func (r *realRing) PeekCompletion() (*CQE, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head := (*uint32)(unsafe.Pointer(&r.cqMem[r.params.cqOff.head]))
	tail := *(*uint32)(unsafe.Pointer(&r.cqMem[r.params.cqOff.tail]))
	if *head == tail {
		return nil, false
	}

	mask := r.params.cqEntries - 1
	idx := *head & mask
	slot := unsafe.Add(unsafe.Pointer(&r.cqMem[r.params.cqOff.cqes]), uintptr(idx)*unsafe.Sizeof(CQE{}))
	cqe := *(*CQE)(slot)

	Mfence()
	*head = *head + 1

	return &cqe, true
}

// register wraps io_uring_register.
func (r *realRing) register(opcode uint32, arg unsafe.Pointer, nrArgs uint32) error {
	_, _, errno := syscall.Syscall6(sysIOURingRegister, uintptr(r.fd), uintptr(opcode), uintptr(arg), uintptr(nrArgs), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

var _ Ring = (*realRing)(nil)
