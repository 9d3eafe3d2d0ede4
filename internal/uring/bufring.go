package uring

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-devring/internal/logging"
)

// bufRingHeader is the kernel-defined layout at the start of a provided
// buffer ring's mmap'd region (struct io_uring_buf_ring tail slot), followed
// by Nentries buf descriptors.
type bufRingHeader struct {
	resv1 uint64
	resv2 uint32
	resv3 uint16
	tail  uint16
}

type bufDesc struct {
	addr uint64
	len  uint32
	bid  uint16
	resv uint16
}

type bufRingSetup struct {
	bgid     uint16
	nentries uint16
	flags    uint32
	resv     [3]uint64
	ringAddr uint64
}

// realBufRing is the production BufRing: a pool of fixed-size buffers the
// kernel selects from for IOSQE_BUFFER_SELECT reads, handed back to
// userspace via the CQE's buffer id.
type realBufRing struct {
	ring    *realRing
	bgid    uint16
	mem     []byte
	entries uint16
	bufSize uint32
	bufs    [][]byte
}

// RegisterBufferRing registers a provided-buffer ring of entries buffers of
// bufSize bytes each. *bgid is the first group id to try; if the kernel
// reports the group id already registered, the id is incremented and
// retried indefinitely until a different error or success, and the winning
// id is written back through bgid.
func (r *realRing) RegisterBufferRing(entries uint16, bufSize uint32, bgid *uint16) (BufRing, error) {
	logger := logging.Default()

	ringSize := int(unsafe.Sizeof(bufRingHeader{})) + int(entries)*int(unsafe.Sizeof(bufDesc{}))
	mem, err := unix.Mmap(-1, 0, ringSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap buffer ring: %w", err)
	}

	candidate := *bgid
	for {
		setup := bufRingSetup{
			bgid:     candidate,
			nentries: entries,
			ringAddr: uint64(uintptr(unsafe.Pointer(&mem[0]))),
		}

		err := r.register(registerPBufRing, unsafe.Pointer(&setup), 1)
		if err == nil {
			break
		}
		if err == unix.EEXIST {
			logger.Debug("buffer group id in use, retrying", "bgid", candidate)
			candidate++
			continue
		}
		unix.Munmap(mem)
		return nil, fmt.Errorf("register_pbuf_ring: %w", err)
	}

	*bgid = candidate
	br := &realBufRing{ring: r, bgid: candidate, mem: mem, entries: entries, bufSize: bufSize}
	br.allocBufs()
	logger.Info("registered provided buffer ring", "bgid", candidate, "entries", entries, "buf_size", bufSize)
	return br, nil
}

// allocBufs carves out entries backing buffers and publishes them all to
// the ring so the kernel can select from the full set immediately.
func (br *realBufRing) allocBufs() {
	header := (*bufRingHeader)(unsafe.Pointer(&br.mem[0]))
	descBase := unsafe.Add(unsafe.Pointer(&br.mem[0]), unsafe.Sizeof(bufRingHeader{}))

	br.bufs = make([][]byte, br.entries)
	for i := uint16(0); i < br.entries; i++ {
		buf := make([]byte, br.bufSize)
		br.bufs[i] = buf

		desc := (*bufDesc)(unsafe.Add(descBase, uintptr(i)*unsafe.Sizeof(bufDesc{})))
		desc.addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		desc.len = br.bufSize
		desc.bid = i
	}

	Sfence()
	header.tail = br.entries
}

// BufferByID returns the backing slice for a buffer the kernel selected,
// identified by the id a CQE's BufID() reports.
func (br *realBufRing) BufferByID(id uint16) []byte {
	if int(id) >= len(br.bufs) {
		return nil
	}
	return br.bufs[id]
}

// Recycle republishes a consumed buffer back to the kernel-visible ring
// after the caller is done reading it — rawdev.Parse must finish reading
// the buffer's contents before Recycle is called.
func (br *realBufRing) Recycle(id uint16) {
	header := (*bufRingHeader)(unsafe.Pointer(&br.mem[0]))
	descBase := unsafe.Add(unsafe.Pointer(&br.mem[0]), unsafe.Sizeof(bufRingHeader{}))
	idx := header.tail & (br.entries - 1)
	desc := (*bufDesc)(unsafe.Add(descBase, uintptr(idx)*unsafe.Sizeof(bufDesc{})))
	desc.addr = uint64(uintptr(unsafe.Pointer(&br.bufs[id][0])))
	desc.len = br.bufSize
	desc.bid = id

	Sfence()
	header.tail++
}

// Group returns the registered buffer group id, for SQE.SetBufGroup.
func (br *realBufRing) Group() uint16 { return br.bgid }

// UnregisterBufferRing tears down a registered buffer ring.
func (r *realRing) UnregisterBufferRing(br BufRing) error {
	rb, ok := br.(*realBufRing)
	if !ok {
		return fmt.Errorf("uring: UnregisterBufferRing called with a non-native BufRing")
	}
	if err := r.register(unregisterPBufRing, unsafe.Pointer(&rb.bgid), 1); err != nil {
		return fmt.Errorf("unregister_pbuf_ring: %w", err)
	}
	return unix.Munmap(rb.mem)
}

var _ BufRing = (*realBufRing)(nil)
