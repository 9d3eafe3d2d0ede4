// Package uring provides a minimal io_uring submission/completion facade:
// a raw ring plus the two pieces a plain SQE/CQE loop doesn't give you for
// free — a registered provided-buffer ring and a multishot receive. Opcode
// and flag values below are the stable kernel ABI constants from
// include/uapi/linux/io_uring.h; none of them require build-time probing.
package uring

import "errors"

// ErrRingFull is returned when the submission queue has no free slot.
var ErrRingFull = errors.New("devring: submission queue full")

// ErrNoCompletion names the empty-CQ-ring condition. PeekCompletion does not
// return it; it reports an empty ring by returning false.
var ErrNoCompletion = errors.New("devring: no completion available")

const (
	sysIOURingSetup    = 425
	sysIOURingEnter    = 426
	sysIOURingRegister = 427
)

const (
	opNop  uint8 = 0
	opRecv uint8 = 27
)

const (
	sqeBufferSelect uint8 = 1 << 5
)

const (
	setupCQSize uint32 = 1 << 3
)

const (
	enterGetEvents uint32 = 1 << 0
)

const (
	registerPBufRing   uint32 = 22
	unregisterPBufRing uint32 = 23
)

const (
	cqeFBuffer uint32 = 1 << 0
	cqeFMore   uint32 = 1 << 1
)

// RecvMultishot is the ioprio bit requesting a self-rearming receive.
const RecvMultishot uint16 = 1 << 1

const (
	offSQRing uint64 = 0
	offCQRing uint64 = 0x8000000
	offSQEs   uint64 = 0x10000000
)
