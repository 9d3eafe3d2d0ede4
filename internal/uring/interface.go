package uring

// Ring is the submission/completion facade Context drives: prepare and
// flush SQEs, peek completions, and register/unregister a provided-buffer
// ring. realRing is the only production implementation; tests substitute a
// fake, the same interface-plus-concrete split the rest of this pack uses
// to keep syscall-backed code out of unit tests.
type Ring interface {
	Fd() int
	Close() error
	PrepareEntry() (*SQE, error)
	Submit() (uint32, error)
	PeekCompletion() (*CQE, bool)
	RegisterBufferRing(entries uint16, bufSize uint32, bgid *uint16) (BufRing, error)
	UnregisterBufferRing(br BufRing) error
}

// BufRing is a registered provided-buffer ring, as seen by callers that
// only need to resolve a CQE's buffer id and recycle it.
type BufRing interface {
	BufferByID(id uint16) []byte
	Recycle(id uint16)
	Group() uint16
}
