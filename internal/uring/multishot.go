package uring

// PrepareMultishotRecv fills sqe to arm a self-rearming receive on fd,
// selecting buffers from br's group and tagging completions with userData.
// The kernel keeps resubmitting this request until it reports a completion
// without cqeFMore set, which the caller must treat as a dropped multishot
// receive requiring a re-arm.
func PrepareMultishotRecv(sqe *SQE, fd int32, br BufRing, userData uint64) {
	sqe.Opcode = opRecv
	sqe.Flags = sqeBufferSelect
	sqe.Ioprio = RecvMultishot
	sqe.Fd = fd
	sqe.BufIndex = br.Group()
	sqe.UserData = userData
}

// PrepareNop fills sqe as a no-op submission tagged with userData, used to
// flush the queue without a real I/O side effect (e.g. in tests of Submit).
func PrepareNop(sqe *SQE, userData uint64) {
	sqe.Opcode = opNop
	sqe.UserData = userData
}
