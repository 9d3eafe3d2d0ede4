package uring

import "testing"

func TestCQEBufID(t *testing.T) {
	cqe := CQE{Flags: cqeFBuffer | (7 << 16)}
	if got := cqe.BufID(); got != 7 {
		t.Errorf("BufID() = %d, want 7", got)
	}
}

func TestCQEMore(t *testing.T) {
	tests := []struct {
		name  string
		flags uint32
		want  bool
	}{
		{"more set", cqeFMore, true},
		{"more unset", 0, false},
		{"buffer and more", cqeFBuffer | cqeFMore, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cqe := CQE{Flags: tt.flags}
			if got := cqe.More(); got != tt.want {
				t.Errorf("More() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrepareMultishotRecv(t *testing.T) {
	br := &realBufRing{bgid: 3}
	var sqe SQE
	PrepareMultishotRecv(&sqe, 5, br, 42)

	if sqe.Opcode != opRecv {
		t.Errorf("Opcode = %d, want %d", sqe.Opcode, opRecv)
	}
	if sqe.Flags != sqeBufferSelect {
		t.Errorf("Flags = %d, want %d", sqe.Flags, sqeBufferSelect)
	}
	if sqe.Ioprio != RecvMultishot {
		t.Errorf("Ioprio = %d, want %d", sqe.Ioprio, RecvMultishot)
	}
	if sqe.Fd != 5 {
		t.Errorf("Fd = %d, want 5", sqe.Fd)
	}
	if sqe.BufIndex != 3 {
		t.Errorf("BufIndex = %d, want 3", sqe.BufIndex)
	}
	if sqe.UserData != 42 {
		t.Errorf("UserData = %d, want 42", sqe.UserData)
	}
}

func TestPrepareNop(t *testing.T) {
	var sqe SQE
	PrepareNop(&sqe, 99)
	if sqe.Opcode != opNop {
		t.Errorf("Opcode = %d, want %d", sqe.Opcode, opNop)
	}
	if sqe.UserData != 99 {
		t.Errorf("UserData = %d, want 99", sqe.UserData)
	}
}
