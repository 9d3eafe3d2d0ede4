package devring

import "sync"

// MockResource is a Resource usable in tests without a real open file
// descriptor. It tracks close calls for verification and lets a test assign
// any fd value, including invalid ones, to exercise error paths.
type MockResource struct {
	mu        sync.RWMutex
	fd        int
	closed    bool
	closeErr  error
	closeCall int
}

// NewMockResource returns a MockResource reporting fd from Fd().
func NewMockResource(fd int) *MockResource {
	return &MockResource{fd: fd}
}

// Fd implements Resource.
func (m *MockResource) Fd() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fd
}

// Close records the call and returns the configured error, if any. Context
// itself never calls Close on a resource it evicts from the process map —
// ownership of the underlying fd stays with the caller — but MockResource
// exposes Close so a test can assert a caller's own cleanup path.
func (m *MockResource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCall++
	m.closed = true
	return m.closeErr
}

// SetCloseErr configures the error the next Close call returns.
func (m *MockResource) SetCloseErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeErr = err
}

// IsClosed reports whether Close has been called.
func (m *MockResource) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// CloseCalls returns how many times Close has been called.
func (m *MockResource) CloseCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closeCall
}

var _ Resource = (*MockResource)(nil)
