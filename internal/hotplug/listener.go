// Package hotplug owns the raw AF_NETLINK/NETLINK_KOBJECT_UEVENT socket the
// context arms a multishot receive against. It does not read the socket
// itself — Context drives reads through the io_uring ring — it only opens,
// filters, and exposes the raw fd, grounded on the same socket/bind
// sequence three independent Go reference implementations in this pack use.
package hotplug

import (
	"fmt"
	"syscall"

	"github.com/behrlich/go-devring/internal/logging"
)

const netlinkKobjectUevent = 15

// Listener is an open, bound kobject-uevent netlink socket.
type Listener struct {
	fd         int
	subsystems map[string]struct{}
}

// New opens and binds a netlink socket to the kernel hot-plug broadcast
// group. The caller is responsible for driving reads against Fd(); Listener
// itself never reads.
func New() (*Listener, error) {
	logger := logging.Default()

	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_RAW, netlinkKobjectUevent)
	if err != nil {
		logger.Error("failed to create netlink socket", "error", err)
		return nil, fmt.Errorf("netlink socket: %w", err)
	}

	addr := &syscall.SockaddrNetlink{Family: syscall.AF_NETLINK, Groups: 1}
	if err := syscall.Bind(fd, addr); err != nil {
		syscall.Close(fd)
		logger.Error("failed to bind netlink socket", "error", err)
		return nil, fmt.Errorf("netlink bind: %w", err)
	}

	logger.Debug("hot-plug listener bound", "fd", fd)
	return &Listener{fd: fd, subsystems: make(map[string]struct{})}, nil
}

// MatchSubsystem records a subsystem filter. An empty filter set means
// "every subsystem" — matched by Accepts returning true unconditionally.
func (l *Listener) MatchSubsystem(subsystem string) {
	l.subsystems[subsystem] = struct{}{}
}

// Accepts reports whether subsystem passes this listener's filter set.
func (l *Listener) Accepts(subsystem string) bool {
	if len(l.subsystems) == 0 {
		return true
	}
	_, ok := l.subsystems[subsystem]
	return ok
}

// Fd returns the raw socket file descriptor, for arming against the ring.
func (l *Listener) Fd() int { return l.fd }

// Close closes the underlying socket.
func (l *Listener) Close() error {
	return syscall.Close(l.fd)
}
