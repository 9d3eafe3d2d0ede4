// Package udevdb wraps github.com/jochenvg/go-udev (a cgo libudev binding)
// to provide the kernel device database's two external collaborators:
// startup enumeration and by-path lookup used to enrich a raw hot-plug
// frame into a full device record. It returns its own DeviceInfo rather
// than the root package's EnrichedDevice to avoid an import cycle with the
// root package.
package udevdb

import (
	"fmt"

	"github.com/jochenvg/go-udev"
)

// NotFoundError reports that a syspath has no corresponding device in the
// kernel device database, distinguishing "vanished between broadcast and
// lookup" from an unrelated cgo/OS failure.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("udevdb: no device at %s", e.Path)
}

// DeviceInfo is a full device record obtained from a successful database
// lookup.
type DeviceInfo struct {
	Syspath    string
	Subsystem  string
	DevName    string
	DevType    string
	Driver     string
	Properties map[string]string
}

// backend is the seam between Enumerator and the real cgo libudev binding,
// carved out of the concrete ring/device implementations so tests can
// substitute a fakeBackend instead of touching a real udev context.
type backend interface {
	lookup(syspath string) (*DeviceInfo, error)
	enumerate(subsystems []string) ([]string, error)
}

// Enumerator holds the subsystem filters applied to startup enumeration.
// Lookup does not consult them: it resolves any syspath it is given.
type Enumerator struct {
	db         backend
	subsystems []string
}

// New creates an Enumerator with no subsystem filters (matches everything).
func New() *Enumerator {
	return &Enumerator{db: &udevBackend{udev: &udev.Udev{}}}
}

// newWithBackend is used by tests to substitute a fake backend.
func newWithBackend(db backend) *Enumerator {
	return &Enumerator{db: db}
}

// MatchSubsystem adds a subsystem to the filter set.
func (e *Enumerator) MatchSubsystem(subsystem string) {
	e.subsystems = append(e.subsystems, subsystem)
}

// Lookup resolves syspath against the device database.
func (e *Enumerator) Lookup(syspath string) (*DeviceInfo, error) {
	return e.db.lookup(syspath)
}

// Enumerate snapshots the current device tree, matching the configured
// subsystem filters, and returns a single-use iterator over it.
func (e *Enumerator) Enumerate() (*InitialDevices, error) {
	paths, err := e.db.enumerate(e.subsystems)
	if err != nil {
		return nil, fmt.Errorf("udevdb: enumerate: %w", err)
	}
	return &InitialDevices{enumerator: e, paths: paths}, nil
}

// InitialDevices is a finite, non-restartable, raw-cursor-style iterator
// over the paths snapshotted by Enumerate. The cursor (paths+idx here) is
// held independently of the enumerator's own udev handle, which must
// outlive the iterator.
type InitialDevices struct {
	enumerator *Enumerator
	paths      []string
	idx        int
}

// Next returns the next device whose database lookup succeeds, skipping
// silently over any that have vanished since the snapshot was taken.
// Returns (nil, false) once the cursor is exhausted.
func (it *InitialDevices) Next() (*DeviceInfo, bool) {
	for it.idx < len(it.paths) {
		path := it.paths[it.idx]
		it.idx++

		info, err := it.enumerator.Lookup(path)
		if err != nil {
			continue
		}
		return info, true
	}
	return nil, false
}

// udevBackend is the real libudev-backed implementation of backend.
type udevBackend struct {
	udev *udev.Udev
}

func (b *udevBackend) lookup(syspath string) (*DeviceInfo, error) {
	d := b.udev.NewDeviceFromSyspath(syspath)
	if d == nil {
		return nil, &NotFoundError{Path: syspath}
	}
	return toDeviceInfo(d), nil
}

func (b *udevBackend) enumerate(subsystems []string) ([]string, error) {
	enum := b.udev.NewEnumerate()
	for _, s := range subsystems {
		enum.AddMatchSubsystem(s)
	}

	devices, err := enum.Devices()
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(devices))
	for _, d := range devices {
		paths = append(paths, d.Syspath())
	}
	return paths, nil
}

func toDeviceInfo(d *udev.Device) *DeviceInfo {
	props := make(map[string]string)
	for k, v := range d.Properties() {
		props[k] = v
	}
	return &DeviceInfo{
		Syspath:    d.Syspath(),
		Subsystem:  d.Subsystem(),
		DevName:    d.Devnode(),
		DevType:    d.Devtype(),
		Driver:     d.Driver(),
		Properties: props,
	}
}
