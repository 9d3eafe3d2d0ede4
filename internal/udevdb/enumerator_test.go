package udevdb

import "testing"

func TestInitialDevicesOrder(t *testing.T) {
	fb := &fakeBackend{
		order: []string{"/sys/class/a", "/sys/class/b"},
		devices: map[string]*DeviceInfo{
			"/sys/class/a": {Syspath: "/sys/class/a"},
			"/sys/class/b": {Syspath: "/sys/class/b"},
		},
	}
	e := newWithBackend(fb)

	it, err := e.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}

	d, ok := it.Next()
	if !ok || d.Syspath != "/sys/class/a" {
		t.Fatalf("Next() = %+v, %v, want a", d, ok)
	}
	d, ok = it.Next()
	if !ok || d.Syspath != "/sys/class/b" {
		t.Fatalf("Next() = %+v, %v, want b", d, ok)
	}
	if _, ok := it.Next(); ok {
		t.Fatalf("Next() after exhaustion = ok, want false")
	}
}

func TestInitialDevicesSkipsVanished(t *testing.T) {
	fb := &fakeBackend{
		order: []string{"/sys/class/a", "/sys/class/gone", "/sys/class/b"},
		devices: map[string]*DeviceInfo{
			"/sys/class/a": {Syspath: "/sys/class/a"},
			"/sys/class/b": {Syspath: "/sys/class/b"},
		},
	}
	e := newWithBackend(fb)
	it, err := e.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}

	var got []string
	for {
		d, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, d.Syspath)
	}

	if len(got) != 2 || got[0] != "/sys/class/a" || got[1] != "/sys/class/b" {
		t.Fatalf("got %v, want [a b] (gone skipped)", got)
	}
}

func TestLookupNotFound(t *testing.T) {
	e := newWithBackend(&fakeBackend{devices: map[string]*DeviceInfo{}})
	_, err := e.Lookup("/sys/class/missing")
	if err == nil {
		t.Fatalf("Lookup() error = nil, want NotFoundError")
	}
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("Lookup() error type = %T, want *NotFoundError", err)
	}
}
