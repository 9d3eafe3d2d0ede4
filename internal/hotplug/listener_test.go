package hotplug

import "testing"

func TestAcceptsNoFilter(t *testing.T) {
	l := &Listener{subsystems: make(map[string]struct{})}
	if !l.Accepts("usb") {
		t.Errorf("Accepts() = false with no filters configured, want true")
	}
}

func TestAcceptsWithFilter(t *testing.T) {
	l := &Listener{subsystems: make(map[string]struct{})}
	l.MatchSubsystem("usb")
	l.MatchSubsystem("block")

	if !l.Accepts("usb") {
		t.Errorf("Accepts(usb) = false, want true")
	}
	if l.Accepts("video4linux") {
		t.Errorf("Accepts(video4linux) = true, want false")
	}
}
