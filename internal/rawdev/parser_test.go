package rawdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(s string) []byte {
	b := []byte(s)
	for i, c := range b {
		if c == '|' {
			b[i] = 0
		}
	}
	return b
}

func TestParseRoundTrip(t *testing.T) {
	rec, ok := Parse(frame("ACTION=add|DEVPATH=/class/x|SUBSYSTEM=usb|SEQNUM=1|"))
	require.True(t, ok)
	assert.Equal(t, ActionAdd, rec.Action)
	assert.Equal(t, "/class/x", rec.Path)
	assert.Equal(t, "usb", rec.Subsystem)
	assert.True(t, rec.HasSeqNum)
	assert.Equal(t, uint64(1), rec.SeqNum)
}

func TestParseSkipsLeadingGarbage(t *testing.T) {
	garbage := append([]byte{0xff, 0xfe, 0x00, 'x'}, frame("ACTION=remove|DEVPATH=/class/y|")...)
	rec, ok := Parse(garbage)
	require.True(t, ok)
	assert.Equal(t, ActionRemove, rec.Action)
	assert.Equal(t, "/class/y", rec.Path)
}

func TestParseRejectsUnknownAction(t *testing.T) {
	_, ok := Parse(frame("ACTION=frobnicate|DEVPATH=/class/x|"))
	assert.False(t, ok)
}

func TestParseRejectsMissingPath(t *testing.T) {
	_, ok := Parse(frame("ACTION=add|SUBSYSTEM=usb|"))
	assert.False(t, ok)
}

func TestParseRejectsNoAction(t *testing.T) {
	_, ok := Parse(frame("DEVPATH=/class/x|SUBSYSTEM=usb|"))
	assert.False(t, ok)
}

func TestParseRejectsBadDevnum(t *testing.T) {
	_, ok := Parse(frame("ACTION=add|DEVPATH=/class/x|DEVNUM=notanumber|"))
	assert.False(t, ok)
}

func TestParseRejectsBadSeqnum(t *testing.T) {
	_, ok := Parse(frame("ACTION=add|DEVPATH=/class/x|SEQNUM=-1|"))
	assert.False(t, ok)
}

func TestParseEmptyFrame(t *testing.T) {
	_, ok := Parse(nil)
	assert.False(t, ok)
}

func TestRoutable(t *testing.T) {
	tests := []struct {
		action Action
		want   bool
	}{
		{ActionAdd, true},
		{ActionRemove, true},
		{ActionChange, false},
		{ActionBind, false},
		{ActionUnbind, false},
	}
	for _, tt := range tests {
		rec := &Record{Action: tt.action}
		assert.Equal(t, tt.want, rec.Routable(), "Routable() for %s", tt.action)
	}
}
