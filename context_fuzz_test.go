package devring

import (
	"testing"
	"testing/quick"
)

// deviceOp is one step of a randomized AddDevice/RemoveDevice sequence.
// Identity is folded into eight values so quick.Check actually exercises
// identity collisions and re-registration instead of always hitting fresh,
// disjoint values. FD spans the whole int16 range, so negative fds exercise
// the rejection path.
type deviceOp struct {
	Identity uint8
	FD       int16
	Remove   bool
}

// TestAddRemoveDeviceInvariant checks invariant 1: for any sequence of
// AddDevice/RemoveDevice operations, the device map and process map agree —
// every identity in the device map resolves to a handle present in the
// process map, and the device map holds exactly the identities the model
// expects, each with the fd it was first registered with. No ecosystem
// property-testing library appears anywhere in this pack, so this one
// property check uses the standard library's testing/quick rather than
// going without.
func TestAddRemoveDeviceInvariant(t *testing.T) {
	prop := func(ops []deviceOp) bool {
		ctx := newTestContext(&fakeRing{}, &fakeBufRing{}, &fakeLookup{}, &fakeInitial{})

		// model mirrors ctx.devices: identity -> the fd it was registered
		// with, using the same "first registration wins" rule AddDevice
		// applies on collision.
		model := make(map[string]int)

		for _, op := range ops {
			identity := identityFromOp(op)

			if op.Remove {
				_, existed := ctx.RemoveDevice(identity)
				_, modelExisted := model[identity]
				if existed != modelExisted {
					return false
				}
				delete(model, identity)
			} else {
				res := NewMockResource(int(op.FD))
				_, err := ctx.AddDevice(identity, res)
				if op.FD < 0 {
					if err == nil {
						return false
					}
				} else if _, exists := model[identity]; !exists {
					model[identity] = int(op.FD)
				}
			}

			if !devicesAgreeWithProcs(ctx, model) {
				return false
			}
		}
		return true
	}

	if err := quick.Check(prop, &quick.Config{MaxCount: 500}); err != nil {
		t.Error(err)
	}
}

func identityFromOp(op deviceOp) string {
	return string(rune('a' + op.Identity%8))
}

// devicesAgreeWithProcs checks invariant 1 directly against Context's own
// maps: every identity AddDevice accepted must resolve to a handle that is
// still present in the process map, and the model's view of which
// identities are currently registered must match Context's device map
// exactly.
func devicesAgreeWithProcs(ctx *Context[*MockResource], model map[string]int) bool {
	if len(ctx.devices) != len(model) {
		return false
	}
	for identity, fd := range model {
		handle, ok := ctx.devices[identity]
		if !ok || handle != Handle(uint32(fd)) {
			return false
		}
		if _, ok := ctx.procs[handle]; !ok {
			return false
		}
	}
	return true
}
