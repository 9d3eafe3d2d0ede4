package devring

import "github.com/behrlich/go-devring/internal/constants"

// Re-export constants for public API.
const (
	BufferRingEntries         = constants.BufferRingEntries
	BufferRingBufSize         = constants.BufferRingBufSize
	HotplugSentinel           = constants.HotplugSentinel
	ReservedTagExtension      = constants.ReservedTagExtension
	DefaultInitialBufferGroup = constants.DefaultInitialBufferGroupID
)
