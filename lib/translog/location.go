package translog

import (
	"fmt"
	"unsafe"
)

// Location points to an operation in the write-ahead log.
// The version map stores it inside index records without interpreting it.
type Location struct {
	Generation uint64 // Log file generation
	Offset     uint64 // Byte offset inside the generation
	Size       int32  // Size of the serialized operation
}

// NewLocation creates a new Location
func NewLocation(generation, offset uint64, size int32) *Location {
	return &Location{
		Generation: generation,
		Offset:     offset,
		Size:       size,
	}
}

// RamBytesUsed returns the heap size of a Location
func (l *Location) RamBytesUsed() int64 {
	if l == nil {
		return 0
	}
	return int64(unsafe.Sizeof(*l))
}

func (l *Location) String() string {
	if l == nil {
		return "Location{}"
	}
	return fmt.Sprintf("Location{Generation: %d, Offset: %d, Size: %d}", l.Generation, l.Offset, l.Size)
}
