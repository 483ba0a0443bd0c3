package compute

import (
	"fmt"

	"github.com/samcharles93/tilemm/internal/device"
)

// Dimension indices for Range and Item accessors.
const (
	Row = 0
	Col = 1
)

// Range is a 2D extent.
type Range struct {
	Rows, Cols int
}

// Size returns the number of points in the range.
func (r Range) Size() int {
	return r.Rows * r.Cols
}

// Dim returns the extent along d.
func (r Range) Dim(d int) int {
	if d == Row {
		return r.Rows
	}
	return r.Cols
}

func (r Range) String() string {
	return fmt.Sprintf("{%d,%d}", r.Rows, r.Cols)
}

// NDRange partitions a global index space into equally sized groups.
//
// LocalMem is the number of scratch elements each group allocates and
// LocalElemSize the size of one element in bytes, used for the device
// capacity check. A zero LocalElemSize counts elements as 8 bytes.
type NDRange struct {
	Global Range
	Local  Range

	LocalMem      int
	LocalElemSize int
}

// Groups returns the number of groups along each dimension.
func (nd NDRange) Groups() Range {
	return Range{
		Rows: nd.Global.Rows / nd.Local.Rows,
		Cols: nd.Global.Cols / nd.Local.Cols,
	}
}

// LocalMemBytes returns the scratch footprint of one group.
func (nd NDRange) LocalMemBytes() int {
	size := nd.LocalElemSize
	if size <= 0 {
		size = 8
	}
	return nd.LocalMem * size
}

// Validate checks the partition and the group footprint against dev. It does
// not reject an empty global range.
func (nd NDRange) Validate(dev device.Device) error {
	if nd.Global.Rows < 0 || nd.Global.Cols < 0 {
		return fmt.Errorf("%w: negative global range %s", ErrPartition, nd.Global)
	}
	if nd.Local.Rows <= 0 || nd.Local.Cols <= 0 {
		return fmt.Errorf("%w: local range %s must be positive", ErrPartition, nd.Local)
	}
	if nd.Global.Rows%nd.Local.Rows != 0 {
		return fmt.Errorf("%w: local rows %d do not divide global rows %d", ErrPartition, nd.Local.Rows, nd.Global.Rows)
	}
	if nd.Global.Cols%nd.Local.Cols != 0 {
		return fmt.Errorf("%w: local cols %d do not divide global cols %d", ErrPartition, nd.Local.Cols, nd.Global.Cols)
	}
	if nd.LocalMem < 0 {
		return fmt.Errorf("%w: negative local memory %d", ErrPartition, nd.LocalMem)
	}
	if size := nd.Local.Size(); size > dev.MaxGroupSize {
		return fmt.Errorf("%w: group of %d lanes, %s allows %d", ErrGroupTooLarge, size, dev.Name, dev.MaxGroupSize)
	}
	if bytes := nd.LocalMemBytes(); bytes > dev.LocalMemBytes {
		return fmt.Errorf("%w: %d bytes requested, %s has %d", ErrLocalMemory, bytes, dev.Name, dev.LocalMemBytes)
	}
	return nil
}
