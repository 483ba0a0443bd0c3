package api

import (
	"fmt"

	"github.com/samcharles93/tilemm/internal/device"
	"github.com/samcharles93/tilemm/internal/tensor"
)

// MatrixJSON is the wire form of a dense row-major matrix.
type MatrixJSON struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

func (m MatrixJSON) toMat() (tensor.Mat[float64], error) {
	return tensor.NewMatFromData(m.Rows, m.Cols, m.Data)
}

func matrixJSON(m *tensor.Mat[float64]) MatrixJSON {
	data := m.Data
	if data == nil {
		data = []float64{}
	}
	return MatrixJSON{Rows: m.R, Cols: m.C, Data: data}
}

type MatmulRequest struct {
	A            *MatrixJSON `json:"a"`
	B            *MatrixJSON `json:"b"`
	TileSize     *int        `json:"tile_size,omitempty"`
	Strategy     string      `json:"strategy,omitempty"`
	PadRemainder *bool       `json:"pad_remainder,omitempty"`
	Autotune     bool        `json:"autotune,omitempty"`
	Verify       bool        `json:"verify,omitempty"`
	Store        *bool       `json:"store,omitempty"`
}

func (r *MatmulRequest) validate(maxElements int) error {
	if r.A == nil || r.B == nil {
		return newInvalidRequest("both a and b are required")
	}
	for _, op := range []struct {
		name string
		m    *MatrixJSON
	}{{"a", r.A}, {"b", r.B}} {
		name, m := op.name, op.m
		if m.Rows < 0 || m.Cols < 0 {
			return newInvalidRequest(fmt.Sprintf("%s: negative dimension", name))
		}
		if exceedsElements(m.Rows, m.Cols, maxElements) {
			return newInvalidRequest(fmt.Sprintf("%s: %dx%d exceeds limit of %d elements", name, m.Rows, m.Cols, maxElements))
		}
		if len(m.Data) != m.Rows*m.Cols {
			return newInvalidRequest(fmt.Sprintf("%s: data has %d elements, want %d", name, len(m.Data), m.Rows*m.Cols))
		}
	}
	if exceedsElements(r.A.Rows, r.B.Cols, maxElements) {
		return newInvalidRequest(fmt.Sprintf("c: %dx%d exceeds limit of %d elements", r.A.Rows, r.B.Cols, maxElements))
	}
	return nil
}

// exceedsElements reports whether a rows x cols matrix holds more than limit
// elements without forming the product. limit <= 0 disables the check.
func exceedsElements(rows, cols, limit int) bool {
	if limit <= 0 || rows == 0 || cols == 0 {
		return false
	}
	return rows > limit/cols
}

type MatmulResponse struct {
	ID        string     `json:"id"`
	Object    string     `json:"object"`
	CreatedAt int64      `json:"created_at"`
	Device    string     `json:"device"`
	Strategy  string     `json:"strategy"`
	TileSize  int        `json:"tile_size"`
	C         MatrixJSON `json:"c"`
	ElapsedMS float64    `json:"elapsed_ms"`
	Verified  *bool      `json:"verified,omitempty"`
}

type DeleteResultResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type DeviceEntry struct {
	device.Device
	Score  int  `json:"score"`
	Active bool `json:"active"`
}

type DeviceList struct {
	Object string        `json:"object"`
	Data   []DeviceEntry `json:"data"`
}

type ErrorBody struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	Constraint string `json:"constraint,omitempty"`
}
