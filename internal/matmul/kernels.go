package matmul

import (
	"github.com/samcharles93/tilemm/internal/compute"
	"github.com/samcharles93/tilemm/internal/tensor"
)

// Every kernel accumulates in T, starting from zero, in increasing k, so all
// strategies reproduce tensor.MulNaive bit for bit. The explicit conversion
// on each product keeps the compiler from fusing it into the addition.

// localKernel stages a tile-wide segment of row m of A in scratch memory.
// Each lane loads one element, then every lane reads all of them.
func localKernel[T tensor.Float](C, A, B *tensor.Mat[T], p Plan, readBarrier bool) compute.Kernel {
	k, tile := p.K, p.Tile
	return func(it *compute.Item) {
		m := it.Global(compute.Row)
		n := it.Global(compute.Col)
		i := it.Local(compute.Col)
		aRow := A.Data[m*A.Stride:]

		var sum T
		for l := 0; l < k; l += tile {
			if l+i < k {
				it.LocalStore(i, float64(aRow[l+i]))
			} else {
				it.LocalStore(i, 0)
			}
			it.Barrier()

			span := min(tile, k-l)
			for t := 0; t < span; t++ {
				sum += T(T(it.LocalLoad(t)) * B.Data[(l+t)*B.Stride+n])
			}

			// Scratch is overwritten on the next iteration; no lane may
			// start loading until all lanes finished reading.
			if readBarrier {
				it.Barrier()
			}
		}
		C.Data[m*C.Stride+n] = sum
	}
}

// broadcastKernel holds one A element per lane and shares it with the group
// through Item.Broadcast.
func broadcastKernel[T tensor.Float](C, A, B *tensor.Mat[T], p Plan) compute.Kernel {
	k, tile := p.K, p.Tile
	return func(it *compute.Item) {
		m := it.Global(compute.Row)
		n := it.Global(compute.Col)
		i := it.Local(compute.Col)
		aRow := A.Data[m*A.Stride:]

		var sum T
		for l := 0; l < k; l += tile {
			var a T
			if l+i < k {
				a = aRow[l+i]
			}
			span := min(tile, k-l)
			for t := 0; t < span; t++ {
				sum += T(T(it.Broadcast(float64(a), t)) * B.Data[(l+t)*B.Stride+n])
			}
		}
		C.Data[m*C.Stride+n] = sum
	}
}

// ndrangeKernel reads A and B straight from global memory.
func ndrangeKernel[T tensor.Float](C, A, B *tensor.Mat[T], p Plan) compute.Kernel {
	k := p.K
	return func(it *compute.Item) {
		m := it.Global(compute.Row)
		n := it.Global(compute.Col)
		C.Data[m*C.Stride+n] = dot(A, B, m, n, k)
	}
}

func rangeKernel[T tensor.Float](C, A, B *tensor.Mat[T], p Plan) func(m, n int) {
	k := p.K
	return func(m, n int) {
		C.Data[m*C.Stride+n] = dot(A, B, m, n, k)
	}
}

func dot[T tensor.Float](A, B *tensor.Mat[T], m, n, k int) T {
	aRow := A.Data[m*A.Stride:]
	var sum T
	for kk := 0; kk < k; kk++ {
		sum += T(aRow[kk] * B.Data[kk*B.Stride+n])
	}
	return sum
}
