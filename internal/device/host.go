package device

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// hostLocalMemBytes is the scratch budget per group on the host. Groups run
// on a single core, so it is sized to a typical L1 data cache.
const hostLocalMemBytes = 32 * 1024

// hostMaxGroupSize bounds the lanes of one group on the host.
const hostMaxGroupSize = 1024

// Host returns the capability record of the machine running the process.
func Host() Device {
	return Device{
		ID:              0,
		Name:            runtime.GOARCH + " host",
		Vendor:          hostVendor(),
		Kind:            KindHost,
		LocalMemBytes:   hostLocalMemBytes,
		MaxGroupSize:    hostMaxGroupSize,
		MaxSubGroupSize: hostSubGroupSize(),
		ComputeUnits:    runtime.NumCPU(),
		Features:        hostFeatures(),
	}
}

func hostVendor() string {
	switch runtime.GOARCH {
	case "amd64", "386":
		return "x86"
	case "arm64", "arm":
		return "ARM"
	default:
		return runtime.GOARCH
	}
}

// hostSubGroupSize reports the float32 SIMD width, the closest host analogue
// to a sub-group.
func hostSubGroupSize() int {
	switch {
	case cpu.X86.HasAVX512F:
		return 16
	case cpu.X86.HasAVX2:
		return 8
	case cpu.ARM64.HasASIMD:
		return 4
	default:
		return 4
	}
}

func hostFeatures() []string {
	var out []string
	add := func(ok bool, name string) {
		if ok {
			out = append(out, name)
		}
	}
	add(cpu.X86.HasSSE41, "sse4.1")
	add(cpu.X86.HasAVX, "avx")
	add(cpu.X86.HasAVX2, "avx2")
	add(cpu.X86.HasFMA, "fma")
	add(cpu.X86.HasAVX512F, "avx512f")
	add(cpu.ARM64.HasASIMD, "asimd")
	add(cpu.ARM64.HasFPHP, "fphp")
	add(cpu.ARM64.HasSVE, "sve")
	return out
}
