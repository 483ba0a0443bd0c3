package device

import "strings"

// ScoreFunc rates a device. Negative scores mark a device as unusable; the
// highest non-negative score wins.
type ScoreFunc func(Device) int

// HostFallbackScore is awarded to host targets so selection never comes back
// empty on machines without an accelerator.
const HostFallbackScore = 25

// VendorScore prefers GPUs by vendor and falls back to the host.
func VendorScore(d Device) int {
	score := -1
	if d.Kind == GPU {
		vendor := strings.ToLower(d.Vendor)
		if strings.Contains(vendor, "amd") {
			score += 75
		}
		if strings.Contains(vendor, "nvidia") {
			score += 50
		}
		if strings.Contains(vendor, "intel") {
			score += 100
		}
	}
	if d.Kind == KindHost {
		score += HostFallbackScore
	}
	return score
}

// DefaultScore prefers GPUs, then CPUs, then the host, breaking ties on
// group capacity.
func DefaultScore(d Device) int {
	base := 0
	switch d.Kind {
	case GPU:
		base = 3000
	case CPU:
		base = 2000
	case KindHost:
		base = 1000
	default:
		return -1
	}
	return base + min(d.MaxGroupSize, 999)
}

// KindScore only accepts devices of kind k. Auto accepts everything with
// DefaultScore.
func KindScore(k Kind) ScoreFunc {
	if k == Auto || k == "" {
		return DefaultScore
	}
	return func(d Device) int {
		if d.Kind != k {
			return -1
		}
		return DefaultScore(d)
	}
}

// Select returns the highest-scoring device. Ties keep the earlier device.
func Select(devs []Device, score ScoreFunc) (Device, error) {
	if score == nil {
		score = DefaultScore
	}
	best := -1
	bestScore := -1
	for i, d := range devs {
		s := score(d)
		if s < 0 {
			continue
		}
		if s > bestScore {
			best = i
			bestScore = s
		}
	}
	if best < 0 {
		return Device{}, ErrNoDevice
	}
	return devs[best], nil
}

// Scored pairs a device with its score for listing.
type Scored struct {
	Device Device `json:"device"`
	Score  int    `json:"score"`
}

// Rank scores every device, preserving input order.
func Rank(devs []Device, score ScoreFunc) []Scored {
	if score == nil {
		score = DefaultScore
	}
	out := make([]Scored, len(devs))
	for i, d := range devs {
		out[i] = Scored{Device: d, Score: score(d)}
	}
	return out
}
