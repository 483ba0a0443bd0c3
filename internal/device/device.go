package device

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a compute target.
type Kind string

const (
	GPU  Kind = "gpu"
	CPU  Kind = "cpu"
	Auto Kind = "auto"

	// KindHost is the process's own machine; Host returns its record.
	KindHost Kind = "host"
)

// Normalize maps a user supplied kind to a known Kind.
func Normalize(name string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(name)))
	if kind == "" {
		return Auto, nil
	}
	switch kind {
	case GPU, CPU, KindHost, Auto:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown device kind %q (expected auto, gpu, cpu, or host)", name)
	}
}

// Device describes a compute target by the capabilities the runtime needs to
// plan a launch. It carries no live resources; it is safe to copy.
type Device struct {
	ID     int    `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Vendor string `yaml:"vendor" json:"vendor"`
	Kind   Kind   `yaml:"kind" json:"kind"`

	GlobalMemBytes  uint64 `yaml:"global_mem_bytes" json:"global_mem_bytes"`
	LocalMemBytes   int    `yaml:"local_mem_bytes" json:"local_mem_bytes"`
	MaxGroupSize    int    `yaml:"max_group_size" json:"max_group_size"`
	MaxSubGroupSize int    `yaml:"max_sub_group_size" json:"max_sub_group_size"`
	ComputeUnits    int    `yaml:"compute_units" json:"compute_units"`

	Features []string `yaml:"features,omitempty" json:"features,omitempty"`
}

var (
	ErrNoDevice      = errors.New("no suitable device")
	ErrInvalidDevice = errors.New("invalid device")
)

// Validate checks that the capability record is usable for launches.
func (d Device) Validate() error {
	switch {
	case d.MaxGroupSize <= 0:
		return fmt.Errorf("%w: %q max group size %d", ErrInvalidDevice, d.Name, d.MaxGroupSize)
	case d.LocalMemBytes < 0:
		return fmt.Errorf("%w: %q local memory %d", ErrInvalidDevice, d.Name, d.LocalMemBytes)
	case d.MaxSubGroupSize < 0 || d.MaxSubGroupSize > d.MaxGroupSize:
		return fmt.Errorf("%w: %q sub-group size %d", ErrInvalidDevice, d.Name, d.MaxSubGroupSize)
	}
	return nil
}

// String returns "vendor name" for display.
func (d Device) String() string {
	if d.Vendor == "" {
		return d.Name
	}
	return d.Vendor + " " + d.Name
}

// Simulated returns a GPU-like capability record for tests and configuration
// defaults.
func Simulated(name, vendor string, localMemBytes, maxGroupSize int) Device {
	sub := 32
	if sub > maxGroupSize {
		sub = maxGroupSize
	}
	return Device{
		Name:            name,
		Vendor:          vendor,
		Kind:            GPU,
		GlobalMemBytes:  8 << 30,
		LocalMemBytes:   localMemBytes,
		MaxGroupSize:    maxGroupSize,
		MaxSubGroupSize: sub,
		ComputeUnits:    16,
	}
}
