package device

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"", Auto, false},
		{"GPU", GPU, false},
		{" cpu ", CPU, false},
		{"host", KindHost, false},
		{"auto", Auto, false},
		{"fpga", "", true},
	}
	for _, tc := range tests {
		got, err := Normalize(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Normalize(%q): expected error", tc.input)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("Normalize(%q): got %q, %v want %q", tc.input, got, err, tc.want)
		}
	}
}

func TestHostIsValid(t *testing.T) {
	t.Parallel()

	h := Host()
	if err := h.Validate(); err != nil {
		t.Fatalf("host device invalid: %v", err)
	}
	if h.Kind != KindHost {
		t.Fatalf("host kind: got %q", h.Kind)
	}
	if h.ComputeUnits < 1 {
		t.Fatalf("host compute units: got %d", h.ComputeUnits)
	}
}

func TestValidateRejectsBadRecords(t *testing.T) {
	t.Parallel()

	bad := []Device{
		{Name: "no-group"},
		{Name: "neg-local", MaxGroupSize: 8, LocalMemBytes: -1},
		{Name: "sub-too-big", MaxGroupSize: 8, MaxSubGroupSize: 16},
	}
	for _, d := range bad {
		if err := d.Validate(); !errors.Is(err, ErrInvalidDevice) {
			t.Errorf("%s: expected ErrInvalidDevice, got %v", d.Name, err)
		}
	}
}

func TestVendorScoreSelection(t *testing.T) {
	t.Parallel()

	devs := []Device{
		Host(),
		Simulated("Arc", "Intel(R) Corporation", 64<<10, 512),
		Simulated("RTX", "NVIDIA Corporation", 48<<10, 1024),
		Simulated("MI", "Advanced Micro Devices (AMD)", 64<<10, 1024),
	}

	got, err := Select(devs, VendorScore)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Name != "Arc" {
		t.Fatalf("expected Intel GPU, got %s", got)
	}

	got, err = Select(devs[:1], VendorScore)
	if err != nil {
		t.Fatalf("select host only: %v", err)
	}
	if got.Kind != KindHost {
		t.Fatalf("expected host fallback, got %s", got)
	}
}

func TestSelectNoDevice(t *testing.T) {
	t.Parallel()

	devs := []Device{{Name: "cpu", Kind: CPU, MaxGroupSize: 8}}
	if _, err := Select(devs, VendorScore); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
	if _, err := Select(nil, nil); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice for empty list, got %v", err)
	}
}

func TestKindScore(t *testing.T) {
	t.Parallel()

	devs := []Device{
		Simulated("gpu0", "Intel", 64<<10, 256),
		{Name: "cpu0", Kind: CPU, MaxGroupSize: 64},
		Host(),
	}

	got, err := Select(devs, KindScore(CPU))
	if err != nil || got.Name != "cpu0" {
		t.Fatalf("KindScore(cpu): got %v, %v", got, err)
	}
	got, err = Select(devs, KindScore(Auto))
	if err != nil || got.Name != "gpu0" {
		t.Fatalf("KindScore(auto): got %v, %v", got, err)
	}

	ranked := Rank(devs, KindScore(KindHost))
	if ranked[0].Score >= 0 || ranked[2].Score < 0 {
		t.Fatalf("unexpected ranking: %+v", ranked)
	}
}
