package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tilemm/internal/device"
)

type devicesReport struct {
	GoVersion string          `json:"go_version"`
	GoOS      string          `json:"go_os"`
	GoArch    string          `json:"go_arch"`
	CPUs      int             `json:"cpus"`
	Selected  int             `json:"selected"`
	Devices   []device.Scored `json:"devices"`
}

func devicesCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:    "devices",
		Aliases: []string{"ls"},
		Usage:   "List known devices and their selection scores",
		Flags: append(deviceFlags(), &cli.BoolFlag{
			Name:        "json",
			Usage:       "print the device report as JSON",
			Destination: &asJSON,
		}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyDeviceConfig(cmd, fileConfig)

			devs := knownDevices(fileConfig)
			selected, score, err := selectDevice(devs, deviceName, selectorName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			ranked := device.Rank(devs, score)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(devicesReport{
					GoVersion: runtime.Version(),
					GoOS:      runtime.GOOS,
					GoArch:    runtime.GOARCH,
					CPUs:      runtime.NumCPU(),
					Selected:  selected.ID,
					Devices:   ranked,
				}); err != nil {
					return cli.Exit(fmt.Sprintf("encode: %v", err), 1)
				}
				return nil
			}

			fmt.Printf("Devices (selector %s, device %s):\n\n", selectorName, deviceName)
			for _, s := range ranked {
				mark := " "
				if s.Device.ID == selected.ID {
					mark = "*"
				}
				d := s.Device
				fmt.Printf("%s %2d  %-32s %-6s %6s  group %-5d sub %-3d  score %d\n",
					mark, d.ID, d.Name, d.Kind, formatBytes(d.LocalMemBytes),
					d.MaxGroupSize, d.MaxSubGroupSize, s.Score)
				if len(d.Features) > 0 {
					fmt.Printf("      features: %s\n", strings.Join(d.Features, ", "))
				}
			}
			fmt.Printf("\n%d device(s) known\n", len(devs))
			return nil
		},
	}
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1fG", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1fM", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fK", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
