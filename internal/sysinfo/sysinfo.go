// Package sysinfo samples host resource usage for the RequestSystemInfo
// command using a gopsutil-based metrics collector.
package sysinfo

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

// ScreenSizer reports the dimensions used to fill in SystemInfo's
// screen_width/screen_height fields. A session supplies its active
// monitor's size; it is optional (nil disables the fields).
type ScreenSizer interface {
	ScreenSize() (width, height int32, err error)
}

// Sampler collects host metrics on demand.
type Sampler struct {
	screen ScreenSizer
}

// New creates a Sampler. screen may be nil.
func New(screen ScreenSizer) *Sampler {
	return &Sampler{screen: screen}
}

// Sample takes a single point-in-time reading of CPU, memory, disk, and
// uptime, returning it as the wire SystemInfo payload.
func (s *Sampler) Sample() (*wireproto.SystemInfoPayload, error) {
	payload := &wireproto.SystemInfoPayload{}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		payload.CPUPercent = pct[0]
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		payload.MemPercent = vmem.UsedPercent
		payload.MemUsedMB = vmem.Used / 1024 / 1024
	}

	if usage, err := disk.Usage("/"); err == nil {
		payload.DiskPercent = usage.UsedPercent
	}

	if uptime, err := host.Uptime(); err == nil {
		payload.UptimeSecs = uptime
	}

	if s.screen != nil {
		if w, h, err := s.screen.ScreenSize(); err == nil {
			payload.ScreenWidth = int(w)
			payload.ScreenHeight = int(h)
		}
	}

	return payload, nil
}
