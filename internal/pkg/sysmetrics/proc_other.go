//go:build !linux

package sysmetrics

import (
	"runtime"
	"time"
)

// procState has no CPU source off Linux; memory comes from the Go runtime
type procState struct{}

func (p *procState) init() {}

func (p *procState) read(now time.Time) Usage {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Usage{CPUPercent: -1, RSSBytes: ms.Sys, SampledAt: now}
}
