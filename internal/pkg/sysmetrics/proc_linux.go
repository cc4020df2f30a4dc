//go:build linux

package sysmetrics

import (
	"bufio"
	"bytes"
	"os"
	"strconv"
	"strings"
	"time"
)

// USER_HZ is fixed at 100 on every mainstream Linux ABI
const clockTicks = 100

const (
	statPath        = "/proc/self/stat"
	statusPath      = "/proc/self/status"
	cgroupV2Limit   = "/sys/fs/cgroup/memory.max"
	cgroupV1Limit   = "/sys/fs/cgroup/memory/memory.limit_in_bytes"
	cgroupV1NoLimit = 1 << 62
)

type procState struct {
	prevTicks uint64
	prevWall  time.Time
	primed    bool

	limit        uint64
	limitChecked bool
}

func (p *procState) init() {
	p.prevTicks = cpuTicks(statPath)
	p.prevWall = time.Now()
}

func (p *procState) read(now time.Time) Usage {
	u := Usage{CPUPercent: -1, RSSBytes: residentBytes(statusPath), SampledAt: now}

	if !p.limitChecked {
		p.limit = memoryLimit()
		p.limitChecked = true
	}
	u.LimitBytes = p.limit

	ticks := cpuTicks(statPath)
	wall := now.Sub(p.prevWall).Seconds()
	if p.primed && wall > 0 && ticks >= p.prevTicks {
		u.CPUPercent = cpuPercent(ticks-p.prevTicks, wall)
	}
	p.prevTicks = ticks
	p.prevWall = now
	p.primed = true
	return u
}

func cpuPercent(ticks uint64, wallSeconds float64) float64 {
	pct := float64(ticks) / clockTicks / wallSeconds * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// cpuTicks returns utime+stime from a /proc/<pid>/stat file. The command
// name may contain spaces, so fields are counted from the closing paren.
func cpuTicks(path string) uint64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	return parseStatTicks(data)
}

func parseStatTicks(data []byte) uint64 {
	end := bytes.LastIndexByte(data, ')')
	if end == -1 || end+2 >= len(data) {
		return 0
	}
	fields := bytes.Fields(data[end+2:])
	if len(fields) < 13 {
		return 0
	}
	utime, err1 := strconv.ParseUint(string(fields[11]), 10, 64)
	stime, err2 := strconv.ParseUint(string(fields[12]), 10, 64)
	if err1 != nil || err2 != nil {
		return 0
	}
	return utime + stime
}

func residentBytes(path string) uint64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb * 1024
	}
	return 0
}

func memoryLimit() uint64 {
	if v, ok := readLimit(cgroupV2Limit); ok {
		return v
	}
	if v, ok := readLimit(cgroupV1Limit); ok && v < cgroupV1NoLimit {
		return v
	}
	return 0
}

func readLimit(path string) (uint64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	s := strings.TrimSpace(string(data))
	if s == "max" {
		return 0, true
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
