// Package sysresources writes the observer hub's system-resources slot by
// sampling /proc/stat and /proc/meminfo on a ticker. It supplements
// spec.md's data model, which lists a system-resources snapshot domain
// without assigning it a collector.
package sysresources

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/INDIW33D/hyprline/internal/observer"
)

// CPUStats is a single /proc/stat "cpu" line's total and idle jiffies.
type CPUStats struct {
	Total uint64
	Idle  uint64
}

// Collector samples CPU and memory usage on a ticker, computing CPU
// percentage as a delta between consecutive samples (a single sample
// cannot yield a percentage).
type Collector struct {
	slot *observer.Slot[observer.SysResourcesInfo]
	last *CPUStats

	done chan struct{}
}

// New returns a collector bound to slot.
func New(slot *observer.Slot[observer.SysResourcesInfo]) *Collector {
	return &Collector{slot: slot}
}

// Start samples on a ticker until ctx is cancelled or Stop is called.
func (c *Collector) Start(ctx context.Context, interval time.Duration) {
	c.done = make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-ticker.C:
				c.sample()
			}
		}
	}()
}

// Stop ends the sampling goroutine.
func (c *Collector) Stop() {
	if c.done != nil {
		close(c.done)
	}
}

func (c *Collector) sample() {
	stats, err := ReadCPUStats()
	if err != nil {
		return
	}

	var cpuPercent float64
	if c.last != nil {
		cpuPercent = CPUUsagePercent(*c.last, stats)
	}
	c.last = &stats

	used, total, err := ReadMemInfo()
	if err != nil {
		return
	}

	c.slot.Set(observer.SysResourcesInfo{
		CPUPercent:    cpuPercent,
		MemUsedBytes:  used,
		MemTotalBytes: total,
	})
}

// ReadCPUStats parses the aggregate "cpu" line of /proc/stat into total
// and idle jiffie counts.
func ReadCPUStats() (CPUStats, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return CPUStats{}, fmt.Errorf("open /proc/stat: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return CPUStats{}, fmt.Errorf("read /proc/stat: empty file")
	}
	return ParseCPUStatLine(scanner.Text())
}

// ParseCPUStatLine parses a single "cpu user nice system idle ..." line.
func ParseCPUStatLine(line string) (CPUStats, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return CPUStats{}, fmt.Errorf("malformed /proc/stat cpu line: %q", line)
	}

	var total uint64
	var values []uint64
	for _, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return CPUStats{}, fmt.Errorf("parse /proc/stat field %q: %w", f, err)
		}
		values = append(values, v)
		total += v
	}

	return CPUStats{Total: total, Idle: values[3]}, nil
}

// CPUUsagePercent computes the percentage of non-idle time between two
// consecutive samples, clamped to [0, 100].
func CPUUsagePercent(prev, cur CPUStats) float64 {
	totalDiff := cur.Total - prev.Total
	if cur.Total < prev.Total {
		return 0
	}
	if totalDiff == 0 {
		return 0
	}
	idleDiff := cur.Idle - prev.Idle
	if cur.Idle < prev.Idle {
		idleDiff = 0
	}

	pct := 100 * (1 - float64(idleDiff)/float64(totalDiff))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// ReadMemInfo parses MemTotal and MemAvailable out of /proc/meminfo,
// returning used and total bytes.
func ReadMemInfo() (used, total uint64, err error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, fmt.Errorf("open /proc/meminfo: %w", err)
	}
	defer f.Close()
	return ParseMemInfo(f)
}

// ParseMemInfo extracts MemTotal/MemAvailable (in kB, per /proc/meminfo
// convention) and returns used/total in bytes.
func ParseMemInfo(r interface{ Read([]byte) (int, error) }) (used, total uint64, err error) {
	scanner := bufio.NewScanner(r)
	var memTotalKB, memAvailKB uint64
	var haveTotal, haveAvail bool

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			memTotalKB, haveTotal = parseMemInfoValue(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			memAvailKB, haveAvail = parseMemInfoValue(line)
		}
		if haveTotal && haveAvail {
			break
		}
	}

	if !haveTotal || !haveAvail {
		return 0, 0, fmt.Errorf("meminfo missing MemTotal/MemAvailable")
	}

	total = memTotalKB * 1024
	avail := memAvailKB * 1024
	if avail > total {
		avail = total
	}
	return total - avail, total, nil
}

func parseMemInfoValue(line string) (uint64, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, false
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
