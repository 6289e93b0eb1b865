package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

// Sample is one resource reading of the daemon process.
type Sample struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"` // Unix only
	Timestamp  time.Time `json:"timestamp"`
}

// SelfConfig holds configuration for daemon self metrics collection.
type SelfConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// SelfCollector samples CPU and memory of the running daemon.
type SelfCollector struct {
	enabled  bool
	interval time.Duration
	pid      int32

	mu     sync.RWMutex
	latest Sample
	have   bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	cpuPercent prometheus.Gauge
	memoryMB   prometheus.Gauge
	numThreads prometheus.Gauge
	numFDs     prometheus.Gauge
}

func NewSelfCollector(cfg SelfConfig) *SelfCollector {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "focuspilot",
			Subsystem: "daemon",
			Name:      name,
			Help:      help,
		})
	}
	return &SelfCollector{
		enabled:    cfg.Enabled,
		interval:   interval,
		pid:        int32(os.Getpid()),
		stopCh:     make(chan struct{}),
		cpuPercent: gauge("cpu_percent", "CPU usage percent of the daemon process."),
		memoryMB:   gauge("memory_mb", "Resident memory of the daemon process in MB."),
		numThreads: gauge("num_threads", "Number of OS threads of the daemon process."),
		numFDs:     gauge("num_fds", "Open file descriptors of the daemon process (Unix only)."),
	}
}

func (c *SelfCollector) RegisterMetrics(r prometheus.Registerer) error {
	if !c.enabled {
		return nil
	}
	collectors := []prometheus.Collector{c.cpuPercent, c.memoryMB, c.numThreads}
	if runtime.GOOS != "windows" {
		collectors = append(collectors, c.numFDs)
	}
	for _, collector := range collectors {
		if err := r.Register(collector); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Start begins periodic sampling until ctx is done or Stop is called.
func (c *SelfCollector) Start(ctx context.Context) {
	if !c.enabled {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		c.collect()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.collect()
			}
		}
	}()
}

func (c *SelfCollector) Stop() {
	if !c.enabled {
		return
	}
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Latest returns the most recent sample, if any.
func (c *SelfCollector) Latest() (Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.have
}

func (c *SelfCollector) collect() {
	s, err := c.sample(time.Now())
	if err != nil {
		slog.Debug("self metrics sample failed", "pid", c.pid, "error", err)
		return
	}
	c.cpuPercent.Set(s.CPUPercent)
	c.memoryMB.Set(s.MemoryMB)
	c.numThreads.Set(float64(s.NumThreads))
	if runtime.GOOS != "windows" && s.NumFDs > 0 {
		c.numFDs.Set(float64(s.NumFDs))
	}
	c.mu.Lock()
	c.latest, c.have = s, true
	c.mu.Unlock()
}

func (c *SelfCollector) sample(ts time.Time) (Sample, error) {
	proc, err := process.NewProcess(c.pid)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to create process handle: %w", err)
	}
	cpu, err := proc.CPUPercent()
	if err != nil {
		cpu = 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return Sample{}, fmt.Errorf("failed to get memory info: %w", err)
	}
	threads, err := proc.NumThreads()
	if err != nil {
		threads = 0
	}
	s := Sample{
		PID:        c.pid,
		CPUPercent: cpu,
		MemoryMB:   float64(mem.RSS) / 1024 / 1024,
		MemoryRSS:  mem.RSS,
		NumThreads: threads,
		Timestamp:  ts,
	}
	if runtime.GOOS != "windows" {
		if fds, err := proc.NumFDs(); err == nil {
			s.NumFDs = fds
		}
	}
	return s, nil
}
