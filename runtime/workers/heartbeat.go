package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"clinic-relay/observability"

	"github.com/shirou/gopsutil/process"
)

const heartbeatInterval = 5 * time.Second

// HeartbeatWorker samples the relay process's own memory and CPU usage and
// feeds the monitor, so the stats endpoint reports live figures.
type HeartbeatWorker struct {
	log     *slog.Logger
	monitor *observability.RelayMonitor
}

func NewHeartbeatWorker(log *slog.Logger, monitor *observability.RelayMonitor) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, monitor: monitor}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting relay heartbeat worker")
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.monitor.UpdateProcessStats(rss, cpu)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
