// Package alerts runs the scheduled low-stock scan.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/printworks/platform/internal/domain/inventory"
)

// StockSource lists materials at or below their minimum threshold.
type StockSource interface {
	LowStock(ctx context.Context) ([]inventory.Material, error)
}

// Scanner tracks which materials are low between runs so that each one is
// reported once when it drops and once when it recovers.
type Scanner struct {
	source StockSource
	logger *slog.Logger
	gauge  prometheus.Gauge
	scans  *prometheus.CounterVec

	mu  sync.Mutex
	low map[string]inventory.Material

	cron *cron.Cron
}

// NewScanner builds a scanner. gauge and scans may be nil.
func NewScanner(source StockSource, logger *slog.Logger, gauge prometheus.Gauge, scans *prometheus.CounterVec) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		source: source,
		logger: logger,
		gauge:  gauge,
		scans:  scans,
		low:    make(map[string]inventory.Material),
	}
}

// RunOnce performs a single scan and returns the materials currently low.
func (s *Scanner) RunOnce(ctx context.Context) ([]inventory.Material, error) {
	materials, err := s.source.LowStock(ctx)
	if err != nil {
		s.count("error")
		return nil, fmt.Errorf("list low stock: %w", err)
	}

	current := make(map[string]inventory.Material, len(materials))
	for _, m := range materials {
		current[m.ID] = m
	}

	s.mu.Lock()
	for id, m := range current {
		if _, seen := s.low[id]; !seen {
			s.logger.Warn("material below minimum threshold",
				"material_id", id,
				"material_code", m.Code,
				"stock_level", m.StockLevel,
				"min_threshold", m.MinThreshold,
			)
		}
	}
	for id, m := range s.low {
		if _, still := current[id]; !still {
			s.logger.Info("material stock recovered", "material_id", id, "material_code", m.Code)
		}
	}
	s.low = current
	s.mu.Unlock()

	if s.gauge != nil {
		s.gauge.Set(float64(len(materials)))
	}
	s.count("ok")
	return materials, nil
}

func (s *Scanner) count(result string) {
	if s.scans != nil {
		s.scans.WithLabelValues(result).Inc()
	}
}

// Start schedules RunOnce with a standard cron spec or descriptor such as
// "@every 15m". Each run is bounded by ctx.
func (s *Scanner) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("low stock scan failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule low stock scan %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("low stock scanner started", "schedule", spec)
	return nil
}

// Stop halts scheduling and waits for a running scan to finish or ctx to
// expire.
func (s *Scanner) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
