package usecase

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// SweeperOptions configures the background expiration runner.
type SweeperOptions struct {
	Interval   time.Duration
	Registerer prometheus.Registerer
	Namespace  string
}

// Sweeper periodically forces stale sessions into their expiration states.
// The daily schedule normally comes from an external scheduler hitting the
// manual trigger; the internal ticker is a safety net for deployments
// without one.
type Sweeper struct {
	visits   *VisitService
	logger   *zap.Logger
	interval time.Duration

	runs    *prometheus.CounterVec
	expired *prometheus.CounterVec
}

// NewSweeper constructs a Sweeper and registers its collectors.
func NewSweeper(visits *VisitService, logger *zap.Logger, opts SweeperOptions) (*Sweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	namespace := opts.Namespace
	if namespace == "" {
		namespace = "fieldops"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sweeper",
		Name:      "runs_total",
		Help:      "Total number of expiration sweeps partitioned by outcome.",
	}, []string{"outcome"})

	expired := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sweeper",
		Name:      "sessions_expired_total",
		Help:      "Total number of sessions forced into a terminal state, partitioned by resulting state.",
	}, []string{"state"})

	for _, collector := range []*prometheus.CounterVec{runs, expired} {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
					if collector == runs {
						runs = existing
					} else {
						expired = existing
					}
					continue
				}
			}
			return nil, err
		}
	}

	return &Sweeper{
		visits:   visits,
		logger:   logger,
		interval: interval,
		runs:     runs,
		expired:  expired,
	}, nil
}

// Run blocks, sweeping on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("session sweeper started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep, recording metrics and logging the result.
func (s *Sweeper) RunOnce(ctx context.Context) *SweepResult {
	result, err := s.visits.Sweep(ctx)
	if err != nil {
		s.runs.WithLabelValues("error").Inc()
		s.logger.Error("session sweep failed", zap.Error(err))
		return result
	}

	s.runs.WithLabelValues("ok").Inc()
	s.expired.WithLabelValues("expired_complete").Add(float64(result.ExpiredComplete))
	s.expired.WithLabelValues("expired_incomplete").Add(float64(result.ExpiredIncomplete))

	if result.ExpiredComplete+result.ExpiredIncomplete > 0 {
		s.logger.Info("session sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("expired_complete", result.ExpiredComplete),
			zap.Int("expired_incomplete", result.ExpiredIncomplete),
		)
	}
	return result
}
