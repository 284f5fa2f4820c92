package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LavishGent/propkit/internal/types"
)

// Sample is one gauge reported by a Reporter.
type Sample struct {
	Name  string
	Value float64
	Tags  []string
}

// Reporter periodically publishes samples produced by a collect function.
type Reporter struct {
	publisher types.Publisher
	logger    *slog.Logger
	collect   func() []Sample
	interval  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReporter creates a reporter that publishes collect's samples every interval.
func NewReporter(publisher types.Publisher, interval time.Duration, collect func() []Sample, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Reporter{
		publisher: publisher,
		interval:  interval,
		collect:   collect,
		logger:    logger.With("component", "metrics-reporter"),
	}
}

// Start runs the reporting loop until ctx is done or Stop is called.
// Starting a running reporter does nothing.
func (r *Reporter) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run(ctx)
	r.logger.Info("metrics reporter started", "interval", r.interval)
}

// Stop ends the loop after a final report and waits for it.
func (r *Reporter) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
	r.logger.Info("metrics reporter stopped")
}

func (r *Reporter) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.PublishNow()
			return
		case <-ticker.C:
			r.PublishNow()
		}
	}
}

// PublishNow reports immediately.
func (r *Reporter) PublishNow() {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("recovered from panic in metrics reporter", "panic", p)
		}
	}()

	if r.collect == nil || r.publisher == nil {
		return
	}
	for _, s := range r.collect() {
		r.publisher.Gauge(s.Name, s.Value, s.Tags...)
	}
}
