package stats

import (
	"context"
	"fmt"
	"time"

	metrics "github.com/rcrowley/go-metrics"
)

// MinReapInterval is the shortest interval between two sweeps of a Reaper.
const MinReapInterval = time.Second

// ReaperInterval returns the interval a Reaper with the given ttl sweeps
// at: a tenth of the ttl but never less than MinReapInterval.
func ReaperInterval(ttl time.Duration) time.Duration {
	if d := ttl / 10; d > MinReapInterval {
		return d
	}
	return MinReapInterval
}

// A Sweeper removes stale entries. Store implements Sweeper.
type Sweeper interface {
	Sweep(now time.Time, ttl time.Duration) SweepResult
}

// A Reaper periodically sweeps a Store, removing the metrics and label
// values that were not updated within the TTL.
type Reaper struct {
	sweeper Sweeper
	ttl     time.Duration
	now     func() time.Time
	log     Logger

	sweeps            metrics.Counter
	metricsReaped     metrics.Counter
	labelValuesReaped metrics.Counter
	failures          metrics.Counter
	sweepTime         metrics.Timer
}

// NewReaper returns a Reaper that sweeps s with ttl. WithClock, WithLogger
// and WithRegistry apply to a Reaper.
func NewReaper(s Sweeper, ttl time.Duration, opts ...Option) *Reaper {
	o := newOptions(opts)
	return &Reaper{
		sweeper:           s,
		ttl:               ttl,
		now:               o.now,
		log:               o.log,
		sweeps:            metrics.GetOrRegisterCounter(reaperSweeps, o.registry),
		metricsReaped:     metrics.GetOrRegisterCounter(reaperMetricsReaped, o.registry),
		labelValuesReaped: metrics.GetOrRegisterCounter(reaperLabelValuesReaped, o.registry),
		failures:          metrics.GetOrRegisterCounter(reaperFailures, o.registry),
		sweepTime:         metrics.GetOrRegisterTimer(reaperSweepTime, o.registry),
	}
}

// TTL returns the ttl the Reaper sweeps with.
func (r *Reaper) TTL() time.Duration { return r.ttl }

// Interval returns the interval Run sweeps at.
func (r *Reaper) Interval() time.Duration { return ReaperInterval(r.ttl) }

// Tick performs one sweep. A panic during the sweep is recovered and
// returned as an error so one failed sweep never stops the Reaper.
func (r *Reaper) Tick() (res SweepResult, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("stats: sweep failed: %v", e)
			r.failures.Inc(1)
			r.log.Errorf("reaper: %s", err)
		}
	}()

	start := time.Now()
	res = r.sweeper.Sweep(r.now(), r.ttl)
	r.sweepTime.UpdateSince(start)
	r.sweeps.Inc(1)

	if res.Removed() {
		r.metricsReaped.Inc(int64(res.Metrics))
		r.labelValuesReaped.Inc(int64(res.LabelValues))
		r.log.Debugf("reaper: removed %d metrics and %d label values not updated in %s",
			res.Metrics, res.LabelValues, r.ttl)
	}
	return res, nil
}

// Run sweeps every Interval until ctx is cancelled. This is a blocking call
// and should be called in a goroutine.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval())
	defer ticker.Stop()
	r.RunTicks(ctx, ticker.C)
}

// RunTicks sweeps once for every value received from ticks until ctx is
// cancelled or ticks is closed. A sweep in progress always completes before
// RunTicks returns.
func (r *Reaper) RunTicks(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			r.Tick()
		}
	}
}
