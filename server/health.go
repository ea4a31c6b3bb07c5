package server

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// healthReporter polls a health predicate on a fixed cadence and reports each
// result to the control plane. The loop's only termination condition is
// observing ready() false at the top of a tick, so it outlives readiness by
// at most one cadence.
type healthReporter struct {
	log      *zap.SugaredLogger
	interval time.Duration
	ready    func() bool
	check    func() bool
	report   func(ctx context.Context, healthy bool) error
}

func (r *healthReporter) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if !r.ready() {
			r.log.Debug("process no longer ready, stopping health reports")
			return
		}

		healthy := r.checkWithDeadline()

		ctx, cancel := context.WithTimeout(context.Background(), r.interval)
		if err := r.report(ctx, healthy); err != nil {
			r.log.Debugf("error reporting health: %s", err)
		}
		cancel()

		<-ticker.C
	}
}

// checkWithDeadline races the predicate against a cadence-length deadline. A
// predicate that overruns the deadline counts as unhealthy and its eventual
// result is discarded; a missed report would otherwise look like a dead
// process to the control plane. A panicking predicate also counts as
// unhealthy.
func (r *healthReporter) checkWithDeadline() bool {
	result := make(chan bool, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Errorf("health check panicked: %v", rec)
				result <- false
			}
		}()
		result <- r.check()
	}()

	select {
	case healthy := <-result:
		return healthy
	case <-time.After(r.interval):
		r.log.Debugf("health check exceeded the %s deadline, reporting unhealthy", r.interval)
		return false
	}
}
