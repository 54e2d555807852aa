package history

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iljarotar/threshold-scaler/internal/scaling"
)

// recentEventLimit bounds how many events a report carries for display.
const recentEventLimit = 10

// ScalingEvent is a scaling decision that was attempted against the cluster.
type ScalingEvent struct {
	ID        string
	Decision  scaling.ScalingDecision
	AppliedAt time.Time
	Success   bool
}

// Report aggregates the recorded events.
type Report struct {
	TotalEvents   int
	ScaleUps      int
	ScaleDowns    int
	Failed        int
	PerDeployment map[string]int
	// Recent holds the most recent events in reverse-chronological order.
	Recent []ScalingEvent
}

// Ledger is an append-only record of scaling events. Events are never
// mutated or deleted.
type Ledger struct {
	mu     sync.Mutex
	events []ScalingEvent
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records one applied or failed scaling attempt.
func (l *Ledger) Append(decision scaling.ScalingDecision, appliedAt time.Time, success bool) ScalingEvent {
	event := ScalingEvent{
		ID:        uuid.NewString(),
		Decision:  decision,
		AppliedAt: appliedAt,
		Success:   success,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)

	return event
}

// Events returns a copy of the recorded events in append order.
func (l *Ledger) Events() []ScalingEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]ScalingEvent, len(l.events))
	copy(events, l.events)

	return events
}

// Report summarizes the ledger: total count, counts split by direction,
// failures, per-deployment totals and the most recent events.
func (l *Ledger) Report() Report {
	l.mu.Lock()
	defer l.mu.Unlock()

	report := Report{
		TotalEvents:   len(l.events),
		PerDeployment: make(map[string]int),
	}

	for _, event := range l.events {
		if event.Decision.Direction() == scaling.ScaleUp {
			report.ScaleUps++
		} else {
			report.ScaleDowns++
		}

		if !event.Success {
			report.Failed++
		}

		report.PerDeployment[event.Decision.Deployment]++
	}

	limit := recentEventLimit
	if len(l.events) < limit {
		limit = len(l.events)
	}

	for i := len(l.events) - 1; i >= len(l.events)-limit; i-- {
		report.Recent = append(report.Recent, l.events[i])
	}

	return report
}
