package cooldown

import (
	"sync"
	"time"
)

// Gate suppresses scaling actions for deployments that were scaled too
// recently. It keeps one timestamp per deployment name; a deployment without
// a record is always ready. The check is a pure time comparison re-evaluated
// on every cycle, so no timer is needed for a deployment to become ready
// again.
type Gate struct {
	mu         sync.Mutex
	lastScaled map[string]time.Time
}

func NewGate() *Gate {
	return &Gate{lastScaled: make(map[string]time.Time)}
}

// Allows reports whether a scaling action for the deployment may be applied
// at `now`. The boundary case `now - lastScaled == cooldown` is allowed.
func (g *Gate) Allows(deployment string, now time.Time, cooldown time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.lastScaled[deployment]
	if !ok {
		return true
	}

	return now.Sub(last) >= cooldown
}

// MarkScaled stamps the deployment's last successful scaling time. Only
// successful applies may be stamped; a failed apply must not block a retry.
func (g *Gate) MarkScaled(deployment string, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastScaled[deployment] = now
}

// LastScaled returns the deployment's last successful scaling time, if any.
func (g *Gate) LastScaled(deployment string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.lastScaled[deployment]

	return last, ok
}
