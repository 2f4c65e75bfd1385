package snaplapse

import "time"

const (
	// defaultTickPeriod is much finer than any capture interval so deferral
	// and suppression react quickly.
	defaultTickPeriod = 100 * time.Millisecond
	// interactionGrace is how long after an input event a capture is still
	// considered mid-interaction.
	interactionGrace = 300 * time.Millisecond
)

type tickAction int

const (
	// actionHold means the capture isn't due yet or a render owns the
	// viewport.
	actionHold tickAction = iota
	// actionDefer means the user is mid-interaction; wait a little longer.
	actionDefer
	// actionSuppress means the user has been away too long; nothing worth
	// keeping.
	actionSuppress
	actionCapture
)

// gate decides, tick by tick, whether a capture should happen. It is owned by
// exactly one session goroutine and never locked.
type gate struct {
	interval        time.Duration
	nextDue         time.Time
	lastInteraction time.Time
}

func (g *gate) arm(now time.Time) {
	g.nextDue = now.Add(g.interval)
	g.lastInteraction = now
}

func (g *gate) interact(now time.Time) {
	g.lastInteraction = now
}

func (g *gate) tick(now time.Time, renderActive bool) tickAction {
	if renderActive {
		return actionHold
	}
	if now.Before(g.nextDue) {
		return actionHold
	}

	sinceInput := now.Sub(g.lastInteraction)

	// Deferring avoids half-updated viewports during rapid input, but the
	// cap keeps continuous interaction from starving the timelapse.
	deferCap := g.nextDue.Add(g.interval + g.interval/2)
	if sinceInput < interactionGrace && now.Before(deferCap) {
		return actionDefer
	}

	if sinceInput > 4*g.interval {
		return actionSuppress
	}

	return actionCapture
}

// advance schedules the next capture. It runs after every attempt, failed or
// not, so a broken sink can't turn the fine-grained timer into a retry loop.
func (g *gate) advance(now time.Time) {
	g.nextDue = now.Add(g.interval)
}
