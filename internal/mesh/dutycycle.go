package mesh

import "time"

// Duty-cycle governor clamps (spec §4.E).
const (
	minWindow = 10 * time.Second
	maxWindow = 3600 * time.Second

	minPermillage = 1
	maxPermillage = 1000
)

// DutyCycleGovernor tracks airtime over a sliding window and blocks
// transmission once the permillage budget for the window is spent
// (spec §4.E). State mutation happens only from Engine.Process's single
// goroutine; it polls the radio's IsTransmitting signal edge-triggered.
type DutyCycleGovernor struct {
	window    time.Duration
	txTimeMax time.Duration

	windowStart time.Time
	txTime      time.Duration
	txOn        bool
	txStart     time.Time
	exceeded    bool
}

// NewDutyCycleGovernor clamps window and permillage per spec §4.E and
// computes the per-window transmit-time budget.
func NewDutyCycleGovernor(window time.Duration, permillage int, now time.Time) *DutyCycleGovernor {
	window = clampDuration(window, minWindow, maxWindow)
	permillage = clampInt(permillage, minPermillage, maxPermillage)

	return &DutyCycleGovernor{
		window:      window,
		txTimeMax:   window * time.Duration(permillage) / 1000,
		windowStart: now,
	}
}

// Reconfigure updates the window/permillage clamps without resetting the
// governor's accumulated state (spec §6 SetDutyCycle may be called again
// during the program's lifetime via config reload).
func (g *DutyCycleGovernor) Reconfigure(window time.Duration, permillage int) {
	g.window = clampDuration(window, minWindow, maxWindow)
	permillage = clampInt(permillage, minPermillage, maxPermillage)
	g.txTimeMax = g.window * time.Duration(permillage) / 1000
}

// Exceeded reports whether transmission is currently inhibited.
func (g *DutyCycleGovernor) Exceeded() bool {
	return g.exceeded
}

// Tick advances the governor's window/airtime bookkeeping given the
// current time and the radio's current IsTransmitting signal
// (spec §4.E "On each tick").
func (g *DutyCycleGovernor) Tick(now time.Time, txOn bool) {
	if now.Sub(g.windowStart) >= g.window {
		g.windowStart = now
		if g.exceeded {
			// Debt carryover: subtract the spent budget from the
			// accumulated time; re-arm the budget only once the
			// remaining debt drops below it again. This can leave
			// tx_time above tx_time_max through an entire window if
			// the debt was large (spec §9: intended).
			g.txTime -= g.txTimeMax
			if g.txTime < g.txTimeMax {
				g.exceeded = false
			}
		} else {
			g.txTime = 0
		}
	}

	if g.exceeded {
		return
	}

	if txOn != g.txOn {
		g.txOn = txOn
		if txOn {
			g.txStart = now
		} else {
			g.txTime += now.Sub(g.txStart)
			if g.txTime >= g.txTimeMax {
				g.exceeded = true
			}
		}
	}
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
