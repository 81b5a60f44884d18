package mesh

import (
	"testing"
	"time"
)

func TestNewNodeDefaultsToNoopCallbacks(t *testing.T) {
	t.Parallel()

	n := NewNode(0x01, nil)
	if n.callbacks == nil {
		t.Fatal("NewNode(addr, nil) left callbacks nil")
	}
	// Must not panic: noopCallbacks swallows both notifications.
	n.callbacks.OnSessionReset()
	n.callbacks.ProcessMessage(FirstAppMsgType, nil)
}

func TestNodeSessionSetAndCounters(t *testing.T) {
	t.Parallel()

	n := NewNode(0x01, nil)
	if n.SessionSet() {
		t.Fatal("fresh node reports SessionSet true")
	}

	session := [sessionLen]byte{1, 2, 3, 4, 5, 6, 7, 8}
	n.setSession(session, 42)

	if !n.SessionSet() {
		t.Error("setSession did not mark SessionSet true")
	}
	if n.session != session {
		t.Errorf("session = %x, want %x", n.session, session)
	}
	if n.CounterRecv() != 42 {
		t.Errorf("CounterRecv() = %d, want 42", n.CounterRecv())
	}
	if n.resetSession != ([sessionLen]byte{}) {
		t.Error("setSession did not clear resetSession")
	}
	if !n.resetIntvl.Disabled {
		t.Error("setSession did not disable resetIntvl")
	}
}

func TestNodeLinkMetrics(t *testing.T) {
	t.Parallel()

	n := NewNode(0x01, nil)
	n.updateLinkMetrics(-72, 6.5)

	rssi, snr := n.LinkMetrics()
	if rssi != -72 {
		t.Errorf("rssi = %d, want -72", rssi)
	}
	if snr != 6.5 {
		t.Errorf("snr = %v, want 6.5", snr)
	}
}

func TestNodeDueForRetry(t *testing.T) {
	t.Parallel()

	now := time.Now()

	broadcast := NewNode(BroadcastAddr, nil)
	if broadcast.dueForRetry(now) {
		t.Error("broadcast address node reported due for retry")
	}

	disabled := NewNode(0x01, nil)
	disabled.resetIntvl = disabledSchedule()
	if disabled.dueForRetry(now) {
		t.Error("node with disabled schedule reported due for retry")
	}

	notYet := NewNode(0x01, nil)
	notYet.resetLast = now
	notYet.resetIntvl = scheduledIn(time.Hour)
	if notYet.dueForRetry(now) {
		t.Error("node scheduled an hour out reported due for retry immediately")
	}

	due := NewNode(0x01, nil)
	due.resetLast = now.Add(-time.Hour)
	due.resetIntvl = scheduledIn(time.Minute)
	if !due.dueForRetry(now) {
		t.Error("node whose interval has elapsed did not report due for retry")
	}
}

func TestNodeBeginRetryAdvancesTrialAndSchedulesBackoff(t *testing.T) {
	t.Parallel()

	n := NewNode(0x01, nil)
	e := newEntropy(&fixedBitSource{bits: []bool{true, false, true, false, true}})

	now := time.Now()
	first := n.beginRetry(now, e)

	if n.resetTrial != 1 {
		t.Errorf("resetTrial after first beginRetry = %d, want 1", n.resetTrial)
	}
	if n.resetLast != now {
		t.Error("beginRetry did not stamp resetLast")
	}
	if n.resetIntvl.Disabled {
		t.Error("beginRetry left resetIntvl disabled")
	}
	if n.resetIntvl.Interval < 0 || n.resetIntvl.Interval >= 5*time.Second {
		t.Errorf("first backoff interval = %v, want in [0, 5s)", n.resetIntvl.Interval)
	}
	if n.resetSession != first {
		t.Error("beginRetry's returned session does not match the stashed resetSession")
	}
}

func TestNodeBeginRetrySaturatesTrialCounter(t *testing.T) {
	t.Parallel()

	n := NewNode(0x01, nil)
	e := newEntropy(&fixedBitSource{bits: []bool{true, false}})

	now := time.Now()
	for i := 0; i < maxResetTrial+10; i++ {
		n.beginRetry(now, e)
	}

	if n.resetTrial != maxResetTrial {
		t.Errorf("resetTrial after saturation = %d, want %d", n.resetTrial, maxResetTrial)
	}
}

func TestNodeScheduleImmediateReset(t *testing.T) {
	t.Parallel()

	n := NewNode(0x01, nil)
	n.resetTrial = 12
	n.resetIntvl = scheduledIn(time.Hour)

	n.scheduleImmediateReset()

	if n.resetTrial != 0 {
		t.Errorf("resetTrial after scheduleImmediateReset = %d, want 0", n.resetTrial)
	}
	if n.resetIntvl.Disabled || n.resetIntvl.Interval != 0 {
		t.Errorf("resetIntvl after scheduleImmediateReset = %+v, want {false 0}", n.resetIntvl)
	}
}
