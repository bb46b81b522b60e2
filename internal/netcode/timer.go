package netcode

import "time"

// Timer is a reset/is-finished deadline, used for both the heartbeat and
// the timeout liveness checks. Grounded on the teacher's
// LastSendTime/LastReceiveTime-plus-duration comparisons in
// source/protocol/raknet.go, generalized into a reusable type.
type Timer struct {
	duration time.Duration
	deadline time.Time
}

// NewTimer returns a Timer already armed for duration from now.
func NewTimer(duration time.Duration) *Timer {
	t := &Timer{duration: duration}
	t.Reset()
	return t
}

// Reset rearms the timer for another full duration from now.
func (t *Timer) Reset() { t.deadline = time.Now().Add(t.duration) }

// IsFinished reports whether the timer's duration has elapsed since the
// last Reset.
func (t *Timer) IsFinished() bool { return !time.Now().Before(t.deadline) }
