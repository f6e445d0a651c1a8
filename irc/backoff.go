package irc

import "time"

// BackoffPolicy computes reconnect delays. The zero-indexed attempt counter
// resets after every successful connection and after every extended cooldown,
// so the supervisor keeps retrying for the life of the process.
type BackoffPolicy struct {
	Base             time.Duration
	Cap              time.Duration
	MaxAttempts      int
	ExtendedCooldown time.Duration
}

func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:             60 * time.Second,
		Cap:              30 * time.Minute,
		MaxAttempts:      5,
		ExtendedCooldown: 15 * time.Minute,
	}
}

// Delay returns the wait before attempt n (0-indexed within the current
// cycle): min(base * 2^n, cap). Pure function, no clock reads.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Cap {
			return p.Cap
		}
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// CycleExhausted reports whether attempt n ends the current cycle, meaning
// the supervisor should sleep the extended cooldown and reset the counter.
func (p BackoffPolicy) CycleExhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}
