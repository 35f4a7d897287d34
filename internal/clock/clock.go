package clock

import "time"

// Clock provides time information for the tracker core.
// This interface allows time to be mocked in tests.
type Clock interface {
	Now() time.Time
}

// RealClock provides actual system time.
type RealClock struct{}

// Now returns the current system time in UTC.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// TestClock provides fixed time for testing.
type TestClock struct {
	CurrentTime time.Time
}

// Now returns the test time.
func (t *TestClock) Now() time.Time {
	return t.CurrentTime
}

// Advance moves the test time forward.
func (t *TestClock) Advance(d time.Duration) {
	t.CurrentTime = t.CurrentTime.Add(d)
}
