package timer

import "testing"

func TestTicksToUsRoundTripsUsToTicks(t *testing.T) {
	c := NewClock(1000)
	for _, us := range []uint64{0, 1, 42, 1_000_000} {
		ticks := c.UsToTicks(us)
		if got := c.TicksToUs(ticks); got != us {
			t.Fatalf("UsToTicks(%d)=%d, TicksToUs back = %d", us, ticks, got)
		}
	}
}

func TestNewClockDefaultsZeroRate(t *testing.T) {
	c := NewClock(0)
	if c.ticksPerUs == 0 {
		t.Fatal("ticksPerUs must not be zero, would divide by zero in TicksToUs")
	}
}

func TestClockNowIsMonotonicNonDecreasing(t *testing.T) {
	c := NewClock(1000)
	a := c.Now()
	b := c.Now()
	if b < a {
		t.Fatalf("Now() went backwards: %d then %d", a, b)
	}
}
