package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTypingIndicatorExpires(t *testing.T) {
	indicator := &TypingIndicator{Expiry: 30 * time.Millisecond}

	indicator.Observe(true)
	require.True(t, indicator.Active())

	require.Eventually(t, func() bool { return !indicator.Active() },
		time.Second, 5*time.Millisecond)
}

func TestTypingIndicatorSuperseded(t *testing.T) {
	indicator := &TypingIndicator{Expiry: time.Hour}

	indicator.Observe(true)
	require.True(t, indicator.Active())

	indicator.Observe(false)
	require.False(t, indicator.Active())
}

func TestTypingIndicatorRefreshExtendsExpiry(t *testing.T) {
	indicator := &TypingIndicator{Expiry: 60 * time.Millisecond}

	indicator.Observe(true)
	time.Sleep(40 * time.Millisecond)
	indicator.Observe(true)
	time.Sleep(40 * time.Millisecond)

	// The second signal reset the clock, so the flag is still up.
	require.True(t, indicator.Active())
}

func TestTypingIndicatorOnChange(t *testing.T) {
	changes := make(chan bool, 4)
	indicator := &TypingIndicator{
		Expiry:   20 * time.Millisecond,
		OnChange: func(active bool) { changes <- active },
	}

	indicator.Observe(true)
	require.True(t, <-changes)

	select {
	case active := <-changes:
		require.False(t, active)
	case <-time.After(time.Second):
		t.Fatalf("expected expiry transition")
	}
}

func TestTypingIndicatorStop(t *testing.T) {
	indicator := &TypingIndicator{Expiry: time.Hour}
	indicator.Observe(true)
	indicator.Stop()
	require.False(t, indicator.Active())
}
