package session

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestIdleFiresAfterWindow(t *testing.T) {
	fired := make(chan struct{}, 1)
	w := NewIdleWatcher(30*time.Millisecond, func() {
		fired <- struct{}{}
	}, zerolog.Nop())
	defer w.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("idle callback never fired")
	}
}

func TestResetTimeoutDefersIdle(t *testing.T) {
	fired := make(chan struct{}, 1)
	w := NewIdleWatcher(250*time.Millisecond, func() {
		fired <- struct{}{}
	}, zerolog.Nop())
	defer w.Stop()

	// Keep resetting for longer than the window; the callback must not
	// fire while activity continues.
	for i := 0; i < 6; i++ {
		time.Sleep(50 * time.Millisecond)
		w.ResetTimeout()
	}

	select {
	case <-fired:
		t.Fatal("idle fired despite ongoing activity")
	default:
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("idle never fired after activity stopped")
	}
}

func TestStopCancelsIdle(t *testing.T) {
	fired := make(chan struct{}, 1)
	w := NewIdleWatcher(30*time.Millisecond, func() {
		fired <- struct{}{}
	}, zerolog.Nop())
	w.Stop()

	select {
	case <-fired:
		t.Fatal("idle fired after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestZeroWindowNeverFires(t *testing.T) {
	fired := make(chan struct{}, 1)
	w := NewIdleWatcher(0, func() {
		fired <- struct{}{}
	}, zerolog.Nop())
	defer w.Stop()
	w.ResetTimeout()

	select {
	case <-fired:
		t.Fatal("idle fired with a zero window")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNilCallback(t *testing.T) {
	w := NewIdleWatcher(10*time.Millisecond, nil, zerolog.Nop())
	defer w.Stop()

	// The fire path must tolerate a nil callback.
	time.Sleep(50 * time.Millisecond)
}
