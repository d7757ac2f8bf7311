package safego

import (
	"testing"
	"time"
)

func TestGo_RunsFunction(t *testing.T) {
	ran := make(chan struct{})

	Go(func() {
		close(ran)
	})

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Error("goroutine did not run within timeout")
	}
}

func TestGo_RecoversPanic(t *testing.T) {
	entered := make(chan struct{})

	// The panic must be recovered without crashing the test process.
	Go(func() {
		close(entered)
		panic("intentional panic in test")
	})

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("goroutine did not run within timeout")
	}

	// Give the deferred recover a moment to execute; if it did not, the
	// process would have crashed before this assertion.
	time.Sleep(10 * time.Millisecond)
}
