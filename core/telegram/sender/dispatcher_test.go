package sender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func newTestDispatcher(t *testing.T, opts Options) (*Dispatcher, *[]time.Duration) {
	t.Helper()
	d := NewDispatcher(opts)
	var (
		mu    sync.Mutex
		waits []time.Duration
	)
	d.sleep = func(_ context.Context, w time.Duration) bool {
		mu.Lock()
		waits = append(waits, w)
		mu.Unlock()
		return true
	}
	t.Cleanup(d.Close)
	return d, &waits
}

func TestDoWaitsOutFloodLimit(t *testing.T) {
	d, waits := newTestDispatcher(t, Options{Workers: 1, MaxRetries: 2})
	calls := 0
	var sent string
	err := d.Do(context.Background(), "send.prompt", func() error {
		calls++
		if calls == 1 {
			return tele.FloodError{RetryAfter: 4}
		}
		sent = "Порода?"
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 || sent != "Порода?" {
		t.Fatalf("calls = %d, sent = %q", calls, sent)
	}
	if len(*waits) != 1 || (*waits)[0] != 4*time.Second {
		t.Fatalf("waits = %v", *waits)
	}
}

func TestDoReturnsPermanentError(t *testing.T) {
	d, waits := newTestDispatcher(t, Options{Workers: 1, MaxRetries: 3})
	calls := 0
	err := d.Do(context.Background(), "send.prompt", func() error {
		calls++
		return tele.ErrBlockedByUser
	})
	if !errors.Is(err, tele.ErrBlockedByUser) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 || len(*waits) != 0 {
		t.Fatalf("calls = %d, waits = %v", calls, *waits)
	}
	if d.Failed() != 1 {
		t.Fatalf("failed = %d", d.Failed())
	}
}

func TestDoGivesUpWhenFloodWaitExceedsBudget(t *testing.T) {
	d, waits := newTestDispatcher(t, Options{Workers: 1, MaxRetries: 5, MaxDuration: time.Second})
	err := d.Do(context.Background(), "send.prompt", func() error {
		return tele.FloodError{RetryAfter: 30}
	})
	var flood tele.FloodError
	if !errors.As(err, &flood) {
		t.Fatalf("err = %v", err)
	}
	if len(*waits) != 0 {
		t.Fatalf("slept although the wait could not fit: %v", *waits)
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	done := make(chan struct{})
	if err := d.Enqueue(context.Background(), "edit.markup", func() error {
		close(done)
		return nil
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.Close()
	select {
	case <-done:
	default:
		t.Fatal("queued call dropped on close")
	}
	if err := d.Enqueue(context.Background(), "delete", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v", err)
	}
	d.Close()
}

func TestRedactToken(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123:AA-bc_d/sendMessage": timeout`)
	if got := redact(err); got != `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout` {
		t.Fatalf("redact = %s", got)
	}
}
