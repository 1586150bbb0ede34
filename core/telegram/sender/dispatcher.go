// Package sender runs outbound Bot API calls on a small worker pool.
// Conversation prompts wait for their outcome through Do; edits, deletes and
// plain replies are queued with Enqueue. Both paths retry transient failures
// and wait out Telegram flood limits.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/catchbot/core/logger"
	"github.com/m3rciful/catchbot/core/telegram/netutil"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned once the dispatcher has been closed.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the call was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options size the pool and its retry policy. Zero values get defaults.
type Options struct {
	QueueSize int
	Workers   int
	// MaxRetries below zero disables retries.
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds one call, flood waits included.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	switch {
	case o.MaxRetries == 0:
		o.MaxRetries = 3
	case o.MaxRetries < 0:
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 30 * time.Second
	}
	return o
}

type call struct {
	ctx    context.Context
	action string
	run    func() error
	// result is set for callers waiting in Do.
	result chan error
}

// Dispatcher executes Bot API calls with retries.
type Dispatcher struct {
	opts  Options
	calls chan call
	sleep func(ctx context.Context, d time.Duration) bool

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:  opts,
		calls: make(chan call, opts.QueueSize),
		sleep: sleepContext,
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules run without waiting for it. run may be called more than
// once.
func (d *Dispatcher) Enqueue(ctx context.Context, action string, run func() error) error {
	return d.submit(call{ctx: ctx, action: action, run: run})
}

// Do runs run on a worker and returns its final error, retries included.
// Results written by run are visible to the caller once Do returns nil.
func (d *Dispatcher) Do(ctx context.Context, action string, run func() error) error {
	res := make(chan error, 1)
	if err := d.submit(call{ctx: ctx, action: action, run: run, result: res}); err != nil {
		return err
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) submit(c call) error {
	if c.run == nil {
		return errors.New("telegram sender: nil call")
	}
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.calls <- c:
		return nil
	default:
		return ErrQueueFull
	}
}

// Failed returns the number of calls that exhausted their retries.
func (d *Dispatcher) Failed() uint64 {
	return d.failed.Load()
}

// Close stops accepting calls and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.calls)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for c := range d.calls {
		err := d.exec(c)
		if c.result != nil {
			c.result <- err
		}
	}
}

func (d *Dispatcher) exec(c call) error {
	ctx, cancel := context.WithTimeout(c.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := 0
	for {
		attempts++
		err := c.run()
		if err == nil {
			if attempts > 1 {
				logger.Info(ctx, component, "send.retry.success",
					slog.String("op", c.action),
					slog.Int("attempts", attempts),
					slog.Duration("duration", time.Since(start)),
				)
			}
			return nil
		}

		retry, wait := netutil.Retry(err)
		if wait <= 0 {
			wait = d.opts.RetryBackoff * time.Duration(attempts)
		}
		if !retry || attempts > d.opts.MaxRetries || !d.fits(ctx, wait) {
			d.failed.Add(1)
			logger.Error(ctx, component, "send.fail",
				slog.String("op", c.action),
				slog.String("err", redact(err)),
				slog.String("cause", netutil.Kind(err)),
				slog.Int("attempts", attempts),
				slog.Duration("duration", time.Since(start)),
			)
			return err
		}
		logger.Debug(ctx, component, "send.retry",
			slog.String("op", c.action),
			slog.Int("attempts", attempts),
			slog.Duration("backoff", wait),
			slog.Bool("rate_limited", netutil.StatusCode(err) == 429),
		)
		if !d.sleep(ctx, wait) {
			d.failed.Add(1)
			return ctx.Err()
		}
	}
}

// fits reports whether waiting wait still leaves time for another attempt.
func (d *Dispatcher) fits(ctx context.Context, wait time.Duration) bool {
	deadline, ok := ctx.Deadline()
	return !ok || time.Until(deadline) > wait
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// redact keeps bot tokens embedded in request URLs out of the logs.
func redact(err error) string {
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
