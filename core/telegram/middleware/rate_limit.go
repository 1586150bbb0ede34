package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/catchbot/core/clock"
	"github.com/m3rciful/catchbot/core/logger"
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// RateLimitMiddleware drops updates arriving from a user sooner than
// Interval after their previous accepted update.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	var (
		mu       sync.Mutex
		lastSeen = make(map[int64]time.Time)
		pruned   time.Time
	)
	allow := func(userID int64) bool {
		now := clk.Now()
		mu.Lock()
		defer mu.Unlock()
		if now.Sub(pruned) >= time.Minute {
			for id, at := range lastSeen {
				if now.Sub(at) >= opts.Interval {
					delete(lastSeen, id)
				}
			}
			pruned = now
		}
		if last, ok := lastSeen[userID]; ok && now.Sub(last) < opts.Interval {
			return false
		}
		lastSeen[userID] = now
		return true
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if allow(user.ID) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "skip"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}
