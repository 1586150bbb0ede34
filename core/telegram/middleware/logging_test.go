package middleware

import (
	"context"
	"testing"

	"github.com/m3rciful/catchbot/core/logger"
	"github.com/m3rciful/catchbot/core/state"
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func TestRouteLoggerKeepsChainContext(t *testing.T) {
	store := state.NewMemoryStore()
	if err := store.Save(context.Background(), &state.Session{UserID: 7, Flow: "animal.intake", Step: "breed"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	route := LoggerMiddleware(func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		tghelpers.CountReply(ctx, true)
		if flow, step := logger.FlowFrom(ctx); flow != "animal.intake" || step != "breed" {
			t.Fatalf("route context flow = %q/%q", flow, step)
		}
		return nil
	})
	chain := LoggerMiddleware(ReplyTallyMiddleware(SessionPeek(store)(route)))

	c := newContext(t, 7)
	if err := chain(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if n, kb := tghelpers.Tally(tghelpers.BuildContext(c)); n != 1 || !kb {
		t.Fatalf("tally = %d/%v", n, kb)
	}
}
