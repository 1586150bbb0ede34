package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m3rciful/catchbot/core/flow"
	"github.com/m3rciful/catchbot/core/state"
	"github.com/m3rciful/catchbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

const noteUser = int64(7)

type promptLog struct {
	mu    sync.Mutex
	texts []string
}

func (l *promptLog) Render(_ context.Context, userID int64, p flow.Prompt) ([]state.MessageRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.texts = append(l.texts, p.Text)
	return []state.MessageRef{{ChatID: userID, MessageID: len(l.texts)}}, nil
}

func (l *promptLog) EditControls(context.Context, state.MessageRef, [][]flow.Control) error {
	return nil
}

func (l *promptLog) Delete(context.Context, state.MessageRef) error { return nil }

func (l *promptLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.texts)
}

// noteBot runs a one-question flow that is already at its review.
func noteBot(t *testing.T) (*Bot, *promptLog) {
	t.Helper()
	log := &promptLog{}
	engine := flow.New(flow.Options{Store: state.NewMemoryStore(), Renderer: log})
	err := engine.Register(&flow.Flow{
		Name: "note",
		Steps: []flow.Step{{
			Name:     "text",
			Accept:   flow.InputText,
			Prompt:   func(flow.View) flow.Prompt { return flow.Prompt{Text: "note?"} },
			Validate: flow.NonEmptyText(100),
			Next:     flow.ReviewStep,
		}},
		Review: flow.Review[string]{
			Build: func(_ int64, s state.Scratch) (string, error) {
				v, ok := s.Get("text")
				if !ok {
					return "", errors.New("text is required")
				}
				return v.Text, nil
			},
			Render:  func(s string) flow.Prompt { return flow.Prompt{Text: "Note: " + s} },
			Persist: func(context.Context, string) (string, error) { return "1", nil },
			Done:    func(string, string) flow.Prompt { return flow.Prompt{Text: "saved"} },
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := context.Background()
	if err := engine.Start(ctx, noteUser, "note"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := engine.Submit(ctx, noteUser, flow.Input{Kind: flow.InputText, Text: "limps"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	return &Bot{engine: engine}, log
}

func offlineContext(t *testing.T, u tele.Update) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}
	return b.NewContext(u)
}

func TestMessageAtReviewShowsSummaryAgain(t *testing.T) {
	b, log := noteBot(t)
	before := log.count()
	c := offlineContext(t, tele.Update{ID: 1, Message: &tele.Message{
		Sender: &tele.User{ID: noteUser},
		Chat:   &tele.Chat{ID: noteUser},
		Text:   "one more thing",
	}})
	if err := (conversation{b: b}).Handle(c); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if log.count() != before+1 || log.texts[len(log.texts)-1] != "Note: limps" {
		t.Fatalf("prompts = %v", log.texts)
	}
	sess, err := b.engine.Current(context.Background(), noteUser)
	if err != nil || sess == nil || sess.Step != flow.ReviewStep {
		t.Fatalf("session = %+v, %v", sess, err)
	}
}

func TestCancelOfEarlierFlowKeepsSession(t *testing.T) {
	b, _ := noteBot(t)
	c := offlineContext(t, tele.Update{ID: 2, Callback: &tele.Callback{
		ID:     "cb",
		Sender: &tele.User{ID: noteUser},
		Data:   "\f" + flow.ActionCancel + "|animal.intake|animal_type|",
	}})
	if err := b.onFlowAction(c); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !b.engine.Active(context.Background(), noteUser) {
		t.Fatal("stale cancel ended the current conversation")
	}
}

func TestPersistenceFailureLeavesCallbackToRouter(t *testing.T) {
	b, _ := noteBot(t)
	c := offlineContext(t, tele.Update{ID: 3, Callback: &tele.Callback{
		ID:     "cb",
		Sender: &tele.User{ID: noteUser},
		Data:   "\f" + flow.ActionConfirm + "|note|" + flow.ReviewStep + "|",
	}})
	err := b.report(c, &flow.PersistenceError{Err: errors.New("db down")})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if callbacks.Answered(c) {
		t.Fatal("persistence failure answered with a second notice")
	}
}
