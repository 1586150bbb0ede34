package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/catchbot/core/state"
)

const user = int64(42)

var reviewTok = Token{Flow: "pet", Step: ReviewStep}

func TestStartRendersEntryWithCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	p := h.render.last()
	if p.Text != "name?" {
		t.Fatalf("prompt = %q", p.Text)
	}
	c, ok := findControl(p, ActionCancel, "")
	if !ok || c.Step != "name" {
		t.Fatalf("cancel control missing or unbound: %+v", p.Controls)
	}
	if _, ok := findControl(p, ActionSkip, ""); ok {
		t.Fatal("name step must not be skippable")
	}
	sess := h.session(t, user)
	if sess == nil || sess.Step != "name" || len(sess.Scratch) != 0 {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestStartUnknownFlow(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Start(context.Background(), user, "nope"); err == nil {
		t.Fatal("expected error for unknown flow")
	}
}

func TestStartReplacesPreviousSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.engine.Submit(ctx, user, Input{Kind: InputText, Text: "Rex"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	sess := h.session(t, user)
	if sess.Step != "name" {
		t.Fatalf("step = %s, want name", sess.Step)
	}
	if _, ok := sess.Scratch.Get("name"); ok {
		t.Fatal("scratch leaked into the new flow")
	}
}

func TestStartWithSeed(t *testing.T) {
	h := newHarness(t)
	seed := state.Scratch{"owner": state.Text("7")}
	if err := h.engine.StartWith(context.Background(), user, "pet", seed); err != nil {
		t.Fatalf("start: %v", err)
	}
	if v, ok := h.session(t, user).Scratch.Get("owner"); !ok || v.Text != "7" {
		t.Fatalf("seed missing: %+v", v)
	}
}

func TestSubmitWithoutSession(t *testing.T) {
	h := newHarness(t)
	err := h.engine.Submit(context.Background(), user, Input{Kind: InputText, Text: "x"})
	if !errors.Is(err, ErrNoActiveFlow) {
		t.Fatalf("err = %v, want ErrNoActiveFlow", err)
	}
}

func TestSubmitRejectsWrongKindWithoutTransition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	before := h.render.count()

	err := h.engine.Submit(ctx, user, Input{Kind: InputPhoto, FileID: "f1"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	sess := h.session(t, user)
	if sess.Step != "name" || len(sess.Scratch) != 0 {
		t.Fatalf("session changed: %+v", sess)
	}
	if h.render.count() != before {
		t.Fatal("wrong input kind must not re-render")
	}
}

func TestSubmitInvalidContentRepromptsSameStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}

	err := h.engine.Submit(ctx, user, Input{Kind: InputText, Text: "   "})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if h.render.last().Text != "name?" {
		t.Fatalf("expected re-prompt, got %q", h.render.last().Text)
	}
	sess := h.session(t, user)
	if sess.Step != "name" || len(sess.Scratch) != 0 {
		t.Fatalf("session changed: %+v", sess)
	}
}

func TestSkipAdvancesWithoutField(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.engine.Submit(ctx, user, Input{Kind: InputText, Text: "Rex"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	photoPrompt := h.session(t, user).Prompts
	if _, ok := findControl(h.render.last(), ActionSkip, ""); !ok {
		t.Fatal("photo step should offer skip")
	}

	if err := h.engine.Skip(ctx, user, Token{Flow: "pet", Step: "photo"}); err != nil {
		t.Fatalf("skip: %v", err)
	}
	sess := h.session(t, user)
	if sess.Step != "kind" {
		t.Fatalf("step = %s, want kind", sess.Step)
	}
	if _, ok := sess.Scratch.Get("photo"); ok {
		t.Fatal("skipped field must stay absent")
	}
	for _, ref := range photoPrompt {
		if !h.render.deleted[ref.MessageID] {
			t.Fatalf("skipped prompt %d not deleted", ref.MessageID)
		}
	}
}

func TestSkipOnNonSkippableStepIsStale(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.engine.Skip(ctx, user, Token{Flow: "pet", Step: "name"}); !errors.Is(err, ErrStaleAction) {
		t.Fatalf("err = %v, want ErrStaleAction", err)
	}
}

func TestStaleChoiceTokenIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// a button rendered for "kind" pressed while the user is still at "name"
	err := h.engine.Submit(ctx, user, Input{Kind: InputChoice, Text: "DOG", Flow: "pet", Step: "kind"})
	if !errors.Is(err, ErrStaleAction) {
		t.Fatalf("err = %v, want ErrStaleAction", err)
	}
	if h.session(t, user).Step != "name" {
		t.Fatal("stale action changed the step")
	}
}

func TestChoiceMarksPressedButton(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.engine.Submit(ctx, user, Input{Kind: InputText, Text: "Rex"}); err != nil {
		t.Fatalf("name: %v", err)
	}
	if err := h.engine.Skip(ctx, user, Token{Flow: "pet", Step: "photo"}); err != nil {
		t.Fatalf("skip: %v", err)
	}
	kindRefs := h.session(t, user).Prompts
	if len(kindRefs) != 1 {
		t.Fatalf("kind prompt refs = %v", kindRefs)
	}
	if err := h.engine.Submit(ctx, user, Input{Kind: InputChoice, Text: "CAT", Flow: "pet", Step: "kind"}); err != nil {
		t.Fatalf("kind: %v", err)
	}
	edited := h.render.edits[kindRefs[0].MessageID]
	var marked bool
	for _, row := range edited {
		for _, c := range row {
			if c.Value == "CAT" && strings.HasPrefix(c.Label, "✅ ") {
				marked = true
			}
			if c.Value == "DOG" && strings.HasPrefix(c.Label, "✅ ") {
				t.Fatal("unpressed option marked")
			}
		}
	}
	if !marked {
		t.Fatalf("pressed option not marked: %+v", edited)
	}
}

func walkToReview(t *testing.T, h *harness) {
	t.Helper()
	ctx := context.Background()
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.engine.Submit(ctx, user, Input{Kind: InputText, Text: "Rex"}); err != nil {
		t.Fatalf("name: %v", err)
	}
	if err := h.engine.Skip(ctx, user, Token{Flow: "pet", Step: "photo"}); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if err := h.engine.Submit(ctx, user, Input{Kind: InputChoice, Text: "DOG", Flow: "pet", Step: "kind"}); err != nil {
		t.Fatalf("kind: %v", err)
	}
}

func TestReviewSummaryOmitsSkippedFields(t *testing.T) {
	h := newHarness(t)
	walkToReview(t, h)

	p := h.render.last()
	if p.Text != "Name: Rex\nKind: DOG" {
		t.Fatalf("summary = %q", p.Text)
	}
	if _, ok := findControl(p, ActionConfirm, ""); !ok {
		t.Fatal("review lacks confirm")
	}
	if _, ok := findControl(p, ActionCancel, ""); !ok {
		t.Fatal("review lacks cancel")
	}
	if h.session(t, user).Step != ReviewStep {
		t.Fatal("session not at review")
	}
}

func TestReviewAcceptsNoMessages(t *testing.T) {
	h := newHarness(t)
	walkToReview(t, h)
	before := h.render.count()
	err := h.engine.Submit(context.Background(), user, Input{Kind: InputText, Text: "more"})
	if !errors.Is(err, ErrAwaitingConfirm) || !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrAwaitingConfirm", err)
	}
	if h.render.count() != before {
		t.Fatal("submit at review rendered on its own")
	}
	if h.session(t, user).Step != ReviewStep {
		t.Fatal("submit at review moved the session")
	}
}

func TestConfirmConsumesSession(t *testing.T) {
	h := newHarness(t)
	walkToReview(t, h)
	ctx := context.Background()

	if err := h.engine.Confirm(ctx, user, reviewTok); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if h.repo.count() != 1 {
		t.Fatalf("saved %d records", h.repo.count())
	}
	if h.session(t, user) != nil {
		t.Fatal("session survived commit")
	}
	if p := h.render.last(); p.Text != "saved 1" || !p.Menu {
		t.Fatalf("done prompt = %+v", p)
	}

	if err := h.engine.Confirm(ctx, user, reviewTok); !errors.Is(err, ErrNoActiveFlow) {
		t.Fatalf("second confirm err = %v, want ErrNoActiveFlow", err)
	}
	if h.repo.count() != 1 {
		t.Fatal("second confirm created a duplicate")
	}
}

func TestConfirmBeforeReviewIsStale(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Start(context.Background(), user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.engine.Confirm(context.Background(), user, reviewTok); !errors.Is(err, ErrStaleAction) {
		t.Fatalf("err = %v, want ErrStaleAction", err)
	}
}

func TestConfirmPersistenceFailureKeepsSession(t *testing.T) {
	h := newHarness(t)
	walkToReview(t, h)
	ctx := context.Background()

	h.repo.err = errors.New("db down")
	err := h.engine.Confirm(ctx, user, reviewTok)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if h.render.last().Text != DefaultTexts().SaveFailed {
		t.Fatalf("failure not reported: %q", h.render.last().Text)
	}
	sess := h.session(t, user)
	if sess == nil || sess.Step != ReviewStep {
		t.Fatalf("session lost after failure: %+v", sess)
	}
	if v, _ := sess.Scratch.Get("name"); v.Text != "Rex" {
		t.Fatal("scratch lost after failure")
	}

	h.repo.err = nil
	if err := h.engine.Confirm(ctx, user, reviewTok); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if h.repo.count() != 1 {
		t.Fatalf("saved %d records", h.repo.count())
	}
}

func TestIncompleteRecordDiscardsFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	// the kind step is entered directly, so name is never collected
	f := petFlow(h.repo)
	f.Name = "pet-short"
	f.Entry = "kind"
	f.Steps = f.Steps[2:]
	if err := h.engine.Register(f); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := h.engine.Start(ctx, user, "pet-short"); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := h.engine.Submit(ctx, user, Input{Kind: InputChoice, Text: "DOG", Flow: "pet-short", Step: "kind"})
	if !errors.Is(err, ErrIncompleteRecord) {
		t.Fatalf("err = %v, want ErrIncompleteRecord", err)
	}
	if h.session(t, user) != nil {
		t.Fatal("incomplete flow must be discarded")
	}
	if h.render.last().Text != DefaultTexts().Discarded {
		t.Fatalf("last prompt = %q", h.render.last().Text)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.engine.Cancel(ctx, user); err != nil {
		t.Fatalf("cancel without session: %v", err)
	}
	if h.render.count() != 0 {
		t.Fatal("cancel without session must have no side effects")
	}

	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	prompt := h.session(t, user).Prompts
	if err := h.engine.Cancel(ctx, user); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if h.session(t, user) != nil {
		t.Fatal("session survived cancel")
	}
	if !h.render.deleted[prompt[0].MessageID] {
		t.Fatal("prompt not deleted on cancel")
	}
	sent := h.render.count()
	if err := h.engine.Cancel(ctx, user); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if h.render.count() != sent {
		t.Fatal("second cancel had side effects")
	}
}

func TestSessionSurvivesEngineRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.engine.Submit(ctx, user, Input{Kind: InputText, Text: "Rex"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	restarted := New(Options{Store: h.store, Renderer: h.render, Clock: h.clock})
	if err := restarted.Register(petFlow(h.repo)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := restarted.Submit(ctx, user, Input{Kind: InputPhoto, FileID: "f1"}); err != nil {
		t.Fatalf("submit after restart: %v", err)
	}
	sess := h.session(t, user)
	if sess.Step != "kind" {
		t.Fatalf("step = %s, want kind", sess.Step)
	}
	if v, _ := sess.Scratch.Get("name"); v.Text != "Rex" {
		t.Fatal("scratch lost across restart")
	}
}

func TestExpiredSessionIsDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(2 * time.Hour)

	err := h.engine.Submit(ctx, user, Input{Kind: InputText, Text: "Rex"})
	if !errors.Is(err, ErrNoActiveFlow) {
		t.Fatalf("err = %v, want ErrNoActiveFlow", err)
	}
	if h.session(t, user) != nil {
		t.Fatal("expired session still stored")
	}
}

func TestRenderFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.render.fail = true
	if err := h.engine.Submit(ctx, user, Input{Kind: InputText, Text: "Rex"}); err == nil {
		t.Fatal("expected render error")
	}
	sess := h.session(t, user)
	if sess.Step != "name" || len(sess.Scratch) != 0 {
		t.Fatalf("session changed despite render failure: %+v", sess)
	}
}

func TestPrepareReviewRerenders(t *testing.T) {
	h := newHarness(t)
	walkToReview(t, h)
	before := h.render.count()
	if err := h.engine.PrepareReview(context.Background(), user); err != nil {
		t.Fatalf("prepare review: %v", err)
	}
	if h.render.count() != before+1 {
		t.Fatal("review not rendered again")
	}
}

func TestActiveAndCurrent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if h.engine.Active(ctx, user) {
		t.Fatal("no flow should be active")
	}
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !h.engine.Active(ctx, user) {
		t.Fatal("flow should be active")
	}
	cur, err := h.engine.Current(ctx, user)
	if err != nil || cur == nil || cur.Flow != "pet" {
		t.Fatalf("current = %+v, %v", cur, err)
	}
}

func TestConfirmFromAnotherFlowIsStale(t *testing.T) {
	h := newHarness(t)
	walkToReview(t, h)
	ctx := context.Background()

	err := h.engine.Confirm(ctx, user, Token{Flow: "pet-short", Step: ReviewStep})
	if !errors.Is(err, ErrStaleAction) {
		t.Fatalf("err = %v, want ErrStaleAction", err)
	}
	if h.repo.count() != 0 {
		t.Fatal("stale confirm persisted a record")
	}
	if sess := h.session(t, user); sess == nil || sess.Step != ReviewStep {
		t.Fatalf("stale confirm changed the session: %+v", sess)
	}
}

func TestSkipFromAnotherFlowIsStale(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.engine.Submit(ctx, user, Input{Kind: InputText, Text: "Rex"}); err != nil {
		t.Fatalf("name: %v", err)
	}
	if err := h.engine.Skip(ctx, user, Token{Flow: "other", Step: "photo"}); !errors.Is(err, ErrStaleAction) {
		t.Fatalf("err = %v, want ErrStaleAction", err)
	}
	if h.session(t, user).Step != "photo" {
		t.Fatal("stale skip moved the session")
	}
}

func TestControlsCarryFlowAndStep(t *testing.T) {
	h := newHarness(t)
	walkToReview(t, h)
	c, ok := findControl(h.render.last(), ActionConfirm, "")
	if !ok || c.Token() != reviewTok {
		t.Fatalf("confirm control = %+v", c)
	}
}

func TestConcurrentConfirmPersistsOnce(t *testing.T) {
	h := newHarness(t)
	walkToReview(t, h)
	ctx := context.Background()

	const n = 32
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			errs[i] = h.engine.Confirm(ctx, user, reviewTok)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrNoActiveFlow), errors.Is(err, ErrStaleAction):
		default:
			t.Fatalf("unexpected confirm error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d confirms succeeded, want 1", ok)
	}
	if h.repo.count() != 1 {
		t.Fatalf("saved %d records, want 1", h.repo.count())
	}
	if h.session(t, user) != nil {
		t.Fatal("session survived commit")
	}
}

func TestConcurrentSubmitTransitionsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Start(ctx, user, "pet"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.engine.Submit(ctx, user, Input{Kind: InputText, Text: "Rex"}); err != nil {
		t.Fatalf("name: %v", err)
	}
	if err := h.engine.Skip(ctx, user, Token{Flow: "pet", Step: "photo"}); err != nil {
		t.Fatalf("skip: %v", err)
	}
	before := h.render.count()

	const n = 32
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			errs[i] = h.engine.Submit(ctx, user, Input{Kind: InputChoice, Text: "DOG", Flow: "pet", Step: "kind"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrStaleAction):
		default:
			t.Fatalf("unexpected submit error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d submits transitioned, want 1", ok)
	}
	// one review prompt for the single transition
	if h.render.count() != before+1 {
		t.Fatalf("rendered %d prompts, want 1", h.render.count()-before)
	}
	if h.session(t, user).Step != ReviewStep {
		t.Fatal("session not at review")
	}
}
