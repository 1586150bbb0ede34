package animals

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/catchbot/core/clock"
	"github.com/m3rciful/catchbot/core/flow"
	"github.com/m3rciful/catchbot/core/state"
	"github.com/m3rciful/catchbot/internal/models"
)

const user int64 = 7

type recorder struct {
	mu      sync.Mutex
	prompts []flow.Prompt
}

func (r *recorder) Render(_ context.Context, userID int64, p flow.Prompt) ([]state.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, p)
	return []state.MessageRef{{ChatID: userID, MessageID: len(r.prompts)}}, nil
}

func (r *recorder) EditControls(context.Context, state.MessageRef, [][]flow.Control) error {
	return nil
}

func (r *recorder) Delete(context.Context, state.MessageRef) error { return nil }

func (r *recorder) last() flow.Prompt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prompts[len(r.prompts)-1]
}

type fakeStore struct {
	created []models.AnimalCreate
	patched []models.AnimalPatch
	err     error
}

func (f *fakeStore) Create(_ context.Context, in models.AnimalCreate) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.created = append(f.created, in)
	return int64(len(f.created)), nil
}

func (f *fakeStore) Patch(_ context.Context, p models.AnimalPatch) error {
	if f.err != nil {
		return f.err
	}
	f.patched = append(f.patched, p)
	return nil
}

type harness struct {
	engine   *flow.Engine
	render   *recorder
	store    *fakeStore
	sessions state.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{render: &recorder{}, store: &fakeStore{}, sessions: state.NewMemoryStore()}
	h.engine = flow.New(flow.Options{
		Store:    h.sessions,
		Renderer: h.render,
		Clock:    clock.Fake(time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)),
	})
	if err := h.engine.Register(NewIntake(h.store, time.UTC)); err != nil {
		t.Fatalf("register intake: %v", err)
	}
	if err := h.engine.Register(NewOutcome(h.store, time.UTC)); err != nil {
		t.Fatalf("register outcome: %v", err)
	}
	return h
}

func (h *harness) token(t *testing.T) flow.Token {
	t.Helper()
	sess, err := h.engine.Current(context.Background(), user)
	if err != nil || sess == nil {
		t.Fatalf("no session: %v", err)
	}
	return flow.Token{Flow: sess.Flow, Step: sess.Step}
}

func (h *harness) step(t *testing.T) string {
	t.Helper()
	return h.token(t).Step
}

func (h *harness) text(t *testing.T, s string) {
	t.Helper()
	if err := h.engine.Submit(context.Background(), user, flow.Input{Kind: flow.InputText, Text: s}); err != nil {
		t.Fatalf("submit %q at %s: %v", s, h.step(t), err)
	}
}

func (h *harness) choose(t *testing.T, value string) {
	t.Helper()
	tok := h.token(t)
	in := flow.Input{Kind: flow.InputChoice, Text: value, Flow: tok.Flow, Step: tok.Step}
	if err := h.engine.Submit(context.Background(), user, in); err != nil {
		t.Fatalf("choose %q at %s: %v", value, tok.Step, err)
	}
}

func (h *harness) skip(t *testing.T) {
	t.Helper()
	if err := h.engine.Skip(context.Background(), user, h.token(t)); err != nil {
		t.Fatalf("skip: %v", err)
	}
}

// fillIntake answers the required questions and skips the optional ones.
func fillIntake(t *testing.T, h *harness) {
	t.Helper()
	if err := h.engine.Start(context.Background(), user, IntakeFlow); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.skip(t) // catch photo
	h.text(t, "Park Ave")
	h.text(t, "2024-05-01 10:00")
	h.choose(t, string(models.AnimalDog))
	h.text(t, "Labrador")
	h.text(t, "чёрный")
	h.choose(t, string(models.SexMale))
	h.skip(t) // features
	h.skip(t) // transfer photo
	h.skip(t) // transfer date
	h.skip(t) // comment
}

func TestIntakeSummaryShowsOnlyCollectedFields(t *testing.T) {
	h := newHarness(t)
	fillIntake(t, h)

	if got := h.step(t); got != flow.ReviewStep {
		t.Fatalf("step = %s, want review", got)
	}
	p := h.render.last()
	for _, want := range []string{
		"<b>Место отлова</b>: <code>Park Ave</code>",
		"<b>Дата отлова</b>: <code>2024-05-01 10:00</code>",
		"<b>Вид животного</b>: <code>Собака</code>",
		"<b>Порода</b>: <code>Labrador</code>",
	} {
		if !strings.Contains(p.Text, want) {
			t.Fatalf("summary lacks %q:\n%s", want, p.Text)
		}
	}
	if strings.Contains(p.Text, "Фото") || len(p.Photos) != 0 {
		t.Fatalf("skipped photo shows up: %+v", p)
	}
	if strings.Contains(p.Text, models.TitleFeatures) || strings.Contains(p.Text, models.TitleComment) {
		t.Fatalf("skipped fields show up:\n%s", p.Text)
	}
}

func TestIntakeConfirmStoresRecord(t *testing.T) {
	h := newHarness(t)
	fillIntake(t, h)
	if err := h.engine.Confirm(context.Background(), user, h.token(t)); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(h.store.created) != 1 {
		t.Fatalf("created = %d", len(h.store.created))
	}
	rec := h.store.created[0]
	if rec.CreatedBy != user || rec.Type != models.AnimalDog || rec.Sex != models.SexMale {
		t.Fatalf("record = %+v", rec)
	}
	if !rec.CatchDate.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("catch date = %v", rec.CatchDate)
	}
	if rec.CatchPhoto != nil || rec.Features != nil {
		t.Fatalf("skipped fields stored: %+v", rec)
	}
	if p := h.render.last(); !strings.Contains(p.Text, "Собака успешно добавлено") {
		t.Fatalf("done = %q", p.Text)
	}
}

func TestIntakeRetriesAfterStoreFailure(t *testing.T) {
	h := newHarness(t)
	fillIntake(t, h)
	h.store.err = errors.New("db down")
	if err := h.engine.Confirm(context.Background(), user, h.token(t)); !errors.Is(err, flow.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	h.store.err = nil
	if err := h.engine.Confirm(context.Background(), user, h.token(t)); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(h.store.created) != 1 {
		t.Fatalf("created = %d", len(h.store.created))
	}
}

func TestCatchLocationStoredAsCoordinates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.Start(ctx, user, IntakeFlow); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.skip(t)
	if err := h.engine.Submit(ctx, user, flow.Input{Kind: flow.InputLocation, Lat: 55.75, Lng: 37.62}); err != nil {
		t.Fatalf("location: %v", err)
	}
	sess, _ := h.engine.Current(ctx, user)
	if got := sess.Scratch[fieldCatchPlace].String(); got != "55.75, 37.62" {
		t.Fatalf("place = %q", got)
	}
	acked := false
	for _, p := range h.render.prompts {
		if p.Text == "📍 Место сохранено" && p.Menu {
			acked = true
		}
	}
	if !acked {
		t.Fatal("place was not acknowledged")
	}
}

func TestDateValidator(t *testing.T) {
	now := time.Date(2024, 5, 2, 12, 0, 30, 0, time.UTC)
	catch := state.Scratch{fieldCatchDate: state.Timestamp(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))}
	v := dateValidator(time.UTC, fieldCatchDate)

	cases := []struct {
		name string
		in   flow.Input
		ok   bool
	}{
		{"typed", flow.Input{Kind: flow.InputText, Text: "2024-05-02 09:00"}, true},
		{"dotted", flow.Input{Kind: flow.InputText, Text: "02.05.2024"}, true},
		{"now button", flow.Input{Kind: flow.InputChoice, Text: choiceNow}, true},
		{"garbage", flow.Input{Kind: flow.InputText, Text: "вчера"}, false},
		{"future", flow.Input{Kind: flow.InputText, Text: "2024-05-03 09:00"}, false},
		{"before catch", flow.Input{Kind: flow.InputText, Text: "2024-04-30 09:00"}, false},
		{"foreign choice", flow.Input{Kind: flow.InputChoice, Text: "later"}, false},
	}
	for _, tc := range cases {
		if _, ok := v(tc.in, flow.View{Scratch: catch, Now: now}); ok != tc.ok {
			t.Errorf("%s: ok = %v, want %v", tc.name, ok, tc.ok)
		}
	}

	val, _ := v(flow.Input{Kind: flow.InputChoice, Text: choiceNow}, flow.View{Scratch: catch, Now: now})
	if !val.Time.Equal(time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("now = %v", val.Time)
	}
}

func TestDatePromptOffersCurrentTime(t *testing.T) {
	msk := time.FixedZone("MSK", 3*3600)
	s := dateStep("d", "when?", msk, "", flow.ReviewStep)
	p := s.Prompt(flow.View{Now: time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)})
	if got := p.Controls[0][0].Label; got != "📆 Вставить 2024-05-02 15:00" {
		t.Fatalf("label = %q", got)
	}
}

func TestOutcomePatchesSeededRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.StartWith(ctx, user, OutcomeFlow, OutcomeSeed(12)); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.skip(t) // chip
	h.choose(t, "yes")
	h.skip(t) // vaccinated
	h.skip(t) // medical photo
	h.text(t, "2024-05-02 11:00")
	if got := h.step(t); got != fieldReturnPlace {
		t.Fatalf("step after return date = %s", got)
	}
	h.text(t, "Park Ave")
	if got := h.step(t); got != fieldOutcomeNotice {
		t.Fatalf("released animal asked about %s", got)
	}
	h.skip(t)

	if !strings.Contains(h.render.last().Text, "№12") {
		t.Fatalf("review = %q", h.render.last().Text)
	}
	if err := h.engine.Confirm(ctx, user, h.token(t)); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	p := h.store.patched[0]
	if p.ID != 12 || p.Sterilized == nil || !*p.Sterilized || p.Vaccinated != nil || p.ReturnPlace == nil {
		t.Fatalf("patch = %+v", p)
	}
}

func TestOutcomeWithNothingEnteredIsDiscarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.StartWith(ctx, user, OutcomeFlow, OutcomeSeed(3)); err != nil {
		t.Fatalf("start: %v", err)
	}
	var err error
	for i := 0; i < 10; i++ {
		sess, _ := h.engine.Current(ctx, user)
		if sess == nil {
			break
		}
		err = h.engine.Skip(ctx, user, flow.Token{Flow: sess.Flow, Step: sess.Step})
	}
	if !errors.Is(err, flow.ErrIncompleteRecord) {
		t.Fatalf("err = %v, want ErrIncompleteRecord", err)
	}
	if h.engine.Active(ctx, user) {
		t.Fatal("empty outcome still active")
	}
}
