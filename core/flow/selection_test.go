package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/m3rciful/catchbot/core/state"
)

var selTok = Token{Flow: "users.delete", Step: SelectStep}

type fakeRoster struct {
	mu      sync.Mutex
	present map[string]bool
	fail    bool
	failIDs map[string]bool
}

func (r *fakeRoster) remove(_ context.Context, it state.Item) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail || r.failIDs[it.ID] {
		return false, errors.New("db down")
	}
	if !r.present[it.ID] {
		return false, nil
	}
	delete(r.present, it.ID)
	return true, nil
}

func newSelectionHarness(t *testing.T) (*harness, *fakeRoster) {
	t.Helper()
	h := newHarness(t)
	roster := &fakeRoster{present: map[string]bool{"1": true, "2": true, "3": true}}
	err := h.engine.RegisterSelection(&Selection{
		Name:   "users.delete",
		Title:  func([]state.Item) string { return "pick users" },
		Marker: "🗑 ",
		Apply:  roster.remove,
		Done: func(applied []state.Item) Prompt {
			return text("removed " + itemIDs(applied))
		},
	})
	if err != nil {
		t.Fatalf("register selection: %v", err)
	}
	items := []state.Item{{ID: "1", Label: "Ann"}, {ID: "2", Label: "Bob"}, {ID: "3", Label: "Cid"}}
	if err := h.engine.BeginSelection(context.Background(), user, "users.delete", items); err != nil {
		t.Fatalf("begin: %v", err)
	}
	return h, roster
}

func itemIDs(items []state.Item) string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return strings.Join(ids, ",")
}

func selected(t *testing.T, h *harness) map[string]bool {
	t.Helper()
	out := map[string]bool{}
	for _, it := range h.session(t, user).Items {
		out[it.ID] = it.Selected
	}
	return out
}

func TestBeginSelectionRendersItems(t *testing.T) {
	h, _ := newSelectionHarness(t)
	p := h.render.last()
	if p.Text != "pick users" {
		t.Fatalf("title = %q", p.Text)
	}
	for _, id := range []string{"1", "2", "3"} {
		if _, ok := findControl(p, ActionToggle, id); !ok {
			t.Fatalf("no toggle for %s", id)
		}
	}
	if _, ok := findControl(p, ActionSelectConfirm, ""); !ok {
		t.Fatal("no confirm control")
	}
}

func TestToggleIsIndependentPerItem(t *testing.T) {
	h, _ := newSelectionHarness(t)
	ctx := context.Background()

	if err := h.engine.Toggle(ctx, user, selTok, "2"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	got := selected(t, h)
	if !got["2"] || got["1"] || got["3"] {
		t.Fatalf("selection = %v", got)
	}
	if err := h.engine.Toggle(ctx, user, selTok, "3"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	got = selected(t, h)
	if !got["2"] || !got["3"] || got["1"] {
		t.Fatalf("selection = %v", got)
	}

	ref := h.session(t, user).Prompts[0]
	var marked int
	for _, row := range h.render.edits[ref.MessageID] {
		for _, c := range row {
			if strings.HasPrefix(c.Label, "🗑 ") {
				marked++
			}
		}
	}
	if marked != 2 {
		t.Fatalf("marked buttons = %d, want 2", marked)
	}
}

func TestToggleUnknownItemIsStale(t *testing.T) {
	h, _ := newSelectionHarness(t)
	if err := h.engine.Toggle(context.Background(), user, selTok, "99"); !errors.Is(err, ErrStaleAction) {
		t.Fatalf("err = %v, want ErrStaleAction", err)
	}
	for id, on := range selected(t, h) {
		if on {
			t.Fatalf("item %s selected by a stale toggle", id)
		}
	}
}

func TestConfirmWithNothingSelected(t *testing.T) {
	h, roster := newSelectionHarness(t)
	ctx := context.Background()

	if err := h.engine.Toggle(ctx, user, selTok, "2"); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if err := h.engine.Toggle(ctx, user, selTok, "2"); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	_, err := h.engine.ConfirmSelection(ctx, user, selTok)
	if !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("err = %v, want ErrNothingSelected", err)
	}
	if len(roster.present) != 3 {
		t.Fatalf("roster changed: %v", roster.present)
	}
	if sess := h.session(t, user); sess == nil || len(sess.Items) != 3 {
		t.Fatal("selection state lost")
	}
	for id, on := range selected(t, h) {
		if on {
			t.Fatalf("item %s flipped", id)
		}
	}
}

func TestConfirmSelectionAppliesSelected(t *testing.T) {
	h, roster := newSelectionHarness(t)
	ctx := context.Background()

	if err := h.engine.Toggle(ctx, user, selTok, "1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := h.engine.Toggle(ctx, user, selTok, "3"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	applied, err := h.engine.ConfirmSelection(ctx, user, selTok)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if itemIDs(applied) != "1,3" {
		t.Fatalf("applied = %s", itemIDs(applied))
	}
	if !roster.present["2"] || len(roster.present) != 1 {
		t.Fatalf("roster = %v", roster.present)
	}
	if h.session(t, user) != nil {
		t.Fatal("selection session survived confirm")
	}
	if p := h.render.last(); p.Text != "removed 1,3" || !p.Menu {
		t.Fatalf("done prompt = %+v", p)
	}
}

func TestConfirmSelectionKeepsSessionWhenNothingApplied(t *testing.T) {
	h, roster := newSelectionHarness(t)
	ctx := context.Background()
	if err := h.engine.Toggle(ctx, user, selTok, "1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	roster.fail = true
	if _, err := h.engine.ConfirmSelection(ctx, user, selTok); !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if !selected(t, h)["1"] {
		t.Fatal("selection lost after failed apply")
	}
}

func TestConfirmSelectionPartialFailure(t *testing.T) {
	h, roster := newSelectionHarness(t)
	ctx := context.Background()
	for _, id := range []string{"1", "2"} {
		if err := h.engine.Toggle(ctx, user, selTok, id); err != nil {
			t.Fatalf("toggle %s: %v", id, err)
		}
	}
	roster.failIDs = map[string]bool{"2": true}

	applied, err := h.engine.ConfirmSelection(ctx, user, selTok)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if itemIDs(applied) != "1" {
		t.Fatalf("applied = %s", itemIDs(applied))
	}
	got := selected(t, h)
	if _, ok := got["1"]; ok {
		t.Fatalf("applied item still listed: %v", got)
	}
	if !got["2"] || got["3"] || len(got) != 2 {
		t.Fatalf("selection after partial failure = %v", got)
	}
	if p := h.render.last(); p.Text != DefaultTexts().SaveFailed {
		t.Fatalf("last prompt = %q", p.Text)
	}

	// a second confirm retries only the failed item
	roster.failIDs = nil
	applied, err = h.engine.ConfirmSelection(ctx, user, selTok)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if itemIDs(applied) != "2" || len(roster.present) != 1 || !roster.present["3"] {
		t.Fatalf("applied = %s, roster = %v", itemIDs(applied), roster.present)
	}
	if h.session(t, user) != nil {
		t.Fatal("selection session survived a clean confirm")
	}
}

func TestSelectionTokenOfAnotherFlowIsStale(t *testing.T) {
	h, roster := newSelectionHarness(t)
	ctx := context.Background()
	other := Token{Flow: "pet", Step: SelectStep}
	if err := h.engine.Toggle(ctx, user, other, "1"); !errors.Is(err, ErrStaleAction) {
		t.Fatalf("toggle err = %v, want ErrStaleAction", err)
	}
	if err := h.engine.Toggle(ctx, user, selTok, "1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := h.engine.ConfirmSelection(ctx, user, other); !errors.Is(err, ErrStaleAction) {
		t.Fatalf("confirm err = %v, want ErrStaleAction", err)
	}
	if len(roster.present) != 3 {
		t.Fatalf("stale confirm applied the selection: %v", roster.present)
	}
}

func TestSelectionControlsCarryToken(t *testing.T) {
	h, _ := newSelectionHarness(t)
	c, ok := findControl(h.render.last(), ActionToggle, "2")
	if !ok || c.Token() != selTok {
		t.Fatalf("toggle control = %+v", c)
	}
}

func TestSelectionRejectsFlowInput(t *testing.T) {
	h, _ := newSelectionHarness(t)
	ctx := context.Background()
	if err := h.engine.Submit(ctx, user, Input{Kind: InputText, Text: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("submit err = %v, want ErrInvalidInput", err)
	}
	if err := h.engine.Confirm(ctx, user, selTok); !errors.Is(err, ErrStaleAction) {
		t.Fatalf("confirm err = %v, want ErrStaleAction", err)
	}
}

func TestCancelSelection(t *testing.T) {
	h, roster := newSelectionHarness(t)
	ctx := context.Background()
	if err := h.engine.Toggle(ctx, user, selTok, "1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := h.engine.Cancel(ctx, user); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(roster.present) != 3 {
		t.Fatal("cancel applied the selection")
	}
	if _, err := h.engine.ConfirmSelection(ctx, user, selTok); !errors.Is(err, ErrNoActiveFlow) {
		t.Fatalf("err = %v, want ErrNoActiveFlow", err)
	}
}
