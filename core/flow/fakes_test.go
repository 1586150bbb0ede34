package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/catchbot/core/clock"
	"github.com/m3rciful/catchbot/core/state"
)

type sentPrompt struct {
	userID int64
	prompt Prompt
	ref    state.MessageRef
}

// fakeRenderer records everything the engine shows to users.
type fakeRenderer struct {
	mu      sync.Mutex
	nextID  int
	sent    []sentPrompt
	edits   map[int][][]Control
	deleted map[int]bool
	fail    bool
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{edits: map[int][][]Control{}, deleted: map[int]bool{}}
}

func (r *fakeRenderer) Render(_ context.Context, userID int64, p Prompt) ([]state.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("telegram unavailable")
	}
	r.nextID++
	ref := state.MessageRef{ChatID: userID, MessageID: r.nextID}
	r.sent = append(r.sent, sentPrompt{userID: userID, prompt: p, ref: ref})
	if len(p.Controls) == 0 {
		return nil, nil
	}
	return []state.MessageRef{ref}, nil
}

func (r *fakeRenderer) EditControls(_ context.Context, ref state.MessageRef, controls [][]Control) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits[ref.MessageID] = controls
	return nil
}

func (r *fakeRenderer) Delete(_ context.Context, ref state.MessageRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted[ref.MessageID] = true
	return nil
}

func (r *fakeRenderer) last() Prompt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Prompt{}
	}
	return r.sent[len(r.sent)-1].prompt
}

func (r *fakeRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type petRecord struct {
	Name  string
	Kind  string
	Photo string
}

// fakeRepo stands in for the persistence collaborator.
type fakeRepo struct {
	mu    sync.Mutex
	saved []petRecord
	err   error
}

func (f *fakeRepo) persist(_ context.Context, rec petRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, rec)
	return "1", nil
}

func (f *fakeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func text(s string) Prompt { return Prompt{Text: s} }

// petFlow collects name, an optional photo and a kind.
func petFlow(repo *fakeRepo) *Flow {
	return &Flow{
		Name: "pet",
		Steps: []Step{
			{
				Name:     "name",
				Accept:   InputText,
				Prompt:   func(View) Prompt { return text("name?") },
				Validate: NonEmptyText(10),
				Next:     "photo",
			},
			{
				Name:     "photo",
				Accept:   InputPhoto,
				Prompt:   func(View) Prompt { return text("photo?") },
				Validate: AnyPhoto(),
				Next:     "kind",
				Skip:     "kind",
			},
			{
				Name:   "kind",
				Accept: InputChoice,
				Prompt: func(View) Prompt {
					return Prompt{Text: "kind?", Controls: [][]Control{{Option("Dog", "DOG"), Option("Cat", "CAT")}}}
				},
				Validate: OneOf("DOG", "CAT"),
				Next:     ReviewStep,
			},
		},
		Review: Review[petRecord]{
			Build: func(_ int64, s state.Scratch) (petRecord, error) {
				name, ok := s.Get("name")
				if !ok {
					return petRecord{}, errors.New("name is required")
				}
				kind, ok := s.Get("kind")
				if !ok {
					return petRecord{}, errors.New("kind is required")
				}
				rec := petRecord{Name: name.Text, Kind: kind.Text}
				if p, ok := s.Get("photo"); ok {
					rec.Photo = p.Text
				}
				return rec, nil
			},
			Render: func(rec petRecord) Prompt {
				lines := []string{"Name: " + rec.Name, "Kind: " + rec.Kind}
				if rec.Photo != "" {
					lines = append(lines, "Photo: "+rec.Photo)
				}
				return text(strings.Join(lines, "\n"))
			},
			Persist: repo.persist,
			Done:    func(rec petRecord, id string) Prompt { return text("saved " + id) },
		},
	}
}

type harness struct {
	engine *Engine
	store  state.Store
	render *fakeRenderer
	clock  *clock.FakeClock
	repo   *fakeRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  state.NewMemoryStore(),
		render: newFakeRenderer(),
		clock:  clock.Fake(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
		repo:   &fakeRepo{},
	}
	h.engine = New(Options{Store: h.store, Renderer: h.render, Clock: h.clock, TTL: time.Hour})
	if err := h.engine.Register(petFlow(h.repo)); err != nil {
		t.Fatalf("register: %v", err)
	}
	return h
}

func (h *harness) session(t *testing.T, userID int64) *state.Session {
	t.Helper()
	sess, err := h.store.Load(context.Background(), userID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return sess
}

func findControl(p Prompt, action, value string) (Control, bool) {
	for _, row := range p.Controls {
		for _, c := range row {
			if c.Action == action && (value == "" || c.Value == value) {
				return c, true
			}
		}
	}
	return Control{}, false
}
