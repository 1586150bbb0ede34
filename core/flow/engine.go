// Package flow drives users through multi-step conversations: step-by-step
// data entry ending in a review/confirm gate, and pick-many selections.
// All conversation state lives in a state.Store so a restart between two
// updates loses nothing.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/catchbot/core/clock"
	"github.com/m3rciful/catchbot/core/logger"
	"github.com/m3rciful/catchbot/core/state"
)

// Texts are the engine's own user-facing strings.
type Texts struct {
	Skip    string
	Cancel  string
	Confirm string
	// Cancelled is sent after a conversation is cancelled.
	Cancelled string
	// SaveFailed is sent when persisting a confirmed record fails.
	SaveFailed string
	// Discarded is sent when a flow is dropped because its data is incomplete.
	Discarded string
}

// DefaultTexts returns the stock labels.
func DefaultTexts() Texts {
	return Texts{
		Skip:       "⏭ Пропустить",
		Cancel:     "❌ Отмена",
		Confirm:    "✅ Подтвердить",
		Cancelled:  "Действие отменено.",
		SaveFailed: "⚠️ Не удалось сохранить. Нажмите «Подтвердить» ещё раз.",
		Discarded:  "⚠️ Данные неполные, заполнение прервано. Начните заново.",
	}
}

func (t Texts) withDefaults() Texts {
	d := DefaultTexts()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&t.Skip, d.Skip)
	fill(&t.Cancel, d.Cancel)
	fill(&t.Confirm, d.Confirm)
	fill(&t.Cancelled, d.Cancelled)
	fill(&t.SaveFailed, d.SaveFailed)
	fill(&t.Discarded, d.Discarded)
	return t
}

// Options configure an Engine.
type Options struct {
	Store    state.Store
	Renderer Renderer
	Clock    clock.Clock
	// TTL drops sessions idle for longer; zero disables expiry.
	TTL   time.Duration
	Texts Texts
}

// Engine runs registered flows and selections.
type Engine struct {
	store  state.Store
	render Renderer
	clock  clock.Clock
	ttl    time.Duration
	texts  Texts
	locks  *userLocks

	mu         sync.RWMutex
	flows      map[string]*Flow
	selections map[string]*Selection
}

// New builds an Engine. Store and Renderer are required.
func New(opts Options) *Engine {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Engine{
		store:      opts.Store,
		render:     opts.Renderer,
		clock:      clk,
		ttl:        opts.TTL,
		texts:      opts.Texts.withDefaults(),
		locks:      newUserLocks(),
		flows:      make(map[string]*Flow),
		selections: make(map[string]*Selection),
	}
}

// Register validates and adds a data-entry flow.
func (e *Engine) Register(f *Flow) error {
	if err := f.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.taken(f.Name) {
		return fmt.Errorf("flow: %s already registered", f.Name)
	}
	e.flows[f.Name] = f
	return nil
}

// RegisterSelection adds a selection flow.
func (e *Engine) RegisterSelection(s *Selection) error {
	if s == nil || s.Name == "" || s.Apply == nil || s.Title == nil || s.Done == nil {
		return errors.New("flow: incomplete selection definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.taken(s.Name) {
		return fmt.Errorf("flow: %s already registered", s.Name)
	}
	e.selections[s.Name] = s
	return nil
}

func (e *Engine) taken(name string) bool {
	_, f := e.flows[name]
	_, s := e.selections[name]
	return f || s
}

func (e *Engine) lookup(name string) (*Flow, *Selection) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.flows[name], e.selections[name]
}

// Current returns a copy of the user's active session, or nil.
func (e *Engine) Current(ctx context.Context, userID int64) (*state.Session, error) {
	return e.load(ctx, userID)
}

// Active reports whether the user has a conversation in progress.
func (e *Engine) Active(ctx context.Context, userID int64) bool {
	sess, err := e.load(ctx, userID)
	return err == nil && sess != nil
}

// Start begins flow name for the user, replacing any conversation in progress.
func (e *Engine) Start(ctx context.Context, userID int64, name string) error {
	return e.StartWith(ctx, userID, name, nil)
}

// StartWith is Start with scratch prefilled from seed.
func (e *Engine) StartWith(ctx context.Context, userID int64, name string, seed state.Scratch) error {
	f, _ := e.lookup(name)
	if f == nil {
		return fmt.Errorf("flow: unknown flow %q", name)
	}
	unlock := e.locks.lock(userID)
	defer unlock()

	if err := e.reset(ctx, userID); err != nil {
		return err
	}
	sess := &state.Session{UserID: userID, Flow: name, Step: f.Entry, Scratch: state.Scratch{}}
	ctx = logger.WithFlow(ctx, name, sess.Step)
	for k, v := range seed {
		sess.Scratch[k] = v
	}
	if err := e.enter(ctx, f, sess); err != nil {
		return err
	}
	if err := e.save(ctx, sess); err != nil {
		return err
	}
	logger.Info(ctx, logger.ComponentFlow, "flow.start")
	return nil
}

// Submit feeds one input to the user's current step.
func (e *Engine) Submit(ctx context.Context, userID int64, in Input) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	sess, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNoActiveFlow
	}
	ctx = logger.WithFlow(ctx, sess.Flow, sess.Step)
	if (in.Flow != "" || in.Step != "") && !issuedFor(sess, Token{Flow: in.Flow, Step: in.Step}) {
		return ErrStaleAction
	}
	f, _ := e.lookup(sess.Flow)
	if f == nil {
		// selections accept buttons only
		return ErrInvalidInput
	}
	if sess.Step == ReviewStep {
		return ErrAwaitingConfirm
	}
	s, ok := f.step(sess.Step)
	if !ok {
		return fmt.Errorf("flow %s: session at unknown step %s", f.Name, sess.Step)
	}
	if s.Accept&in.Kind == 0 {
		logger.Debug(ctx, logger.ComponentFlow, "flow.input.ignored",
			slog.String("input_kind", in.Kind.String()),
		)
		return ErrInvalidInput
	}

	now := e.clock.Now()
	val, ok := s.Validate(in, View{Scratch: sess.Scratch, Now: now})
	if !ok {
		if err := e.enter(ctx, f, sess); err != nil {
			return err
		}
		if err := e.save(ctx, sess); err != nil {
			return err
		}
		logger.Debug(ctx, logger.ComponentFlow, "flow.input.rejected",
			slog.String("input_kind", in.Kind.String()),
		)
		return ErrInvalidInput
	}

	var marked [][]Control
	if in.Kind == InputChoice {
		own := s.Prompt(View{Scratch: sess.Scratch, Now: now}).Controls
		marked = markChoice(bindStep(own, f.Name, s.Name), in.Text)
	}
	answered := sess.Prompts
	sess.Prompts = nil
	if sess.Scratch == nil {
		sess.Scratch = state.Scratch{}
	}
	sess.Scratch[s.field()] = val

	if s.Ack != "" {
		e.notify(ctx, userID, Prompt{Text: s.Ack, Menu: true})
	}
	next := s.Next
	if err := e.advance(ctx, f, sess, next); err != nil {
		if errors.Is(err, ErrIncompleteRecord) {
			e.retire(ctx, answered, nil)
		}
		return err
	}
	e.retire(ctx, answered, marked)
	if err := e.save(ctx, sess); err != nil {
		return err
	}
	logger.Debug(ctx, logger.ComponentFlow, "flow.transition",
		slog.String("next_step", next),
	)
	return nil
}

// Skip moves past the user's current step without input when it allows that.
func (e *Engine) Skip(ctx context.Context, userID int64, tok Token) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	sess, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNoActiveFlow
	}
	ctx = logger.WithFlow(ctx, sess.Flow, sess.Step)
	f, _ := e.lookup(sess.Flow)
	if f == nil || !issuedFor(sess, tok) {
		return ErrStaleAction
	}
	s, ok := f.step(sess.Step)
	if !ok || s.Skip == "" {
		return ErrStaleAction
	}

	answered := sess.Prompts
	sess.Prompts = nil
	delete(sess.Scratch, s.field())
	if err := e.advance(ctx, f, sess, s.Skip); err != nil {
		if errors.Is(err, ErrIncompleteRecord) {
			e.retire(ctx, answered, nil)
		}
		return err
	}
	for _, ref := range answered {
		if err := e.render.Delete(ctx, ref); err != nil {
			e.logRenderFailure(ctx, "delete", err)
		}
	}
	if err := e.save(ctx, sess); err != nil {
		return err
	}
	logger.Debug(ctx, logger.ComponentFlow, "flow.skip",
		slog.String("next_step", s.Skip),
	)
	return nil
}

// Cancel drops the user's conversation. It is a no-op without one.
func (e *Engine) Cancel(ctx context.Context, userID int64) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	sess, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	ctx = logger.WithFlow(ctx, sess.Flow, sess.Step)
	if err := e.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("flow: cancel: %w", err)
	}
	for _, ref := range sess.Prompts {
		if err := e.render.Delete(ctx, ref); err != nil {
			e.logRenderFailure(ctx, "delete", err)
		}
	}
	e.notify(ctx, userID, Prompt{Text: e.texts.Cancelled, Menu: true})
	logger.Info(ctx, logger.ComponentFlow, "flow.cancel",
		slog.String("outcome", "cancelled"),
	)
	return nil
}

// PrepareReview validates the collected data and renders the review summary
// again for a user sitting at review. Controls of the previous summary are
// removed.
func (e *Engine) PrepareReview(ctx context.Context, userID int64) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	sess, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNoActiveFlow
	}
	f, _ := e.lookup(sess.Flow)
	if f == nil || sess.Step != ReviewStep {
		return ErrStaleAction
	}
	ctx = logger.WithFlow(ctx, f.Name, ReviewStep)
	old := sess.Prompts
	sess.Prompts = nil
	if err := e.enter(ctx, f, sess); err != nil {
		if errors.Is(err, ErrIncompleteRecord) {
			e.discard(ctx, sess)
		}
		return err
	}
	e.retire(ctx, old, nil)
	return e.save(ctx, sess)
}

// Confirm commits the reviewed record. The session is consumed only when
// persistence succeeds.
func (e *Engine) Confirm(ctx context.Context, userID int64, tok Token) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	sess, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNoActiveFlow
	}
	f, _ := e.lookup(sess.Flow)
	if f == nil || sess.Step != ReviewStep || !issuedFor(sess, tok) {
		return ErrStaleAction
	}
	ctx = logger.WithFlow(ctx, f.Name, ReviewStep)

	start := e.clock.Now()
	done, err := f.Review.Commit(ctx, userID, sess.Scratch)
	switch {
	case errors.Is(err, ErrIncompleteRecord):
		e.discard(ctx, sess)
		return err
	case err != nil:
		if !errors.Is(err, ErrPersistence) {
			err = &PersistenceError{Err: err}
		}
		logger.Error(ctx, logger.ComponentFlow, "flow.commit",
			slog.String("outcome", "fail"),
			slog.String("err", err.Error()),
		)
		e.notify(ctx, userID, Prompt{Text: e.texts.SaveFailed})
		return err
	}

	if err := e.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("flow: consume session: %w", err)
	}
	e.retire(ctx, sess.Prompts, nil)
	done.Menu = true
	e.notify(ctx, userID, done)
	logger.Info(ctx, logger.ComponentFlow, "flow.commit",
		slog.String("outcome", "ok"),
		slog.Duration("duration", e.clock.Now().Sub(start)),
	)
	return nil
}

// load returns the user's session if it belongs to a registered flow and
// has not expired; anything else is removed.
func (e *Engine) load(ctx context.Context, userID int64) (*state.Session, error) {
	sess, err := e.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("flow: load session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	f, sel := e.lookup(sess.Flow)
	expired := e.ttl > 0 && e.clock.Now().Sub(sess.UpdatedAt) > e.ttl
	if (f == nil && sel == nil) || expired {
		ctx = logger.WithFlow(ctx, sess.Flow, sess.Step)
		if err := e.store.Delete(ctx, userID); err != nil {
			return nil, fmt.Errorf("flow: drop session: %w", err)
		}
		e.retire(ctx, sess.Prompts, nil)
		outcome := "cancelled"
		if expired {
			outcome = "expired"
		}
		logger.Info(ctx, logger.ComponentFlow, "flow.drop", slog.String("outcome", outcome))
		return nil, nil
	}
	return sess, nil
}

// reset clears whatever the user had in progress.
func (e *Engine) reset(ctx context.Context, userID int64) error {
	prev, err := e.store.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("flow: load session: %w", err)
	}
	if prev == nil {
		return nil
	}
	if err := e.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("flow: replace session: %w", err)
	}
	e.retire(ctx, prev.Prompts, nil)
	return nil
}

func (e *Engine) save(ctx context.Context, sess *state.Session) error {
	sess.UpdatedAt = e.clock.Now()
	if err := e.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("flow: save session: %w", err)
	}
	return nil
}

// advance moves the session to next and renders its prompt. An incomplete
// record at review discards the whole conversation.
func (e *Engine) advance(ctx context.Context, f *Flow, sess *state.Session, next string) error {
	if next != ReviewStep {
		if _, ok := f.step(next); !ok {
			return fmt.Errorf("flow %s: unknown successor %s", f.Name, next)
		}
	}
	sess.Step = next
	if err := e.enter(ctx, f, sess); err != nil {
		if errors.Is(err, ErrIncompleteRecord) {
			e.discard(ctx, sess)
		}
		return err
	}
	return nil
}

// enter renders the prompt of the session's current step and records the
// messages carrying its controls.
func (e *Engine) enter(ctx context.Context, f *Flow, sess *state.Session) error {
	var p Prompt
	if sess.Step == ReviewStep {
		sum, err := f.Review.Summary(sess.UserID, sess.Scratch)
		if err != nil {
			return err
		}
		p = sum
		p.Controls = append(p.Controls, []Control{
			{Label: e.texts.Confirm, Action: ActionConfirm},
			{Label: e.texts.Cancel, Action: ActionCancel},
		})
		p.Controls = bindStep(p.Controls, f.Name, ReviewStep)
	} else {
		s, ok := f.step(sess.Step)
		if !ok {
			return fmt.Errorf("flow %s: unknown step %s", f.Name, sess.Step)
		}
		p = s.Prompt(View{Scratch: sess.Scratch, Now: e.clock.Now()})
		if s.Skip != "" {
			p.Controls = append(p.Controls, []Control{{Label: e.texts.Skip, Action: ActionSkip}})
		}
		p.Controls = append(p.Controls, []Control{{Label: e.texts.Cancel, Action: ActionCancel}})
		p.Controls = bindStep(p.Controls, f.Name, s.Name)
	}
	refs, err := e.render.Render(ctx, sess.UserID, p)
	if err != nil {
		return fmt.Errorf("flow: render %s/%s: %w", f.Name, sess.Step, err)
	}
	sess.Prompts = append(sess.Prompts, refs...)
	return nil
}

// discard ends a conversation whose data cannot form a record.
func (e *Engine) discard(ctx context.Context, sess *state.Session) {
	ctx = logger.WithFlow(ctx, sess.Flow, sess.Step)
	if err := e.store.Delete(ctx, sess.UserID); err != nil {
		logger.Error(ctx, logger.ComponentFlow, "flow.discard",
			slog.String("err", err.Error()),
		)
	}
	e.retire(ctx, sess.Prompts, nil)
	e.notify(ctx, sess.UserID, Prompt{Text: e.texts.Discarded, Menu: true})
	logger.Error(ctx, logger.ComponentFlow, "flow.discard",
		slog.String("outcome", "cancelled"),
	)
}

// retire replaces the controls of answered prompts, removing them when
// controls is nil.
func (e *Engine) retire(ctx context.Context, refs []state.MessageRef, controls [][]Control) {
	for _, ref := range refs {
		if err := e.render.EditControls(ctx, ref, controls); err != nil {
			e.logRenderFailure(ctx, "edit_controls", err)
		}
	}
}

func (e *Engine) notify(ctx context.Context, userID int64, p Prompt) {
	if _, err := e.render.Render(ctx, userID, p); err != nil {
		e.logRenderFailure(ctx, "render", err)
	}
}

func (e *Engine) logRenderFailure(ctx context.Context, op string, err error) {
	logger.Warn(ctx, logger.ComponentFlow, "flow.render",
		slog.String("op", op),
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
}

// bindStep stamps controls with the prompt they belong to.
func bindStep(rows [][]Control, flow, step string) [][]Control {
	out := make([][]Control, 0, len(rows))
	for _, row := range rows {
		r := make([]Control, len(row))
		for i, c := range row {
			c.Flow, c.Step = flow, step
			r[i] = c
		}
		out = append(out, r)
	}
	return out
}

// issuedFor reports whether tok names the session's current prompt.
func issuedFor(sess *state.Session, tok Token) bool {
	return tok == Token{Flow: sess.Flow, Step: sess.Step}
}

func markChoice(rows [][]Control, value string) [][]Control {
	for _, row := range rows {
		for i := range row {
			if row[i].Action == ActionChoice && row[i].Value == value {
				row[i].Label = "✅ " + row[i].Label
			}
		}
	}
	return rows
}
