package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/catchbot/core/logger"
	"github.com/m3rciful/catchbot/core/state"
)

// BeginSelection shows items as toggle buttons, replacing any conversation
// in progress. The list is a snapshot; later changes to the source do not
// affect it.
func (e *Engine) BeginSelection(ctx context.Context, userID int64, name string, items []state.Item) error {
	_, sel := e.lookup(name)
	if sel == nil {
		return fmt.Errorf("flow: unknown selection %q", name)
	}
	unlock := e.locks.lock(userID)
	defer unlock()

	if err := e.reset(ctx, userID); err != nil {
		return err
	}
	snapshot := make([]state.Item, len(items))
	for i, it := range items {
		snapshot[i] = state.Item{ID: it.ID, Label: it.Label}
	}
	sess := &state.Session{UserID: userID, Flow: name, Step: SelectStep, Scratch: state.Scratch{}, Items: snapshot}
	ctx = logger.WithFlow(ctx, name, SelectStep)
	refs, err := e.render.Render(ctx, userID, e.selectionPrompt(sel, snapshot))
	if err != nil {
		return fmt.Errorf("flow: render %s: %w", name, err)
	}
	sess.Prompts = refs
	if err := e.save(ctx, sess); err != nil {
		return err
	}
	logger.Info(ctx, logger.ComponentFlow, "flow.start",
		slog.Int("items", len(snapshot)),
	)
	return nil
}

// Toggle flips one item of the user's selection and redraws the buttons.
func (e *Engine) Toggle(ctx context.Context, userID int64, tok Token, itemID string) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	sess, sel, err := e.loadSelection(ctx, userID, tok)
	if err != nil {
		return err
	}
	idx := -1
	for i, it := range sess.Items {
		if it.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrStaleAction
	}
	sess.Items[idx].Selected = !sess.Items[idx].Selected

	p := e.selectionPrompt(sel, sess.Items)
	e.retire(ctx, sess.Prompts, p.Controls)
	return e.save(ctx, sess)
}

// ConfirmSelection applies the selected items. Applied items leave the list
// and items whose Apply failed stay selected, so confirming again retries
// only those. The session is consumed once no failure is left; it stays
// intact when nothing is selected or nothing could be applied.
func (e *Engine) ConfirmSelection(ctx context.Context, userID int64, tok Token) ([]state.Item, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	sess, sel, err := e.loadSelection(ctx, userID, tok)
	if err != nil {
		return nil, err
	}
	picked := 0
	for _, it := range sess.Items {
		if it.Selected {
			picked++
		}
	}
	if picked == 0 {
		return nil, ErrNothingSelected
	}
	ctx = logger.WithFlow(ctx, sess.Flow, SelectStep)

	var (
		applied []state.Item
		kept    []state.Item
		errs    []error
	)
	for _, it := range sess.Items {
		if !it.Selected {
			kept = append(kept, it)
			continue
		}
		ok, err := sel.Apply(ctx, it)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", it.ID, err))
			kept = append(kept, it)
		case ok:
			applied = append(applied, it)
		}
		// items not acted on are gone from the source and leave the list
	}

	if len(applied) == 0 {
		cause := errors.Join(errs...)
		if cause == nil {
			cause = errors.New("no selected item was acted on")
		}
		logger.Warn(ctx, logger.ComponentFlow, "flow.select.apply",
			slog.Int("selected", picked),
			slog.String("outcome", "fail"),
			slog.String("err", cause.Error()),
		)
		e.notify(ctx, userID, Prompt{Text: e.texts.SaveFailed})
		return nil, &PersistenceError{Err: cause}
	}

	if len(errs) > 0 {
		cause := errors.Join(errs...)
		sess.Items = kept
		e.retire(ctx, sess.Prompts, e.selectionPrompt(sel, kept).Controls)
		if err := e.save(ctx, sess); err != nil {
			return applied, err
		}
		e.notify(ctx, userID, sel.Done(applied))
		e.notify(ctx, userID, Prompt{Text: e.texts.SaveFailed})
		logger.Warn(ctx, logger.ComponentFlow, "flow.select.apply",
			slog.Int("selected", picked),
			slog.Int("items", len(applied)),
			slog.String("outcome", "partial"),
			slog.String("err", cause.Error()),
		)
		return applied, &PersistenceError{Err: cause}
	}

	if err := e.store.Delete(ctx, userID); err != nil {
		return nil, fmt.Errorf("flow: consume session: %w", err)
	}
	e.retire(ctx, sess.Prompts, nil)
	done := sel.Done(applied)
	done.Menu = true
	e.notify(ctx, userID, done)
	logger.Info(ctx, logger.ComponentFlow, "flow.select.apply",
		slog.Int("selected", picked),
		slog.Int("items", len(applied)),
		slog.String("outcome", "ok"),
	)
	return applied, nil
}

func (e *Engine) loadSelection(ctx context.Context, userID int64, tok Token) (*state.Session, *Selection, error) {
	sess, err := e.load(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, ErrNoActiveFlow
	}
	_, sel := e.lookup(sess.Flow)
	if sel == nil || sess.Step != SelectStep || !issuedFor(sess, tok) {
		return nil, nil, ErrStaleAction
	}
	return sess, sel, nil
}

func (e *Engine) selectionPrompt(sel *Selection, items []state.Item) Prompt {
	rows := make([][]Control, 0, len(items)+1)
	for _, it := range items {
		label := it.Label
		if it.Selected {
			label = sel.Marker + label
		}
		rows = append(rows, []Control{{Label: label, Action: ActionToggle, Value: it.ID}})
	}
	rows = append(rows, []Control{
		{Label: e.texts.Confirm, Action: ActionSelectConfirm},
		{Label: e.texts.Cancel, Action: ActionCancel},
	})
	return Prompt{Text: sel.Title(items), Controls: bindStep(rows, sel.Name, SelectStep)}
}
