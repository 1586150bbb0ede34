package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/catchbot/core/state"
)

// ReviewStep is the terminal step of every data-entry flow.
const ReviewStep = "review"

// SelectStep is the single step of a selection flow.
const SelectStep = "select"

// Committer is the review and commit stage of a flow.
type Committer interface {
	// Summary validates scratch and renders the confirmation prompt.
	Summary(userID int64, scratch state.Scratch) (Prompt, error)
	// Commit validates scratch again, persists the entity once and returns
	// the prompt reporting it.
	Commit(ctx context.Context, userID int64, scratch state.Scratch) (Prompt, error)
}

// Review adapts typed build/render/persist functions to Committer.
type Review[T any] struct {
	// Build materializes the record; errors mean required data is missing.
	Build   func(userID int64, scratch state.Scratch) (T, error)
	Render  func(rec T) Prompt
	Persist func(ctx context.Context, rec T) (string, error)
	Done    func(rec T, id string) Prompt
}

// Summary implements Committer.
func (r Review[T]) Summary(userID int64, scratch state.Scratch) (Prompt, error) {
	rec, err := r.Build(userID, scratch)
	if err != nil {
		return Prompt{}, incomplete(err)
	}
	return r.Render(rec), nil
}

// Commit implements Committer.
func (r Review[T]) Commit(ctx context.Context, userID int64, scratch state.Scratch) (Prompt, error) {
	rec, err := r.Build(userID, scratch)
	if err != nil {
		return Prompt{}, incomplete(err)
	}
	id, err := r.Persist(ctx, rec)
	if err != nil {
		return Prompt{}, &PersistenceError{Err: err}
	}
	return r.Done(rec, id), nil
}

// Flow is a named chain of steps ending in review.
type Flow struct {
	Name string
	// Entry defaults to the first step.
	Entry  string
	Steps  []Step
	Review Committer

	index map[string]int
}

func (f *Flow) step(name string) (Step, bool) {
	i, ok := f.index[name]
	if !ok {
		return Step{}, false
	}
	return f.Steps[i], true
}

// Validate checks the definition and builds the step index.
func (f *Flow) Validate() error {
	if f.Name == "" {
		return errors.New("flow: definition without name")
	}
	if len(f.Steps) == 0 {
		return fmt.Errorf("flow %s: no steps", f.Name)
	}
	if f.Review == nil {
		return fmt.Errorf("flow %s: no review stage", f.Name)
	}
	if f.Entry == "" {
		f.Entry = f.Steps[0].Name
	}

	f.index = make(map[string]int, len(f.Steps))
	for i, s := range f.Steps {
		switch {
		case s.Name == "" || s.Name == ReviewStep:
			return fmt.Errorf("flow %s: invalid step name %q", f.Name, s.Name)
		case s.Accept == 0:
			return fmt.Errorf("flow %s: step %s accepts no input", f.Name, s.Name)
		case s.Prompt == nil || s.Validate == nil:
			return fmt.Errorf("flow %s: step %s lacks prompt or validator", f.Name, s.Name)
		case s.Next == "":
			return fmt.Errorf("flow %s: step %s has no successor", f.Name, s.Name)
		}
		if _, dup := f.index[s.Name]; dup {
			return fmt.Errorf("flow %s: duplicate step %s", f.Name, s.Name)
		}
		f.index[s.Name] = i
	}
	if _, ok := f.index[f.Entry]; !ok {
		return fmt.Errorf("flow %s: unknown entry step %s", f.Name, f.Entry)
	}

	known := func(name string) bool {
		if name == ReviewStep {
			return true
		}
		_, ok := f.index[name]
		return ok
	}
	for _, s := range f.Steps {
		if !known(s.Next) {
			return fmt.Errorf("flow %s: step %s leads to unknown step %s", f.Name, s.Name, s.Next)
		}
		if s.Skip != "" && !known(s.Skip) {
			return fmt.Errorf("flow %s: step %s skips to unknown step %s", f.Name, s.Name, s.Skip)
		}
	}

	seen := map[string]bool{f.Entry: true}
	queue := []string{f.Entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == ReviewStep {
			continue
		}
		s, _ := f.step(cur)
		for _, n := range []string{s.Next, s.Skip} {
			if n != "" && !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	for _, s := range f.Steps {
		if !seen[s.Name] {
			return fmt.Errorf("flow %s: step %s is unreachable", f.Name, s.Name)
		}
	}
	if !seen[ReviewStep] {
		return fmt.Errorf("flow %s: review is unreachable", f.Name)
	}
	return nil
}

// Selection is a pick-many list with a confirm action.
type Selection struct {
	Name string
	// Title renders the text above the item buttons.
	Title func(items []state.Item) string
	// Marker prefixes the label of selected items.
	Marker string
	// Apply acts on one selected item and reports whether it was acted on.
	Apply func(ctx context.Context, item state.Item) (bool, error)
	// Done renders the outcome after at least one item was acted on.
	Done func(applied []state.Item) Prompt
}
