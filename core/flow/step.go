package flow

import (
	"context"
	"strings"
	"time"

	"github.com/m3rciful/catchbot/core/state"
)

// InputKind is a bit set of inbound event shapes.
type InputKind uint8

const (
	InputText InputKind = 1 << iota
	InputPhoto
	InputLocation
	InputChoice
)

func (k InputKind) String() string {
	var parts []string
	if k&InputText != 0 {
		parts = append(parts, "text")
	}
	if k&InputPhoto != 0 {
		parts = append(parts, "photo")
	}
	if k&InputLocation != 0 {
		parts = append(parts, "location")
	}
	if k&InputChoice != 0 {
		parts = append(parts, "choice")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Input is one inbound event for the user's current step.
type Input struct {
	Kind   InputKind
	Text   string // message text or choice value
	FileID string
	Lat    float64
	Lng    float64
	// Flow and Step name the prompt a choice button was rendered for; both
	// are empty for plain messages.
	Flow string
	Step string
}

// Token names the prompt an action button was rendered for. Actions whose
// token does not match the user's current flow and step are stale.
type Token struct {
	Flow string
	Step string
}

// Action names carried by controls. Transports encode them in button data.
const (
	ActionChoice        = "flow.choice"
	ActionSkip          = "flow.skip"
	ActionCancel        = "flow.cancel"
	ActionConfirm       = "flow.confirm"
	ActionToggle        = "flow.toggle"
	ActionSelectConfirm = "flow.select"
)

// Control is a labeled button bound to an action token.
type Control struct {
	Label  string
	Action string
	Flow   string
	Step   string
	Value  string
}

// Token returns the prompt the control was rendered for.
func (c Control) Token() Token {
	return Token{Flow: c.Flow, Step: c.Step}
}

// Option builds a choice control; the engine fills in the flow and step.
func Option(label, value string) Control {
	return Control{Label: label, Action: ActionChoice, Value: value}
}

// Prompt is what the transport renders for the user.
type Prompt struct {
	Text     string
	Photos   []string
	Controls [][]Control
	// LocationButton, when set, offers a keyboard button sharing the user's location.
	LocationButton string
	// Menu restores the user's main keyboard with this message.
	Menu bool
}

// Renderer delivers prompts. Implementations return references to the
// messages that carry inline controls.
type Renderer interface {
	Render(ctx context.Context, userID int64, p Prompt) ([]state.MessageRef, error)
	// EditControls replaces the inline controls of a sent message; nil removes them.
	EditControls(ctx context.Context, ref state.MessageRef, controls [][]Control) error
	Delete(ctx context.Context, ref state.MessageRef) error
}

// View is what a step sees when rendering its prompt.
type View struct {
	Scratch state.Scratch
	Now     time.Time
}

// Validator turns raw input into a stored value, or reports false. The view
// exposes answers collected so far.
type Validator func(in Input, v View) (state.Value, bool)

// Step is one prompt/input/validate/transition unit.
type Step struct {
	Name string
	// Field is the scratch key; defaults to Name.
	Field    string
	Accept   InputKind
	Prompt   func(v View) Prompt
	Validate Validator
	Next     string
	// Skip is the successor reached without input; empty when not skippable.
	Skip string
	// Ack is sent with the main keyboard after the step accepts input.
	Ack string
}

func (s Step) field() string {
	if s.Field != "" {
		return s.Field
	}
	return s.Name
}

// NonEmptyText accepts trimmed text up to maxRunes long (0 means unlimited).
func NonEmptyText(maxRunes int) Validator {
	return func(in Input, _ View) (state.Value, bool) {
		if in.Kind != InputText {
			return state.Value{}, false
		}
		s := strings.TrimSpace(in.Text)
		if s == "" {
			return state.Value{}, false
		}
		if maxRunes > 0 && len([]rune(s)) > maxRunes {
			return state.Value{}, false
		}
		return state.Text(s), true
	}
}

// AnyPhoto accepts an image reference.
func AnyPhoto() Validator {
	return func(in Input, _ View) (state.Value, bool) {
		if in.Kind != InputPhoto || in.FileID == "" {
			return state.Value{}, false
		}
		return state.Photo(in.FileID), true
	}
}

// TextOrLocation accepts a shared location or a free-text place description.
func TextOrLocation(maxRunes int) Validator {
	text := NonEmptyText(maxRunes)
	return func(in Input, v View) (state.Value, bool) {
		if in.Kind == InputLocation {
			return state.Geo(in.Lat, in.Lng), true
		}
		return text(in, v)
	}
}

// OneOf accepts a choice whose value is among allowed.
func OneOf(allowed ...string) Validator {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(in Input, _ View) (state.Value, bool) {
		if in.Kind != InputChoice {
			return state.Value{}, false
		}
		if _, ok := set[in.Text]; !ok {
			return state.Value{}, false
		}
		return state.Choice(in.Text), true
	}
}

// YesNo accepts the choice values "yes" and "no" as a boolean.
func YesNo() Validator {
	return func(in Input, _ View) (state.Value, bool) {
		if in.Kind != InputChoice {
			return state.Value{}, false
		}
		switch in.Text {
		case "yes":
			return state.Bool(true), true
		case "no":
			return state.Bool(false), true
		}
		return state.Value{}, false
	}
}
