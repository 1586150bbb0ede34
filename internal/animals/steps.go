package animals

import (
	"time"

	"github.com/m3rciful/catchbot/core/flow"
	"github.com/m3rciful/catchbot/core/state"
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"
	"github.com/m3rciful/catchbot/internal/models"
)

const choiceNow = "now"

func textPrompt(text string) func(flow.View) flow.Prompt {
	return func(flow.View) flow.Prompt { return flow.Prompt{Text: text} }
}

func textStep(name, prompt string, limit int, next string) flow.Step {
	return flow.Step{
		Name:     name,
		Accept:   flow.InputText,
		Prompt:   textPrompt(prompt),
		Validate: flow.NonEmptyText(limit),
		Next:     next,
	}
}

func photoStep(name, prompt, next string) flow.Step {
	return flow.Step{
		Name:     name,
		Accept:   flow.InputPhoto,
		Prompt:   textPrompt(prompt),
		Validate: flow.AnyPhoto(),
		Next:     next,
		Skip:     next,
	}
}

func placeStep(name, prompt, next string) flow.Step {
	return flow.Step{
		Name:   name,
		Accept: flow.InputText | flow.InputLocation,
		Prompt: func(flow.View) flow.Prompt {
			return flow.Prompt{Text: prompt, LocationButton: "📍 Отправить геолокацию"}
		},
		Validate: flow.TextOrLocation(models.MaxLongLen),
		Next:     next,
		Ack:      "📍 Место сохранено",
	}
}

// dateStep accepts a typed date or the "now" button. Dates in the future and
// dates before the field named notBefore are rejected.
func dateStep(name, prompt string, loc *time.Location, notBefore, next string) flow.Step {
	return flow.Step{
		Name:   name,
		Accept: flow.InputText | flow.InputChoice,
		Prompt: func(v flow.View) flow.Prompt {
			return flow.Prompt{
				Text: prompt,
				Controls: [][]flow.Control{{
					flow.Option("📆 Вставить "+formatDate(v.Now, loc), choiceNow),
				}},
			}
		},
		Validate: dateValidator(loc, notBefore),
		Next:     next,
	}
}

func dateValidator(loc *time.Location, notBefore string) flow.Validator {
	return func(in flow.Input, v flow.View) (state.Value, bool) {
		var t time.Time
		switch in.Kind {
		case flow.InputChoice:
			if in.Text != choiceNow {
				return state.Value{}, false
			}
			t = v.Now.In(loc).Truncate(time.Minute)
		case flow.InputText:
			parsed, ok := tghelpers.ParseFlexibleDate(in.Text, loc)
			if !ok {
				return state.Value{}, false
			}
			t = parsed
		default:
			return state.Value{}, false
		}
		if t.After(v.Now) {
			return state.Value{}, false
		}
		if notBefore != "" {
			if ref, ok := v.Scratch.Get(notBefore); ok && ref.Kind == state.KindTime && t.Before(ref.Time) {
				return state.Value{}, false
			}
		}
		return state.Timestamp(t.UTC()), true
	}
}

func yesNoStep(name, prompt, next string) flow.Step {
	return flow.Step{
		Name:   name,
		Accept: flow.InputChoice,
		Prompt: func(flow.View) flow.Prompt {
			return flow.Prompt{
				Text:     prompt,
				Controls: [][]flow.Control{{flow.Option("✅ Да", "yes"), flow.Option("❌ Нет", "no")}},
			}
		},
		Validate: flow.YesNo(),
		Next:     next,
		Skip:     next,
	}
}

func optional(s flow.Step) flow.Step {
	s.Skip = s.Next
	return s
}

func skipTo(s flow.Step, target string) flow.Step {
	s.Skip = target
	return s
}

// scratch readers

func textOf(s state.Scratch, field string) (string, bool) {
	v, ok := s.Get(field)
	if !ok || (v.Text == "" && v.Kind != state.KindGeo) {
		return "", false
	}
	return v.String(), true
}

func optText(s state.Scratch, field string) *string {
	if v, ok := textOf(s, field); ok {
		return &v
	}
	return nil
}

func optTime(s state.Scratch, field string) *time.Time {
	v, ok := s.Get(field)
	if !ok || v.Kind != state.KindTime {
		return nil
	}
	t := v.Time
	return &t
}

func optBool(s state.Scratch, field string) *bool {
	v, ok := s.Get(field)
	if !ok || v.Kind != state.KindBool {
		return nil
	}
	b := v.Flag
	return &b
}
