package animals

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/m3rciful/catchbot/core/flow"
	"github.com/m3rciful/catchbot/core/state"
	"github.com/m3rciful/catchbot/core/telegram/format"
	"github.com/m3rciful/catchbot/internal/models"
)

// NewOutcome defines the conversation that records what happened to an
// animal after intake. Start it with StartOutcome so the record id is seeded.
func NewOutcome(store Patcher, loc *time.Location) *flow.Flow {
	if loc == nil {
		loc = time.UTC
	}
	return &flow.Flow{
		Name: OutcomeFlow,
		Steps: []flow.Step{
			optional(textStep(fieldChipID, "🔖 Введите номер чипа.", models.MaxShortLen, fieldSterilized)),
			yesNoStep(fieldSterilized, "✂️ Животное стерилизовано?", fieldVaccinated),
			yesNoStep(fieldVaccinated, "💉 Животное вакцинировано?", fieldMedicalPhoto),
			photoStep(fieldMedicalPhoto, "📸 Отправьте фото из медкарты.", fieldReturnDate),
			// a released animal is never asked about euthanasia
			skipTo(dateStep(fieldReturnDate, "📅 Введите дату выпуска в формате ГГГГ-ММ-ДД чч:мм", loc, "", fieldReturnPlace), fieldEuthanasia),
			optional(placeStep(fieldReturnPlace, "🗺️ Введите место выпуска.\n📍 Или отправьте геолокацию.", fieldOutcomeNotice)),
			optional(dateStep(fieldEuthanasia, "📅 Введите дату эвтаназии в формате ГГГГ-ММ-ДД чч:мм", loc, "", fieldOutcomeNotice)),
			optional(textStep(fieldOutcomeNotice, "💬 Введите комментарий с дополнительной информацией.", models.MaxLongLen, flow.ReviewStep)),
		},
		Review: flow.Review[models.AnimalPatch]{
			Build: buildPatch,
			Render: func(p models.AnimalPatch) flow.Prompt {
				text := fmt.Sprintf("Проверьте изменения записи №%d:\n\n%s", p.ID, patchSummary(p, loc))
				var photos []string
				if p.MedicalPhoto != nil {
					photos = []string{*p.MedicalPhoto}
				}
				return flow.Prompt{Text: text, Photos: photos}
			},
			Persist: func(ctx context.Context, p models.AnimalPatch) (string, error) {
				if err := store.Patch(ctx, p); err != nil {
					return "", err
				}
				return strconv.FormatInt(p.ID, 10), nil
			},
			Done: func(p models.AnimalPatch, _ string) flow.Prompt {
				return flow.Prompt{Text: fmt.Sprintf("✅ Запись №%d обновлена.", p.ID)}
			},
		},
	}
}

// OutcomeSeed is the initial scratch of an outcome conversation for record id.
func OutcomeSeed(id int64) state.Scratch {
	return state.Scratch{FieldAnimalID: state.Text(strconv.FormatInt(id, 10))}
}

func buildPatch(_ int64, s state.Scratch) (models.AnimalPatch, error) {
	raw, ok := textOf(s, FieldAnimalID)
	if !ok {
		return models.AnimalPatch{}, errors.New("record id missing")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return models.AnimalPatch{}, fmt.Errorf("record id: %w", err)
	}
	p := models.AnimalPatch{
		ID:         id,
		Sterilized: optBool(s, fieldSterilized),
		Vaccinated: optBool(s, fieldVaccinated),
		AnimalDetails: models.AnimalDetails{
			ChipID:       optText(s, fieldChipID),
			MedicalPhoto: optText(s, fieldMedicalPhoto),
			ReturnDate:   optTime(s, fieldReturnDate),
			ReturnPlace:  optText(s, fieldReturnPlace),
			Euthanasia:   optTime(s, fieldEuthanasia),
			Comment:      optText(s, fieldOutcomeNotice),
		},
	}
	if p.Empty() {
		return models.AnimalPatch{}, errors.New("nothing to update")
	}
	if err := models.ValidateAnimalPatch(p); err != nil {
		return models.AnimalPatch{}, err
	}
	return p, nil
}

func patchSummary(p models.AnimalPatch, loc *time.Location) string {
	var l format.Lines
	if p.ChipID != nil {
		l.Add(format.Field(models.TitleChipID, *p.ChipID))
	}
	if p.Sterilized != nil {
		l.Add(format.Flag(models.TitleSterilized, *p.Sterilized))
	}
	if p.Vaccinated != nil {
		l.Add(format.Flag(models.TitleVaccinated, *p.Vaccinated))
	}
	l.Break()
	if p.ReturnDate != nil {
		l.Add(format.Field(models.TitleReturnDate, formatDate(*p.ReturnDate, loc)))
	}
	if p.ReturnPlace != nil {
		l.Add(format.Field(models.TitleReturnPlace, *p.ReturnPlace))
	}
	l.Break()
	if p.Euthanasia != nil {
		l.Add(format.Field(models.TitleEuthanasia, formatDate(*p.Euthanasia, loc)))
	}
	if p.Comment != nil {
		l.Add(format.Field(models.TitleComment, *p.Comment))
	}
	return l.String()
}
