package animals

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/m3rciful/catchbot/core/flow"
	"github.com/m3rciful/catchbot/core/state"
	"github.com/m3rciful/catchbot/core/telegram/format"
	"github.com/m3rciful/catchbot/internal/models"
)

// NewIntake defines the conversation that registers a caught animal. Dates
// are read and shown in loc.
func NewIntake(store Creator, loc *time.Location) *flow.Flow {
	if loc == nil {
		loc = time.UTC
	}
	typeOptions := make([]flow.Control, 0, len(models.AnimalTypes))
	for _, t := range models.AnimalTypes {
		typeOptions = append(typeOptions, flow.Option(t.Icon()+" "+t.Label(), string(t)))
	}
	sexOptions := make([]flow.Control, 0, len(models.Sexes))
	for _, s := range models.Sexes {
		sexOptions = append(sexOptions, flow.Option(s.Icon()+" "+s.Label(), string(s)))
	}

	return &flow.Flow{
		Name: IntakeFlow,
		Steps: []flow.Step{
			photoStep(fieldCatchPhoto, "📸 Отправьте фото животного, сделанное при отлове.", fieldCatchPlace),
			placeStep(fieldCatchPlace, "🗺️ Введите место отлова животного.\n📍 Или отправьте геолокацию.", fieldCatchDate),
			dateStep(fieldCatchDate, "📅 Введите дату отлова животного в формате ГГГГ-ММ-ДД чч:мм", loc, "", fieldType),
			{
				Name:   fieldType,
				Accept: flow.InputChoice,
				Prompt: func(flow.View) flow.Prompt {
					return flow.Prompt{Text: "❔ Выберите вид животного.", Controls: [][]flow.Control{typeOptions}}
				},
				Validate: flow.OneOf(string(models.AnimalDog), string(models.AnimalCat), string(models.AnimalOther)),
				Next:     fieldBreed,
			},
			textStep(fieldBreed, "🐩 Введите предполагаемую породу животного.", models.MaxShortLen, fieldColor),
			textStep(fieldColor, "🎨 Введите цвет животного, окрас его шерсти.", models.MaxShortLen, fieldSex),
			{
				Name:   fieldSex,
				Accept: flow.InputChoice,
				Prompt: func(flow.View) flow.Prompt {
					return flow.Prompt{Text: "⚧️ Выберите пол животного.", Controls: [][]flow.Control{sexOptions}}
				},
				Validate: flow.OneOf(string(models.SexMale), string(models.SexFemale), string(models.SexUndefined)),
				Next:     fieldFeatures,
			},
			optional(textStep(fieldFeatures, "🦚 Введите особенности животного.", models.MaxLongLen, fieldTransferPhoto)),
			photoStep(fieldTransferPhoto, "📸 Отправьте фото животного, сделанное в приюте.", fieldTransferDate),
			optional(dateStep(fieldTransferDate, "📅 Введите дату транспортировки в приют в формате ГГГГ-ММ-ДД чч:мм", loc, fieldCatchDate, fieldComment)),
			optional(textStep(fieldComment, "💬 Введите комментарий с дополнительной информацией.", models.MaxLongLen, flow.ReviewStep)),
		},
		Review: flow.Review[models.AnimalCreate]{
			Build: buildCreate,
			Render: func(rec models.AnimalCreate) flow.Prompt {
				return flow.Prompt{Text: "Проверьте введённые данные:\n\n" + createSummary(rec, loc), Photos: rec.Photos()}
			},
			Persist: func(ctx context.Context, rec models.AnimalCreate) (string, error) {
				id, err := store.Create(ctx, rec)
				if err != nil {
					return "", err
				}
				return strconv.FormatInt(id, 10), nil
			},
			Done: func(rec models.AnimalCreate, _ string) flow.Prompt {
				return flow.Prompt{Text: fmt.Sprintf("✅ Животное %s успешно добавлено в базу данных.", rec.Type.Label())}
			},
		},
	}
}

func buildCreate(userID int64, s state.Scratch) (models.AnimalCreate, error) {
	rec := models.AnimalCreate{
		AnimalDetails: models.AnimalDetails{
			Features:      optText(s, fieldFeatures),
			CatchPhoto:    optText(s, fieldCatchPhoto),
			TransferDate:  optTime(s, fieldTransferDate),
			TransferPhoto: optText(s, fieldTransferPhoto),
			Comment:       optText(s, fieldComment),
		},
		CreatedBy: userID,
	}
	var missing []string
	need := func(field string) string {
		v, ok := textOf(s, field)
		if !ok {
			missing = append(missing, field)
		}
		return v
	}
	rec.CatchPlace = need(fieldCatchPlace)
	rec.Breed = need(fieldBreed)
	rec.Color = need(fieldColor)
	rec.Type = models.AnimalType(need(fieldType))
	rec.Sex = models.Sex(need(fieldSex))
	if t := optTime(s, fieldCatchDate); t != nil {
		rec.CatchDate = *t
	} else {
		missing = append(missing, fieldCatchDate)
	}
	if len(missing) > 0 {
		return models.AnimalCreate{}, fmt.Errorf("missing %v", missing)
	}
	if err := models.ValidateAnimalCreate(rec); err != nil {
		return models.AnimalCreate{}, err
	}
	return rec, nil
}

// createSummary lists the collected fields; absent optional ones are omitted.
func createSummary(rec models.AnimalCreate, loc *time.Location) string {
	var l format.Lines
	l.Add(format.Field(models.TitleAnimalType, rec.Type.Label()))
	l.Add(format.Field(models.TitleBreed, rec.Breed))
	l.Add(format.Field(models.TitleSex, rec.Sex.Label()))
	l.Add(format.Field(models.TitleColor, rec.Color))
	if rec.Features != nil {
		l.Add(format.Field(models.TitleFeatures, *rec.Features))
	}
	l.Break()
	l.Add(format.Field(models.TitleCatchDate, formatDate(rec.CatchDate, loc)))
	l.Add(format.Field(models.TitleCatchPlace, rec.CatchPlace))
	if rec.TransferDate != nil {
		l.Break()
		l.Add(format.Field(models.TitleTransferDate, formatDate(*rec.TransferDate, loc)))
	}
	if rec.Comment != nil {
		l.Break()
		l.Add(format.Field(models.TitleComment, *rec.Comment))
	}
	return l.String()
}
