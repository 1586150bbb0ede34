package animals

import (
	"time"

	"github.com/m3rciful/catchbot/core/telegram/format"
	"github.com/m3rciful/catchbot/internal/models"
)

// Texts shown while browsing.
const (
	EmptyListText = "🙀 Список животных пуст."
	NotFoundText  = "🙀 Запись не найдена."
)

// Card renders a stored record as an HTML message body.
func Card(rec models.AnimalRecord, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var l format.Lines
	l.Add(format.Field(models.TitleCreatedBy, format.Deref(rec.AuthorName, "—")))
	l.Add(format.Field(models.TitleAnimalType, rec.Type.Label()))
	l.Add(format.Field(models.TitleBreed, rec.Breed))
	l.Add(format.Field(models.TitleSex, rec.Sex.Label()))
	l.Add(format.Field(models.TitleColor, rec.Color))
	if rec.Features != nil {
		l.Add(format.Field(models.TitleFeatures, *rec.Features))
	}
	l.Break()
	if rec.ChipID != nil {
		l.Add(format.Field(models.TitleChipID, *rec.ChipID))
	}
	l.Add(format.Flag(models.TitleSterilized, rec.Sterilized))
	l.Add(format.Flag(models.TitleVaccinated, rec.Vaccinated))
	l.Break()
	l.Add(format.Field(models.TitleCatchDate, formatDate(rec.CatchDate, loc)))
	l.Add(format.Field(models.TitleCatchPlace, rec.CatchPlace))
	l.Break()
	if rec.TransferDate != nil {
		l.Add(format.Field(models.TitleTransferDate, formatDate(*rec.TransferDate, loc)))
	}
	l.Break()
	if rec.ReturnDate != nil {
		l.Add(format.Field(models.TitleReturnDate, formatDate(*rec.ReturnDate, loc)))
	}
	if rec.ReturnPlace != nil {
		l.Add(format.Field(models.TitleReturnPlace, *rec.ReturnPlace))
	}
	l.Break()
	if rec.Euthanasia != nil {
		l.Add(format.Field(models.TitleEuthanasia, formatDate(*rec.Euthanasia, loc)))
	}
	if rec.Comment != nil {
		l.Add(format.Field(models.TitleComment, *rec.Comment))
	}
	return l.String()
}
