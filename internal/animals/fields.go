// Package animals defines the conversations that record caught animals and
// the rendering of stored records.
package animals

import (
	"context"
	"time"

	"github.com/m3rciful/catchbot/internal/models"
)

// Flow names.
const (
	IntakeFlow  = "animal.intake"
	OutcomeFlow = "animal.outcome"
)

// Scratch fields of the intake and outcome conversations.
const (
	fieldCatchPhoto    = "catch_photo"
	fieldCatchPlace    = "catch_place"
	fieldCatchDate     = "catch_date"
	fieldType          = "animal_type"
	fieldBreed         = "breed"
	fieldColor         = "color"
	fieldSex           = "sex"
	fieldFeatures      = "features"
	fieldTransferPhoto = "transfer_photo"
	fieldTransferDate  = "transfer_date"
	fieldComment       = "comment"

	// FieldAnimalID seeds the outcome flow with the record being updated.
	FieldAnimalID      = "animal_id"
	fieldChipID        = "chip_id"
	fieldSterilized    = "is_sterilized"
	fieldVaccinated    = "is_vaccinated"
	fieldMedicalPhoto  = "medical_photo"
	fieldReturnDate    = "return_date"
	fieldReturnPlace   = "return_place"
	fieldEuthanasia    = "euthanasia_date"
	fieldOutcomeNotice = "outcome_comment"
)

// DateLayout is how dates are typed by users and shown back to them.
const DateLayout = "2006-01-02 15:04"

// Creator stores a new record.
type Creator interface {
	Create(ctx context.Context, in models.AnimalCreate) (int64, error)
}

// Patcher records the outcome of an existing record.
type Patcher interface {
	Patch(ctx context.Context, p models.AnimalPatch) error
}

func formatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}
