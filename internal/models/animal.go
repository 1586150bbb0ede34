package models

import "time"

// AnimalType is the kind of animal caught.
type AnimalType string

const (
	AnimalDog   AnimalType = "DOG"
	AnimalCat   AnimalType = "CAT"
	AnimalOther AnimalType = "OTHER"
)

// AnimalTypes lists the types in button order.
var AnimalTypes = []AnimalType{AnimalDog, AnimalCat, AnimalOther}

// Valid reports whether t is a known type.
func (t AnimalType) Valid() bool {
	switch t {
	case AnimalDog, AnimalCat, AnimalOther:
		return true
	}
	return false
}

// Label is the human-readable name.
func (t AnimalType) Label() string {
	switch t {
	case AnimalDog:
		return "Собака"
	case AnimalCat:
		return "Кошка"
	case AnimalOther:
		return "Другое"
	}
	return string(t)
}

// Icon prefixes the label on buttons.
func (t AnimalType) Icon() string {
	switch t {
	case AnimalDog:
		return "🐕"
	case AnimalCat:
		return "🐈"
	}
	return "🦕"
}

// Sex of the animal.
type Sex string

const (
	SexMale      Sex = "MALE"
	SexFemale    Sex = "FEMALE"
	SexUndefined Sex = "UNDEFINED"
)

// Sexes lists the values in button order.
var Sexes = []Sex{SexMale, SexFemale, SexUndefined}

func (s Sex) Valid() bool {
	switch s {
	case SexMale, SexFemale, SexUndefined:
		return true
	}
	return false
}

func (s Sex) Label() string {
	switch s {
	case SexMale:
		return "Самец"
	case SexFemale:
		return "Самка"
	case SexUndefined:
		return "Неопределенно"
	}
	return string(s)
}

func (s Sex) Icon() string {
	switch s {
	case SexMale:
		return "♂️"
	case SexFemale:
		return "♀️"
	}
	return "❔"
}

// Field titles shared by the review summary and the record card.
const (
	TitleAnimalType    = "Вид животного"
	TitleSex           = "Пол"
	TitleBreed         = "Порода"
	TitleColor         = "Окрас"
	TitleFeatures      = "Особенности"
	TitleChipID        = "ID чипа"
	TitleMedicalPhoto  = "Фото из медкарты"
	TitleCatchPhoto    = "Фото отлова"
	TitleSterilized    = "Стерилизовано"
	TitleVaccinated    = "Вакцинировано"
	TitleCatchDate     = "Дата отлова"
	TitleCatchPlace    = "Место отлова"
	TitleTransferDate  = "Дата передачи в приют"
	TitleTransferPhoto = "Фото при передаче в приют"
	TitleReturnDate    = "Дата выпуска"
	TitleReturnPlace   = "Место выпуска"
	TitleEuthanasia    = "Дата эвтаназии"
	TitleComment       = "Комментарий"
	TitleCreatedBy     = "Автор записи"
)

// AnimalDetails is the optional part of a record, shared by the stored
// record and its create and patch inputs.
type AnimalDetails struct {
	Features      *string    `db:"features"`
	ChipID        *string    `db:"chip_id"`
	MedicalPhoto  *string    `db:"medical_photo"`
	CatchPhoto    *string    `db:"catch_photo"`
	TransferDate  *time.Time `db:"transfer_date"`
	TransferPhoto *string    `db:"transfer_photo"`
	ReturnDate    *time.Time `db:"return_date"`
	ReturnPlace   *string    `db:"return_place"`
	Euthanasia    *time.Time `db:"euthanasia_date"`
	Comment       *string    `db:"comment"`
}

// Photos returns the image references in album order.
func (d AnimalDetails) Photos() []string {
	var out []string
	for _, p := range []*string{d.CatchPhoto, d.TransferPhoto, d.MedicalPhoto} {
		if p != nil && *p != "" {
			out = append(out, *p)
		}
	}
	return out
}

// Empty reports whether no detail is set.
func (d AnimalDetails) Empty() bool {
	return d.Features == nil && d.ChipID == nil && d.MedicalPhoto == nil && d.CatchPhoto == nil &&
		d.TransferDate == nil && d.TransferPhoto == nil && d.ReturnDate == nil && d.ReturnPlace == nil &&
		d.Euthanasia == nil && d.Comment == nil
}

// AnimalRecord is one caught animal.
type AnimalRecord struct {
	ID         int64      `db:"id"`
	Type       AnimalType `db:"animal_type"`
	Sex        Sex        `db:"sex"`
	Breed      string     `db:"breed"`
	Color      string     `db:"color"`
	Sterilized bool       `db:"is_sterilized"`
	Vaccinated bool       `db:"is_vaccinated"`
	CatchDate  time.Time  `db:"catch_date"`
	CatchPlace string     `db:"catch_place"`
	AnimalDetails
	CreatedBy int64 `db:"created_by"`
	// AuthorName is the author's current display name; nil once the author is removed.
	AuthorName *string   `db:"author_name"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// AnimalCreate is the input collected by the intake conversation.
type AnimalCreate struct {
	Type       AnimalType
	Sex        Sex
	Breed      string
	Color      string
	CatchDate  time.Time
	CatchPlace string
	AnimalDetails
	CreatedBy int64
}

// AnimalPatch updates the outcome of an existing record. Nil fields are left unchanged.
type AnimalPatch struct {
	ID         int64
	Sterilized *bool
	Vaccinated *bool
	AnimalDetails
}

// Empty reports whether the patch changes nothing.
func (p AnimalPatch) Empty() bool {
	return p.Sterilized == nil && p.Vaccinated == nil && p.AnimalDetails.Empty()
}

// AnimalFilter narrows record browsing.
type AnimalFilter struct {
	// CreatedBy limits the list to one author; zero means everyone.
	CreatedBy int64
}
