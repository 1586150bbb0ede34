package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Text limits for free-form fields.
const (
	MaxNameLen  = 64
	MaxShortLen = 128
	MaxLongLen  = 1024
)

var (
	ErrRequired = errors.New("required field missing")
	ErrTooLong  = errors.New("value too long")
	ErrInvalid  = errors.New("invalid value")
)

// FieldError reports which field failed validation.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }

func (e *FieldError) Unwrap() error { return e.Err }

func checkText(field, v string, limit int, required bool) error {
	v = strings.TrimSpace(v)
	if v == "" {
		if required {
			return &FieldError{Field: field, Err: ErrRequired}
		}
		return nil
	}
	if utf8.RuneCountInString(v) > limit {
		return &FieldError{Field: field, Err: ErrTooLong}
	}
	return nil
}

func checkOptional(field string, v *string, limit int) error {
	if v == nil {
		return nil
	}
	return checkText(field, *v, limit, true)
}

// ValidateUserName checks a display name for a new user.
func ValidateUserName(name string) error {
	return checkText("name", name, MaxNameLen, true)
}

// ValidateInvite checks an invite before it is stored.
func ValidateInvite(in InviteCreate) error {
	if !in.Role.Valid() {
		return &FieldError{Field: "role", Err: ErrInvalid}
	}
	return ValidateUserName(in.Name)
}

// ValidateAnimalCreate checks a record collected by intake.
func ValidateAnimalCreate(in AnimalCreate) error {
	if !in.Type.Valid() {
		return &FieldError{Field: "animal_type", Err: ErrInvalid}
	}
	if !in.Sex.Valid() {
		return &FieldError{Field: "sex", Err: ErrInvalid}
	}
	if in.CatchDate.IsZero() {
		return &FieldError{Field: "catch_date", Err: ErrRequired}
	}
	if in.CreatedBy == 0 {
		return &FieldError{Field: "created_by", Err: ErrRequired}
	}
	if !NotBefore(in.TransferDate, in.CatchDate) {
		return &FieldError{Field: "transfer_date", Err: ErrInvalid}
	}
	return errors.Join(
		checkText("breed", in.Breed, MaxShortLen, true),
		checkText("color", in.Color, MaxShortLen, true),
		checkText("catch_place", in.CatchPlace, MaxLongLen, true),
		ValidateDetails(in.AnimalDetails),
	)
}

// ValidateDetails checks the optional fields shared by every record shape.
func ValidateDetails(d AnimalDetails) error {
	if d.ReturnDate != nil && d.Euthanasia != nil {
		return &FieldError{Field: "euthanasia_date", Err: ErrInvalid}
	}
	return errors.Join(
		checkOptional("features", d.Features, MaxLongLen),
		checkOptional("chip_id", d.ChipID, MaxShortLen),
		checkOptional("return_place", d.ReturnPlace, MaxLongLen),
		checkOptional("comment", d.Comment, MaxLongLen),
	)
}

// ValidateAnimalPatch checks an outcome update.
func ValidateAnimalPatch(p AnimalPatch) error {
	if p.ID <= 0 {
		return &FieldError{Field: "id", Err: ErrRequired}
	}
	if p.Empty() {
		return &FieldError{Field: "patch", Err: ErrRequired}
	}
	return ValidateDetails(p.AnimalDetails)
}

// NotBefore reports whether t is at or after ref; a nil t passes.
func NotBefore(t *time.Time, ref time.Time) bool {
	return t == nil || !t.Before(ref)
}
