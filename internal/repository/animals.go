package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/catchbot/core/clock"
	"github.com/m3rciful/catchbot/internal/models"
)

// AnimalRepo persists animal records.
type AnimalRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

const animalSelect = `SELECT a.id, a.animal_type, a.sex, a.breed, a.color, a.features, a.chip_id,
	a.medical_photo, a.catch_photo, a.is_sterilized, a.is_vaccinated, a.catch_date, a.catch_place,
	a.transfer_date, a.transfer_photo, a.return_date, a.return_place, a.euthanasia_date, a.comment,
	a.created_by, u.name AS author_name, a.created_at, a.updated_at
	FROM animals a LEFT JOIN users u ON u.tg_id = a.created_by`

// Create inserts a record and returns its id.
func (r *AnimalRepo) Create(ctx context.Context, in models.AnimalCreate) (int64, error) {
	now := r.clock.Now().UTC()
	q := r.db.Rebind(`INSERT INTO animals (animal_type, sex, breed, color, is_sterilized, is_vaccinated,
		catch_date, catch_place, features, chip_id, medical_photo, catch_photo, transfer_date,
		transfer_photo, return_date, return_place, euthanasia_date, comment, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, FALSE, FALSE, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	d := in.AnimalDetails
	var id int64
	err := r.db.QueryRowxContext(ctx, q,
		in.Type, in.Sex, in.Breed, in.Color, in.CatchDate.UTC(), in.CatchPlace,
		d.Features, d.ChipID, d.MedicalPhoto, d.CatchPhoto, utcPtr(d.TransferDate),
		d.TransferPhoto, utcPtr(d.ReturnDate), d.ReturnPlace, utcPtr(d.Euthanasia), d.Comment,
		in.CreatedBy, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("repository: create animal: %w", err)
	}
	return id, nil
}

// Get loads one record with its author's name.
func (r *AnimalRepo) Get(ctx context.Context, id int64) (models.AnimalRecord, error) {
	var rec models.AnimalRecord
	q := r.db.Rebind(animalSelect + ` WHERE a.id = ?`)
	if err := r.db.GetContext(ctx, &rec, q, id); err != nil {
		return models.AnimalRecord{}, notFound("get animal", err)
	}
	return rec, nil
}

// Latest returns the id of the newest record matching f.
func (r *AnimalRepo) Latest(ctx context.Context, f models.AnimalFilter) (int64, error) {
	var id int64
	q := r.db.Rebind(`SELECT COALESCE(MAX(id), 0) FROM animals WHERE (CAST(? AS BIGINT) = 0 OR created_by = ?)`)
	if err := r.db.GetContext(ctx, &id, q, f.CreatedBy, f.CreatedBy); err != nil {
		return 0, fmt.Errorf("repository: latest animal: %w", err)
	}
	if id == 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

// Neighbors returns the ids of the next newer and next older records around
// id among those matching f; zero means there is none.
func (r *AnimalRepo) Neighbors(ctx context.Context, id int64, f models.AnimalFilter) (newer, older int64, err error) {
	q := r.db.Rebind(`SELECT
		(SELECT COALESCE(MIN(id), 0) FROM animals WHERE id > ? AND (CAST(? AS BIGINT) = 0 OR created_by = ?)),
		(SELECT COALESCE(MAX(id), 0) FROM animals WHERE id < ? AND (CAST(? AS BIGINT) = 0 OR created_by = ?))`)
	row := r.db.QueryRowxContext(ctx, q, id, f.CreatedBy, f.CreatedBy, id, f.CreatedBy, f.CreatedBy)
	if err := row.Scan(&newer, &older); err != nil {
		return 0, 0, fmt.Errorf("repository: animal neighbors: %w", err)
	}
	return newer, older, nil
}

// patchColumns fixes the SET order so generated statements are stable.
var patchColumns = []string{
	"features", "chip_id", "medical_photo", "catch_photo", "transfer_date", "transfer_photo",
	"return_date", "return_place", "euthanasia_date", "comment",
}

// Patch applies the non-nil fields of p. A missing record yields ErrNotFound.
func (r *AnimalRepo) Patch(ctx context.Context, p models.AnimalPatch) error {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Sterilized != nil {
		set("is_sterilized", *p.Sterilized)
	}
	if p.Vaccinated != nil {
		set("is_vaccinated", *p.Vaccinated)
	}
	text := map[string]*string{
		"features":       p.Features,
		"chip_id":        p.ChipID,
		"medical_photo":  p.MedicalPhoto,
		"catch_photo":    p.CatchPhoto,
		"transfer_photo": p.TransferPhoto,
		"return_place":   p.ReturnPlace,
		"comment":        p.Comment,
	}
	times := map[string]*time.Time{
		"transfer_date":   p.TransferDate,
		"return_date":     p.ReturnDate,
		"euthanasia_date": p.Euthanasia,
	}
	for _, col := range patchColumns {
		if v, ok := text[col]; ok && v != nil {
			set(col, *v)
		}
		if v, ok := times[col]; ok && v != nil {
			set(col, v.UTC())
		}
	}
	if len(sets) == 0 {
		return nil
	}
	set("updated_at", r.clock.Now().UTC())
	args = append(args, p.ID)

	q := r.db.Rebind(`UPDATE animals SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("repository: patch animal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: patch animal: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
