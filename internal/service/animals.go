package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/catchbot/core/logger"
	"github.com/m3rciful/catchbot/internal/models"
	"github.com/m3rciful/catchbot/internal/repository"
)

// AnimalService manages the animal registry.
type AnimalService struct {
	repo *repository.AnimalRepo
}

// NewAnimalService wraps the animal repository.
func NewAnimalService(repo *repository.AnimalRepo) *AnimalService {
	return &AnimalService{repo: repo}
}

// Page is one record with the ids of its neighbors in newest-first order.
type Page struct {
	Record models.AnimalRecord
	// Newer and Older are zero at either end of the list.
	Newer int64
	Older int64
}

// Create validates and stores a new record and returns its id.
func (s *AnimalService) Create(ctx context.Context, in models.AnimalCreate) (int64, error) {
	if err := models.ValidateAnimalCreate(in); err != nil {
		return 0, err
	}
	id, err := s.repo.Create(ctx, in)
	if err != nil {
		logger.Error(ctx, componentAnimals, "animal.create",
			slog.Int64("created_by", in.CreatedBy),
			slog.String("err", err.Error()),
		)
		return 0, err
	}
	logger.Info(ctx, componentAnimals, "animal.create",
		slog.Int64("animal_id", id),
		slog.String("animal_type", string(in.Type)),
		slog.Int64("created_by", in.CreatedBy),
	)
	return id, nil
}

// Get loads one record.
func (s *AnimalService) Get(ctx context.Context, id int64) (models.AnimalRecord, error) {
	return s.repo.Get(ctx, id)
}

// Browse returns record id with its neighbors, or the newest record when id
// is zero. An empty registry yields ErrNotFound.
func (s *AnimalService) Browse(ctx context.Context, id int64, f models.AnimalFilter) (Page, error) {
	if id == 0 {
		latest, err := s.repo.Latest(ctx, f)
		if err != nil {
			return Page{}, err
		}
		id = latest
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Page{}, err
	}
	newer, older, err := s.repo.Neighbors(ctx, id, f)
	if err != nil {
		return Page{}, err
	}
	return Page{Record: rec, Newer: newer, Older: older}, nil
}

// Patch records the outcome of an existing animal.
func (s *AnimalService) Patch(ctx context.Context, p models.AnimalPatch) error {
	if err := models.ValidateAnimalPatch(p); err != nil {
		return err
	}
	if err := s.repo.Patch(ctx, p); err != nil {
		logger.Error(ctx, componentAnimals, "animal.patch",
			slog.Int64("animal_id", p.ID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("service: patch animal %d: %w", p.ID, err)
	}
	logger.Info(ctx, componentAnimals, "animal.patch", slog.Int64("animal_id", p.ID))
	return nil
}

// CanEditOutcome reports whether u may record the outcome of rec.
func CanEditOutcome(u models.User, rec models.AnimalRecord) bool {
	return u.Role == models.RoleAdmin || (u.Role == models.RoleCatcher && rec.CreatedBy == u.TgID)
}
