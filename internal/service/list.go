package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/uuid"

	"animelist_service/internal/models"
	"animelist_service/internal/storage"
)

type Lists interface {
	AddOrGet(ctx context.Context, userID, animeID uuid.UUID) (models.ListEntry, error)
	Get(ctx context.Context, userID, animeID uuid.UUID) (models.ListEntry, error)
	UpdateProgress(ctx context.Context, userID, animeID uuid.UUID, status *models.WatchStatus, episodes *int) (models.ListEntry, error)
	Remove(ctx context.Context, userID, animeID uuid.UUID) error
	Entries(ctx context.Context, userID uuid.UUID) ([]models.ListEntry, error)

	CreateAnime(ctx context.Context, name string, totalEpisodes *int) (models.Anime, error)
	GetAnime(ctx context.Context, animeID uuid.UUID) (models.Anime, error)
}

// ListService guards per-user, per-title invariants of the watchlist:
// one entry per (user, anime) pair, and episode progress never above a
// known total. Uniqueness under concurrent creation is delegated to the
// storage layer's compound key, not to application-level locking.
type ListService struct {
	storage storage.Storage
	log     *slog.Logger
}

func NewListService(st storage.Storage, lgr *slog.Logger) *ListService {
	return &ListService{
		storage: st,
		log:     lgr,
	}
}

// AddOrGet returns the user's existing entry for the anime, or creates one
// with default status. Losing a creation race to a concurrent request is
// resolved by re-fetching, never by erroring.
func (s *ListService) AddOrGet(ctx context.Context, userID, animeID uuid.UUID) (models.ListEntry, error) {
	const op = "service.ListService.AddOrGet"

	entry, err := s.storage.GetListEntry(ctx, userID, animeID)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.ListEntry{}, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.storage.GetAnimeByID(ctx, animeID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.ListEntry{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return models.ListEntry{}, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	entry = models.ListEntry{
		UserID:          userID,
		AnimeID:         animeID,
		Status:          models.StatusPlanned,
		EpisodesWatched: 0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.storage.CreateListEntry(ctx, entry)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, storage.ErrAlreadyExists) {
		return models.ListEntry{}, fmt.Errorf("%s: %w", op, err)
	}

	// Lost the race to a concurrent add for the same pair.
	entry, err = s.storage.GetListEntry(ctx, userID, animeID)
	if err != nil {
		return models.ListEntry{}, fmt.Errorf("%s: %w", op, err)
	}

	return entry, nil
}

func (s *ListService) Get(ctx context.Context, userID, animeID uuid.UUID) (models.ListEntry, error) {
	const op = "service.ListService.Get"

	entry, err := s.storage.GetListEntry(ctx, userID, animeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.ListEntry{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return models.ListEntry{}, fmt.Errorf("%s: %w", op, err)
	}

	return entry, nil
}

// UpdateProgress mutates status and/or episode count of the caller's own
// entry. The user id always comes from the authenticated request, so a
// guessed anime id on someone else's list resolves to NotFound.
func (s *ListService) UpdateProgress(ctx context.Context, userID, animeID uuid.UUID, status *models.WatchStatus, episodes *int) (models.ListEntry, error) {
	const op = "service.ListService.UpdateProgress"

	entry, err := s.storage.GetListEntry(ctx, userID, animeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.ListEntry{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return models.ListEntry{}, fmt.Errorf("%s: %w", op, err)
	}

	if status != nil {
		if !status.Valid() {
			return models.ListEntry{}, fmt.Errorf("%s: %w", op, ErrInvalidProgress)
		}
		entry.Status = *status
	}

	if episodes != nil {
		if *episodes < 0 {
			return models.ListEntry{}, fmt.Errorf("%s: %w", op, ErrInvalidProgress)
		}

		anime, err := s.storage.GetAnimeByID(ctx, animeID)
		if err != nil {
			return models.ListEntry{}, fmt.Errorf("%s: %w", op, err)
		}

		if anime.TotalEpisodes != nil && *episodes > *anime.TotalEpisodes {
			return models.ListEntry{}, fmt.Errorf("%s: %w", op, ErrInvalidProgress)
		}

		entry.EpisodesWatched = *episodes
	}

	entry.UpdatedAt = time.Now().UTC()

	if err := s.storage.UpdateListEntry(ctx, entry); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.ListEntry{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return models.ListEntry{}, fmt.Errorf("%s: %w", op, err)
	}

	return entry, nil
}

func (s *ListService) Remove(ctx context.Context, userID, animeID uuid.UUID) error {
	const op = "service.ListService.Remove"

	if err := s.storage.DeleteListEntry(ctx, userID, animeID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *ListService) Entries(ctx context.Context, userID uuid.UUID) ([]models.ListEntry, error) {
	const op = "service.ListService.Entries"

	entries, err := s.storage.ListEntriesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

func (s *ListService) CreateAnime(ctx context.Context, name string, totalEpisodes *int) (models.Anime, error) {
	const op = "service.ListService.CreateAnime"

	if totalEpisodes != nil && *totalEpisodes < 0 {
		return models.Anime{}, fmt.Errorf("%s: %w", op, ErrInvalidProgress)
	}

	id, err := s.storage.CreateAnime(ctx, name, totalEpisodes)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.Anime{}, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return models.Anime{}, fmt.Errorf("%s: %w", op, err)
	}

	anime, err := s.storage.GetAnimeByID(ctx, id)
	if err != nil {
		return models.Anime{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("anime created", slog.String("anime_id", anime.ID.String()), slog.String("name", name))

	return anime, nil
}

func (s *ListService) GetAnime(ctx context.Context, animeID uuid.UUID) (models.Anime, error) {
	const op = "service.ListService.GetAnime"

	anime, err := s.storage.GetAnimeByID(ctx, animeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Anime{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return models.Anime{}, fmt.Errorf("%s: %w", op, err)
	}

	return anime, nil
}
