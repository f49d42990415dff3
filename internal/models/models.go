package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type WatchStatus string

const (
	StatusPlanned   WatchStatus = "planned"
	StatusWatching  WatchStatus = "watching"
	StatusCompleted WatchStatus = "completed"
	StatusDropped   WatchStatus = "dropped"
	StatusOnHold    WatchStatus = "on-hold"
)

func (s WatchStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusWatching, StatusCompleted, StatusDropped, StatusOnHold:
		return true
	}
	return false
}

type User struct {
	ID        uuid.UUID `json:"id"`
	Login     string    `json:"login"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"-"`
}

type Credentials struct {
	UserID       uuid.UUID
	PasswordHash string
}

type Anime struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	TotalEpisodes *int      `json:"total_episodes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type ListEntry struct {
	UserID          uuid.UUID   `json:"user_id"`
	AnimeID         uuid.UUID   `json:"anime_id"`
	Status          WatchStatus `json:"status"`
	EpisodesWatched int         `json:"episodes_watched"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
