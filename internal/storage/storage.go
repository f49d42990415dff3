package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"animelist_service/internal/models"
)

const (
	usersTable       = "users"
	animeTable       = "anime"
	listEntriesTable = "list_entries"
)

const uniqueViolationCode = "23505"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type Storage interface {
	CreateUser(ctx context.Context, login, passwordHash string) (uuid.UUID, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetCredentialsByLogin(ctx context.Context, login string) (models.Credentials, error)

	CreateAnime(ctx context.Context, name string, totalEpisodes *int) (uuid.UUID, error)
	GetAnimeByID(ctx context.Context, animeID uuid.UUID) (models.Anime, error)

	CreateListEntry(ctx context.Context, entry models.ListEntry) error
	GetListEntry(ctx context.Context, userID, animeID uuid.UUID) (models.ListEntry, error)
	UpdateListEntry(ctx context.Context, entry models.ListEntry) error
	DeleteListEntry(ctx context.Context, userID, animeID uuid.UUID) error
	ListEntriesByUser(ctx context.Context, userID uuid.UUID) ([]models.ListEntry, error)

	Close()
}

type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(dbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(context.Background(), dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db: conn,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func (p *PostgresStorage) CreateUser(ctx context.Context, login, passwordHash string) (uuid.UUID, error) {
	const op = "storage.CreateUser"

	var userID uuid.UUID
	query := fmt.Sprintf("INSERT INTO %s(login, password_hash) VALUES ($1, $2) RETURNING id;", usersTable)

	err := p.db.QueryRow(ctx, query, login, passwordHash).Scan(&userID)
	if err != nil {
		if isUniqueViolation(err) {
			return userID, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return userID, fmt.Errorf("%s: %w", op, err)
	}

	return userID, nil
}

func (p *PostgresStorage) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "storage.GetUserByID"

	var user models.User
	query := fmt.Sprintf("SELECT id, login, created_at, active FROM %s WHERE id=$1 AND active=TRUE;", usersTable)

	err := p.db.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Login, &user.CreatedAt, &user.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) GetCredentialsByLogin(ctx context.Context, login string) (models.Credentials, error) {
	const op = "storage.GetCredentialsByLogin"

	var cred models.Credentials
	query := fmt.Sprintf("SELECT id, password_hash FROM %s WHERE login=$1 AND active=TRUE;", usersTable)

	err := p.db.QueryRow(ctx, query, login).Scan(&cred.UserID, &cred.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cred, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return cred, fmt.Errorf("%s: %w", op, err)
	}

	return cred, nil
}

func (p *PostgresStorage) CreateAnime(ctx context.Context, name string, totalEpisodes *int) (uuid.UUID, error) {
	const op = "storage.CreateAnime"

	var animeID uuid.UUID
	query := fmt.Sprintf("INSERT INTO %s(name, total_episodes) VALUES ($1, $2) RETURNING id;", animeTable)

	err := p.db.QueryRow(ctx, query, name, totalEpisodes).Scan(&animeID)
	if err != nil {
		if isUniqueViolation(err) {
			return animeID, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return animeID, fmt.Errorf("%s: %w", op, err)
	}

	return animeID, nil
}

func (p *PostgresStorage) GetAnimeByID(ctx context.Context, animeID uuid.UUID) (models.Anime, error) {
	const op = "storage.GetAnimeByID"

	var anime models.Anime
	query := fmt.Sprintf("SELECT id, name, total_episodes, created_at FROM %s WHERE id=$1;", animeTable)

	err := p.db.QueryRow(ctx, query, animeID).Scan(&anime.ID, &anime.Name, &anime.TotalEpisodes, &anime.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return anime, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return anime, fmt.Errorf("%s: %w", op, err)
	}

	return anime, nil
}

// CreateListEntry relies on the (user_id, anime_id) unique constraint to
// serialize concurrent creation for the same pair. A losing writer gets
// ErrAlreadyExists and is expected to re-fetch.
func (p *PostgresStorage) CreateListEntry(ctx context.Context, entry models.ListEntry) error {
	const op = "storage.CreateListEntry"

	query := fmt.Sprintf(`INSERT INTO %s(user_id, anime_id, status, episodes_watched, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6);`, listEntriesTable)

	_, err := p.db.Exec(ctx, query,
		entry.UserID, entry.AnimeID, string(entry.Status), entry.EpisodesWatched, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) GetListEntry(ctx context.Context, userID, animeID uuid.UUID) (models.ListEntry, error) {
	const op = "storage.GetListEntry"

	var entry models.ListEntry
	query := fmt.Sprintf(`SELECT user_id, anime_id, status, episodes_watched, created_at, updated_at
	FROM %s WHERE user_id=$1 AND anime_id=$2;`, listEntriesTable)

	var status string
	err := p.db.QueryRow(ctx, query, userID, animeID).Scan(
		&entry.UserID,
		&entry.AnimeID,
		&status,
		&entry.EpisodesWatched,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entry, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return entry, fmt.Errorf("%s: %w", op, err)
	}
	entry.Status = models.WatchStatus(status)

	return entry, nil
}

func (p *PostgresStorage) UpdateListEntry(ctx context.Context, entry models.ListEntry) error {
	const op = "storage.UpdateListEntry"

	query := fmt.Sprintf(`UPDATE %s SET status=$3, episodes_watched=$4, updated_at=$5
	WHERE user_id=$1 AND anime_id=$2;`, listEntriesTable)

	tag, err := p.db.Exec(ctx, query,
		entry.UserID, entry.AnimeID, string(entry.Status), entry.EpisodesWatched, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return nil
}

func (p *PostgresStorage) DeleteListEntry(ctx context.Context, userID, animeID uuid.UUID) error {
	const op = "storage.DeleteListEntry"

	query := fmt.Sprintf("DELETE FROM %s WHERE user_id=$1 AND anime_id=$2;", listEntriesTable)

	if _, err := p.db.Exec(ctx, query, userID, animeID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) ListEntriesByUser(ctx context.Context, userID uuid.UUID) ([]models.ListEntry, error) {
	const op = "storage.ListEntriesByUser"

	var entries []models.ListEntry
	query := fmt.Sprintf(`SELECT user_id, anime_id, status, episodes_watched, created_at, updated_at
	FROM %s WHERE user_id=$1 ORDER BY updated_at DESC;`, listEntriesTable)

	rows, err := p.db.Query(ctx, query, userID)
	if err != nil {
		return entries, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.ListEntry
		var status string

		err := rows.Scan(
			&entry.UserID,
			&entry.AnimeID,
			&status,
			&entry.EpisodesWatched,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return entries, fmt.Errorf("%s: %w", op, err)
		}
		entry.Status = models.WatchStatus(status)

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}

	return entries, nil
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}
