package service

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"animelist_service/internal/models"
	"animelist_service/internal/storage"
)

// memStorage is an in-memory Storage with the same uniqueness semantics
// as the postgres schema: unique logins, unique anime names, one list
// entry per (user, anime) pair.
type memStorage struct {
	mu      sync.Mutex
	users   map[uuid.UUID]models.User
	creds   map[string]models.Credentials
	anime   map[uuid.UUID]models.Anime
	entries map[entryKey]models.ListEntry
}

type entryKey struct {
	userID  uuid.UUID
	animeID uuid.UUID
}

func newMemStorage() *memStorage {
	return &memStorage{
		users:   make(map[uuid.UUID]models.User),
		creds:   make(map[string]models.Credentials),
		anime:   make(map[uuid.UUID]models.Anime),
		entries: make(map[entryKey]models.ListEntry),
	}
}

func (m *memStorage) CreateUser(_ context.Context, login, passwordHash string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.creds[login]; ok {
		return uuid.Nil, storage.ErrAlreadyExists
	}

	id := uuid.Must(uuid.NewV4())
	m.users[id] = models.User{ID: id, Login: login, CreatedAt: time.Now().UTC(), Active: true}
	m.creds[login] = models.Credentials{UserID: id, PasswordHash: passwordHash}

	return id, nil
}

func (m *memStorage) GetUserByID(_ context.Context, userID uuid.UUID) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (m *memStorage) GetCredentialsByLogin(_ context.Context, login string) (models.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.creds[login]
	if !ok {
		return models.Credentials{}, storage.ErrNotFound
	}
	return cred, nil
}

func (m *memStorage) CreateAnime(_ context.Context, name string, totalEpisodes *int) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.anime {
		if a.Name == name {
			return uuid.Nil, storage.ErrAlreadyExists
		}
	}

	id := uuid.Must(uuid.NewV4())
	m.anime[id] = models.Anime{ID: id, Name: name, TotalEpisodes: totalEpisodes, CreatedAt: time.Now().UTC()}

	return id, nil
}

func (m *memStorage) GetAnimeByID(_ context.Context, animeID uuid.UUID) (models.Anime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	anime, ok := m.anime[animeID]
	if !ok {
		return models.Anime{}, storage.ErrNotFound
	}
	return anime, nil
}

func (m *memStorage) CreateListEntry(_ context.Context, entry models.ListEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entryKey{userID: entry.UserID, animeID: entry.AnimeID}
	if _, ok := m.entries[key]; ok {
		return storage.ErrAlreadyExists
	}
	m.entries[key] = entry

	return nil
}

func (m *memStorage) GetListEntry(_ context.Context, userID, animeID uuid.UUID) (models.ListEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[entryKey{userID: userID, animeID: animeID}]
	if !ok {
		return models.ListEntry{}, storage.ErrNotFound
	}
	return entry, nil
}

func (m *memStorage) UpdateListEntry(_ context.Context, entry models.ListEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entryKey{userID: entry.UserID, animeID: entry.AnimeID}
	if _, ok := m.entries[key]; !ok {
		return storage.ErrNotFound
	}
	m.entries[key] = entry

	return nil
}

func (m *memStorage) DeleteListEntry(_ context.Context, userID, animeID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, entryKey{userID: userID, animeID: animeID})

	return nil
}

func (m *memStorage) ListEntriesByUser(_ context.Context, userID uuid.UUID) ([]models.ListEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []models.ListEntry
	for key, entry := range m.entries {
		if key.userID == userID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (m *memStorage) Close() {}

func (m *memStorage) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// fakeRegistry is an in-memory session.Registry with injectable failures.
type fakeRegistry struct {
	mu   sync.Mutex
	jtis map[uuid.UUID]string

	registerErr error
	isActiveErr error
	revokeErr   error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{jtis: make(map[uuid.UUID]string)}
}

func (f *fakeRegistry) Register(_ context.Context, userID uuid.UUID, jti string, _ time.Duration) error {
	if f.registerErr != nil {
		return f.registerErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.jtis[userID] = jti

	return nil
}

func (f *fakeRegistry) IsActive(_ context.Context, userID uuid.UUID, jti string) (bool, error) {
	if f.isActiveErr != nil {
		return false, f.isActiveErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.jtis[userID]

	return ok && stored == jti, nil
}

func (f *fakeRegistry) Revoke(_ context.Context, userID uuid.UUID) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jtis, userID)

	return nil
}

func (f *fakeRegistry) activeJTI(userID uuid.UUID) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	jti, ok := f.jtis[userID]
	return jti, ok
}
