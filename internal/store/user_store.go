package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iamCapel/mopc-reportes/internal/models"
)

// UserStore keeps user profiles. Usernames are stored lowercased so lookups
// are case-insensitive.
type UserStore struct {
	backend Backend
	now     func() time.Time
}

func NewUserStore(backend Backend) *UserStore {
	return &UserStore{backend: backend, now: time.Now}
}

// Create persists a new user. It fails with ErrDuplicateUsername when the
// username is already taken.
func (s *UserStore) Create(ctx context.Context, u *models.User) (*models.User, error) {
	username := normalizeUsername(u.Username)
	if username == "" {
		return nil, models.NewValidationError(models.FieldClassUsuario, "el nombre de usuario es obligatorio")
	}

	existing, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrDuplicateUsername
	}

	created := *u
	created.Username = username
	created.Email = strings.ToLower(strings.TrimSpace(created.Email))
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = s.now()
	}

	if err := s.backend.Put(ctx, CollectionUsers, created.ID, &created); err != nil {
		return nil, fmt.Errorf("guardado usuario %s: %w", username, err)
	}
	return &created, nil
}

// GetByID returns the user, or nil when absent.
func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	found, err := s.backend.Get(ctx, CollectionUsers, id, &u)
	if err != nil {
		return nil, fmt.Errorf("lectura usuario %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &u, nil
}

// GetByUsername returns the user with that username, or nil when absent.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	username = normalizeUsername(username)
	if username == "" {
		return nil, nil
	}

	var users []models.User
	if err := s.backend.Query(ctx, CollectionUsers, "username", username, &users); err != nil {
		return nil, fmt.Errorf("búsqueda usuario %s: %w", username, err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// GetByEmail returns the user registered with email, or nil when absent.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var users []models.User
	if err := s.backend.Query(ctx, CollectionUsers, "email", email, &users); err != nil {
		return nil, fmt.Errorf("búsqueda usuario por correo %s: %w", email, err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// GetAll returns every user ordered by username.
func (s *UserStore) GetAll(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.backend.All(ctx, CollectionUsers, &users); err != nil {
		return nil, fmt.Errorf("lectura usuarios: %w", err)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// Update replaces the stored user. The username cannot change.
func (s *UserStore) Update(ctx context.Context, u *models.User) (*models.User, error) {
	current, err := s.GetByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	updated := *u
	updated.Username = current.Username
	updated.Email = strings.ToLower(strings.TrimSpace(updated.Email))
	updated.CreatedAt = current.CreatedAt
	if err := s.backend.Put(ctx, CollectionUsers, updated.ID, &updated); err != nil {
		return nil, fmt.Errorf("actualización usuario %s: %w", u.ID, err)
	}
	return &updated, nil
}

// Delete removes the user profile only; reports and drafts are kept.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, CollectionUsers, id); err != nil {
		return fmt.Errorf("borrado usuario %s: %w", id, err)
	}
	return nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
