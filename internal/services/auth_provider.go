package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iamCapel/mopc-reportes/internal/models"
	"github.com/iamCapel/mopc-reportes/internal/store"
)

// AuthProvider is the email-identity auth collaborator. The domain logs in by
// username; UserService resolves the username to its email first.
type AuthProvider interface {
	CreateAccount(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Logout(ctx context.Context, token string) error
	Session(ctx context.Context, token string) (*models.Session, error)
	DeleteAccount(ctx context.Context, email string) error
	ChangeEmail(ctx context.Context, oldEmail, newEmail string) error
}

// ErrAccountExists is returned when an email already has an account.
var ErrAccountExists = errors.New("ya existe una cuenta con ese correo")

// LocalAuthProvider keeps bcrypt hashes in the accounts collection and
// sessions in memory.
type LocalAuthProvider struct {
	accounts *store.AccountStore
	sessions *cache.Cache
	ttl      time.Duration
	cost     int
}

func NewLocalAuthProvider(accounts *store.AccountStore, sessionTTL time.Duration) *LocalAuthProvider {
	return &LocalAuthProvider{
		accounts: accounts,
		sessions: cache.New(sessionTTL, 10*time.Minute),
		ttl:      sessionTTL,
		cost:     bcrypt.DefaultCost,
	}
}

func (p *LocalAuthProvider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	existing, err := p.accounts.Get(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrAccountExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("hash de contraseña: %w", err)
	}
	account := &store.Account{Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	if err := p.accounts.Put(ctx, account); err != nil {
		return "", err
	}
	return account.ID, nil
}

func (p *LocalAuthProvider) Login(ctx context.Context, email, password string) (*models.Session, error) {
	account, err := p.accounts.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	session := &models.Session{
		Token:     uuid.NewString(),
		AccountID: account.ID,
		Email:     account.Email,
		ExpiresAt: time.Now().Add(p.ttl),
	}
	p.sessions.SetDefault(session.Token, *session)
	return session, nil
}

func (p *LocalAuthProvider) Logout(_ context.Context, token string) error {
	p.sessions.Delete(token)
	return nil
}

// Session returns the live session for token, or nil.
func (p *LocalAuthProvider) Session(_ context.Context, token string) (*models.Session, error) {
	v, ok := p.sessions.Get(strings.TrimSpace(token))
	if !ok {
		return nil, nil
	}
	session := v.(models.Session)
	return &session, nil
}

// DeleteAccount removes the credentials and ends every session of the account.
func (p *LocalAuthProvider) DeleteAccount(ctx context.Context, email string) error {
	key := store.AccountKey(email)
	for token, item := range p.sessions.Items() {
		if s, ok := item.Object.(models.Session); ok && s.AccountID == key {
			p.sessions.Delete(token)
		}
	}
	if err := p.accounts.Delete(ctx, email); err != nil {
		return err
	}
	zap.S().Debugf("auth: cuenta %s eliminada", key)
	return nil
}

// ChangeEmail moves the credentials to newEmail. Live sessions of the account
// follow it and keep their expiry.
func (p *LocalAuthProvider) ChangeEmail(ctx context.Context, oldEmail, newEmail string) error {
	oldKey, newKey := store.AccountKey(oldEmail), store.AccountKey(newEmail)
	if oldKey == newKey {
		return nil
	}
	account, err := p.accounts.Get(ctx, oldEmail)
	if err != nil {
		return err
	}
	if account == nil {
		return models.ErrNotFound
	}
	taken, err := p.accounts.Get(ctx, newEmail)
	if err != nil {
		return err
	}
	if taken != nil {
		return ErrAccountExists
	}

	moved := *account
	moved.Email = newEmail
	if err := p.accounts.Put(ctx, &moved); err != nil {
		return err
	}
	if err := p.accounts.Delete(ctx, oldEmail); err != nil {
		zap.S().Warnf("auth: cuenta %s movida a %s pero la anterior no se pudo borrar: %v", oldKey, newKey, err)
	}

	for token, item := range p.sessions.Items() {
		s, ok := item.Object.(models.Session)
		if !ok || s.AccountID != oldKey {
			continue
		}
		s.AccountID, s.Email = moved.ID, moved.Email
		if ttl := time.Until(s.ExpiresAt); ttl > 0 {
			p.sessions.Set(token, s, ttl)
		}
	}
	zap.S().Debugf("auth: cuenta %s ahora es %s", oldKey, newKey)
	return nil
}
