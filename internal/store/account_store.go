package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Account is the credential record of the local auth provider. It is keyed
// by email, which is the identity the provider knows.
type Account struct {
	ID           string    `json:"id" dynamodbav:"id" bson:"_id"`
	Email        string    `json:"email" dynamodbav:"email" bson:"email"`
	PasswordHash []byte    `json:"passwordHash" dynamodbav:"passwordHash" bson:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" dynamodbav:"createdAt" bson:"createdAt"`
}

type AccountStore struct {
	backend Backend
}

func NewAccountStore(backend Backend) *AccountStore {
	return &AccountStore{backend: backend}
}

// AccountKey is the document id for an email.
func AccountKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AccountStore) Get(ctx context.Context, email string) (*Account, error) {
	var a Account
	found, err := s.backend.Get(ctx, CollectionAccounts, AccountKey(email), &a)
	if err != nil {
		return nil, fmt.Errorf("lectura cuenta %s: %w", email, err)
	}
	if !found {
		return nil, nil
	}
	return &a, nil
}

func (s *AccountStore) Put(ctx context.Context, a *Account) error {
	a.ID = AccountKey(a.Email)
	a.Email = a.ID
	if err := s.backend.Put(ctx, CollectionAccounts, a.ID, a); err != nil {
		return fmt.Errorf("guardado cuenta %s: %w", a.Email, err)
	}
	return nil
}

func (s *AccountStore) Delete(ctx context.Context, email string) error {
	if err := s.backend.Delete(ctx, CollectionAccounts, AccountKey(email)); err != nil {
		return fmt.Errorf("borrado cuenta %s: %w", email, err)
	}
	return nil
}
