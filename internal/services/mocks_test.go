package services_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/iamCapel/mopc-reportes/internal/models"
)

// MockAuthProvider is a mock of the auth collaborator.
type MockAuthProvider struct {
	mock.Mock
}

func (m *MockAuthProvider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthProvider) Login(ctx context.Context, email, password string) (*models.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockAuthProvider) Logout(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockAuthProvider) Session(ctx context.Context, token string) (*models.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockAuthProvider) DeleteAccount(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockAuthProvider) ChangeEmail(ctx context.Context, oldEmail, newEmail string) error {
	args := m.Called(ctx, oldEmail, newEmail)
	return args.Error(0)
}

// MockNotifier is a mock of the notification collaborator.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendWelcome(ctx context.Context, msg models.WelcomeMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockNotifier) ReportCompleted(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}
