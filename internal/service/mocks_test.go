package service

import (
	"context"
	"errors"

	"github.com/Rrens/oneonone-bot/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockReportRepository mocks the ReportRepository interface
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Create(ctx context.Context, report *domain.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

// MockReportJournal mocks the ReportJournal interface
type MockReportJournal struct {
	mock.Mock
}

func (m *MockReportJournal) Append(ctx context.Context, report *domain.Report) (string, error) {
	args := m.Called(ctx, report)
	return args.String(0), args.Error(1)
}

func (m *MockReportJournal) MarkStored(ctx context.Context, entryID string, reportID int64) error {
	args := m.Called(ctx, entryID, reportID)
	return args.Error(0)
}

// MockIdentityResolver mocks the IdentityResolver interface
type MockIdentityResolver struct {
	mock.Mock
}

func (m *MockIdentityResolver) ResolveEmail(ctx context.Context, msg domain.InboundMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

// MockNotifier mocks the Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// failingSessionStore fails every operation
type failingSessionStore struct{}

var errStoreDown = errors.New("session store down")

func (failingSessionStore) Get(ctx context.Context, userID string) (*domain.Session, error) {
	return nil, errStoreDown
}

func (failingSessionStore) Put(ctx context.Context, session *domain.Session) error {
	return errStoreDown
}

func (failingSessionStore) Delete(ctx context.Context, userID string) error {
	return errStoreDown
}
