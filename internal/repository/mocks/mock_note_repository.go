package mocks

import (
	"context"
	"time"

	"textshare/internal/model"
	"textshare/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockNoteRepository struct {
	mock.Mock
}

func (m *MockNoteRepository) Upsert(ctx context.Context, p repository.UpsertParams) (*model.Note, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Note), args.Error(1)
}

func (m *MockNoteRepository) FindByName(ctx context.Context, name string) (*model.Note, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Note), args.Error(1)
}

func (m *MockNoteRepository) DeleteIfExpired(ctx context.Context, name string, now time.Time) error {
	args := m.Called(ctx, name, now)
	return args.Error(0)
}

func (m *MockNoteRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNoteRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
