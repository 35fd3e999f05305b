package mocks

import (
	"context"

	"textshare/internal/model"
	"textshare/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockNoteService struct {
	mock.Mock
}

func (m *MockNoteService) Save(ctx context.Context, in service.SaveInput) (*service.SaveResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SaveResult), args.Error(1)
}

func (m *MockNoteService) Get(ctx context.Context, name string) (*model.NoteView, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.NoteView), args.Error(1)
}

func (m *MockNoteService) Access(ctx context.Context, name, password string) (*model.NoteView, error) {
	args := m.Called(ctx, name, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.NoteView), args.Error(1)
}
