package mocks

import (
	"context"

	"github.com/dayzy/notes/models"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) GetUser(ctx context.Context, provider string, providerId string) (models.User, error) {
	args := m.Called(ctx, provider, providerId)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) DeleteUser(ctx context.Context, provider string, providerId string) error {
	args := m.Called(ctx, provider, providerId)
	return args.Error(0)
}

func (m *MockStore) GetNotes(ctx context.Context, ownerId string) ([]models.Note, error) {
	args := m.Called(ctx, ownerId)
	return args.Get(0).([]models.Note), args.Error(1)
}

func (m *MockStore) GetNote(ctx context.Context, ownerId string, noteId string) (models.Note, error) {
	args := m.Called(ctx, ownerId, noteId)
	return args.Get(0).(models.Note), args.Error(1)
}

func (m *MockStore) SaveNotes(ctx context.Context, ownerId string, notes []models.Note, fields []string) error {
	args := m.Called(ctx, ownerId, notes, fields)
	return args.Error(0)
}

func (m *MockStore) DeleteNote(ctx context.Context, ownerId string, noteId string) error {
	args := m.Called(ctx, ownerId, noteId)
	return args.Error(0)
}

func (m *MockStore) GetPublication(ctx context.Context, code string) (models.SharePublication, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(models.SharePublication), args.Error(1)
}

func (m *MockStore) CreatePublication(ctx context.Context, pub models.SharePublication) (bool, error) {
	args := m.Called(ctx, pub)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) SetPublication(ctx context.Context, pub models.SharePublication, fields []string) error {
	args := m.Called(ctx, pub, fields)
	return args.Error(0)
}

func (m *MockStore) DeletePublication(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockStore) GetTasks(ctx context.Context, owner string) ([]models.Task, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).([]models.Task), args.Error(1)
}

func (m *MockStore) CreateTask(ctx context.Context, task models.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockStore) UpdateTask(ctx context.Context, task models.Task, fields []string) error {
	args := m.Called(ctx, task, fields)
	return args.Error(0)
}

func (m *MockStore) DeleteTask(ctx context.Context, owner string, taskId string) error {
	args := m.Called(ctx, owner, taskId)
	return args.Error(0)
}
