package service

import (
	"context"
	"strings"
	"time"

	"github.com/stretchr/testify/mock"

	"todocal/internal/model"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// MockTodoRepository is a mock implementation of TodoRepository.
type MockTodoRepository struct {
	mock.Mock
}

func (m *MockTodoRepository) Create(ctx context.Context, todo *model.Todo) error {
	args := m.Called(ctx, todo)
	return args.Error(0)
}

func (m *MockTodoRepository) FindByIDAndUser(ctx context.Context, userID, id uint) (*model.Todo, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Todo), args.Error(1)
}

func (m *MockTodoRepository) ListByUser(ctx context.Context, userID uint, dueDate *model.Date) ([]model.Todo, error) {
	args := m.Called(ctx, userID, dueDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Todo), args.Error(1)
}

func (m *MockTodoRepository) CalendarSummary(ctx context.Context, userID uint, year int, month time.Month) ([]model.CalendarDay, error) {
	args := m.Called(ctx, userID, year, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CalendarDay), args.Error(1)
}

func (m *MockTodoRepository) UpdateFields(ctx context.Context, userID, id uint, fields map[string]any) error {
	args := m.Called(ctx, userID, id, fields)
	return args.Error(0)
}

func (m *MockTodoRepository) DeleteByIDAndUser(ctx context.Context, userID, id uint) (bool, error) {
	args := m.Called(ctx, userID, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockTodoRepository) ListReminderCandidates(ctx context.Context, from, to model.Date) ([]model.ReminderCandidate, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ReminderCandidate), args.Error(1)
}

func (m *MockTodoRepository) MarkNotified(ctx context.Context, id uint) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

// MockObjectStore is a mock implementation of storage.ObjectStore.
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	args := m.Called(ctx, key, contentType, expires)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) Put(ctx context.Context, key, contentType string, body []byte) error {
	args := m.Called(ctx, key, contentType, body)
	return args.Error(0)
}

func (m *MockObjectStore) PublicURL(key string) string {
	return "https://storage.example.com/bucket/" + key
}

// prefixCodec "encrypts" by prefixing and falls back to the stored value like the real codec.
type prefixCodec struct {
	err error
}

func (c prefixCodec) EncryptTitle(_ context.Context, plaintext string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return "enc:" + plaintext, nil
}

func (c prefixCodec) DecryptTitle(_ context.Context, stored string) string {
	if pt, ok := strings.CutPrefix(stored, "enc:"); ok {
		return pt
	}
	return stored
}
