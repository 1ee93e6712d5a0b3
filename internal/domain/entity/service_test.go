package entity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) List(ctx context.Context, ownerID string, kind Kind) ([]StoredRecord, error) {
	args := m.Called(ctx, ownerID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]StoredRecord), args.Error(1)
}

func (m *MockRepository) Get(ctx context.Context, ownerID string, kind Kind, id string) (*StoredRecord, error) {
	args := m.Called(ctx, ownerID, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StoredRecord), args.Error(1)
}

func (m *MockRepository) GetByIdempotencyKey(ctx context.Context, ownerID, key string) (*StoredRecord, error) {
	args := m.Called(ctx, ownerID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StoredRecord), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, rec StoredRecord) (*StoredRecord, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StoredRecord), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, rec StoredRecord) (*StoredRecord, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StoredRecord), args.Error(1)
}

func (m *MockRepository) SoftDelete(ctx context.Context, ownerID string, kind Kind, id string) error {
	args := m.Called(ctx, ownerID, kind, id)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Lookup(ctx context.Context, ownerID, key string) (string, bool, error) {
	args := m.Called(ctx, ownerID, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockCache) Remember(ctx context.Context, ownerID, key, id string) error {
	args := m.Called(ctx, ownerID, key, id)
	return args.Error(0)
}

func staffRow(t *testing.T, id string, roles ...string) StoredRecord {
	t.Helper()
	raw, err := json.Marshal(StaffFields{Name: id, Roles: roles})
	require.NoError(t, err)
	return StoredRecord{ID: id, OwnerID: "owner-1", Kind: KindStaff, Fields: raw, UpdatedAt: time.Now()}
}

func TestService_Create(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil, slog.Default())

	mockRepo.On("GetByIdempotencyKey", mock.Anything, "owner-1", "key-1").Return(nil, ErrNotFound)
	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(rec StoredRecord) bool {
		return rec.OwnerID == "owner-1" && rec.Kind == KindProduct && rec.IdempotencyKey == "key-1" && rec.ID != ""
	})).Return(&StoredRecord{ID: "srv_1", Kind: KindProduct}, nil)

	rec, replayed, err := service.Create(context.Background(), "owner-1", KindProduct,
		json.RawMessage(`{"name":"Milk","price":10,"sprice":12}`), "key-1")

	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, "srv_1", rec.ID)
	mockRepo.AssertExpectations(t)
}

func TestService_Create_ReplaysIdempotencyKey(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCache := new(MockCache)
	service := NewService(mockRepo, mockCache, slog.Default())

	existing := &StoredRecord{ID: "srv_42", Kind: KindProduct}
	mockCache.On("Lookup", mock.Anything, "owner-1", "key-1").Return("srv_42", true, nil)
	mockRepo.On("Get", mock.Anything, "owner-1", KindProduct, "srv_42").Return(existing, nil)

	rec, replayed, err := service.Create(context.Background(), "owner-1", KindProduct,
		json.RawMessage(`{"name":"Milk"}`), "key-1")

	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, "srv_42", rec.ID)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Create_CachesKey(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCache := new(MockCache)
	service := NewService(mockRepo, mockCache, slog.Default())

	mockCache.On("Lookup", mock.Anything, "owner-1", "key-2").Return("", false, nil)
	mockRepo.On("GetByIdempotencyKey", mock.Anything, "owner-1", "key-2").Return(nil, ErrNotFound)
	mockRepo.On("Create", mock.Anything, mock.Anything).Return(&StoredRecord{ID: "srv_7"}, nil)
	mockCache.On("Remember", mock.Anything, "owner-1", "key-2", "srv_7").Return(errors.New("redis down"))

	rec, _, err := service.Create(context.Background(), "owner-1", KindStore,
		json.RawMessage(`{"name":"Main"}`), "key-2")

	require.NoError(t, err)
	assert.Equal(t, "srv_7", rec.ID)
	mockCache.AssertExpectations(t)
}

func TestService_Create_InvalidData(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil, slog.Default())

	_, _, err := service.Create(context.Background(), "owner-1", KindProduct, json.RawMessage(`{"price":1}`), "")

	assert.ErrorIs(t, err, ErrInvalidData)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Create_RequiresOwner(t *testing.T) {
	service := NewService(new(MockRepository), nil, slog.Default())

	_, _, err := service.Create(context.Background(), "", KindProduct, json.RawMessage(`{"name":"x"}`), "")

	assert.ErrorIs(t, err, ErrOwnerMissing)
}

func TestService_Update(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil, slog.Default())

	existing := &StoredRecord{ID: "srv_1", OwnerID: "owner-1", Kind: KindCategory, Fields: json.RawMessage(`{"name":"Old"}`)}
	mockRepo.On("Get", mock.Anything, "owner-1", KindCategory, "srv_1").Return(existing, nil)
	mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(rec StoredRecord) bool {
		return string(rec.Fields) == `{"name":"New"}`
	})).Return(&StoredRecord{ID: "srv_1", Fields: json.RawMessage(`{"name":"New"}`)}, nil)

	rec, err := service.Update(context.Background(), "owner-1", KindCategory, "srv_1", json.RawMessage(`{"name":"New"}`))

	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"New"}`, string(rec.Fields))
	mockRepo.AssertExpectations(t)
}

func TestService_Update_NotFound(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil, slog.Default())

	mockRepo.On("Get", mock.Anything, "owner-1", KindCategory, "missing").Return(nil, ErrNotFound)

	_, err := service.Update(context.Background(), "owner-1", KindCategory, "missing", json.RawMessage(`{"name":"x"}`))

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Delete_SoleSuperAdmin(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil, slog.Default())

	mockRepo.On("List", mock.Anything, "owner-1", KindStaff).Return([]StoredRecord{
		staffRow(t, "s1", RoleSuperAdmin),
		staffRow(t, "s2", RoleCashier),
	}, nil)

	err := service.Delete(context.Background(), "owner-1", KindStaff, "s1")

	assert.ErrorIs(t, err, ErrProtected)
	var protected *ProtectedRecordError
	assert.ErrorAs(t, err, &protected)
	mockRepo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Delete_StaffAllowed(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil, slog.Default())

	mockRepo.On("List", mock.Anything, "owner-1", KindStaff).Return([]StoredRecord{
		staffRow(t, "s1", RoleSuperAdmin),
		staffRow(t, "s2", RoleSuperAdmin),
	}, nil)
	mockRepo.On("SoftDelete", mock.Anything, "owner-1", KindStaff, "s1").Return(nil)

	err := service.Delete(context.Background(), "owner-1", KindStaff, "s1")

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestService_Delete_Product(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil, slog.Default())

	mockRepo.On("SoftDelete", mock.Anything, "owner-1", KindProduct, "p1").Return(nil)

	err := service.Delete(context.Background(), "owner-1", KindProduct, "p1")

	assert.NoError(t, err)
	mockRepo.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}
