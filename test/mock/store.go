// test/mock/store.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/daaef/fainzy-cms/audit"
)

// MockStore is a mock implementation of audit.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Insert(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(audit.Entry), args.Error(1)
}

func (m *MockStore) LatestVersion(ctx context.Context, container, documentID string) (int, error) {
	args := m.Called(ctx, container, documentID)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) ListByDocument(ctx context.Context, container, documentID string, limit int) ([]audit.Entry, error) {
	args := m.Called(ctx, container, documentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.Entry), args.Error(1)
}

func (m *MockStore) DeleteByID(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) Documents(ctx context.Context, batchSize int) ([]audit.DocumentRef, error) {
	args := m.Called(ctx, batchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.DocumentRef), args.Error(1)
}

func (m *MockStore) Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Entry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.Entry), args.Error(1)
}
