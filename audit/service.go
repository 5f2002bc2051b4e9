// audit/service.go
package audit

import (
	"context"
)

// Service is the read side of the audit trail, backing the HTTP surface.
type Service interface {
	QueryLogs(ctx context.Context, filter QueryFilter) ([]Entry, error)
	DocumentHistory(ctx context.Context, container, documentID string, limit int) ([]Entry, error)
}

type service struct {
	store Store
}

func NewService(store Store) Service {
	return &service{store: store}
}

func (s *service) QueryLogs(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	return s.store.Query(ctx, filter)
}

func (s *service) DocumentHistory(ctx context.Context, container, documentID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	return s.store.ListByDocument(ctx, container, documentID, limit)
}
