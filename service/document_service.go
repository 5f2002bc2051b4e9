// service/document_service.go
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/daaef/fainzy-cms/audit"
	logger "github.com/daaef/fainzy-cms/logging"
	"github.com/daaef/fainzy-cms/model"
)

// RecordStore is the CRUD surface over stored documents
type RecordStore interface {
	FindByID(ctx context.Context, container, id string) (model.Record, error)
	Save(ctx context.Context, container string, rec model.Record) (model.Record, error)
	Delete(ctx context.Context, container, id string) error
}

// DocumentService is the mutation pipeline for schema-less documents. It owns
// the housekeeping fields (id, createdAt, updatedAt) and invokes the audit
// hooks at the lifecycle points around each mutation.
type DocumentService struct {
	store RecordStore
	hooks *audit.Orchestrator
}

func NewDocumentService(store RecordStore, hooks *audit.Orchestrator) *DocumentService {
	return &DocumentService{store: store, hooks: hooks}
}

// Get returns a document's current state
func (s *DocumentService) Get(ctx context.Context, container, id string) (model.Record, error) {
	return s.store.FindByID(ctx, container, id)
}

// Create stores a new document and captures a create entry
func (s *DocumentService) Create(ctx context.Context, mc audit.MutationContext, container string, doc model.Record) (model.Record, error) {
	doc = doc.Clone()
	if doc.ID() == "" {
		doc["id"] = uuid.New().String()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	doc["createdAt"] = now
	doc["updatedAt"] = now

	saved, err := s.store.Save(ctx, container, doc)
	if err != nil {
		return nil, err
	}
	logger.Info("Document created",
		zap.String("container", container),
		zap.String("id", saved.ID()))

	s.hooks.AfterChange(ctx, mc, container, saved.ID(), audit.ActionCreate, saved, nil)
	return saved, nil
}

// Update replaces a document's content and captures an update entry. The
// before-state is stashed ahead of the write so the audit diff sees the state
// the mutation actually replaced.
func (s *DocumentService) Update(ctx context.Context, mc audit.MutationContext, container, id string, doc model.Record) (model.Record, error) {
	s.hooks.BeforeUpdate(ctx, mc, container, id)

	existing, err := s.store.FindByID(ctx, container, id)
	if err != nil {
		return nil, err
	}

	doc = doc.Clone()
	doc["id"] = id
	doc["createdAt"] = existing["createdAt"]
	doc["updatedAt"] = time.Now().UTC().Format(time.RFC3339)

	saved, err := s.store.Save(ctx, container, doc)
	if err != nil {
		return nil, err
	}
	logger.Info("Document updated",
		zap.String("container", container),
		zap.String("id", id))

	s.hooks.AfterChange(ctx, mc, container, id, audit.ActionUpdate, saved, nil)
	return saved, nil
}

// Delete captures the final state of a document, then removes it. Capture
// runs first so it cannot race with the row's disappearance.
func (s *DocumentService) Delete(ctx context.Context, mc audit.MutationContext, container, id string) error {
	s.hooks.BeforeDelete(ctx, mc, container, id)

	if err := s.store.Delete(ctx, container, id); err != nil {
		return err
	}
	logger.Info("Document deleted",
		zap.String("container", container),
		zap.String("id", id))
	return nil
}
