// dao/record_dao.go
package dao

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	cms_errors "github.com/daaef/fainzy-cms/errors"
	logger "github.com/daaef/fainzy-cms/logging"
	"github.com/daaef/fainzy-cms/model"
)

// RecordDAO stores schema-less documents as RECORD nodes keyed by
// (container, id). The document body is serialized to JSON since Neo4j
// properties cannot hold nested maps.
type RecordDAO struct {
	Driver neo4j.Driver
}

func NewRecordDAO(driver neo4j.Driver) *RecordDAO {
	dao := &RecordDAO{Driver: driver}
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint", zap.Error(err))
	}
	return dao
}

// EnsureUniqueConstraint ensures the unique constraint on (container, id)
func (dao *RecordDAO) EnsureUniqueConstraint(ctx context.Context) error {
	logger.Info("Ensuring unique constraint on record key")
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("Failed to close Neo4j session", zap.Error(err))
		}
	}()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_record_key IF NOT EXISTS
        FOR (r:RECORD) REQUIRE (r.container, r.id) IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create unique constraint: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to ensure unique constraint on record key", zap.Error(err))
		return err
	}
	return nil
}

// FindByID returns the current state of a document
func (dao *RecordDAO) FindByID(ctx context.Context, container, id string) (model.Record, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (r:RECORD {container: $container, id: $id})
        RETURN r.data AS data
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"container": container,
			"id":        id,
		})
		if err != nil {
			return nil, err
		}
		if records.Next() {
			return records.Record().Values[0], nil
		}
		return nil, cms_errors.ErrRecordNotFound
	})
	if err != nil {
		return nil, err
	}

	data, ok := result.(string)
	if !ok {
		return nil, cms_errors.ErrInvalidRecordData
	}
	var rec model.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return rec, nil
}

// Save creates or replaces a document
func (dao *RecordDAO) Save(ctx context.Context, container string, rec model.Record) (model.Record, error) {
	id := rec.ID()
	if id == "" {
		return nil, cms_errors.ErrInvalidRecordData
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err = session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MERGE (r:RECORD {container: $container, id: $id})
        SET r.data = $data, r.updatedAt = datetime()
        `
		_, err := transaction.Run(query, map[string]interface{}{
			"container": container,
			"id":        id,
			"data":      string(data),
		})
		return nil, err
	})
	if err != nil {
		logger.Error("Failed to save record",
			zap.Error(err),
			zap.String("container", container),
			zap.String("id", id))
		return nil, fmt.Errorf("failed to save record: %w", err)
	}
	return rec, nil
}

// Delete removes a document
func (dao *RecordDAO) Delete(ctx context.Context, container, id string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (r:RECORD {container: $container, id: $id})
        DETACH DELETE r
        `
		_, err := transaction.Run(query, map[string]interface{}{
			"container": container,
			"id":        id,
		})
		return nil, err
	})
	if err != nil {
		logger.Error("Failed to delete record",
			zap.Error(err),
			zap.String("container", container),
			zap.String("id", id))
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}
