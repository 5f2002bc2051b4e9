// audit/repository_es.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

// ElasticsearchStore persists audit entries in an Elasticsearch index.
type ElasticsearchStore struct {
	esClient *elasticsearch.Client
	index    string
}

// NewElasticsearchStore creates a store against the given Elasticsearch URL.
// The index name doubles as the audit container name.
func NewElasticsearchStore(esURL, index string) (*ElasticsearchStore, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if index == "" {
		index = DefaultContainer
	}
	return &ElasticsearchStore{esClient: esClient, index: index}, nil
}

func (s *ElasticsearchStore) Insert(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, err
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: entry.ID,
		Body:       strings.NewReader(string(data)),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, s.esClient)
	if err != nil {
		return Entry{}, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return Entry{}, fmt.Errorf("error indexing audit entry: %s", res.String())
	}
	return entry, nil
}

func (s *ElasticsearchStore) LatestVersion(ctx context.Context, container, documentID string) (int, error) {
	entries, err := s.searchByDocument(ctx, container, documentID, 1)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[0].Version, nil
}

func (s *ElasticsearchStore) ListByDocument(ctx context.Context, container, documentID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	return s.searchByDocument(ctx, container, documentID, limit)
}

func (s *ElasticsearchStore) searchByDocument(ctx context.Context, container, documentID string, size int) ([]Entry, error) {
	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"container.keyword": container},
					},
					map[string]interface{}{
						"term": map[string]interface{}{"document_id.keyword": documentID},
					},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"version": map[string]interface{}{"order": "desc"}},
		},
	}
	return s.search(ctx, query)
}

func (s *ElasticsearchStore) DeleteByID(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{
		Index:      s.index,
		DocumentID: id,
		Refresh:    "true",
	}
	res, err := req.Do(ctx, s.esClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("error deleting audit entry: %s", res.String())
	}
	return nil
}

func (s *ElasticsearchStore) Documents(ctx context.Context, batchSize int) ([]DocumentRef, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	query := map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			"documents": map[string]interface{}{
				"composite": map[string]interface{}{
					"size": batchSize,
					"sources": []interface{}{
						map[string]interface{}{
							"container": map[string]interface{}{
								"terms": map[string]interface{}{"field": "container.keyword"},
							},
						},
						map[string]interface{}{
							"document_id": map[string]interface{}{
								"terms": map[string]interface{}{"field": "document_id.keyword"},
							},
						},
					},
				},
			},
		},
	}

	var buf strings.Builder
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.index),
		s.esClient.Search.WithBody(strings.NewReader(buf.String())),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	// The index does not exist until the first insert creates it. No index
	// means no documents, not a failure.
	if res.StatusCode == 404 {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("error enumerating audit documents: %s", res.String())
	}

	var rmap map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&rmap); err != nil {
		return nil, err
	}

	aggs, ok := rmap["aggregations"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	documents, ok := aggs["documents"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	buckets, _ := documents["buckets"].([]interface{})

	refs := make([]DocumentRef, 0, len(buckets))
	for _, bucket := range buckets {
		key, ok := bucket.(map[string]interface{})["key"].(map[string]interface{})
		if !ok {
			continue
		}
		container, _ := key["container"].(string)
		documentID, _ := key["document_id"].(string)
		refs = append(refs, DocumentRef{Container: container, DocumentID: documentID})
	}
	return refs, nil
}

func (s *ElasticsearchStore) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	must := []interface{}{}
	if !filter.From.IsZero() || !filter.To.IsZero() {
		timeRange := map[string]interface{}{}
		if !filter.From.IsZero() {
			timeRange["gte"] = filter.From.Format("2006-01-02T15:04:05Z07:00")
		}
		if !filter.To.IsZero() {
			timeRange["lte"] = filter.To.Format("2006-01-02T15:04:05Z07:00")
		}
		must = append(must, map[string]interface{}{
			"range": map[string]interface{}{"timestamp": timeRange},
		})
	}
	if filter.Container != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"container.keyword": filter.Container},
		})
	}
	if filter.DocumentID != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"document_id.keyword": filter.DocumentID},
		})
	}

	size := filter.Limit
	if size <= 0 {
		size = DefaultBatchSize
	}
	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
		"sort": []interface{}{
			map[string]interface{}{"timestamp": map[string]interface{}{"order": "desc"}},
		},
	}
	return s.search(ctx, query)
}

func (s *ElasticsearchStore) search(ctx context.Context, query map[string]interface{}) ([]Entry, error) {
	var buf strings.Builder
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.index),
		s.esClient.Search.WithBody(strings.NewReader(buf.String())),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	// A fresh deployment has no index until the first insert creates it, and
	// searches against it answer 404. That is an empty history, not a failure:
	// version resolution must see 0 here so the very first capture can insert.
	if res.StatusCode == 404 {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("error searching audit entries: %s", res.String())
	}

	var rmap map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&rmap); err != nil {
		return nil, err
	}

	hits, ok := rmap["hits"].(map[string]interface{})["hits"].([]interface{})
	if !ok {
		return nil, nil
	}
	entries := make([]Entry, len(hits))
	for i, hit := range hits {
		hitMap := hit.(map[string]interface{})
		source := hitMap["_source"]
		data, _ := json.Marshal(source)
		json.Unmarshal(data, &entries[i])
		if id, ok := hitMap["_id"].(string); ok {
			entries[i].ID = id
		}
	}
	return entries, nil
}
