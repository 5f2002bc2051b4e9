// controller/audit_controller_test.go
package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daaef/fainzy-cms/audit"
)

func seedExpiredHistory(t *testing.T, store audit.Store) {
	t.Helper()
	old := time.Now().AddDate(0, 0, -400)
	for v := 1; v <= 5; v++ {
		_, err := store.Insert(context.Background(), audit.Entry{
			Container:  "posts",
			DocumentID: "1",
			Action:     audit.ActionUpdate,
			Version:    v,
			Timestamp:  old,
		})
		require.NoError(t, err)
	}
}

func TestAuditController(t *testing.T) {
	auditStore := audit.NewMemoryStore()
	seedExpiredHistory(t, auditStore)

	opts := audit.DefaultOptions()
	opts.Retention = audit.Policy{MinVersions: 2, WindowDays: 30, MaxDays: 90}
	engine := setupTestRouter(opts, auditStore)

	t.Run("PreviewCleanup_Target_DoesNotDelete", func(t *testing.T) {
		body := strings.NewReader(`{"container":"posts","documentId":"1"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/audit-cleanup/preview", body)
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var result audit.CleanupResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, 3, result.Deleted)
		assert.Equal(t, 2, result.Kept)
		assert.Equal(t, 1, result.DocumentsProcessed)

		entries, err := auditStore.ListByDocument(context.Background(), "posts", "1", 0)
		require.NoError(t, err)
		assert.Len(t, entries, 5, "preview must not touch the store")
	})

	t.Run("PreviewCleanup_All_EmptyBody", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/audit-cleanup/preview", nil)
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var result audit.CleanupResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, 1, result.DocumentsProcessed)
	})

	t.Run("RunCleanup_Failure_ContainerWithoutDocument", func(t *testing.T) {
		body := strings.NewReader(`{"container":"posts"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/audit-cleanup/run", body)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("RunCleanup_Failure_DocumentWithoutContainer", func(t *testing.T) {
		body := strings.NewReader(`{"documentId":"1"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/audit-cleanup/run", body)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("RunCleanup_Target_Deletes", func(t *testing.T) {
		body := strings.NewReader(`{"container":"posts","documentId":"1"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/audit-cleanup/run", body)
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var result audit.CleanupResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, 3, result.Deleted)
		assert.Equal(t, 2, result.Kept)

		entries, err := auditStore.ListByDocument(context.Background(), "posts", "1", 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, 5, entries[0].Version)
		assert.Equal(t, 4, entries[1].Version)
	})

	t.Run("QueryLogs_Success", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/audit-logs?container=posts&limit=1", nil)
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var entries []audit.Entry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
		assert.Len(t, entries, 1)
	})

	t.Run("QueryLogs_Failure_BadTimestamp", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/audit-logs?from=yesterday", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("QueryLogs_Failure_BadLimit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/audit-logs?limit=-2", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
