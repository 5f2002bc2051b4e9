// audit/capture_test.go
package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daaef/fainzy-cms/model"
	"github.com/daaef/fainzy-cms/util"
)

type fakeRecords struct {
	docs map[string]model.Record
	err  error
}

func (f *fakeRecords) FindByID(_ context.Context, container, id string) (model.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.docs[container+"/"+id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return rec.Clone(), nil
}

func newTestOrchestrator(opts Options, store Store, records RecordFetcher) *Orchestrator {
	// A synchronous bus makes the deferred cleanup observable inline.
	return NewOrchestrator(opts, store, records, nil, util.NewSyncEventBus())
}

func testMC() MutationContext {
	return MutationContext{Bag: NewMemoryBag()}
}

func documentEntries(t *testing.T, store Store, container, id string) []Entry {
	t.Helper()
	entries, err := store.ListByDocument(context.Background(), container, id, 0)
	require.NoError(t, err)
	return entries
}

func TestCaptureCreateAssignsVersionOne(t *testing.T) {
	store := NewMemoryStore()
	o := newTestOrchestrator(DefaultOptions(), store, &fakeRecords{})

	doc := model.Record{"id": "1", "title": "hello"}
	o.AfterChange(context.Background(), testMC(), "posts", "1", ActionCreate, doc, nil)

	entries := documentEntries(t, store, "posts", "1")
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, 1, entry.Version)
	assert.Equal(t, ActionCreate, entry.Action)
	assert.True(t, entry.IsSnapshot, "first capture has no before-state and is protected")
	require.Len(t, entry.Changes, 1)
	assert.Equal(t, "title", entry.Changes[0].Field)
	assert.Nil(t, entry.Changes[0].OldValue)
	assert.Equal(t, "hello", entry.Changes[0].NewValue)
}

func TestCaptureUpdateDiffsAgainstStashedState(t *testing.T) {
	store := NewMemoryStore()
	records := &fakeRecords{docs: map[string]model.Record{
		"posts/1": {"id": "1", "title": "old", "status": "draft"},
	}}
	o := newTestOrchestrator(DefaultOptions(), store, records)

	created := model.Record{"id": "1", "title": "old", "status": "draft"}
	o.AfterChange(context.Background(), testMC(), "posts", "1", ActionCreate, created, nil)

	mc := testMC()
	o.BeforeUpdate(context.Background(), mc, "posts", "1")
	updated := model.Record{"id": "1", "title": "new", "status": "draft"}
	o.AfterChange(context.Background(), mc, "posts", "1", ActionUpdate, updated, nil)

	entries := documentEntries(t, store, "posts", "1")
	require.Len(t, entries, 2)

	entry := entries[0]
	assert.Equal(t, 2, entry.Version)
	assert.Equal(t, ActionUpdate, entry.Action)
	assert.False(t, entry.IsSnapshot)
	require.Len(t, entry.Changes, 1)
	assert.Equal(t, "title", entry.Changes[0].Field)
	assert.Equal(t, "old", entry.Changes[0].OldValue)
	assert.Equal(t, "new", entry.Changes[0].NewValue)
}

func TestCaptureNoOpUpdateProducesNoEntry(t *testing.T) {
	store := NewMemoryStore()
	records := &fakeRecords{docs: map[string]model.Record{
		"posts/1": {"id": "1", "title": "same"},
	}}
	o := newTestOrchestrator(DefaultOptions(), store, records)

	mc := testMC()
	o.BeforeUpdate(context.Background(), mc, "posts", "1")
	o.AfterChange(context.Background(), mc, "posts", "1", ActionUpdate, model.Record{"id": "1", "title": "same"}, nil)

	assert.Empty(t, documentEntries(t, store, "posts", "1"))
}

func TestCaptureHostSuppliedPreviousWins(t *testing.T) {
	store := NewMemoryStore()
	o := newTestOrchestrator(DefaultOptions(), store, &fakeRecords{})

	mc := testMC()
	mc.Bag.Set(beforeStateKey("posts"), model.Record{"id": "1", "title": "stashed"})

	previous := model.Record{"id": "1", "title": "supplied"}
	o.AfterChange(context.Background(), mc, "posts", "1", ActionUpdate, model.Record{"id": "1", "title": "next"}, previous)

	entries := documentEntries(t, store, "posts", "1")
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Changes, 1)
	assert.Equal(t, "supplied", entries[0].Changes[0].OldValue)
}

func TestCaptureDeleteIsProtectedSnapshot(t *testing.T) {
	store := NewMemoryStore()
	records := &fakeRecords{docs: map[string]model.Record{
		"posts/1": {"id": "1", "title": "bye", "status": "draft"},
	}}
	o := newTestOrchestrator(DefaultOptions(), store, records)

	o.BeforeDelete(context.Background(), testMC(), "posts", "1")

	entries := documentEntries(t, store, "posts", "1")
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, ActionDelete, entry.Action)
	assert.True(t, entry.IsSnapshot)
	require.Len(t, entry.Changes, 2)
	for _, change := range entry.Changes {
		assert.Nil(t, change.NewValue, "deletion change %s must end at nil", change.Path)
	}
}

func TestCapturePublishTransitionIsSnapshot(t *testing.T) {
	store := NewMemoryStore()
	o := newTestOrchestrator(DefaultOptions(), store, &fakeRecords{})

	before := model.Record{"id": "1", "status": "draft"}

	o.AfterChange(context.Background(), testMC(), "posts", "1", ActionUpdate,
		model.Record{"id": "1", "status": "published"}, before)
	o.AfterChange(context.Background(), testMC(), "posts", "1", ActionUpdate,
		model.Record{"id": "1", "status": "archived"}, model.Record{"id": "1", "status": "published"})

	entries := documentEntries(t, store, "posts", "1")
	require.Len(t, entries, 2)
	assert.False(t, entries[0].IsSnapshot, "leaving published is not protected")
	assert.True(t, entries[1].IsSnapshot, "publishing is protected")
}

func TestCaptureDisabledIsPassThrough(t *testing.T) {
	opts := DefaultOptions()
	opts.Enabled = false
	store := NewMemoryStore()
	records := &fakeRecords{docs: map[string]model.Record{
		"posts/1": {"id": "1", "title": "x"},
	}}
	o := newTestOrchestrator(opts, store, records)

	mc := testMC()
	o.BeforeUpdate(context.Background(), mc, "posts", "1")
	o.AfterChange(context.Background(), mc, "posts", "1", ActionUpdate, model.Record{"id": "1", "title": "y"}, nil)
	o.BeforeDelete(context.Background(), mc, "posts", "1")

	assert.Empty(t, documentEntries(t, store, "posts", "1"))
}

func TestCaptureSkipsExcludedContainers(t *testing.T) {
	opts := DefaultOptions()
	opts.ExcludedContainers = []string{"sessions"}
	store := NewMemoryStore()
	o := newTestOrchestrator(opts, store, &fakeRecords{})

	o.AfterChange(context.Background(), testMC(), "sessions", "1", ActionCreate, model.Record{"id": "1"}, nil)
	assert.Empty(t, documentEntries(t, store, "sessions", "1"))

	// The audit container itself is always excluded.
	o.AfterChange(context.Background(), testMC(), opts.Container, "1", ActionCreate, model.Record{"id": "1"}, nil)
	assert.Empty(t, documentEntries(t, store, opts.Container, "1"))
}

func TestCaptureSkipsUntrackedActions(t *testing.T) {
	opts := DefaultOptions()
	opts.TrackedActions = []Action{ActionCreate}
	store := NewMemoryStore()
	o := newTestOrchestrator(opts, store, &fakeRecords{})

	o.AfterChange(context.Background(), testMC(), "posts", "1", ActionUpdate,
		model.Record{"id": "1", "title": "y"}, model.Record{"id": "1", "title": "x"})

	assert.Empty(t, documentEntries(t, store, "posts", "1"))
}

func TestCaptureBeforeFetchFailureDegradesToCreateLike(t *testing.T) {
	store := NewMemoryStore()
	records := &fakeRecords{err: errors.New("connection refused")}
	o := newTestOrchestrator(DefaultOptions(), store, records)

	mc := testMC()
	o.BeforeUpdate(context.Background(), mc, "posts", "1")
	o.AfterChange(context.Background(), mc, "posts", "1", ActionUpdate, model.Record{"id": "1", "title": "v"}, nil)

	entries := documentEntries(t, store, "posts", "1")
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsSnapshot, "without a before-state the capture counts as a first version")
	require.Len(t, entries[0].Changes, 1)
	assert.Nil(t, entries[0].Changes[0].OldValue)
}

func TestCaptureExcludedFieldsPerContainer(t *testing.T) {
	opts := DefaultOptions()
	opts.ExcludedFields = []string{"internal"}
	opts.ContainerExcludedFields = map[string][]string{"posts": {"draftNotes"}}
	store := NewMemoryStore()
	o := newTestOrchestrator(opts, store, &fakeRecords{})

	before := model.Record{"id": "1", "title": "a", "internal": "x", "draftNotes": "n1"}
	after := model.Record{"id": "1", "title": "b", "internal": "y", "draftNotes": "n2"}
	o.AfterChange(context.Background(), testMC(), "posts", "1", ActionUpdate, after, before)

	entries := documentEntries(t, store, "posts", "1")
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Changes, 1)
	assert.Equal(t, "title", entries[0].Changes[0].Field)
}

func TestCaptureTriggersDeferredCleanup(t *testing.T) {
	store := NewMemoryStore()
	old := time.Now().AddDate(0, 0, -400)
	for i := 0; i < 12; i++ {
		_, err := store.Insert(context.Background(), Entry{
			Container:  "posts",
			DocumentID: "1",
			Action:     ActionUpdate,
			Version:    i + 1,
			Timestamp:  old,
		})
		require.NoError(t, err)
	}

	opts := DefaultOptions()
	opts.Retention = Policy{MinVersions: 3, WindowDays: 30, MaxDays: 90}
	o := newTestOrchestrator(opts, store, &fakeRecords{})

	o.AfterChange(context.Background(), testMC(), "posts", "1", ActionUpdate,
		model.Record{"id": "1", "title": "b"}, model.Record{"id": "1", "title": "a"})

	// The synchronous bus ran the retention pass before AfterChange returned.
	entries := documentEntries(t, store, "posts", "1")
	require.Len(t, entries, 3)
	assert.Equal(t, 13, entries[0].Version)
}

func TestCaptureActorAndClientFallbacks(t *testing.T) {
	store := NewMemoryStore()
	o := newTestOrchestrator(DefaultOptions(), store, &fakeRecords{})

	o.AfterChange(context.Background(), testMC(), "posts", "1", ActionCreate, model.Record{"id": "1", "title": "x"}, nil)

	entries := documentEntries(t, store, "posts", "1")
	require.Len(t, entries, 1)
	assert.Equal(t, SystemActor, entries[0].ActorName)
	assert.Nil(t, entries[0].ActorID)
	assert.Equal(t, UnknownClient, entries[0].IP)
	assert.Equal(t, UnknownClient, entries[0].UserAgent)
}

func TestCaptureRecordsActorAndClient(t *testing.T) {
	store := NewMemoryStore()
	o := newTestOrchestrator(DefaultOptions(), store, &fakeRecords{})

	actorID := int64(7)
	mc := MutationContext{
		Bag:   NewMemoryBag(),
		Actor: Actor{ID: &actorID, Name: "jane"},
		Client: ClientMeta{
			ForwardedFor: "203.0.113.9, 10.0.0.1",
			RemoteAddr:   "10.0.0.1:58834",
			UserAgent:    "cms-cli/1.0",
		},
	}
	o.AfterChange(context.Background(), mc, "posts", "1", ActionCreate, model.Record{"id": "1", "title": "x"}, nil)

	entries := documentEntries(t, store, "posts", "1")
	require.Len(t, entries, 1)
	assert.Equal(t, "jane", entries[0].ActorName)
	require.NotNil(t, entries[0].ActorID)
	assert.Equal(t, int64(7), *entries[0].ActorID)
	assert.Equal(t, "203.0.113.9", entries[0].IP)
	assert.Equal(t, "cms-cli/1.0", entries[0].UserAgent)
}

func TestResolveClientIP(t *testing.T) {
	tests := []struct {
		name   string
		client ClientMeta
		want   string
	}{
		{"forwarded-for first hop", ClientMeta{ForwardedFor: "1.2.3.4, 5.6.7.8", RealIP: "9.9.9.9"}, "1.2.3.4"},
		{"real-ip", ClientMeta{RealIP: "9.9.9.9", RemoteAddr: "10.0.0.1:80"}, "9.9.9.9"},
		{"remote addr with port", ClientMeta{RemoteAddr: "10.0.0.1:80"}, "10.0.0.1"},
		{"remote addr without port", ClientMeta{RemoteAddr: "10.0.0.1"}, "10.0.0.1"},
		{"nothing", ClientMeta{}, UnknownClient},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolveClientIP(tc.client))
		})
	}
}
