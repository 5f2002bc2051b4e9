// audit/capture.go
package audit

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	logger "github.com/daaef/fainzy-cms/logging"
	"github.com/daaef/fainzy-cms/model"
	"github.com/daaef/fainzy-cms/util"
)

// EventCleanup is published after a tracked create/update so retention runs
// once the response path has completed.
const EventCleanup = "audit.cleanup"

// versionLockTTL bounds how long a per-document version lock may be held by a
// crashed writer.
const versionLockTTL = 5 * time.Second

// RecordFetcher is the minimal view of the host record storage the
// orchestrator needs: reading a document's current state by identifier.
type RecordFetcher interface {
	FindByID(ctx context.Context, container, id string) (model.Record, error)
}

// DocumentLocker serializes the read-then-increment version computation for a
// single document. Optional: without one, concurrent writers to the same
// document can race and produce duplicate version numbers.
type DocumentLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Actor identifies who performed a mutation. A nil ID means the mutation was
// unauthenticated.
type Actor struct {
	ID   *int64
	Name string
}

// ClientMeta carries the network metadata of the request that triggered a
// mutation.
type ClientMeta struct {
	ForwardedFor string
	RealIP       string
	RemoteAddr   string
	UserAgent    string
}

// MutationContext bundles the per-request state the hooks need: the bag that
// survives between the before and after phases, plus actor and client info.
type MutationContext struct {
	Bag    RequestBag
	Actor  Actor
	Client ClientMeta
}

// Options configures which mutations are captured and how.
type Options struct {
	Enabled bool
	// Container is the collection audit entries are stored in. It is always
	// treated as excluded from capture.
	Container               string
	TrackedActions          []Action
	ExcludedFields          []string
	ContainerExcludedFields map[string][]string
	ExcludedContainers      []string
	// StatusField + PublishedValue mark the transition that promotes an entry
	// to a protected snapshot.
	StatusField    string
	PublishedValue string
	Retention      Policy
	CleanupBatch   int
}

func DefaultOptions() Options {
	return Options{
		Enabled:        true,
		Container:      DefaultContainer,
		TrackedActions: []Action{ActionCreate, ActionUpdate, ActionDelete},
		StatusField:    "status",
		PublishedValue: "published",
		CleanupBatch:   DefaultBatchSize,
	}
}

// Orchestrator wraps the three mutation lifecycle points of the record
// pipeline. Capture is best-effort: no failure in here ever reaches the
// caller of the underlying mutation.
type Orchestrator struct {
	opts     Options
	store    Store
	records  RecordFetcher
	locker   DocumentLocker
	executor *Executor
	bus      *util.EventBus

	tracked        map[Action]struct{}
	excludedBase   map[string]struct{}
	excludedByName map[string]map[string]struct{}
	skipContainers map[string]struct{}
}

// NewOrchestrator wires the capture hooks. The bus carries the deferred
// cleanup dispatch; pass a synchronous bus in tests to observe cleanup
// inline. locker may be nil.
func NewOrchestrator(opts Options, store Store, records RecordFetcher, locker DocumentLocker, bus *util.EventBus) *Orchestrator {
	if opts.Container == "" {
		opts.Container = DefaultContainer
	}
	if opts.StatusField == "" {
		opts.StatusField = "status"
	}
	if opts.PublishedValue == "" {
		opts.PublishedValue = "published"
	}
	if len(opts.TrackedActions) == 0 {
		opts.TrackedActions = []Action{ActionCreate, ActionUpdate, ActionDelete}
	}

	o := &Orchestrator{
		opts:           opts,
		store:          store,
		records:        records,
		locker:         locker,
		executor:       NewExecutor(store, opts.Retention, opts.CleanupBatch),
		bus:            bus,
		tracked:        make(map[Action]struct{}, len(opts.TrackedActions)),
		excludedBase:   make(map[string]struct{}, len(opts.ExcludedFields)),
		excludedByName: make(map[string]map[string]struct{}, len(opts.ContainerExcludedFields)),
		skipContainers: make(map[string]struct{}, len(opts.ExcludedContainers)+1),
	}
	for _, action := range opts.TrackedActions {
		o.tracked[action] = struct{}{}
	}
	for _, field := range opts.ExcludedFields {
		o.excludedBase[field] = struct{}{}
	}
	for container, fields := range opts.ContainerExcludedFields {
		merged := make(map[string]struct{}, len(o.excludedBase)+len(fields))
		for field := range o.excludedBase {
			merged[field] = struct{}{}
		}
		for _, field := range fields {
			merged[field] = struct{}{}
		}
		o.excludedByName[container] = merged
	}
	for _, container := range opts.ExcludedContainers {
		o.skipContainers[container] = struct{}{}
	}
	// The audit store must never audit itself.
	o.skipContainers[opts.Container] = struct{}{}

	bus.Subscribe(EventCleanup, o.handleCleanup)
	return o
}

// Executor exposes the retention executor for the cleanup utilities.
func (o *Orchestrator) Executor() *Executor {
	return o.executor
}

// BeforeUpdate stashes the document's current state in the request bag so the
// post-mutation hook can diff against it. A failed lookup is logged and
// swallowed: the capture then degrades to a create-like diff.
func (o *Orchestrator) BeforeUpdate(ctx context.Context, mc MutationContext, container, documentID string) {
	if !o.shouldCapture(container, ActionUpdate) || mc.Bag == nil {
		return
	}
	rec, err := o.records.FindByID(ctx, container, documentID)
	if err != nil {
		logger.Warn("Failed to fetch before-state for audit, proceeding without it",
			zap.Error(err),
			zap.String("container", container),
			zap.String("documentID", documentID))
		return
	}
	mc.Bag.Set(beforeStateKey(container), rec.Clone())
}

// AfterChange captures a create or update. previous is the host-supplied old
// state and wins over the stashed before-state when both exist. Failures are
// logged and never propagated: the mutation already succeeded.
func (o *Orchestrator) AfterChange(ctx context.Context, mc MutationContext, container, documentID string, action Action, doc, previous model.Record) {
	defer o.recoverCapture("post-mutation", container, documentID)

	if !o.shouldCapture(container, action) {
		return
	}

	before := previous
	if before == nil && mc.Bag != nil {
		if stashed, ok := mc.Bag.Get(beforeStateKey(container)); ok {
			before, _ = stashed.(model.Record)
		}
	}

	changes := Diff(before, doc, o.excludedFieldSet(container))
	if action == ActionUpdate && len(changes) == 0 {
		// No observable difference, no audit noise.
		return
	}

	entry, err := o.persistEntry(ctx, mc, container, documentID, action, changes, o.isSnapshot(changes, before))
	if err != nil {
		logger.Error("Failed to persist audit entry",
			zap.Error(err),
			zap.String("container", container),
			zap.String("documentID", documentID),
			zap.String("action", string(action)))
		return
	}

	// Retention runs off the request path; its failure only ever gets logged.
	o.publishCleanup(entry)
}

// BeforeDelete captures the document's final state before the row disappears.
// Deletion entries are always protected snapshots.
func (o *Orchestrator) BeforeDelete(ctx context.Context, mc MutationContext, container, documentID string) {
	defer o.recoverCapture("pre-deletion", container, documentID)

	if !o.shouldCapture(container, ActionDelete) {
		return
	}

	rec, err := o.records.FindByID(ctx, container, documentID)
	if err != nil {
		logger.Error("Failed to fetch document state for deletion audit",
			zap.Error(err),
			zap.String("container", container),
			zap.String("documentID", documentID))
		return
	}

	changes := Diff(rec, nil, o.excludedFieldSet(container))
	if _, err := o.persistEntry(ctx, mc, container, documentID, ActionDelete, changes, true); err != nil {
		logger.Error("Failed to persist deletion audit entry",
			zap.Error(err),
			zap.String("container", container),
			zap.String("documentID", documentID))
	}
}

func (o *Orchestrator) persistEntry(ctx context.Context, mc MutationContext, container, documentID string, action Action, changes []FieldChange, snapshot bool) (Entry, error) {
	version, err := o.nextVersion(ctx, container, documentID)
	if err != nil {
		return Entry{}, err
	}

	actorName := mc.Actor.Name
	if actorName == "" {
		actorName = SystemActor
	}
	userAgent := mc.Client.UserAgent
	if userAgent == "" {
		userAgent = UnknownClient
	}

	entry := Entry{
		Container:  container,
		DocumentID: documentID,
		Action:     action,
		ActorID:    mc.Actor.ID,
		ActorName:  actorName,
		Timestamp:  time.Now().UTC(),
		Changes:    changes,
		IP:         resolveClientIP(mc.Client),
		UserAgent:  userAgent,
		Version:    version,
		IsSnapshot: snapshot,
	}

	stored, err := o.store.Insert(ctx, entry)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return stored, nil
}

// nextVersion reads the highest stored version and adds one. With a locker
// configured the read-increment pair is serialized per document; without one
// the race inherited from the capture design remains and the storage layer is
// expected to enforce uniqueness.
func (o *Orchestrator) nextVersion(ctx context.Context, container, documentID string) (int, error) {
	if o.locker != nil {
		key := fmt.Sprintf("audit:version:%s:%s", container, documentID)
		locked, err := o.locker.Lock(ctx, key, versionLockTTL)
		if err != nil || !locked {
			logger.Warn("Could not acquire version lock, proceeding unlocked",
				zap.Error(err),
				zap.String("container", container),
				zap.String("documentID", documentID))
		} else {
			defer func() {
				if err := o.locker.Unlock(ctx, key); err != nil {
					logger.Warn("Failed to release version lock", zap.Error(err), zap.String("key", key))
				}
			}()
		}
	}

	latest, err := o.store.LatestVersion(ctx, container, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve latest audit version: %w", err)
	}
	return latest + 1, nil
}

// isSnapshot reports whether an entry must survive retention: either the
// change set publishes the document, or this is the document's first capture.
func (o *Orchestrator) isSnapshot(changes []FieldChange, before model.Record) bool {
	if before == nil {
		return true
	}
	for _, change := range changes {
		if change.Field != o.opts.StatusField {
			continue
		}
		if value, ok := change.NewValue.(string); ok && value == o.opts.PublishedValue {
			return true
		}
	}
	return false
}

func (o *Orchestrator) shouldCapture(container string, action Action) bool {
	if !o.opts.Enabled {
		return false
	}
	if _, skip := o.skipContainers[container]; skip {
		return false
	}
	_, ok := o.tracked[action]
	return ok
}

func (o *Orchestrator) excludedFieldSet(container string) map[string]struct{} {
	if merged, ok := o.excludedByName[container]; ok {
		return merged
	}
	return o.excludedBase
}

func (o *Orchestrator) publishCleanup(entry Entry) {
	// A fresh context: the request context may be cancelled as soon as the
	// response is written, and cleanup must outlive it.
	o.bus.Publish(context.Background(), EventCleanup, DocumentRef{
		Container:  entry.Container,
		DocumentID: entry.DocumentID,
	})
}

func (o *Orchestrator) handleCleanup(ctx context.Context, event util.Event) error {
	ref, ok := event.Payload.(DocumentRef)
	if !ok {
		return fmt.Errorf("unexpected cleanup payload type: %T", event.Payload)
	}
	if _, err := o.executor.Cleanup(ctx, ref.Container, ref.DocumentID); err != nil {
		return fmt.Errorf("deferred audit cleanup failed for %s/%s: %w", ref.Container, ref.DocumentID, err)
	}
	return nil
}

func (o *Orchestrator) recoverCapture(phase, container, documentID string) {
	if r := recover(); r != nil {
		logger.Error("Audit capture panicked, mutation unaffected",
			zap.Any("panic", r),
			zap.String("phase", phase),
			zap.String("container", container),
			zap.String("documentID", documentID))
	}
}

// resolveClientIP prefers the first hop of a forwarded-for header, then a
// real-ip header, then the raw connection address.
func resolveClientIP(client ClientMeta) string {
	if client.ForwardedFor != "" {
		first := strings.TrimSpace(strings.Split(client.ForwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}
	if client.RealIP != "" {
		return client.RealIP
	}
	if client.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(client.RemoteAddr); err == nil {
			return host
		}
		return client.RemoteAddr
	}
	return UnknownClient
}
