// Package exports runs asynchronous table snapshot exports: a snapshot is
// read through the engine, rendered in one or more wire formats and stored as
// immutable artifacts in a blob store, with an audit trail per status change.
package exports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tablecore/internal/blob"
	"tablecore/internal/engine"
	"tablecore/pkg/tabular/codec"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact captures one stored rendering of an exported snapshot.
type Artifact struct {
	ID          string            `json:"id"`
	Key         string            `json:"key"`
	Format      codec.Format      `json:"format"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Record tracks an export request and its resulting artifacts.
type Record struct {
	ID          string         `json:"id"`
	TableKey    string         `json:"table_key"`
	FieldKeys   []string       `json:"field_keys,omitempty"`
	GroupFilter string         `json:"group_filter,omitempty"`
	Formats     []codec.Format `json:"formats"`
	Status      Status         `json:"status"`
	Error       string         `json:"error,omitempty"`
	Artifacts   []Artifact     `json:"artifacts,omitempty"`
	RequestedBy string         `json:"requested_by"`
	Reason      string         `json:"reason,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Input represents an enqueue request for the worker.
type Input struct {
	TableKey    string
	FieldKeys   []string
	GroupFilter string
	Formats     []codec.Format
	RequestedBy string
	Reason      string
}

// SnapshotSource reads display snapshots. *engine.Service satisfies it.
type SnapshotSource interface {
	ReadForDisplay(ctx context.Context, tableKey string, fieldKeys []string, groupFilter string, format codec.Format) (engine.Payload, error)
}

// Scheduler queues snapshot export requests and exposes status.
type Scheduler interface {
	Enqueue(ctx context.Context, input Input) (Record, error)
	Get(id string) (Record, bool)
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	ID         string            `json:"id"`
	Action     string            `json:"action"`
	Actor      string            `json:"actor"`
	TableKey   string            `json:"table_key"`
	Status     Status            `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Worker executes snapshot exports asynchronously.
type Worker struct {
	source SnapshotSource
	store  blob.Store
	audit  AuditLogger

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id    string
	input Input
}

type rendered struct {
	artifact Artifact
	payload  []byte
}

// NewWorker constructs an export worker over a snapshot source and blob store.
func NewWorker(source SnapshotSource, store blob.Store, audit AuditLogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source: source,
		store:  store,
		audit:  audit,
		queue:  make(chan exportTask, 32),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// Enqueue schedules an export job and returns the queued record.
func (w *Worker) Enqueue(ctx context.Context, input Input) (Record, error) {
	if w.source == nil {
		return Record{}, fmt.Errorf("snapshot source not configured")
	}
	if strings.TrimSpace(input.TableKey) == "" {
		return Record{}, fmt.Errorf("table key required")
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []codec.Format{codec.FormatDelimited, codec.FormatArray}
	}
	uniq := make([]codec.Format, 0, len(formats))
	seen := make(map[codec.Format]struct{})
	for _, format := range formats {
		if _, duplicate := seen[format]; duplicate {
			continue
		}
		if _, err := codec.ParseFormat(string(format)); err != nil {
			return Record{}, err
		}
		uniq = append(uniq, format)
		seen[format] = struct{}{}
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	record := Record{
		ID:          id,
		TableKey:    input.TableKey,
		FieldKeys:   append([]string(nil), input.FieldKeys...),
		GroupFilter: input.GroupFilter,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- exportTask{id: id, input: input}:
	default:
		// A job that never made it onto the queue must not linger as queued.
		w.mu.Lock()
		delete(w.jobs, id)
		w.mu.Unlock()
		return Record{}, fmt.Errorf("export queue full")
	}

	w.record(ctx, id, StatusQueued, nil)

	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(task exportTask) {
	w.updateStatus(task.id, StatusRunning, "")

	payload, err := w.source.ReadForDisplay(w.ctx, task.input.TableKey, task.input.FieldKeys, task.input.GroupFilter, codec.FormatArray)
	if err != nil {
		w.fail(task.id, fmt.Sprintf("read snapshot: %v", err))
		return
	}
	snap := payload.Snapshot
	table := codec.Table{FieldKeys: snap.FieldKeys, Rows: snap.Rows}

	formats := w.formatsFor(task.id)
	artifacts := make([]Artifact, 0, len(formats))
	for _, format := range formats {
		r, err := w.materialize(format, task.input.TableKey, table)
		if err != nil {
			w.fail(task.id, err.Error())
			return
		}
		if w.store != nil {
			info, err := w.store.Put(w.ctx, r.artifact.Key, bytes.NewReader(r.payload), blob.PutOptions{
				ContentType: r.artifact.ContentType,
				Metadata:    r.artifact.Metadata,
			})
			if err != nil {
				w.fail(task.id, fmt.Sprintf("store artifact: %v", err))
				return
			}
			r.artifact.SizeBytes = info.Size
			r.artifact.URL = info.URL
			if !info.LastModified.IsZero() {
				r.artifact.CreatedAt = info.LastModified
			}
		}
		artifacts = append(artifacts, r.artifact)
	}

	w.complete(task.id, artifacts)
}

func (w *Worker) materialize(format codec.Format, tableKey string, table codec.Table) (rendered, error) {
	var (
		payload     []byte
		contentType string
		err         error
	)
	switch format {
	case codec.FormatArray:
		payload, err = json.Marshal(struct {
			TableKey  string   `json:"table_key"`
			FieldKeys []string `json:"field_keys"`
			RowCount  int      `json:"row_count"`
			Rows      []string `json:"rows"`
		}{tableKey, table.FieldKeys, table.RowCount(), table.Rows})
		if err != nil {
			return rendered{}, fmt.Errorf("marshal array payload: %w", err)
		}
		contentType = "application/json"
	case codec.FormatDelimited:
		text, encErr := codec.EncodeDelimited(table, codec.DefaultSeparator)
		if encErr != nil {
			return rendered{}, encErr
		}
		payload = []byte(text)
		contentType = "text/csv"
	case codec.FormatMarkup:
		text, encErr := codec.EncodeMarkup(table, tableKey, true)
		if encErr != nil {
			return rendered{}, encErr
		}
		payload = []byte(text)
		contentType = "application/xml"
	default:
		return rendered{}, fmt.Errorf("unsupported export format %s", format)
	}

	id := uuid.NewString()
	return rendered{
		artifact: Artifact{
			ID:          id,
			Key:         artifactKey(id, tableKey, format),
			Format:      format,
			ContentType: contentType,
			SizeBytes:   int64(len(payload)),
			Metadata: map[string]string{
				"table_key": tableKey,
				"rows":      fmt.Sprintf("%d", table.RowCount()),
			},
			CreatedAt: time.Now().UTC(),
		},
		payload: payload,
	}, nil
}

func artifactKey(id, tableKey string, format codec.Format) string {
	ext := map[codec.Format]string{
		codec.FormatArray:     "json",
		codec.FormatDelimited: "csv",
		codec.FormatMarkup:    "xml",
	}[format]
	return fmt.Sprintf("exports/%s/%s.%s", id, tableKey, ext)
}

func (w *Worker) formatsFor(id string) []codec.Format {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if record, ok := w.jobs[id]; ok {
		return append([]codec.Format(nil), record.Formats...)
	}
	return nil
}

func (w *Worker) updateStatus(id string, status Status, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
	var md map[string]string
	if message != "" {
		md = map[string]string{"note": message}
	}
	w.record(w.ctx, id, status, md)
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.record(w.ctx, id, StatusSucceeded, nil)
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.record(w.ctx, id, StatusFailed, map[string]string{"error": reason})
}

func (w *Worker) record(ctx context.Context, id string, status Status, metadata map[string]string) {
	if w.audit == nil {
		return
	}
	w.mu.RLock()
	actor, tableKey, reason := "", "", ""
	if record, ok := w.jobs[id]; ok {
		actor = record.RequestedBy
		tableKey = record.TableKey
		reason = record.Reason
	}
	w.mu.RUnlock()
	w.audit.Record(ctx, AuditEntry{
		ID:         uuid.NewString(),
		Action:     "snapshot_export",
		Actor:      actor,
		TableKey:   tableKey,
		Status:     status,
		Reason:     reason,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	})
}

func (r Record) copy() Record {
	dup := r
	dup.FieldKeys = append([]string(nil), r.FieldKeys...)
	dup.Formats = append([]codec.Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

// MemoryAuditLog captures audit entries in memory for assertions.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
