package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"tablecore/pkg/tabular"
	"tablecore/pkg/tabular/codec"
)

// Service is the facade over the engine components: catalog discovery,
// snapshot reads, staging, batch commit and display selection, with optional
// metrics and tracing around every operation.
type Service struct {
	store     tabular.ModelStore
	catalog   *Catalog
	selection *SelectionState
	buffer    *StagingBuffer
	commits   *CommitCoordinator
	reader    *SnapshotReader

	metrics MetricsRecorder
	tracer  Tracer
}

// ServiceOption customizes service construction.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	metrics       MetricsRecorder
	tracer        Tracer
	separator     rune
	includeSchema bool
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec MetricsRecorder) ServiceOption {
	return func(c *serviceConfig) { c.metrics = rec }
}

// WithTracer attaches a tracer.
func WithTracer(tr Tracer) ServiceOption {
	return func(c *serviceConfig) { c.tracer = tr }
}

// WithSeparator sets the delimited-text separator (default comma).
func WithSeparator(sep rune) ServiceOption {
	return func(c *serviceConfig) { c.separator = sep }
}

// WithoutMarkupSchema omits the schema-version attribute from markup
// renderings.
func WithoutMarkupSchema() ServiceOption {
	return func(c *serviceConfig) { c.includeSchema = false }
}

// NewService wires a service over the supplied model store.
func NewService(store tabular.ModelStore, opts ...ServiceOption) *Service {
	cfg := serviceConfig{separator: codec.DefaultSeparator, includeSchema: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	catalog := NewCatalog(store)
	selection := NewSelectionState()
	buffer := NewStagingBuffer(catalog)
	return &Service{
		store:     store,
		catalog:   catalog,
		selection: selection,
		buffer:    buffer,
		commits:   NewCommitCoordinator(store, buffer),
		reader:    NewSnapshotReader(store, selection, cfg.separator, cfg.includeSchema),
		metrics:   cfg.metrics,
		tracer:    cfg.tracer,
	}
}

// Catalog exposes the table directory.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Selection exposes the display selection state.
func (s *Service) Selection() *SelectionState { return s.selection }

// observe starts instrumentation for one operation and returns the finish
// callback that records its outcome.
func (s *Service) observe(ctx context.Context, op string) (context.Context, func(error)) {
	started := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, op)
	}
	return ctx, func(err error) {
		if span != nil {
			span.End(err)
		}
		if s.metrics != nil {
			s.metrics.Observe(ctx, op, err == nil, time.Since(started))
		}
	}
}

// ListTables returns every available table.
func (s *Service) ListTables(ctx context.Context) (_ []tabular.TableDescriptor, err error) {
	ctx, done := s.observe(ctx, "list_tables")
	defer func() { done(err) }()
	return s.catalog.ListAvailable(ctx)
}

// ListObsoleteTables returns deprecated table keys with migration notes.
func (s *Service) ListObsoleteTables(ctx context.Context) (_ []tabular.ObsoleteTable, err error) {
	ctx, done := s.observe(ctx, "list_obsolete_tables")
	defer func() { done(err) }()
	return s.catalog.ListObsolete(ctx)
}

// ListFields returns the field metadata of one table.
func (s *Service) ListFields(ctx context.Context, tableKey string) (_ []tabular.FieldDescriptor, err error) {
	ctx, done := s.observe(ctx, "list_fields")
	defer func() { done(err) }()
	return s.catalog.ListFields(ctx, tableKey)
}

// ReadForDisplay returns a read-only snapshot in the requested format,
// narrowed by the current display selection.
func (s *Service) ReadForDisplay(ctx context.Context, tableKey string, fieldKeys []string, groupFilter string, format codec.Format) (_ Payload, err error) {
	ctx, done := s.observe(ctx, "read_for_display")
	defer func() { done(err) }()
	return s.reader.ReadForDisplay(ctx, tableKey, fieldKeys, groupFilter, format)
}

// ReadForEditing returns an editable snapshot whose version must be echoed
// when staging.
func (s *Service) ReadForEditing(ctx context.Context, tableKey, groupFilter string, format codec.Format) (_ Payload, err error) {
	ctx, done := s.observe(ctx, "read_for_editing")
	defer func() { done(err) }()
	return s.reader.ReadForEditing(ctx, tableKey, groupFilter, format)
}

// Stage records an intended edit in the staging buffer.
func (s *Service) Stage(ctx context.Context, tableKey string, version int64, fieldKeys []string, rows []string) (err error) {
	ctx, done := s.observe(ctx, "stage")
	defer func() { done(err) }()
	return s.buffer.Stage(ctx, tableKey, version, fieldKeys, rows)
}

// StageDelimited decodes delimited text (header line plus rows) and stages
// the result. A zero separator means comma.
func (s *Service) StageDelimited(ctx context.Context, tableKey string, version int64, text string, sep rune) (err error) {
	ctx, done := s.observe(ctx, "stage_delimited")
	defer func() { done(err) }()
	t, err := codec.DecodeDelimited(text, sep)
	if err != nil {
		return err
	}
	return s.buffer.Stage(ctx, tableKey, version, t.FieldKeys, t.Rows)
}

// StageMarkup decodes a tagged markup document and stages the result. When
// the document names a table key it must match tableKey.
func (s *Service) StageMarkup(ctx context.Context, tableKey string, version int64, text string) (err error) {
	ctx, done := s.observe(ctx, "stage_markup")
	defer func() { done(err) }()
	t, docKey, err := codec.DecodeMarkup(text)
	if err != nil {
		return err
	}
	if docKey != "" && docKey != tableKey {
		return fmt.Errorf("markup document is for table %q, not %q", docKey, tableKey)
	}
	return s.buffer.Stage(ctx, tableKey, version, t.FieldKeys, t.Rows)
}

// StageFile reads a delimited-text file and stages its contents, using the
// identical separator and header semantics as StageDelimited.
func (s *Service) StageFile(ctx context.Context, tableKey string, version int64, path string, sep rune) (err error) {
	ctx, done := s.observe(ctx, "stage_file")
	defer func() { done(err) }()
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	t, err := codec.DecodeDelimited(string(data), sep)
	if err != nil {
		return err
	}
	return s.buffer.Stage(ctx, tableKey, version, t.FieldKeys, t.Rows)
}

// WriteDisplayFile writes a display snapshot as delimited text to path.
func (s *Service) WriteDisplayFile(ctx context.Context, tableKey string, fieldKeys []string, groupFilter, path string, sep rune) (err error) {
	ctx, done := s.observe(ctx, "write_display_file")
	defer func() { done(err) }()
	p, err := s.reader.ReadForDisplay(ctx, tableKey, fieldKeys, groupFilter, codec.FormatArray)
	if err != nil {
		return err
	}
	return writeDelimitedFile(p.Snapshot, path, sep)
}

// WriteEditingFile writes an editable snapshot as delimited text to path and
// returns the version to echo when staging the edited file.
func (s *Service) WriteEditingFile(ctx context.Context, tableKey, groupFilter, path string, sep rune) (version int64, err error) {
	ctx, done := s.observe(ctx, "write_editing_file")
	defer func() { done(err) }()
	p, err := s.reader.ReadForEditing(ctx, tableKey, groupFilter, codec.FormatArray)
	if err != nil {
		return 0, err
	}
	if err := writeDelimitedFile(p.Snapshot, path, sep); err != nil {
		return 0, err
	}
	return p.Snapshot.Version, nil
}

func writeDelimitedFile(snap tabular.TableSnapshot, path string, sep rune) error {
	text, err := codec.EncodeDelimited(codec.Table{FieldKeys: snap.FieldKeys, Rows: snap.Rows}, sep)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Peek returns the pending edit staged for a table key, if any.
func (s *Service) Peek(tableKey string) (tabular.PendingEdit, bool) {
	return s.buffer.Peek(tableKey)
}

// StagedKeys returns the staged table keys in staging order.
func (s *Service) StagedKeys() []string {
	return s.buffer.Keys()
}

// Apply commits every pending edit as one batch and clears the buffer on any
// terminal outcome. See CommitCoordinator.Apply.
func (s *Service) Apply(ctx context.Context, fillLog bool) (res tabular.CommitResult, err error) {
	ctx, done := s.observe(ctx, "apply")
	defer func() { done(err) }()
	return s.commits.Apply(ctx, fillLog)
}

// Cancel discards every pending edit without touching the model store.
func (s *Service) Cancel(ctx context.Context) {
	_, done := s.observe(ctx, "cancel")
	s.commits.Cancel()
	done(nil)
}

// SetCases selects load cases for display reads.
func (s *Service) SetCases(ctx context.Context, names []string) (err error) {
	_, done := s.observe(ctx, "set_cases")
	defer func() { done(err) }()
	return s.selection.SetCases(names)
}

// SetCombinations selects load combinations for display reads.
func (s *Service) SetCombinations(ctx context.Context, names []string) (err error) {
	_, done := s.observe(ctx, "set_combinations")
	defer func() { done(err) }()
	return s.selection.SetCombinations(names)
}

// SetPatterns selects load patterns for display reads.
func (s *Service) SetPatterns(ctx context.Context, names []string) (err error) {
	_, done := s.observe(ctx, "set_patterns")
	defer func() { done(err) }()
	return s.selection.SetPatterns(names)
}

// SetOutputOptions replaces the result-category configuration.
func (s *Service) SetOutputOptions(ctx context.Context, opts tabular.OutputOptions) (err error) {
	_, done := s.observe(ctx, "set_output_options")
	defer func() { done(err) }()
	return s.selection.SetOutputOptions(opts)
}
