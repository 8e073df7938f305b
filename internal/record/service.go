// Package record exposes the data-access facade: filtered finds, cursor
// connections, and soft-delete-aware mutations over the entity graph.
package record

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"recordql/internal/cursor"
	"recordql/internal/dbexec"
	"recordql/internal/logging"
	"recordql/internal/meta"
	"recordql/internal/observability"
	"recordql/internal/pagination"
	"recordql/internal/query"
	"recordql/internal/sqlutil"
)

// Record is one entity instance keyed by logical attribute name.
type Record = map[string]interface{}

// Service is the record facade. It is safe for concurrent use: all mutable
// working state lives in per-call builders.
type Service struct {
	registry  *meta.Registry
	exec      dbexec.QueryExecutor
	logger    *logging.Logger
	metrics   *observability.ServiceMetrics
	validator Validator

	defaultPageSize int
	now             func() time.Time
	newID           func() string
}

// Options configures optional service collaborators. Zero values pick
// defaults: a context/stdlib logger, no metrics, MetaValidator, UTC clock,
// and UUID identifiers.
type Options struct {
	Logger          *logging.Logger
	Metrics         *observability.ServiceMetrics
	Validator       Validator
	DefaultPageSize int
	Now             func() time.Time
	NewID           func() string
}

// NewService builds a record service over the given registry and executor.
func NewService(registry *meta.Registry, exec dbexec.QueryExecutor, opts Options) *Service {
	s := &Service{
		registry:        registry,
		exec:            exec,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		validator:       opts.Validator,
		defaultPageSize: opts.DefaultPageSize,
		now:             opts.Now,
		newID:           opts.NewID,
	}
	if s.validator == nil {
		s.validator = MetaValidator{}
	}
	if s.defaultPageSize <= 0 {
		s.defaultPageSize = pagination.DefaultLimit
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// WithUnitOfWork returns a service bound to the given executor, typically a
// transaction, so every operation inside one ambient unit of work sees a
// consistent view. The original service is unchanged.
func (s *Service) WithUnitOfWork(exec dbexec.QueryExecutor) *Service {
	clone := *s
	clone.exec = exec
	return &clone
}

// FindOptions parameterizes a list query.
type FindOptions struct {
	Where  map[string]interface{}
	Sort   []string
	Limit  int
	Offset int
	Fields []string
}

// ConnectionOptions parameterizes a connection query.
type ConnectionOptions struct {
	Where  map[string]interface{}
	Sort   []string
	Window pagination.Window
	Fields []string
}

// Find returns every record matching the filter, in sort order.
func (s *Service) Find(ctx context.Context, entity string, opts FindOptions) ([]Record, error) {
	start := time.Now()
	records, err := s.find(ctx, entity, opts)
	s.observe(ctx, "find", entity, start, err)
	if err == nil {
		s.metrics.RecordResultsCount(ctx, "find", entity, int64(len(records)))
	}
	return records, err
}

func (s *Service) find(ctx context.Context, entity string, opts FindOptions) ([]Record, error) {
	b, err := query.NewBuilder(s.registry, entity)
	if err != nil {
		return nil, err
	}
	b.Select(opts.Fields)
	if err := b.Where(opts.Where); err != nil {
		return nil, err
	}
	if len(opts.Sort) > 0 {
		if err := b.OrderBy(opts.Sort...); err != nil {
			return nil, err
		}
	}
	if opts.Limit > 0 {
		b.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		b.Offset(opts.Offset)
	}

	sqlStr, args, err := b.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := s.exec.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanRows(rows, b.SelectedColumns())
}

// FindOne returns the single record matching the filter. Zero matches is
// ErrNotFound; more than one is ErrAmbiguous.
func (s *Service) FindOne(ctx context.Context, entity string, where map[string]interface{}) (Record, error) {
	start := time.Now()
	rec, err := s.findOne(ctx, entity, where)
	s.observe(ctx, "findOne", entity, start, err)
	return rec, err
}

func (s *Service) findOne(ctx context.Context, entity string, where map[string]interface{}) (Record, error) {
	// Two rows are enough to tell "exactly one" from "many".
	records, err := s.find(ctx, entity, FindOptions{Where: where, Limit: 2})
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, entity)
	case 1:
		return records[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, entity)
	}
}

// FindConnection returns one cursor-paginated page plus a lazy total count.
func (s *Service) FindConnection(ctx context.Context, entity string, opts ConnectionOptions) (*pagination.Connection, error) {
	start := time.Now()
	conn, err := s.findConnection(ctx, entity, opts)
	s.observe(ctx, "findConnection", entity, start, err)
	if err == nil {
		s.metrics.RecordResultsCount(ctx, "findConnection", entity, int64(len(conn.Edges)))
	}
	return conn, err
}

func (s *Service) findConnection(ctx context.Context, entity string, opts ConnectionOptions) (*pagination.Connection, error) {
	ent, err := s.registry.Entity(entity)
	if err != nil {
		return nil, err
	}
	page, err := opts.Window.Resolve(s.defaultPageSize)
	if err != nil {
		return nil, err
	}

	keys, err := query.ParseSortKeys(opts.Sort)
	if err != nil {
		return nil, err
	}
	keys = pagination.NormalizeSortKeys(ent, keys)
	sortID := pagination.SortKeyIdentity(keys)
	directions := pagination.Directions(keys)
	cursorCols, err := query.SortColumns(ent, keys)
	if err != nil {
		return nil, err
	}

	b, err := query.NewBuilder(s.registry, entity)
	if err != nil {
		return nil, err
	}
	var fields []string
	if len(opts.Fields) > 0 {
		// Sort attributes must be projected so boundary cursors can be
		// encoded from the rows. Appending to a copy keeps the caller's
		// slice untouched.
		fields = make([]string, 0, len(opts.Fields)+len(keys))
		fields = append(fields, opts.Fields...)
		for _, key := range keys {
			fields = append(fields, key.Attribute)
		}
	}
	b.Select(fields)
	if err := b.Where(opts.Where); err != nil {
		return nil, err
	}

	// The count query is captured before the seek predicate so the total is
	// stable across pages.
	countSQL, countArgs, err := b.CountSQL()
	if err != nil {
		return nil, err
	}

	effective := keys
	if page.Mode == pagination.ModeBackward {
		effective = pagination.ReverseSortKeys(keys)
	}
	if err := b.OrderByKeys(effective); err != nil {
		return nil, err
	}

	if page.HasCursor() {
		cEntity, cSortID, cDirs, cVals, err := cursor.Decode(page.Cursor)
		if err != nil {
			return nil, err
		}
		if err := cursor.Validate(entity, sortID, directions, cEntity, cSortID, cDirs); err != nil {
			return nil, err
		}
		values, err := cursor.ParseValues(cVals, cursorCols)
		if err != nil {
			return nil, err
		}
		seek, err := pagination.SeekCondition(ent.Table, cursorCols, keys, values, page.Mode == pagination.ModeBackward)
		if err != nil {
			return nil, err
		}
		b.AndCondition(seek)
	}
	b.Limit(page.Limit + 1)

	sqlStr, args, err := b.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := s.exec.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	results, err := scanRows(rows, b.SelectedColumns())
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	results, overflow := pagination.TrimPage(results, page.Limit)
	results = pagination.RestoreOrder(results, page.Mode)

	edges := make([]pagination.Edge, len(results))
	for i, row := range results {
		values := make([]interface{}, len(keys))
		for j, key := range keys {
			values[j] = row[key.Attribute]
		}
		edges[i] = pagination.Edge{
			Node:   row,
			Cursor: cursor.Encode(entity, sortID, directions, values...),
		}
	}
	info := pagination.BuildPageInfo(edges, page.Mode, overflow, page.HasCursor())

	exec := s.exec
	countFn := func(ctx context.Context) (int64, error) {
		rows, err := exec.QueryContext(ctx, countSQL, countArgs...)
		if err != nil {
			return 0, err
		}
		return scanCount(rows)
	}
	return pagination.NewConnection(edges, info, countFn), nil
}

// Create validates and inserts one record, stamping identifier and creator
// attribution, and returns the canonical stored row.
func (s *Service) Create(ctx context.Context, entity string, data Record, actorID string) (Record, error) {
	start := time.Now()
	rec, err := s.create(ctx, entity, data, actorID)
	s.observe(ctx, "create", entity, start, err)
	return rec, err
}

func (s *Service) create(ctx context.Context, entity string, data Record, actorID string) (Record, error) {
	ent, err := s.registry.Entity(entity)
	if err != nil {
		return nil, err
	}
	pk := ent.PrimaryColumn()

	rec := make(Record, len(data)+3)
	for k, v := range data {
		rec[k] = v
	}
	if id, ok := rec[pk.Name]; !ok || id == nil || id == "" {
		rec[pk.Name] = s.newID()
	}
	now := s.now()
	stampIfAbsent(ent, rec, "createdAt", now)
	stampIfAbsent(ent, rec, "createdById", actorID)

	if err := s.validator.Validate(ent, rec); err != nil {
		return nil, err
	}

	var cols []string
	var vals []interface{}
	for _, col := range ent.Columns {
		if v, ok := rec[col.Name]; ok {
			cols = append(cols, sqlutil.QuoteIdentifier(col.ColumnName))
			vals = append(vals, v)
		}
	}
	sqlStr, args, err := sq.Insert(sqlutil.QuoteIdentifier(ent.Table)).
		Columns(cols...).
		Values(vals...).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.exec.ExecContext(ctx, sqlStr, args...); err != nil {
		return nil, err
	}
	return s.readByID(ctx, entity, rec[pk.Name])
}

// CreateMany inserts the records in order against the service's executor and
// returns the stored rows. Wrap in a unit of work for all-or-nothing
// behavior.
func (s *Service) CreateMany(ctx context.Context, entity string, list []Record, actorID string) ([]Record, error) {
	start := time.Now()
	records := make([]Record, 0, len(list))
	var err error
	for _, data := range list {
		var rec Record
		rec, err = s.create(ctx, entity, data, actorID)
		if err != nil {
			break
		}
		records = append(records, rec)
	}
	s.observe(ctx, "createMany", entity, start, err)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Update merges partial data into the single record matching where,
// re-validates, persists, and returns the canonical post-update row.
func (s *Service) Update(ctx context.Context, entity string, data Record, where map[string]interface{}, actorID string) (Record, error) {
	start := time.Now()
	rec, err := s.update(ctx, entity, data, where, actorID)
	s.observe(ctx, "update", entity, start, err)
	return rec, err
}

func (s *Service) update(ctx context.Context, entity string, data Record, where map[string]interface{}, actorID string) (Record, error) {
	ent, err := s.registry.Entity(entity)
	if err != nil {
		return nil, err
	}
	pk := ent.PrimaryColumn()

	current, err := s.findOne(ctx, entity, where)
	if err != nil {
		return nil, err
	}
	if v, ok := data[pk.Name]; ok && v != current[pk.Name] {
		return nil, &ValidationError{Entity: entity, Violations: []FieldViolation{
			{Field: pk.Name, Message: "identifier cannot be changed"},
		}}
	}

	changed := make(Record, len(data)+2)
	for k, v := range data {
		changed[k] = v
	}
	delete(changed, pk.Name)
	stamp(ent, changed, "updatedAt", s.now())
	stamp(ent, changed, "updatedById", actorID)

	merged := make(Record, len(current)+len(changed))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range changed {
		merged[k] = v
	}
	if err := s.validator.Validate(ent, merged); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, ent, changed, current[pk.Name]); err != nil {
		return nil, err
	}
	return s.readByID(ctx, entity, current[pk.Name])
}

// Delete soft-deletes the single live record matching where and returns its
// identifier. Rows are never physically removed.
func (s *Service) Delete(ctx context.Context, entity string, where map[string]interface{}, actorID string) (Record, error) {
	start := time.Now()
	rec, err := s.delete(ctx, entity, where, actorID)
	s.observe(ctx, "delete", entity, start, err)
	return rec, err
}

func (s *Service) delete(ctx context.Context, entity string, where map[string]interface{}, actorID string) (Record, error) {
	ent, err := s.registry.Entity(entity)
	if err != nil {
		return nil, err
	}
	if !ent.HasColumn("deletedAt") {
		return nil, fmt.Errorf("entity %s has no deletedAt column and cannot be deleted", entity)
	}
	pk := ent.PrimaryColumn()

	current, err := s.findOne(ctx, entity, where)
	if err != nil {
		return nil, err
	}

	changed := Record{"deletedAt": s.now()}
	stamp(ent, changed, "deletedById", actorID)
	if err := s.persist(ctx, ent, changed, current[pk.Name]); err != nil {
		return nil, err
	}
	return Record{pk.Name: current[pk.Name]}, nil
}

// persist writes the changed attributes of the row with the given identifier.
func (s *Service) persist(ctx context.Context, ent meta.Entity, changed Record, id interface{}) error {
	if len(changed) == 0 {
		return nil
	}
	pk := ent.PrimaryColumn()
	set := make(map[string]interface{}, len(changed))
	for k, v := range changed {
		col, ok := ent.Column(k)
		if !ok {
			return fmt.Errorf("%w: %s on entity %s", query.ErrUnknownAttribute, k, ent.Name)
		}
		set[sqlutil.QuoteIdentifier(col.ColumnName)] = v
	}
	sqlStr, args, err := sq.Update(sqlutil.QuoteIdentifier(ent.Table)).
		SetMap(set).
		Where(sq.Eq{sqlutil.QuoteIdentifier(pk.ColumnName): id}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// readByID re-reads the canonical row after a mutation. deletedAt_all keeps
// soft-deleted rows readable here, since a just-deleted row is a valid
// read-back target.
func (s *Service) readByID(ctx context.Context, entity string, id interface{}) (Record, error) {
	ent, err := s.registry.Entity(entity)
	if err != nil {
		return nil, err
	}
	pk := ent.PrimaryColumn()
	where := map[string]interface{}{pk.Name + "_eq": id}
	if ent.HasColumn("deletedAt") {
		where["deletedAt_all"] = true
	}
	records, err := s.find(ctx, entity, FindOptions{Where: where, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %v after write", ErrNotFound, entity, id)
	}
	return records[0], nil
}

// stampIfAbsent sets an audit attribute only when the column exists and the
// payload did not supply it.
func stampIfAbsent(ent meta.Entity, rec Record, attr string, value interface{}) {
	if !ent.HasColumn(attr) {
		return
	}
	if _, ok := rec[attr]; ok {
		return
	}
	rec[attr] = value
}

// stamp overwrites an audit attribute when the column exists.
func stamp(ent meta.Entity, rec Record, attr string, value interface{}) {
	if ent.HasColumn(attr) {
		rec[attr] = value
	}
}

func (s *Service) observe(ctx context.Context, operation, entity string, start time.Time, err error) {
	duration := time.Since(start)
	s.metrics.RecordOperation(ctx, operation, entity, duration, err != nil)

	logger := s.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	if err != nil {
		logger.Error("record operation failed",
			slog.String("operation", operation),
			slog.String("entity", entity),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("record operation completed",
		slog.String("operation", operation),
		slog.String("entity", entity),
		slog.Duration("duration", duration),
	)
}
