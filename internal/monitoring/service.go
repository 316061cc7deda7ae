package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tablestore "muxmonitor"
	"muxmonitor/internal/checklist"
	"muxmonitor/internal/classify"
	"muxmonitor/internal/records"
	"muxmonitor/internal/rules"
	"muxmonitor/internal/storage"
)

var (
	ErrConflict    = errors.New("table changed by another writer during save")
	ErrUnknownKind = errors.New("unknown table kind")
)

type Kind string

const (
	KindMetering  Kind = "metering"
	KindChecklist Kind = "checklist"
)

// FindingRecorder persists Warning and Trouble findings of a saved record.
type FindingRecorder interface {
	ReplaceFindings(ctx context.Context, table, recordKey string, findings []storage.Finding) error
}

type Publisher interface {
	Publish(subject string, payload any) error
}

type Options struct {
	MeteringTable  string
	ChecklistTable string
	Slots          []string
	Channels       []string
	Shifts         []string
	// DegradeUnreadable treats an unreadable store as an empty table on save.
	DegradeUnreadable bool
	// Optimistic re-reads the table before writing and aborts if it changed.
	Optimistic bool
	Timeout    time.Duration
}

type Deps struct {
	Store    tablestore.TableStore
	Rules    *rules.Bundle
	Findings FindingRecorder
	Bus      Publisher
	Logger   *slog.Logger
}

type Service struct {
	store      tablestore.TableStore
	bundle     *rules.Bundle
	classifier *classify.Classifier
	aggregator *checklist.Aggregator
	metering   records.MeteringLayout
	checklist  records.ChecklistLayout
	findings   FindingRecorder
	bus        Publisher
	logger     *slog.Logger
	opts       Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(deps Deps, opts Options) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MeteringTable == "" {
		opts.MeteringTable = "Sheet1"
	}
	if opts.ChecklistTable == "" {
		opts.ChecklistTable = "CATATAN_HARIAN"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	aggregator := checklist.NewAggregator(deps.Rules.Checklist, logger)
	return &Service{
		store:      deps.Store,
		bundle:     deps.Rules,
		classifier: classify.New(deps.Rules, logger),
		aggregator: aggregator,
		metering:   records.NewMeteringLayout(opts.MeteringTable, opts.Slots, opts.Channels),
		checklist:  records.NewChecklistLayout(opts.ChecklistTable, opts.Shifts, aggregator.Equipment()),
		findings:   deps.Findings,
		bus:        deps.Bus,
		logger:     logger,
		opts:       opts,
		locks:      map[string]*sync.Mutex{},
	}
}

func (s *Service) Rules() *rules.Bundle { return s.bundle }

func (s *Service) Classifier() *classify.Classifier { return s.classifier }

func (s *Service) MeteringLayout() records.MeteringLayout { return s.metering }

func (s *Service) ChecklistLayout() records.ChecklistLayout { return s.checklist }

func (s *Service) Schema(kind Kind) (records.Schema, error) {
	switch kind {
	case KindMetering:
		return s.metering.Schema, nil
	case KindChecklist:
		return s.checklist.Schema, nil
	}
	return records.Schema{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return s.store.TestConnection(ctx)
}

func (s *Service) ListTables(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	names, err := s.store.ListTables(ctx)
	if err != nil {
		return nil, storeError("list tables", err)
	}
	return names, nil
}

type SaveResult struct {
	Table     string                 `json:"table"`
	Key       string                 `json:"key"`
	Rows      int                    `json:"rows"`
	Replaced  bool                   `json:"replaced"`
	Degraded  bool                   `json:"degraded,omitempty"`
	Report    *Report                `json:"report,omitempty"`
	Checklist *checklist.Aggregation `json:"checklist,omitempty"`
}

func (s *Service) tableLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// save runs read, merge-append and write for one record while holding the table lock.
func (s *Service) save(ctx context.Context, schema records.Schema, row tablestore.Row) (SaveResult, error) {
	lock := s.tableLock(schema.Name)
	lock.Lock()
	defer lock.Unlock()

	existing, degraded, err := s.readForSave(ctx, schema.Name)
	if err != nil {
		return SaveResult{}, err
	}
	key := records.NaturalKey(schema, row)
	replaced := records.CountKey(schema, existing, key) > 0
	merged := records.MergeAppend(schema, existing, row)
	merged.Name = schema.Name

	if s.opts.Optimistic && !degraded {
		current, _, err := s.readForSave(ctx, schema.Name)
		if err != nil {
			return SaveResult{}, err
		}
		if tablestore.Fingerprint(current) != tablestore.Fingerprint(existing) {
			s.logger.Warn("table changed during save", slog.String("table", schema.Name), slog.String("key", key))
			return SaveResult{}, ErrConflict
		}
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	if err := s.store.WriteTable(writeCtx, merged); err != nil {
		s.logger.Error("table write failed", slog.String("table", schema.Name), slog.String("error", err.Error()))
		return SaveResult{}, storeError("write "+schema.Name, err)
	}
	s.logger.Info("record saved",
		slog.String("table", schema.Name),
		slog.String("key", key),
		slog.Bool("replaced", replaced),
		slog.Int("rows", len(merged.Rows)),
	)
	return SaveResult{Table: schema.Name, Key: key, Rows: len(merged.Rows), Replaced: replaced, Degraded: degraded}, nil
}

func (s *Service) readForSave(ctx context.Context, name string) (tablestore.Table, bool, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	table, err := s.store.ReadTable(readCtx, name)
	switch {
	case err == nil:
		return table, false, nil
	case errors.Is(err, tablestore.ErrTableNotFound):
		return tablestore.Table{Name: name}, false, nil
	case s.opts.DegradeUnreadable:
		s.logger.Warn("table unreadable, saving onto empty table", slog.String("table", name), slog.String("error", err.Error()))
		return tablestore.Table{Name: name}, true, nil
	default:
		return tablestore.Table{}, false, storeError("read "+name, err)
	}
}

func storeError(op string, err error) error {
	if errors.Is(err, tablestore.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, tablestore.ErrStoreUnavailable, err)
}

func (s *Service) recordFindings(ctx context.Context, table, key string, findings []storage.Finding) {
	if s.findings == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
	defer cancel()
	if err := s.findings.ReplaceFindings(ctx, table, key, findings); err != nil {
		s.logger.Warn("failed to record findings", slog.String("table", table), slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *Service) publish(subject string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(subject, payload); err != nil {
		s.logger.Warn("failed to publish event", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}
