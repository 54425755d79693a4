package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"ledger/internal/core"
	"ledger/internal/csvcodec"
	"ledger/internal/filter"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/report"
	"ledger/internal/sheets"
	"ledger/internal/storage"
)

var (
	ErrNotFound         = errors.New("expense not found")
	ErrExport           = errors.New("export failed")
	ErrSharingDisabled  = errors.New("sharing is not configured")
	ErrNoWorkbookWriter = errors.New("no workbook writer configured")
)

// LedgerServiceConfig holds the presentation and namespace settings of a service.
type LedgerServiceConfig struct {
	Labels report.Labels
	// Household, when set, overrides the persisted namespace at Open.
	Household string
	Today     func() string
}

// CSVExport is exported CSV text with its suggested file name.
type CSVExport struct {
	Name    string
	Content string
}

// LedgerService orchestrates user actions across the local store and, when
// sharing is configured, the reconciler. Local commits always complete before
// replication is attempted, and replication failures never surface here.
type LedgerService struct {
	store      *ledger.Store
	slots      storage.Slots
	reconciler *Reconciler
	workbooks  sheets.WorkbookWriter
	config     LedgerServiceConfig
	logger     *log.Logger
	closers    []io.Closer
}

// NewLedgerService wires a service. reconciler and workbooks may be nil.
// closers are closed, in order, by Close.
func NewLedgerService(
	store *ledger.Store,
	slots storage.Slots,
	reconciler *Reconciler,
	workbooks sheets.WorkbookWriter,
	config LedgerServiceConfig,
	logger *log.Logger,
	closers ...io.Closer,
) *LedgerService {
	if config.Today == nil {
		config.Today = core.Today
	}
	if config.Labels.Locale == "" {
		config.Labels = report.LabelsFor(report.DefaultLocale)
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		store:      store,
		slots:      slots,
		reconciler: reconciler,
		workbooks:  workbooks,
		config:     config,
		logger:     logger.WithComponent(log.ComponentLedger),
		closers:    closers,
	}
}

// Open restores the local cache and, if a household is configured and sharing
// is available, activates replication for it.
func (s *LedgerService) Open(ctx context.Context) error {
	records := s.store.Load(ctx)

	household := strings.TrimSpace(s.config.Household)
	if household == "" {
		household = s.persistedHousehold(ctx)
	} else {
		s.persistHousehold(ctx, household)
	}

	s.logger.InfoContext(ctx, "Ledger opened",
		log.FieldCount, len(records),
		log.FieldHousehold, household,
		"sharing", s.reconciler != nil)

	if s.reconciler == nil {
		return nil
	}
	if err := s.reconciler.Start(ctx); err != nil {
		return fmt.Errorf("start reconciler: %w", err)
	}
	if household == "" {
		return nil
	}
	if err := s.reconciler.Activate(ctx, household); err != nil {
		return fmt.Errorf("activate household: %w", err)
	}
	return nil
}

// Ready is closed once the initial pull, if any, has finished.
func (s *LedgerService) Ready() <-chan struct{} {
	if s.reconciler == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.reconciler.Ready()
}

// Submit validates a draft and stores it as a new expense.
func (s *LedgerService) Submit(ctx context.Context, d core.Draft) (core.Expense, error) {
	e, err := d.Build(core.NewID())
	if err != nil {
		return core.Expense{}, err
	}
	s.store.Upsert(ctx, e)
	s.logger.InfoContext(ctx, "Expense added",
		log.FieldExpenseID, e.ID,
		log.FieldOperation, log.OpUpsert)
	return e, nil
}

// Edit replaces an existing expense with the validated draft.
func (s *LedgerService) Edit(ctx context.Context, id string, d core.Draft) (core.Expense, error) {
	if _, ok := s.store.Get(id); !ok {
		return core.Expense{}, fmt.Errorf("edit %s: %w", id, ErrNotFound)
	}
	e, err := d.Build(id)
	if err != nil {
		return core.Expense{}, err
	}
	s.store.Upsert(ctx, e)
	s.logger.InfoContext(ctx, "Expense updated",
		log.FieldExpenseID, e.ID,
		log.FieldOperation, log.OpUpsert)
	return e, nil
}

// Get returns one expense by id.
func (s *LedgerService) Get(id string) (core.Expense, bool) {
	return s.store.Get(id)
}

// Delete removes an expense. Deleting an unknown id is not an error; the
// result reports whether anything was removed.
func (s *LedgerService) Delete(ctx context.Context, id string) bool {
	removed := s.store.Delete(ctx, id)
	s.logger.InfoContext(ctx, "Expense delete requested",
		log.FieldExpenseID, id,
		log.FieldOperation, log.OpDelete,
		"removed", removed)
	return removed
}

// ImportCSV merges decoded rows into the ledger by id and returns how many rows were read.
func (s *LedgerService) ImportCSV(ctx context.Context, text string) int {
	records := csvcodec.Decode(text, csvcodec.Options{NewID: core.NewID, Today: s.config.Today})
	if len(records) == 0 {
		return 0
	}
	s.store.UpsertMany(ctx, records)
	s.logger.InfoContext(ctx, "CSV imported",
		log.FieldOperation, log.OpImport,
		log.FieldCount, len(records))
	return len(records)
}

// ExportCSV encodes the whole working set.
func (s *LedgerService) ExportCSV(ctx context.Context) CSVExport {
	records := s.store.Records()
	s.logger.DebugContext(ctx, "CSV exported",
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(records))
	return CSVExport{
		Name:    report.CSVName(s.config.Today()),
		Content: csvcodec.Encode(records),
	}
}

// ExportWorkbook writes the four report sheets of the filtered set and returns
// the writer's reference to the result.
func (s *LedgerService) ExportWorkbook(ctx context.Context, c filter.Criteria) (string, error) {
	if s.workbooks == nil {
		return "", fmt.Errorf("%w: %w", ErrExport, ErrNoWorkbookWriter)
	}
	records := filter.Apply(s.store.Records(), c)
	wb := report.BuildWorkbook(records, s.config.Labels, s.config.Today())
	ref, err := s.workbooks.WriteWorkbook(ctx, wb)
	if err != nil {
		s.logger.ErrorContext(ctx, "Workbook export failed",
			log.FieldOperation, log.OpExport,
			log.FieldError, err)
		return "", fmt.Errorf("%w: %w", ErrExport, err)
	}
	s.logger.InfoContext(ctx, "Workbook exported",
		log.FieldOperation, log.OpExport,
		log.FieldRef, ref,
		log.FieldCount, len(records))
	return ref, nil
}

// Records returns the working set narrowed by c.
func (s *LedgerService) Records(c filter.Criteria) []core.Expense {
	return filter.Apply(s.store.Records(), c)
}

// Options lists the distinct spenders and categories of the whole working set,
// for filter pickers.
func (s *LedgerService) Options() (spenders, categories []string) {
	records := s.store.Records()
	return report.DistinctSpenders(records), report.DistinctCategories(records)
}

// Labels returns the configured presentation labels.
func (s *LedgerService) Labels() report.Labels {
	return s.config.Labels
}

// SharingEnabled reports whether a remote store is configured.
func (s *LedgerService) SharingEnabled() bool {
	return s.reconciler != nil
}

// Household returns the configured namespace, "" when local-only.
func (s *LedgerService) Household(ctx context.Context) string {
	if s.reconciler != nil {
		if h := s.reconciler.Household(); h != "" {
			return h
		}
	}
	return s.persistedHousehold(ctx)
}

// SwitchHousehold is a full context switch: replication to the old household
// stops, the working set is discarded and, for a non-empty household, reloaded
// from its partition. An empty household returns to local-only use.
func (s *LedgerService) SwitchHousehold(ctx context.Context, household string) error {
	household = strings.TrimSpace(household)
	if household != "" && s.reconciler == nil {
		return ErrSharingDisabled
	}

	s.persistHousehold(ctx, household)
	if s.reconciler != nil {
		if err := s.reconciler.Deactivate(ctx); err != nil {
			return fmt.Errorf("deactivate household: %w", err)
		}
	}
	s.store.ReplaceAll(ctx, nil)

	s.logger.InfoContext(ctx, "Household switched", log.FieldHousehold, household)
	if household == "" {
		return nil
	}
	if err := s.reconciler.Activate(ctx, household); err != nil {
		return fmt.Errorf("activate household: %w", err)
	}
	return nil
}

// Sync forces a full pull of the active household.
func (s *LedgerService) Sync(ctx context.Context) error {
	if s.reconciler == nil {
		return ErrSharingDisabled
	}
	return s.reconciler.Sync(ctx)
}

func (s *LedgerService) persistedHousehold(ctx context.Context) string {
	v, ok, err := s.slots.Get(ctx, storage.HouseholdKey)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read household slot", log.FieldError, err)
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(string(v))
}

func (s *LedgerService) persistHousehold(ctx context.Context, household string) {
	if err := s.slots.Put(ctx, storage.HouseholdKey, []byte(household)); err != nil {
		s.logger.WarnContext(ctx, "Failed to persist household slot",
			log.FieldHousehold, household,
			log.FieldError, err)
	}
}

// Close stops replication, delivering queued pushes first, then closes the
// underlying resources.
func (s *LedgerService) Close(ctx context.Context) error {
	var errs []error

	if s.reconciler != nil {
		if err := s.reconciler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("reconciler: %w", err))
		}
	}

	for _, c := range s.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}

	return nil
}
