package services

import (
	"sync"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/filter"
	"ledger/internal/ledger"
	"ledger/internal/report"
)

// View is everything presentation needs for one filter over the working set.
type View struct {
	Criteria   filter.Criteria
	Records    []core.Expense
	Count      int
	Total      decimal.Decimal
	BySpender  []core.Total
	ByCategory []core.Total
	Monthly    []core.MonthTotal
	Pivot      core.Pivot
	// Spenders and Categories come from the unfiltered set, for filter pickers.
	Spenders   []string
	Categories []string
}

// Dashboard recomputes the derived view whenever the store changes or the
// filter is replaced. Computation is delegated to the pure filter and report
// packages; the base set is never modified.
type Dashboard struct {
	labels report.Labels

	mu       sync.Mutex
	base     []core.Expense
	criteria filter.Criteria
	view     View
	onChange func(View)

	cancel func()
}

// NewDashboard observes store and computes an initial view from its current contents.
func NewDashboard(store *ledger.Store, labels report.Labels) *Dashboard {
	d := &Dashboard{labels: labels}
	// Subscribe before reading so no mutation falls between the two.
	d.cancel = store.Subscribe(d.onStoreEvent)
	d.mu.Lock()
	d.base = store.Records()
	d.view = d.compute()
	d.mu.Unlock()
	return d
}

// OnChange registers fn to receive every recomputed view. fn must not mutate the store.
func (d *Dashboard) OnChange(fn func(View)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

// SetFilter replaces the active criteria and returns the new view.
func (d *Dashboard) SetFilter(c filter.Criteria) View {
	d.mu.Lock()
	d.criteria = c
	d.view = d.compute()
	v, fn := d.view, d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn(v)
	}
	return v
}

// View returns the latest computed view.
func (d *Dashboard) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

// Close stops observing the store.
func (d *Dashboard) Close() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Dashboard) onStoreEvent(ev ledger.Event) {
	d.mu.Lock()
	d.base = ev.Snapshot
	d.view = d.compute()
	v, fn := d.view, d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// compute derives a view from base and criteria. Caller holds d.mu.
func (d *Dashboard) compute() View {
	records := filter.Apply(d.base, d.criteria)
	return View{
		Criteria:   d.criteria,
		Records:    records,
		Count:      len(records),
		Total:      report.GrandTotal(records),
		BySpender:  report.GroupTotals(records, report.BySpender, d.labels.Unspecified),
		ByCategory: report.GroupTotals(records, report.ByCategory, d.labels.Uncategorized),
		Monthly:    report.MonthlyTotals(records),
		Pivot:      report.SpenderMonthPivot(records),
		Spenders:   report.DistinctSpenders(d.base),
		Categories: report.DistinctCategories(d.base),
	}
}
