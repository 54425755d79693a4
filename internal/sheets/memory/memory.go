// Package memory records workbooks instead of writing them anywhere.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "ledger/internal/sheets"
)

var _ ports.WorkbookWriter = (*Recorder)(nil)

type Recorder struct {
	mu        sync.Mutex
	workbooks []ports.Workbook
	// Err, when set, is returned by every write.
	Err error
}

func New() *Recorder {
	return &Recorder{}
}

// WriteWorkbook stores wb and returns a synthetic reference.
func (r *Recorder) WriteWorkbook(_ context.Context, wb ports.Workbook) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	r.workbooks = append(r.workbooks, wb)
	return fmt.Sprintf("mem:%d:%s", len(r.workbooks), wb.Name), nil
}

// Workbooks returns every workbook written so far.
func (r *Recorder) Workbooks() []ports.Workbook {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.Workbook(nil), r.workbooks...)
}
