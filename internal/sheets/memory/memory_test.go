package memory

import (
	"context"
	"errors"
	"testing"

	ports "ledger/internal/sheets"
)

func TestRecorder(t *testing.T) {
	r := New()
	ref, err := r.WriteWorkbook(context.Background(), ports.Workbook{Name: "expenses_2025-01-01.xlsx"})
	if err != nil || ref != "mem:1:expenses_2025-01-01.xlsx" {
		t.Fatalf("unexpected write: ref=%q err=%v", ref, err)
	}
	if got := r.Workbooks(); len(got) != 1 {
		t.Fatalf("Workbooks() = %v", got)
	}

	r.Err = errors.New("quota exceeded")
	if _, err := r.WriteWorkbook(context.Background(), ports.Workbook{}); err == nil {
		t.Fatal("expected error")
	}
	if got := r.Workbooks(); len(got) != 1 {
		t.Fatalf("failed write was recorded")
	}
}
