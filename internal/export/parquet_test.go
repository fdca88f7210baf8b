package export

import (
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"marketcorr/internal/domain"
	"marketcorr/internal/store"
)

func TestExport(t *testing.T) {
	st := store.New(t.TempDir())
	for _, sym := range []string{"AAPL", "MSFT"} {
		s := &domain.Series{
			Symbol:    sym,
			Dates:     []string{"2024-01-02", "2024-01-03"},
			Close:     []float64{100, 101},
			StartDate: "2024-01-02",
		}
		if err := st.Save(s); err != nil {
			t.Fatalf("Save(%s): %v", sym, err)
		}
	}

	path := filepath.Join(t.TempDir(), "prices.parquet")
	rows, skipped, err := Export(st, nil, path)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if rows != 4 || skipped != 0 {
		t.Fatalf("rows = %d, skipped = %d", rows, skipped)
	}

	got, err := parquet.ReadFile[Row](path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("read %d rows", len(got))
	}
	if got[0].Symbol != "AAPL" || got[0].Date != "2024-01-02" || got[0].Close != 100 {
		t.Errorf("got[0] = %+v", got[0])
	}
}

func TestExportEmptyStore(t *testing.T) {
	st := store.New(t.TempDir())
	if _, _, err := Export(st, nil, filepath.Join(t.TempDir(), "out.parquet")); err == nil {
		t.Fatal("empty store must fail")
	}
}
