package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestNextNumber(t *testing.T) {
	dir := t.TempDir()

	if n := NextNumber(dir); n != 1 {
		t.Errorf("empty dir: expected 1, got %d", n)
	}

	for _, name := range []string{"speedtest_001.parquet", "speedtest_003.parquet", "speedtest_005.parquet"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	if n := NextNumber(dir); n != 6 {
		t.Errorf("numbers {1,3,5}: expected next 6, got %d", n)
	}
}

func TestNextNumberMissingDir(t *testing.T) {
	if n := NextNumber(filepath.Join(t.TempDir(), "missing")); n != 1 {
		t.Errorf("missing dir: expected 1, got %d", n)
	}
}

func TestNextNumberIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"speedtest_002.parquet", "speedtest_abc.parquet", "other_009.parquet", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	if n := NextNumber(dir); n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
}

func TestFilenamePadding(t *testing.T) {
	cases := []struct {
		number int
		want   string
	}{
		{1, "speedtest_001.parquet"},
		{42, "speedtest_042.parquet"},
		{999, "speedtest_999.parquet"},
		{1234, "speedtest_1234.parquet"},
	}

	for _, c := range cases {
		if got := Filename(c.number); got != c.want {
			t.Errorf("Filename(%d): expected %s, got %s", c.number, c.want, got)
		}
	}
}

// writeTestRow writes a single-record CSV row file.
func writeTestRow(t *testing.T, dir, name, header, row string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	content := header + "\n" + row + "\n"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConvertDay(t *testing.T) {
	rowDir := filepath.Join(t.TempDir(), "year=2025", "month=01", "day=15")
	archiveDir := filepath.Join(t.TempDir(), "location=loc", "year=2025", "month=01", "day=15")

	writeTestRow(t, rowDir, "10-30-45.csv", "download,ping,upload", "100,20,50")
	writeTestRow(t, rowDir, "11-30-45.csv", "download,ping,upload", "110,25,55")
	writeTestRow(t, rowDir, "12-30-45.csv", "download,ping,upload", "120,30,60")

	path, err := ConvertDay(context.Background(), rowDir, archiveDir)
	if err != nil {
		t.Fatalf("ConvertDay: %v", err)
	}

	if filepath.Base(path) != "speedtest_001.parquet" {
		t.Errorf("expected speedtest_001.parquet, got %s", filepath.Base(path))
	}

	if err := VerifyRowCount(path, 3); err != nil {
		t.Errorf("archive should hold 3 rows: %v", err)
	}

	// Sources must be gone.
	left, _ := filepath.Glob(filepath.Join(rowDir, "*.csv"))
	if len(left) != 0 {
		t.Errorf("expected all source rows deleted, %d remain", len(left))
	}
}

func TestConvertDaySequenceAccumulates(t *testing.T) {
	rowDir := filepath.Join(t.TempDir(), "year=2025", "month=01", "day=15")
	archiveDir := t.TempDir()

	writeTestRow(t, rowDir, "10-00-00.csv", "download,upload", "100,50")
	if _, err := ConvertDay(context.Background(), rowDir, archiveDir); err != nil {
		t.Fatalf("first conversion: %v", err)
	}

	// A later run finds fresh rows for the same partition.
	writeTestRow(t, rowDir, "23-59-59.csv", "download,upload", "200,90")
	path, err := ConvertDay(context.Background(), rowDir, archiveDir)
	if err != nil {
		t.Fatalf("second conversion: %v", err)
	}

	if filepath.Base(path) != "speedtest_002.parquet" {
		t.Errorf("expected speedtest_002.parquet, got %s", filepath.Base(path))
	}
}

func TestConvertDayUnionsColumns(t *testing.T) {
	rowDir := t.TempDir()
	archiveDir := t.TempDir()

	// Rows with differing field sets still merge; absent fields pad.
	writeTestRow(t, rowDir, "10-00-00.csv", "download,upload", "100,50")
	writeTestRow(t, rowDir, "11-00-00.csv", "download,ping", "110,20")

	path, err := ConvertDay(context.Background(), rowDir, archiveDir)
	if err != nil {
		t.Fatalf("ConvertDay: %v", err)
	}
	if err := VerifyRowCount(path, 2); err != nil {
		t.Errorf("expected 2 rows: %v", err)
	}
}

func TestConvertDayMissingSource(t *testing.T) {
	_, err := ConvertDay(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir())
	if !errors.Is(err, ErrNoRowFiles) {
		t.Errorf("expected ErrNoRowFiles, got %v", err)
	}
}

func TestConvertDayEmptySource(t *testing.T) {
	_, err := ConvertDay(context.Background(), t.TempDir(), t.TempDir())
	if !errors.Is(err, ErrNoRowFiles) {
		t.Errorf("expected ErrNoRowFiles, got %v", err)
	}
}

func TestConvertDayFailureKeepsSources(t *testing.T) {
	rowDir := t.TempDir()
	archiveDir := t.TempDir()

	writeTestRow(t, rowDir, "10-00-00.csv", "download,upload", "100,50")
	writeTestRow(t, rowDir, "11-00-00.csv", "download,upload", "110,55")

	// Plant a directory at the target path so the bulk conversion
	// cannot create its output file.
	if err := os.MkdirAll(filepath.Join(archiveDir, Filename(1)), 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := ConvertDay(context.Background(), rowDir, archiveDir); err == nil {
		t.Fatal("expected conversion to fail")
	}

	left, _ := filepath.Glob(filepath.Join(rowDir, "*.csv"))
	if len(left) != 2 {
		t.Errorf("expected both source rows preserved, found %d", len(left))
	}
}

func TestConvertDayVerificationMismatchDiscardsArchive(t *testing.T) {
	rowDir := t.TempDir()
	archiveDir := t.TempDir()

	// One row file holding two data rows: the produced archive counts
	// 2 rows against 1 source file, so verification must fail.
	content := "download,upload\n100,50\n200,90\n"
	if err := os.WriteFile(filepath.Join(rowDir, "10-00-00.csv"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ConvertDay(context.Background(), rowDir, archiveDir)
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}

	left, _ := filepath.Glob(filepath.Join(rowDir, "*.csv"))
	if len(left) != 1 {
		t.Errorf("expected source row preserved, found %d", len(left))
	}

	archives, _ := filepath.Glob(filepath.Join(archiveDir, "*.parquet"))
	if len(archives) != 0 {
		t.Errorf("expected no archive left behind, found %d", len(archives))
	}
}

func TestSQLString(t *testing.T) {
	if got := sqlString("a'b"); got != "'a''b'" {
		t.Errorf("expected quote doubling, got %s", got)
	}
	if got := sqlString(fmt.Sprintf("%s/*.csv", "dir")); got != "'dir/*.csv'" {
		t.Errorf("unexpected quoting: %s", got)
	}
}
