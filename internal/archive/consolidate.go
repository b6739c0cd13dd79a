package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/xtxerr/netpulse/config"
	"github.com/xtxerr/netpulse/internal/loader"
)

// ErrNoRowFiles indicates the source partition is missing or empty.
var ErrNoRowFiles = errors.New("no row files in partition")

var archiveNumberRe = regexp.MustCompile(
	"^" + config.ArchivePrefix + `_(\d+)\` + config.ArchiveExt + "$")

// NextNumber returns the next archive sequence number for a destination
// directory: one more than the highest existing number, 1 if the
// directory is missing or holds no archives.
func NextNumber(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 1
	}

	max := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := archiveNumberRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}

	return max + 1
}

// Filename formats an archive filename with a zero-padded sequence
// number. Width grows past the minimum, never truncates.
func Filename(number int) string {
	return fmt.Sprintf("%s_%0*d%s",
		config.ArchivePrefix, config.ArchiveNumberWidth, number, config.ArchiveExt)
}

// ConvertDay merges all row files of one closed partition into a new
// numbered archive file under archiveDir and returns its path.
//
// Source row files are deleted if and only if the produced archive
// verifies complete. On conversion or verification failure the partial
// archive is removed best-effort and the sources stay untouched.
func ConvertDay(ctx context.Context, rowDir, archiveDir string) (string, error) {
	if _, err := os.Stat(rowDir); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoRowFiles, rowDir)
	}

	rows, err := filepath.Glob(filepath.Join(rowDir, "*"+config.RowExt))
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", rowDir, err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoRowFiles, rowDir)
	}

	log.Info("converting partition", "rows", len(rows), "source", rowDir)

	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("create archive partition: %w", err)
	}

	target := filepath.Join(archiveDir, Filename(NextNumber(archiveDir)))

	if err := copyRowsToParquet(ctx, rowDir, target); err != nil {
		discardPartial(target)
		return "", err
	}

	if err := VerifyRowCount(target, len(rows)); err != nil {
		discardPartial(target)
		return "", err
	}

	if err := deleteRowFiles(rows); err != nil {
		return "", err
	}

	log.Info("partition archived", "path", target, "rows", len(rows))
	return target, nil
}

// copyRowsToParquet bulk-converts every row file matching the pattern
// into a single parquet file. Columns are the union of all fields
// across rows; rows missing a field are padded with NULL.
func copyRowsToParquet(ctx context.Context, rowDir, target string) error {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close()

	pattern := filepath.Join(rowDir, "*"+config.RowExt)
	query := fmt.Sprintf(
		`COPY (SELECT * FROM read_csv(%s, auto_detect=true, union_by_name=true)) TO %s (FORMAT PARQUET)`,
		sqlString(pattern), sqlString(target))

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("convert %s: %w", rowDir, err)
	}
	return nil
}

// discardPartial removes a partially written archive, best effort.
func discardPartial(target string) {
	if _, err := os.Stat(target); err != nil {
		return
	}
	if err := os.Remove(target); err != nil {
		log.Warn("could not remove partial archive", "path", target, "error", err)
		return
	}
	log.Info("removed partial archive", "path", target)
}

// deleteRowFiles removes consumed source files. A failed deletion is
// logged and returned rather than silently losing track of data.
func deleteRowFiles(rows []string) error {
	deleted := 0
	for _, row := range rows {
		if err := os.Remove(row); err != nil {
			log.Error("failed to delete row file", "path", row, "error", err)
			return fmt.Errorf("delete %s: %w", row, err)
		}
		deleted++
	}
	log.Info("deleted source row files", "count", deleted)
	return nil
}

// ConvertCompleteDays converts every closed partition of the row store.
// Per-day failures are logged and do not stop the remaining days.
func ConvertCompleteDays(ctx context.Context, cfg *loader.Config) {
	today := time.Now().UTC().Format(DateLayout)
	days := CompleteDays(cfg.ResultDir, today)

	if len(days) == 0 {
		log.Debug("no complete days to convert")
		return
	}

	log.Info("found complete days to convert", "count", len(days), "days", strings.Join(days, ","))

	for _, day := range days {
		rowDir := RowPartition(cfg.ResultDir, day)
		archiveDir := ArchivePartition(cfg.UploadDir, cfg.LocationUUID, day)

		path, err := ConvertDay(ctx, rowDir, archiveDir)
		if err != nil {
			log.Error("conversion failed", "day", day, "error", err)
			continue
		}
		log.Info("converted day", "day", day, "path", path)
	}
}

// sqlString quotes a string literal for a duckdb query.
func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
