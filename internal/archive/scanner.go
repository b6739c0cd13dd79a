// Package archive consolidates closed row-store partitions into
// numbered parquet archive files.
//
// A partition is closed once its UTC calendar date is strictly before
// the reference date. Consolidation merges every row file of a closed
// partition into one new archive file, verifies the row count against
// an independent read of the parquet footer, and deletes the row files
// only after verification succeeds. On any failure the partial archive
// is discarded and the row files stay in place, so the next cycle can
// retry the same day.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xtxerr/netpulse/config"
	"github.com/xtxerr/netpulse/internal/logging"
)

var log = logging.Component("archive")

// DateLayout is the partition date format (UTC calendar date).
const DateLayout = "2006-01-02"

// CompleteDays returns the sorted dates (YYYY-MM-DD) of row-store
// partitions that are strictly before the reference date and contain
// at least one row file. Malformed partition paths are skipped with a
// warning. An invalid reference date yields an empty result.
func CompleteDays(root, before string) []string {
	var days []string

	if _, err := os.Stat(root); err != nil {
		return days
	}

	beforeDate, err := time.Parse(DateLayout, before)
	if err != nil {
		log.Error("invalid reference date", "date", before, "error", err)
		return days
	}

	yearDirs, _ := filepath.Glob(filepath.Join(root, "year=*"))
	for _, yearDir := range yearDirs {
		year := partitionValue(yearDir)
		monthDirs, _ := filepath.Glob(filepath.Join(yearDir, "month=*"))
		for _, monthDir := range monthDirs {
			month := partitionValue(monthDir)
			dayDirs, _ := filepath.Glob(filepath.Join(monthDir, "day=*"))
			for _, dayDir := range dayDirs {
				day := partitionValue(dayDir)

				dateStr := fmt.Sprintf("%s-%s-%s", year, month, day)
				date, err := time.Parse(DateLayout, dateStr)
				if err != nil {
					log.Warn("invalid partition date", "date", dateStr, "path", dayDir)
					continue
				}
				if !date.Before(beforeDate) {
					continue
				}

				rows, _ := filepath.Glob(filepath.Join(dayDir, "*"+config.RowExt))
				if len(rows) > 0 {
					days = append(days, dateStr)
				}
			}
		}
	}

	sort.Strings(days)
	return days
}

// RowPartition returns the row-store partition directory for a date
// string (YYYY-MM-DD).
func RowPartition(root, day string) string {
	y, m, d := splitDate(day)
	return filepath.Join(root, "year="+y, "month="+m, "day="+d)
}

// ArchivePartition returns the columnar-store partition directory for
// a date string, scoped by location.
func ArchivePartition(root, location, day string) string {
	y, m, d := splitDate(day)
	return filepath.Join(root, "location="+location, "year="+y, "month="+m, "day="+d)
}

func splitDate(day string) (string, string, string) {
	parts := strings.SplitN(day, "-", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return parts[0], parts[1], parts[2]
}

// partitionValue extracts the value of a key=value path segment.
func partitionValue(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '='); i >= 0 {
		return base[i+1:]
	}
	return base
}
