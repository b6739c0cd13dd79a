package archive

import (
	"errors"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

// ErrIntegrity indicates the produced archive does not match its
// sources. The conversion attempt is abandoned and retried next cycle.
var ErrIntegrity = errors.New("archive integrity check failed")

// VerifyRowCount re-reads the archive's parquet footer and confirms
// its row count equals the number of consumed source files. The read
// is independent of the writer, so a truncated or corrupt file fails
// here rather than after the sources are gone.
func VerifyRowCount(path string, expected int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrIntegrity, path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrIntegrity, path, err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrIntegrity, path, err)
	}

	actual := pf.NumRows()
	if actual != int64(expected) {
		return fmt.Errorf("%w: expected %d rows, got %d in %s", ErrIntegrity, expected, actual, path)
	}

	log.Info("archive integrity verified", "path", path, "rows", actual)
	return nil
}
