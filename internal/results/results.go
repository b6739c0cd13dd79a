// Package results writes measurement records into the partitioned
// row store.
//
// Records land as single-row CSV files under Hive-style partitions:
//
//	<root>/year=YYYY/month=MM/day=DD/HH-MM-SS.csv
//
// The filename has second granularity; the measurement cadence is
// configured above one second, so a collision simply overwrites.
package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/xtxerr/netpulse/config"
	"github.com/xtxerr/netpulse/internal/logging"
	"github.com/xtxerr/netpulse/internal/measure"
)

var log = logging.Component("results")

// FlattenSep joins nested field names, e.g. server.name -> server_name.
const FlattenSep = "_"

// PartitionPath returns the row-store partition directory for a
// timestamp's UTC calendar date.
func PartitionPath(root string, ts time.Time) string {
	ts = ts.UTC()
	return filepath.Join(root,
		fmt.Sprintf("year=%04d", ts.Year()),
		fmt.Sprintf("month=%02d", int(ts.Month())),
		fmt.Sprintf("day=%02d", ts.Day()),
	)
}

// Filename returns the row filename for a timestamp's UTC time of day.
func Filename(ts time.Time) string {
	ts = ts.UTC()
	return fmt.Sprintf("%02d-%02d-%02d%s", ts.Hour(), ts.Minute(), ts.Second(), config.RowExt)
}

// Write writes one measurement record into the row store, creating
// partition directories as needed. An existing file at the same path
// is overwritten.
func Write(root string, res *measure.Result) (string, error) {
	ts, err := res.Time()
	if err != nil {
		return "", fmt.Errorf("parse record timestamp %q: %w", res.Timestamp, err)
	}

	dir := PartitionPath(root, ts)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create partition: %w", err)
	}

	path := filepath.Join(dir, Filename(ts))

	flat, err := Flatten(res)
	if err != nil {
		return "", err
	}

	fields := make([]string, 0, len(flat))
	for k := range flat {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	row := make([]string, len(fields))
	for i, k := range fields {
		row[i] = flat[k]
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create row file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(fields); err != nil {
		f.Close()
		return "", fmt.Errorf("write header: %w", err)
	}
	if err := w.Write(row); err != nil {
		f.Close()
		return "", fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return "", fmt.Errorf("flush row file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close row file: %w", err)
	}

	log.Info("measurement saved", "path", path)
	return path, nil
}

// Flatten converts a record into a flat field map, joining nested
// field names with FlattenSep.
func Flatten(res *measure.Result) (map[string]string, error) {
	buf, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	out := make(map[string]string)
	flattenInto(out, "", raw)
	return out, nil
}

func flattenInto(out map[string]string, prefix string, v map[string]any) {
	for k, val := range v {
		key := k
		if prefix != "" {
			key = prefix + FlattenSep + k
		}
		if nested, ok := val.(map[string]any); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = formatValue(val)
	}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
