// Package measure invokes the external speedtest binary and parses
// its JSON output into a Result.
//
// The binary is a black box: it either produces a well-formed JSON
// record on stdout and exits zero, or the run fails. Throughput and
// latency numbers are rounded to integer granularity; geographic
// coordinates and server distance keep their precision.
package measure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strings"

	"github.com/xtxerr/netpulse/internal/logging"
)

var log = logging.Component("measure")

// roundingExempt lists JSON keys whose float values keep full precision.
var roundingExempt = map[string]bool{
	"lat": true,
	"lon": true,
	"d":   true,
}

// Runner produces one measurement per call.
type Runner interface {
	Run(ctx context.Context) (*Result, error)
}

// CLIRunner runs the external speedtest binary.
type CLIRunner struct {
	// Binary is the executable name or path.
	Binary string

	// Flags are passed verbatim to the binary.
	Flags []string
}

// NewCLIRunner creates a runner for the given binary and flags.
func NewCLIRunner(binary string, flags []string) *CLIRunner {
	return &CLIRunner{Binary: binary, Flags: flags}
}

// Run invokes the binary and parses its output. A non-zero exit status
// fails the run with stderr included in the error.
func (r *CLIRunner) Run(ctx context.Context) (*Result, error) {
	log.Info("running speedtest", "flags", strings.Join(r.Flags, " "))

	cmd := exec.CommandContext(ctx, r.Binary, r.Flags...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("speedtest failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return Parse(stdout.Bytes())
}

// Parse decodes a speedtest JSON record, normalizes its numbers and
// returns the typed result.
func Parse(data []byte) (*Result, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse speedtest output: %w", err)
	}

	normalized := NormalizeNumbers(raw, roundingExempt)

	// Round-trip through JSON so the normalized map lands in the
	// typed struct without a second decoder.
	buf, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("re-encode speedtest output: %w", err)
	}

	var res Result
	if err := json.Unmarshal(buf, &res); err != nil {
		return nil, fmt.Errorf("decode speedtest output: %w", err)
	}

	if res.Timestamp == "" {
		return nil, fmt.Errorf("speedtest output has no timestamp")
	}

	return &res, nil
}

// NormalizeNumbers recursively rounds every float to an integer,
// except values under keys listed in exempt.
func NormalizeNumbers(v any, exempt map[string]bool) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if exempt[k] {
				out[k] = val
				continue
			}
			out[k] = NormalizeNumbers(val, exempt)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = NormalizeNumbers(val, exempt)
		}
		return out
	case float64:
		return int64(math.Round(t))
	default:
		return v
	}
}
