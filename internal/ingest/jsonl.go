// Package ingest reads the test runner's artifacts: JSONL result streams
// and YAML expectation documents. Malformed entries are skipped and
// counted, never fatal. A bad line costs one record, not the run.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/dverstak/triage/pkg/models"
)

// maxLineBytes bounds one JSONL line; tool output is captured verbatim and
// can be large.
const maxLineBytes = 4 << 20

// ReadResults parses a JSONL result stream into per-suite inputs, ordered
// by suite name. Record order within a suite follows the stream. The
// returned skipped count is the number of malformed or invalid lines.
func ReadResults(r io.Reader) (inputs []models.SuiteInput, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	bySuite := make(map[string]*models.SuiteInput)
	var order []string

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec models.TestResultRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("skipping malformed result line", "line", lineNo, "error", err)
			skipped++
			continue
		}
		if err := rec.Validate(); err != nil {
			slog.Warn("skipping invalid result record", "line", lineNo, "error", err)
			skipped++
			continue
		}

		input, ok := bySuite[rec.Suite]
		if !ok {
			input = &models.SuiteInput{Suite: rec.Suite, Container: rec.Container}
			bySuite[rec.Suite] = input
			order = append(order, rec.Suite)
		}
		input.Records = append(input.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("reading result stream: %w", err)
	}

	sort.Strings(order)
	inputs = make([]models.SuiteInput, 0, len(order))
	for _, suite := range order {
		inputs = append(inputs, *bySuite[suite])
	}
	return inputs, skipped, nil
}

// ReadResultsFile opens and parses a JSONL result file.
func ReadResultsFile(path string) ([]models.SuiteInput, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening results file: %w", err)
	}
	defer f.Close()
	return ReadResults(f)
}
