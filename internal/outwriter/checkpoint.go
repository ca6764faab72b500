package outwriter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/huangsam/ckscan/schema"
)

// Checkpoint file names inside the data directory.
const (
	ProgressFileName  = "progress_analysis.csv"
	FinalFileName     = "final_analysis.csv"
	SmokeTestFileName = "smoke_test.csv"
)

// CheckpointWriter writes progress and final snapshots into one directory.
type CheckpointWriter struct {
	dir string
}

// NewCheckpointWriter creates a writer rooted at dir.
func NewCheckpointWriter(dir string) *CheckpointWriter {
	return &CheckpointWriter{dir: dir}
}

// ProgressPath is where periodic snapshots go.
func (w *CheckpointWriter) ProgressPath() string {
	return filepath.Join(w.dir, ProgressFileName)
}

// FinalPath is where the end-of-batch snapshot goes.
func (w *CheckpointWriter) FinalPath() string {
	return filepath.Join(w.dir, FinalFileName)
}

// WriteProgress replaces the progress snapshot.
func (w *CheckpointWriter) WriteProgress(outcomes []schema.AnalysisOutcome) error {
	return WriteCheckpoint(w.ProgressPath(), outcomes)
}

// WriteFinal replaces the final snapshot.
func (w *CheckpointWriter) WriteFinal(outcomes []schema.AnalysisOutcome) error {
	return WriteCheckpoint(w.FinalPath(), outcomes)
}

// WriteCheckpoint atomically writes the successful outcomes to path.
// Skipped outcomes never appear in a checkpoint.
func WriteCheckpoint(path string, outcomes []schema.AnalysisOutcome) error {
	return writeAtomic(path, func(w io.Writer) error {
		return writeCSVWithHeader(w, schema.CheckpointHeader, func(cw *csv.Writer) error {
			for _, o := range outcomes {
				if !o.Succeeded() {
					continue
				}
				if err := cw.Write(CheckpointRow(o)); err != nil {
					return fmt.Errorf("failed to write checkpoint row: %w", err)
				}
			}
			return nil
		})
	})
}

// CheckpointRow renders a successful outcome in CheckpointHeader order.
func CheckpointRow(o schema.AnalysisOutcome) []string {
	s := o.Summary
	return []string{
		o.Repository.FullName,
		strconv.Itoa(o.Repository.Stars),
		strconv.Itoa(o.Repository.AgeYears),
		strconv.Itoa(o.Repository.ReleasesCount),
		strconv.Itoa(o.Repository.SizeKB),
		formatFloat(s.CBOMean),
		formatFloat(s.CBOMedian),
		formatFloat(s.DITMean),
		formatFloat(s.DITMedian),
		formatFloat(s.LCOMMean),
		formatFloat(s.LCOMMedian),
		strconv.FormatInt(s.LOC, 10),
		strconv.Itoa(s.ClassesCount),
	}
}

// ReadCheckpoint loads a checkpoint back into successful outcomes.
// A missing file yields os.ErrNotExist.
func ReadCheckpoint(path string) ([]schema.AnalysisOutcome, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(schema.CheckpointHeader)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("checkpoint %s has no header", path)
	}

	outcomes := make([]schema.AnalysisOutcome, 0, len(records)-1)
	for i, record := range records[1:] {
		o, err := parseCheckpointRow(record)
		if err != nil {
			return nil, fmt.Errorf("checkpoint %s line %d: %w", path, i+2, err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// parseCheckpointRow is the inverse of CheckpointRow.
func parseCheckpointRow(record []string) (schema.AnalysisOutcome, error) {
	ints := make([]int, 4)
	for i, idx := range []int{1, 2, 3, 4} {
		v, err := strconv.Atoi(record[idx])
		if err != nil {
			return schema.AnalysisOutcome{}, fmt.Errorf("column %s: %w", schema.CheckpointHeader[idx], err)
		}
		ints[i] = v
	}
	floats := make([]float64, 6)
	for i := range floats {
		idx := 5 + i
		v, err := strconv.ParseFloat(record[idx], 64)
		if err != nil {
			return schema.AnalysisOutcome{}, fmt.Errorf("column %s: %w", schema.CheckpointHeader[idx], err)
		}
		floats[i] = v
	}
	loc, err := strconv.ParseInt(record[11], 10, 64)
	if err != nil {
		return schema.AnalysisOutcome{}, fmt.Errorf("column loc: %w", err)
	}
	classes, err := strconv.Atoi(record[12])
	if err != nil {
		return schema.AnalysisOutcome{}, fmt.Errorf("column classes_count: %w", err)
	}
	if record[0] == "" {
		return schema.AnalysisOutcome{}, errors.New("empty full_name")
	}

	return schema.AnalysisOutcome{
		Repository: schema.RepositoryDescriptor{
			FullName:      record[0],
			Stars:         ints[0],
			AgeYears:      ints[1],
			ReleasesCount: ints[2],
			SizeKB:        ints[3],
		},
		Summary: &schema.MetricSummary{
			CBOMean:      floats[0],
			CBOMedian:    floats[1],
			DITMean:      floats[2],
			DITMedian:    floats[3],
			LCOMMean:     floats[4],
			LCOMMedian:   floats[5],
			LOC:          loc,
			ClassesCount: classes,
		},
		Stage: schema.StageDone,
	}, nil
}
