// Package ckparse turns CK class tables into per-repository metric summaries.
package ckparse

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/huangsam/ckscan/schema"
	"github.com/montanaflynn/stats"
)

// Column positions in CK's class.csv.
const (
	locColumn  = 3
	cboColumn  = 7
	ditColumn  = 8
	lcomColumn = 9
	minColumns = 10
)

var (
	// ErrNoDataRows means the table had a header but nothing else.
	ErrNoDataRows = errors.New("class table has no data rows")

	// ErrNoValidRows means every data row was malformed.
	ErrNoValidRows = errors.New("class table has no valid rows")
)

// classRow is one valid class entry.
type classRow struct {
	cbo, dit, lcom float64
	loc            int64
}

// Parse summarizes a class table whose first row is the header.
// Rows with too few columns or non-numeric metrics are skipped and counted.
func Parse(rows [][]string) (schema.MetricSummary, error) {
	if len(rows) <= 1 {
		return schema.MetricSummary{}, ErrNoDataRows
	}

	var (
		cbo, dit, lcom []float64
		loc            int64
		skipped        int
	)
	for _, record := range rows[1:] {
		row, ok := parseRow(record)
		if !ok {
			skipped++
			continue
		}
		cbo = append(cbo, row.cbo)
		dit = append(dit, row.dit)
		lcom = append(lcom, row.lcom)
		loc += row.loc
	}

	if len(cbo) == 0 {
		return schema.MetricSummary{SkippedRows: skipped}, fmt.Errorf("%w: %d rows skipped", ErrNoValidRows, skipped)
	}

	summary := schema.MetricSummary{
		LOC:          loc,
		ClassesCount: len(cbo),
		SkippedRows:  skipped,
	}
	var err error
	if summary.CBOMean, summary.CBOMedian, err = meanMedian(cbo); err != nil {
		return schema.MetricSummary{}, fmt.Errorf("cbo: %w", err)
	}
	if summary.DITMean, summary.DITMedian, err = meanMedian(dit); err != nil {
		return schema.MetricSummary{}, fmt.Errorf("dit: %w", err)
	}
	if summary.LCOMMean, summary.LCOMMedian, err = meanMedian(lcom); err != nil {
		return schema.MetricSummary{}, fmt.Errorf("lcom: %w", err)
	}
	return summary, nil
}

// parseRow extracts the metric columns from one record.
func parseRow(record []string) (classRow, bool) {
	if len(record) < minColumns {
		return classRow{}, false
	}
	var row classRow
	var ok bool
	if row.cbo, ok = parseMetric(record[cboColumn]); !ok {
		return classRow{}, false
	}
	if row.dit, ok = parseMetric(record[ditColumn]); !ok {
		return classRow{}, false
	}
	if row.lcom, ok = parseMetric(record[lcomColumn]); !ok {
		return classRow{}, false
	}
	loc, err := strconv.ParseInt(strings.TrimSpace(record[locColumn]), 10, 64)
	if err != nil {
		return classRow{}, false
	}
	row.loc = loc
	return row, true
}

// parseMetric accepts finite decimal numbers only.
func parseMetric(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// meanMedian uses the even-count convention of averaging the two central values.
func meanMedian(values []float64) (float64, float64, error) {
	mean, err := stats.Mean(values)
	if err != nil {
		return 0, 0, err
	}
	median, err := stats.Median(values)
	if err != nil {
		return 0, 0, err
	}
	return mean, median, nil
}

// ReadTable reads CK CSV output leniently, one line per record. A line that
// cannot be parsed is kept as a single-field record so Parse counts it as
// skipped; an unbalanced quote never swallows the lines after it.
func ReadTable(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)

	var rows [][]string
	for {
		line, err := br.ReadString('\n')
		if record, ok := parseLine(line); ok {
			rows = append(rows, record)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read class table: %w", err)
		}
	}
	return rows, nil
}

// parseLine splits one line of the table. Blank lines yield no record.
func parseLine(line string) ([]string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, false
	}
	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	record, err := reader.Read()
	if err != nil {
		return []string{line}, true
	}
	return record, true
}

// ParseFile reads and summarizes the class table at path.
func ParseFile(path string) (schema.MetricSummary, error) {
	file, err := os.Open(path)
	if err != nil {
		return schema.MetricSummary{}, fmt.Errorf("failed to open class table: %w", err)
	}
	defer func() { _ = file.Close() }()

	rows, err := ReadTable(file)
	if err != nil {
		return schema.MetricSummary{}, err
	}
	return Parse(rows)
}
