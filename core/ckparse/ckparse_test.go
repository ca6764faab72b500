package ckparse

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header = []string{"file", "class", "type", "loc", "wmc", "rfc", "noc", "cbo", "dit", "lcom", "tcc"}

// classRecord builds a row with the given metric values in CK column order.
func classRecord(name, loc, cbo, dit, lcom string) []string {
	return []string{"src/" + name + ".java", "pkg." + name, "class", loc, "1", "2", "0", cbo, dit, lcom, "0.5"}
}

func TestParse_ValidRows(t *testing.T) {
	rows := [][]string{
		header,
		classRecord("A", "10", "1", "1", "0"),
		classRecord("B", "20", "2", "2", "4"),
		classRecord("C", "30", "9", "3", "8"),
	}

	summary, err := Parse(rows)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.ClassesCount)
	assert.Equal(t, int64(60), summary.LOC)
	assert.InDelta(t, 4.0, summary.CBOMean, 1e-9)
	assert.InDelta(t, 2.0, summary.CBOMedian, 1e-9)
	assert.InDelta(t, 2.0, summary.DITMean, 1e-9)
	assert.InDelta(t, 2.0, summary.DITMedian, 1e-9)
	assert.InDelta(t, 4.0, summary.LCOMMean, 1e-9)
	assert.InDelta(t, 4.0, summary.LCOMMedian, 1e-9)
	assert.Equal(t, 0, summary.SkippedRows)
}

func TestParse_EvenCountMedian(t *testing.T) {
	rows := [][]string{
		header,
		classRecord("A", "1", "1", "1", "1"),
		classRecord("B", "1", "3", "1", "1"),
		classRecord("C", "1", "8", "1", "1"),
		classRecord("D", "1", "4", "1", "1"),
	}

	summary, err := Parse(rows)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, summary.CBOMedian, 1e-9)
	assert.InDelta(t, 4.0, summary.CBOMean, 1e-9)
}

func TestParse_SkipsInvalidRows(t *testing.T) {
	rows := [][]string{
		header,
		classRecord("A", "10", "2", "1", "3"),
		{"too", "short"},
		classRecord("B", "5", "abc", "1", "3"),
		classRecord("C", "x", "1", "1", "3"),
		classRecord("D", "5", "NaN", "1", "3"),
		classRecord("E", "5", "1", "+Inf", "3"),
		classRecord("F", "7", "4", "1", "5"),
	}

	summary, err := Parse(rows)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ClassesCount)
	assert.Equal(t, 5, summary.SkippedRows)
	assert.Equal(t, int64(17), summary.LOC)
	assert.InDelta(t, 3.0, summary.CBOMean, 1e-9)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrNoDataRows)

	_, err = Parse([][]string{header})
	assert.ErrorIs(t, err, ErrNoDataRows)

	summary, err := Parse([][]string{header, {"a", "b"}, classRecord("A", "1", "x", "1", "1")})
	assert.ErrorIs(t, err, ErrNoValidRows)
	assert.Equal(t, 2, summary.SkippedRows)
}

func TestParse_ExactlyMinColumns(t *testing.T) {
	row := classRecord("A", "12", "3", "2", "1")[:minColumns]
	summary, err := Parse([][]string{header, row})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ClassesCount)
	assert.Equal(t, int64(12), summary.LOC)
}

func TestReadTable_Lenient(t *testing.T) {
	input := strings.Join([]string{
		strings.Join(header, ","),
		"src/A.java,pkg.A,class,10,1,2,0,1,1,0,0.5",
		"short,row",
		`src/B.java,"pkg.B",class,20,1,2,0,2,2,4,0.5`,
		`src/C.java,pkg."odd"C,class,30,1,2,0,9,3,8,0.5`,
	}, "\n")

	rows, err := ReadTable(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Len(t, rows[2], 2)

	summary, err := Parse(rows)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ClassesCount)
	assert.Equal(t, 1, summary.SkippedRows)
}

func TestReadTable_UnclosedQuoteOnlyLosesItsLine(t *testing.T) {
	input := strings.Join([]string{
		strings.Join(header, ","),
		"src/A.java,pkg.A,class,10,1,2,0,1,1,0,0.5",
		`src/B.java,"pkg.B<T,class,20,1,2,0,2,2,4,0.5`,
		"src/C.java,pkg.C,class,30,1,2,0,6,2,3,0.5",
		"src/D.java,pkg.D,class,40,1,2,0,7,3,5,0.5",
	}, "\n") + "\n"

	rows, err := ReadTable(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 5)

	summary, err := Parse(rows)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ClassesCount)
	assert.Equal(t, 1, summary.SkippedRows)
	assert.Equal(t, int64(80), summary.LOC)
	assert.InDelta(t, 14.0/3.0, summary.CBOMean, 1e-9)
}

func TestReadTable_BlankAndCRLFLines(t *testing.T) {
	input := strings.Join(header, ",") + "\r\n\r\n" + "src/A.java,pkg.A,class,10,1,2,0,1,1,0,0.5\r\n"

	rows, err := ReadTable(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "0.5", rows[1][len(rows[1])-1])
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "class.csv")
	content := strings.Join(header, ",") + "\n" + "src/A.java,pkg.A,class,10,1,2,0,5,1,2,0.5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	summary, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ClassesCount)
	assert.InDelta(t, 5.0, summary.CBOMedian, 1e-9)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

// BenchmarkParse benchmarks summarizing a class table of a large repository.
func BenchmarkParse(b *testing.B) {
	rows := [][]string{header}
	for i := range 5000 {
		rows = append(rows, classRecord("C", "120", strconv.Itoa(i%17), strconv.Itoa(i%5), strconv.Itoa(i%40)))
	}

	for b.Loop() {
		_, _ = Parse(rows)
	}
}
