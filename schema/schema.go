// Package schema has models and constants shared by all parts of ckscan.
package schema

import (
	"strconv"
	"time"
)

// RepositoryDescriptor is one discovered repository. It is immutable after
// discovery and persisted as the repository manifest.
type RepositoryDescriptor struct {
	FullName      string    `json:"full_name"`
	Name          string    `json:"name"`
	Owner         string    `json:"owner"`
	Description   string    `json:"description"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	SizeKB        int       `json:"size"`
	Language      string    `json:"language"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	AgeYears      int       `json:"age_years"`
	ReleasesCount int       `json:"releases_count"`
	HasIssues     bool      `json:"has_issues"`
	HasWiki       bool      `json:"has_wiki"`
	DefaultBranch string    `json:"default_branch"`
	CloneURL      string    `json:"clone_url"`
}

// ManifestRow renders the descriptor in ManifestHeader order.
func (d RepositoryDescriptor) ManifestRow() []string {
	return []string{
		d.FullName,
		d.Name,
		d.Owner,
		d.Description,
		strconv.Itoa(d.Stars),
		strconv.Itoa(d.Forks),
		strconv.Itoa(d.SizeKB),
		d.Language,
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
		strconv.Itoa(d.AgeYears),
		strconv.Itoa(d.ReleasesCount),
		strconv.FormatBool(d.HasIssues),
		strconv.FormatBool(d.HasWiki),
		d.DefaultBranch,
		d.CloneURL,
	}
}

// MetricSummary aggregates CK class metrics for a single repository.
// Means and medians only cover rows that parsed cleanly.
type MetricSummary struct {
	CBOMean      float64 `json:"cbo_mean"`
	CBOMedian    float64 `json:"cbo_median"`
	DITMean      float64 `json:"dit_mean"`
	DITMedian    float64 `json:"dit_median"`
	LCOMMean     float64 `json:"lcom_mean"`
	LCOMMedian   float64 `json:"lcom_median"`
	LOC          int64   `json:"loc"`
	ClassesCount int     `json:"classes_count"`
	SkippedRows  int     `json:"skipped_rows"`
}

// AnalysisOutcome is the result of analyzing one repository. Exactly one of
// Summary or Reason is set.
type AnalysisOutcome struct {
	Repository RepositoryDescriptor `json:"repository"`
	Summary    *MetricSummary       `json:"summary,omitempty"`
	Stage      Stage                `json:"stage"`
	Reason     string               `json:"reason,omitempty"`
	CommitSHA  string               `json:"commit_sha,omitempty"`
	Duration   time.Duration        `json:"duration"`
}

// Succeeded reports whether the repository produced a metric summary.
func (o AnalysisOutcome) Succeeded() bool {
	return o.Summary != nil && o.Stage == StageDone
}

// BatchProgress is the ordered record of a batch run.
type BatchProgress struct {
	Outcomes  []AnalysisOutcome `json:"outcomes"`
	Attempted int               `json:"attempted"`
	Resumed   int               `json:"resumed"`
}

// Successes returns the successful outcomes in attempt order.
func (p *BatchProgress) Successes() []AnalysisOutcome {
	var out []AnalysisOutcome
	for _, o := range p.Outcomes {
		if o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// Skipped returns the number of outcomes that did not produce a summary.
func (p *BatchProgress) Skipped() int {
	n := 0
	for _, o := range p.Outcomes {
		if !o.Succeeded() {
			n++
		}
	}
	return n
}

// ProcessInvocationResult captures how an analyzer subprocess ended.
type ProcessInvocationResult struct {
	State    InvocationState `json:"state"`
	ExitCode int             `json:"exit_code"`
	Output   string          `json:"output"`
	Duration time.Duration   `json:"duration"`
}

// Completed reports whether the process exited on its own within the timeout.
func (r ProcessInvocationResult) Completed() bool {
	return r.State == InvocationCompleted
}

// StatRange is a min/mean/max triple.
type StatRange struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}

// BatchStats is the quick summary printed after a batch run.
type BatchStats struct {
	Analyzed int       `json:"analyzed"`
	Stars    StatRange `json:"stars"`
	CBO      StatRange `json:"cbo"`
	DIT      StatRange `json:"dit"`
	LCOM     StatRange `json:"lcom"`
}
