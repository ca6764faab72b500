package core

import (
	"github.com/huangsam/ckscan/schema"
	"github.com/montanaflynn/stats"
)

// ComputeBatchStats summarizes stars and metric means over successful outcomes.
// The boolean is false when no outcome succeeded.
func ComputeBatchStats(outcomes []schema.AnalysisOutcome) (schema.BatchStats, bool) {
	var starsData, cbo, dit, lcom stats.Float64Data
	for _, o := range outcomes {
		if !o.Succeeded() {
			continue
		}
		starsData = append(starsData, float64(o.Repository.Stars))
		cbo = append(cbo, o.Summary.CBOMean)
		dit = append(dit, o.Summary.DITMean)
		lcom = append(lcom, o.Summary.LCOMMean)
	}
	if len(starsData) == 0 {
		return schema.BatchStats{}, false
	}

	return schema.BatchStats{
		Analyzed: len(starsData),
		Stars:    statRange(starsData),
		CBO:      statRange(cbo),
		DIT:      statRange(dit),
		LCOM:     statRange(lcom),
	}, true
}

// statRange assumes data is non-empty, which is the only way the stats
// functions can fail.
func statRange(data stats.Float64Data) schema.StatRange {
	minVal, _ := data.Min()
	mean, _ := data.Mean()
	maxVal, _ := data.Max()
	return schema.StatRange{Min: minVal, Mean: mean, Max: maxVal}
}
