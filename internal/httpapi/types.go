// Package httpapi exposes the stored series, correlation analytics and
// update operations as a JSON REST API. Response bodies are the wire
// types from pkg/marketcorr, shared with the Go client.
package httpapi

import (
	"marketcorr/internal/domain"
	"marketcorr/internal/store"
	"marketcorr/internal/update"
	"marketcorr/pkg/marketcorr"
)

func seriesJSON(s *domain.Series) marketcorr.Series {
	return marketcorr.Series{
		Symbol:     s.Symbol,
		Name:       s.Name,
		Dates:      s.Dates,
		Close:      s.Close,
		StartDate:  s.StartDate,
		EndDate:    s.EndDate,
		DataPoints: s.DataPoints,
	}
}

func correlationJSON(r *domain.CorrelationResult) marketcorr.Correlation {
	return marketcorr.Correlation{
		Symbol:      r.Symbol,
		Name:        r.Name,
		Correlation: r.Correlation,
		PValue:      r.PValue,
		DataPoints:  r.DataPoints,
	}
}

func episodesJSON(eps []domain.DrawdownEpisode) []marketcorr.DrawdownEpisode {
	out := make([]marketcorr.DrawdownEpisode, len(eps))
	for i, e := range eps {
		out[i] = marketcorr.DrawdownEpisode{
			PeakDate:     e.PeakDate,
			PeakPrice:    e.PeakPrice,
			TroughDate:   e.TroughDate,
			TroughPrice:  e.TroughPrice,
			Drawdown:     e.Drawdown,
			RecoveryDate: e.RecoveryDate,
		}
	}
	return out
}

func summaryJSON(sum update.Summary) marketcorr.UpdateSummary {
	return marketcorr.UpdateSummary{
		Total:     sum.Total,
		Updated:   sum.Updated,
		Skipped:   sum.Skipped,
		Failed:    sum.Failed,
		NewPoints: sum.NewPoints,
		Outdated:  sum.Outdated,
		Degraded:  sum.Degraded,
		Elapsed:   sum.Elapsed,
		Results:   sum.Results,
	}
}

func runsJSON(runs []store.Run) []marketcorr.Run {
	out := make([]marketcorr.Run, len(runs))
	for i, r := range runs {
		out[i] = marketcorr.Run{
			ID:        r.ID,
			Kind:      r.Kind,
			Total:     r.Total,
			Updated:   r.Updated,
			Skipped:   r.Skipped,
			Failed:    r.Failed,
			NewPoints: r.NewPoints,
			Degraded:  r.Degraded,
			ElapsedMS: r.ElapsedMS,
			StartedAt: r.StartedAt,
		}
	}
	return out
}
