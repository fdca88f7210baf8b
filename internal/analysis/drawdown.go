package analysis

import "marketcorr/internal/domain"

// Drawdowns scans a series chronologically for peak-to-trough declines of
// at least threshold (a fraction, e.g. 0.15 for 15%). The trough of an
// episode is updated in place while the decline deepens; the episode
// closes when price regains the peak. RecoveryDate is empty for an
// episode still open at the end of the series. Episodes never overlap.
func Drawdowns(s *domain.Series, threshold float64) []domain.DrawdownEpisode {
	if s.Len() == 0 || threshold <= 0 {
		return nil
	}

	var episodes []domain.DrawdownEpisode
	peakIdx, troughIdx := 0, 0
	open := false

	for i := 1; i < s.Len(); i++ {
		switch {
		case s.Close[i] >= s.Close[peakIdx]:
			if open {
				episodes = append(episodes, episode(s, peakIdx, troughIdx, s.Dates[i]))
				open = false
			}
			peakIdx, troughIdx = i, i
		case s.Close[i] < s.Close[troughIdx]:
			troughIdx = i
			if 1-s.Close[troughIdx]/s.Close[peakIdx] >= threshold {
				open = true
			}
		}
	}

	if open {
		episodes = append(episodes, episode(s, peakIdx, troughIdx, ""))
	}
	return episodes
}

func episode(s *domain.Series, peakIdx, troughIdx int, recovery string) domain.DrawdownEpisode {
	return domain.DrawdownEpisode{
		PeakDate:     s.Dates[peakIdx],
		PeakPrice:    s.Close[peakIdx],
		TroughDate:   s.Dates[troughIdx],
		TroughPrice:  s.Close[troughIdx],
		Drawdown:     1 - s.Close[troughIdx]/s.Close[peakIdx],
		RecoveryDate: recovery,
	}
}
