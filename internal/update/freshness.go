// Package update decides which symbols are stale and orchestrates batched,
// rate-limit-aware fetches to bring the store current.
package update

import (
	"time"

	"marketcorr/internal/domain"
	"marketcorr/internal/store"
)

// outdatedTolerance is how far behind the target date a record may be
// before it is tallied as outdated in run summaries. Staleness itself is
// decided strictly against the target date.
const outdatedTolerance = 4 * 24 * time.Hour

// NeedsUpdate reports whether symbol's record is stale relative to
// targetDate, along with the last stored date when a record exists. A
// missing record needs a full download and returns ("", true). A last
// date at or past the target is fresh; a future last date (clock skew,
// bad data) is also fresh, never a negative fetch range. With no target
// date the record is fresh when it lags today by at most one calendar
// day. A corrupt record is reported as needing a full re-download.
func NeedsUpdate(st *store.Store, symbol, targetDate string) (lastDate string, stale bool) {
	last, err := st.LastDate(symbol)
	if err != nil {
		// Missing and corrupt records both resolve to a full download.
		return "", true
	}
	if targetDate == "" {
		targetDate = time.Now().UTC().AddDate(0, 0, -1).Format(domain.DateFormat)
	}
	if last >= targetDate {
		return last, false
	}
	return last, true
}

// ResumeDate returns the fetch start for an incremental update: one day
// before the last stored date. The overlap tolerates upstream timezone
// and half-day ambiguity; merge-append drops the duplicate.
func ResumeDate(lastDate string) string {
	t, err := time.Parse(domain.DateFormat, lastDate)
	if err != nil {
		return lastDate
	}
	return t.AddDate(0, 0, -1).Format(domain.DateFormat)
}

// isOutdated reports whether lastDate lags targetDate by more than the
// reporting tolerance.
func isOutdated(lastDate, targetDate string) bool {
	lt, err1 := time.Parse(domain.DateFormat, lastDate)
	tt, err2 := time.Parse(domain.DateFormat, targetDate)
	if err1 != nil || err2 != nil {
		return false
	}
	return tt.Sub(lt) > outdatedTolerance
}

// LatestMarketDate returns the most recent trading date observed across
// the stored index series. Indices trade every market day, so their last
// stored date is the best local estimate of "latest trading day". With
// no index data it falls back to today's date.
func LatestMarketDate(st *store.Store) string {
	latest := ""
	for _, code := range domain.IndexCodes() {
		last, err := st.LastDate(code)
		if err != nil {
			continue
		}
		if last > latest {
			latest = last
		}
	}
	if latest == "" {
		return time.Now().UTC().Format(domain.DateFormat)
	}
	return latest
}
