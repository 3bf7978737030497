package metadata

import "time"

const dateLayout = "2006-01-02"

// dateRange returns the earliest and latest capture day of the batch.
func dateRange(results []Result) (first, last time.Time, ok bool) {
	for _, r := range results {
		if r.TakenAt == nil {
			continue
		}
		day := truncateDay(*r.TakenAt)
		if !ok || day.Before(first) {
			first = day
		}
		if !ok || day.After(last) {
			last = day
		}
		ok = true
	}
	return first, last, ok
}

// TripDate labels the batch as a single day or "start ~ end". When no image
// carries a capture date the label is the day of now.
func TripDate(results []Result, now time.Time) string {
	first, last, ok := dateRange(results)
	if !ok {
		return now.Format(dateLayout)
	}
	if first.Equal(last) {
		return first.Format(dateLayout)
	}
	return first.Format(dateLayout) + " ~ " + last.Format(dateLayout)
}

// TripStart is the first day of the trip, used to order diaries.
func TripStart(results []Result, now time.Time) time.Time {
	first, _, ok := dateRange(results)
	if !ok {
		return truncateDay(now)
	}
	return first
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
