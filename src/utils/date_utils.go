package utils

import "time"

// DefaultCutOffDates returns the carry-back cut-off election for each given
// year: closing buys up to month/day of the following year may still be
// attributed to the year the premium was received in.
func DefaultCutOffDates(years []int, month time.Month, day int) map[int]time.Time {
	cutOffs := make(map[int]time.Time, len(years))
	for _, year := range years {
		cutOffs[year] = time.Date(year+1, month, day, 0, 0, 0, 0, time.UTC)
	}
	return cutOffs
}
