// Package freebusy supplies the pure building blocks of the dual-path
// free/busy query described in §4.9: parsing a server-side VFREEBUSY
// response, reconstructing busy intervals from fetched events, and the
// interval merge. Issuing the REPORT and choosing between the two paths
// is done by calendarservice.
package freebusy

import (
	"sort"
	"time"
)

// PeriodType mirrors the FBTYPE parameter on a VFREEBUSY period.
type PeriodType string

const (
	Busy            PeriodType = "BUSY"
	BusyTentative   PeriodType = "BUSY-TENTATIVE"
	BusyUnavailable PeriodType = "BUSY-UNAVAILABLE"
)

// Period is a single free/busy interval.
type Period struct {
	Start time.Time
	End   time.Time
	Type  PeriodType
}

// Merge sorts periods by start ascending and merges overlapping or
// touching periods into a non-overlapping, chronologically ordered
// sequence, all tagged BUSY. Empty input yields empty output, a valid
// "you are free" answer.
func Merge(periods []Period) []Period {
	if len(periods) == 0 {
		return nil
	}

	sorted := make([]Period, len(periods))
	copy(sorted, periods)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := make([]Period, 0, len(sorted))
	cur := sorted[0]
	cur.Type = Busy
	for _, p := range sorted[1:] {
		if !p.Start.After(cur.End) {
			if p.End.After(cur.End) {
				cur.End = p.End
			}
			continue
		}
		out = append(out, cur)
		cur = p
		cur.Type = Busy
	}
	out = append(out, cur)
	return out
}
