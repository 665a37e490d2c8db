package content

import "time"

// WeekIndex returns the number of whole Monday-to-Sunday weeks between the
// week containing anchor and the week containing now, or -1 if now falls
// before the anchor week.
func WeekIndex(anchor, now time.Time) int {
	from, to := mondayOf(anchor), mondayOf(now)
	if to.Before(from) {
		return -1
	}
	return int(to.Sub(from).Hours()) / (24 * 7)
}

// mondayOf returns midnight UTC of the Monday on or before t's calendar date.
func mondayOf(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
