package domain

import (
	"time"
	_ "time/tzdata"
)

// Copenhagen is the market time zone. Effective dates in the Danish market are
// calendar days in this zone, delivered on the wire as UTC instants.
var Copenhagen = mustLoadLocation("Europe/Copenhagen")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// StartOfDanishDay returns the UTC instant of midnight in Copenhagen on t's Danish date.
func StartOfDanishDay(t time.Time) time.Time {
	local := t.In(Copenhagen)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, Copenhagen).UTC()
}

// IsStartOfDanishDay reports whether t is exactly midnight in Copenhagen.
func IsStartOfDanishDay(t time.Time) bool {
	return t.Equal(StartOfDanishDay(t))
}

// SameDanishDate reports whether a and b fall on the same Danish calendar date.
func SameDanishDate(a, b time.Time) bool {
	ay, am, ad := a.In(Copenhagen).Date()
	by, bm, bd := b.In(Copenhagen).Date()
	return ay == by && am == bm && ad == bd
}

// DanishDaysBetween counts calendar days from a to b on the Danish calendar.
// Negative when b is before a.
func DanishDaysBetween(a, b time.Time) int {
	ay, am, ad := a.In(Copenhagen).Date()
	by, bm, bd := b.In(Copenhagen).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
