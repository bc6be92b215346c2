package domain

import "time"

// PeriodLock closes a date range of a company's ledger against new
// postings. Ranges are inclusive on both ends.
type PeriodLock struct {
	ID        string
	CompanyID string
	StartDate time.Time
	EndDate   time.Time
	Locked    bool
	Note      string
	CreatedAt time.Time
}

// Covers reports whether the lock applies to the given posting date.
func (p *PeriodLock) Covers(date time.Time) bool {
	if !p.Locked {
		return false
	}
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}
