package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Billing cycles
// ============================================================

// CycleKey identifies a billing cycle by the month in which it starts.
// A cycle runs from the anchor day of that month up to, but excluding, the
// anchor day of the next month.
type CycleKey struct {
	Year  int
	Month time.Month
}

// CycleKeyAt returns the cycle active at t. Before the anchor day the cycle
// still belongs to the previous month.
func CycleKeyAt(t time.Time, anchor int) CycleKey {
	k := CycleKey{Year: t.Year(), Month: t.Month()}
	if t.Day() < ClampDay(t.Year(), t.Month(), anchor) {
		return k.Prev()
	}
	return k
}

// ParseCycleKey parses the persisted "YYYY-MM" form.
func ParseCycleKey(s string) (CycleKey, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return CycleKey{}, fmt.Errorf("parse cycle key %q: %w", s, err)
	}
	return CycleKey{Year: t.Year(), Month: t.Month()}, nil
}

func (k CycleKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// IsZero reports whether the key was never set.
func (k CycleKey) IsZero() bool {
	return k.Year == 0 && k.Month == 0
}

// MonthsUntil is the number of cycles from k to other (negative if other
// is earlier).
func (k CycleKey) MonthsUntil(other CycleKey) int {
	return (other.Year-k.Year)*12 + int(other.Month) - int(k.Month)
}

// Next returns the following cycle.
func (k CycleKey) Next() CycleKey {
	t := time.Date(k.Year, k.Month+1, 1, 0, 0, 0, 0, time.UTC)
	return CycleKey{Year: t.Year(), Month: t.Month()}
}

// Prev returns the preceding cycle.
func (k CycleKey) Prev() CycleKey {
	t := time.Date(k.Year, k.Month-1, 1, 0, 0, 0, 0, time.UTC)
	return CycleKey{Year: t.Year(), Month: t.Month()}
}

// Start is the first instant of the cycle in loc.
func (k CycleKey) Start(anchor int, loc *time.Location) time.Time {
	return time.Date(k.Year, k.Month, ClampDay(k.Year, k.Month, anchor), 0, 0, 0, 0, loc)
}

// Window returns the half-open [start, end) interval covered by the cycle.
func (k CycleKey) Window(anchor int, loc *time.Location) (time.Time, time.Time) {
	return k.Start(anchor, loc), k.Next().Start(anchor, loc)
}

// MarshalText stores the key as "YYYY-MM", or empty when unset.
func (k CycleKey) MarshalText() ([]byte, error) {
	if k.IsZero() {
		return []byte{}, nil
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses the "YYYY-MM" form.
func (k *CycleKey) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*k = CycleKey{}
		return nil
	}
	parsed, err := ParseCycleKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay limits day to the length of the given month.
func ClampDay(year int, month time.Month, day int) int {
	if day < 1 {
		return 1
	}
	if n := DaysIn(year, month); day > n {
		return n
	}
	return day
}

// AddMonthClamped moves t forward one calendar month, landing on dayOfMonth
// clamped to the target month's length. A zero dayOfMonth keeps t's day.
func AddMonthClamped(t time.Time, dayOfMonth int) time.Time {
	if dayOfMonth <= 0 {
		dayOfMonth = t.Day()
	}
	first := time.Date(t.Year(), t.Month()+1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	day := ClampDay(first.Year(), first.Month(), dayOfMonth)
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// NextOccurrence returns the first date on or after now's calendar day that
// falls on dayOfMonth (clamped per month).
func NextOccurrence(now time.Time, dayOfMonth int) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	candidate := time.Date(now.Year(), now.Month(), ClampDay(now.Year(), now.Month(), dayOfMonth), 0, 0, 0, 0, now.Location())
	if candidate.Before(today) {
		return AddMonthClamped(candidate, dayOfMonth)
	}
	return candidate
}

// NextAnchor returns the start of the next cycle strictly after now.
func NextAnchor(now time.Time, anchor int) time.Time {
	return CycleKeyAt(now, anchor).Next().Start(anchor, now.Location())
}

// DaysUntil is the ceiling of the days between now and then, floored at 1.
func DaysUntil(now, then time.Time) int {
	days := int(math.Ceil(then.Sub(now).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// CycleState is the persisted record of the last processed cycle.
type CycleState struct {
	Key         CycleKey   `json:"key"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// CycleReport describes the outcome of a cycle check.
type CycleReport struct {
	PreviousKey   string                     `json:"previousKey,omitempty"`
	CurrentKey    string                     `json:"currentKey"`
	Transitioned  bool                       `json:"transitioned"`
	Initialized   bool                       `json:"initialized"`
	SkippedCycles int                        `json:"skippedCycles"`
	WindowStart   *time.Time                 `json:"windowStart,omitempty"`
	WindowEnd     *time.Time                 `json:"windowEnd,omitempty"`
	OverdueAdded  map[string]decimal.Decimal `json:"overdueAdded,omitempty"`
	IncomesReset  int                        `json:"incomesReset"`
}

// CycleStatus is the read model for GET /v1/cycle.
type CycleStatus struct {
	AnchorDay    int        `json:"anchorDay"`
	CurrentKey   string     `json:"currentKey"`
	PersistedKey string     `json:"persistedKey,omitempty"`
	ProcessedAt  *time.Time `json:"processedAt,omitempty"`
	WindowStart  time.Time  `json:"windowStart"`
	WindowEnd    time.Time  `json:"windowEnd"`
	Pending      bool       `json:"pending"` // a rollover has not been processed yet
}
