package streak

import "cloud.google.com/go/civil"

// State mirrors the streak columns on a profile.
type State struct {
	CurrentStreak    int         `json:"current_streak"`
	LongestStreak    int         `json:"longest_streak"`
	LastActivityDate *civil.Date `json:"last_activity_date"`
}

// Advance records activity on day. Activity on the same day is idempotent, activity on
// the day after the last one extends the streak, anything else starts a new streak of 1.
// A day earlier than the last activity is ignored: history is never rewritten.
func Advance(s State, day civil.Date) State {
	next := s

	switch {
	case s.LastActivityDate == nil:
		next.CurrentStreak = 1
	case *s.LastActivityDate == day:
		return s
	case day.Before(*s.LastActivityDate):
		return s
	case s.LastActivityDate.AddDays(1) == day:
		next.CurrentStreak = s.CurrentStreak + 1
	default:
		next.CurrentStreak = 1
	}

	d := day
	next.LastActivityDate = &d
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	return next
}

// Effective is the streak to display on today: a streak whose last activity is older
// than yesterday has lapsed even though the stored value is not reset until the next activity.
func Effective(s State, today civil.Date) int {
	if s.LastActivityDate == nil {
		return 0
	}
	if today.DaysSince(*s.LastActivityDate) > 1 {
		return 0
	}
	return s.CurrentStreak
}
