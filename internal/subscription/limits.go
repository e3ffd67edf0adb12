package subscription

// FeatureLimits caps what a read-only tier user can see. The gateway only
// enforces the coarse read/write bit; these caps are handed to the UI
// collaborator, which slices each list to min(actualCount, cap).
type FeatureLimits struct {
	TimetableDays  int `json:"timetable_days"`
	Notes          int `json:"notes"`
	FocusSessions  int `json:"focus_sessions"`
	PrivateLessons int `json:"private_lessons"`
}

// Unlimited marks a feature with no cap
const Unlimited = -1

// LimitsFor returns the visibility caps for a tier. Full access means no
// caps; denied users never reach the point where caps matter.
func LimitsFor(tier Tier, readOnly FeatureLimits) FeatureLimits {
	if tier == TierReadOnly {
		return readOnly
	}
	return FeatureLimits{
		TimetableDays:  Unlimited,
		Notes:          Unlimited,
		FocusSessions:  Unlimited,
		PrivateLessons: Unlimited,
	}
}
