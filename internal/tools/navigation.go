package tools

import "time"

// NavigationHint is an advisory view-change suggestion returned alongside
// a tool result when a mutation moved a task far from the current view.
// The UI may ignore it; it never feeds back into the conversation.
type NavigationHint struct {
	ViewMode   string `json:"view_mode"`
	TargetDate string `json:"target_date"`
}

// hintForShift maps the magnitude of a scheduling shift (in days) to a
// suggested view. Small moves stay in the current view; larger ones zoom
// out. Deletes never hint.
func hintForShift(days int, target time.Time) *NavigationHint {
	var mode string
	switch {
	case days < 3:
		return nil
	case days <= 5:
		mode = "daily"
	case days <= 24:
		mode = "weekly"
	default:
		mode = "monthly"
	}
	return &NavigationHint{ViewMode: mode, TargetDate: target.Format("2006-01-02")}
}
