package models

// Course represents a draft course as held by the marketplace API. Step records
// the furthest server-acknowledged wizard step (1-4) and only ever moves forward.
type Course struct {
	ID          int    `json:"id"`
	Step        int    `json:"step"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CategoryID  int    `json:"category"`
	Thumbnail   string `json:"thumbnail"`
	Freemium    bool   `json:"is_freemium"`

	Subscription bool `json:"is_subscription"`
	// Subscription-only fields. Meaningless while Subscription is false and
	// must not be validated or diffed in that state.
	SubscriptionAmount int `json:"subscription_amount,omitempty"`
	VideoSessionCount  int `json:"video_session_count,omitempty"`
	ChatUptoDays       int `json:"chat_upto,omitempty"`
	SafePeriodDays     int `json:"safe_period,omitempty"`

	Objectives   []Objective   `json:"objectives,omitempty"`
	Requirements []Requirement `json:"requirements,omitempty"`
	Sections     []Section     `json:"sections,omitempty"`

	IsComplete  bool `json:"is_complete"`
	IsAvailable bool `json:"is_available"`
}

// HasStudyPoints reports whether at least one objective and one requirement
// are persisted server-side.
func (c *Course) HasStudyPoints() bool {
	return len(c.Objectives) > 0 && len(c.Requirements) > 0
}

// HasContent reports whether the course holds at least one section and every
// section carries at least one item.
func (c *Course) HasContent() bool {
	if len(c.Sections) == 0 {
		return false
	}
	for i := range c.Sections {
		if len(c.Sections[i].Items) == 0 {
			return false
		}
	}
	return true
}
