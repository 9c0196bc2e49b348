package models

// Objective is a free-text learning outcome attached to a course.
type Objective struct {
	ID       int    `json:"id"`
	CourseID int    `json:"course"`
	Text     string `json:"objective"`
	Order    int    `json:"order"`
}

// Requirement is a free-text prerequisite attached to a course.
type Requirement struct {
	ID       int    `json:"id"`
	CourseID int    `json:"course"`
	Text     string `json:"requirement"`
	Order    int    `json:"order"`
}

// StudyPoints is the server's authoritative response to the batch
// objectives + requirements submission; it replaces both local collections.
type StudyPoints struct {
	Objectives   []Objective   `json:"objectives"`
	Requirements []Requirement `json:"requirements"`
}

// EntryID and EntryOrder satisfy the collection synchronizer.
func (o Objective) EntryID() int    { return o.ID }
func (o Objective) EntryOrder() int { return o.Order }

func (r Requirement) EntryID() int    { return r.ID }
func (r Requirement) EntryOrder() int { return r.Order }
