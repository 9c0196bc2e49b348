package models

// ItemType discriminates the two kinds of section items.
type ItemType string

const (
	ItemTypeVideo      ItemType = "video"
	ItemTypeAssessment ItemType = "assessment"
)

// Section is an ordered content module within a course. Order values are
// strictly increasing across the section's lifetime and never reused, so gaps
// appear after deletions.
type Section struct {
	ID       int           `json:"id"`
	CourseID int           `json:"course"`
	Title    string        `json:"title"`
	Order    int           `json:"order"`
	Items    []SectionItem `json:"items,omitempty"`
}

// SectionItem is a leaf content unit. Exactly one of Video/Assessment is
// populated, matching ItemType.
type SectionItem struct {
	ID         int               `json:"id"`
	SectionID  int               `json:"section"`
	ItemType   ItemType          `json:"item_type"`
	Title      string            `json:"title"`
	Order      int               `json:"order"`
	Video      *VideoDetail      `json:"video,omitempty"`
	Assessment *AssessmentDetail `json:"assessment,omitempty"`
}

// VideoDetail carries the playable video reference plus the upload session
// that produced it.
type VideoDetail struct {
	VideoURL     string  `json:"video_url"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Duration     float64 `json:"duration"` // seconds
	UploadID     string  `json:"video_upload_id"`
}

// AssessmentDetail holds an in-wizard quiz. Each question has exactly one
// correct choice.
type AssessmentDetail struct {
	Instructions string     `json:"instruction"`
	PassingScore int        `json:"passing_score"` // 0-100
	Questions    []Question `json:"questions"`
}

type Question struct {
	ID      int      `json:"id,omitempty"`
	Text    string   `json:"text"`
	Order   int      `json:"order"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	ID        int    `json:"id,omitempty"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// EntryID and EntryOrder satisfy the collection synchronizer.
func (s Section) EntryID() int    { return s.ID }
func (s Section) EntryOrder() int { return s.Order }

func (i SectionItem) EntryID() int    { return i.ID }
func (i SectionItem) EntryOrder() int { return i.Order }
