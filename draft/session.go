// Package draft owns the draft course resource across the four wizard steps:
// it mediates create/patch calls, reconciles the nested collections against
// server responses, and delegates large media to the chunk uploader.
package draft

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/nasif-muhamed/learnerd-authoring/client"
	"github.com/nasif-muhamed/learnerd-authoring/collection"
	"github.com/nasif-muhamed/learnerd-authoring/models"
	"github.com/nasif-muhamed/learnerd-authoring/notify"
	"github.com/nasif-muhamed/learnerd-authoring/uploader"
	"github.com/nasif-muhamed/learnerd-authoring/validators"
)

// MaxStudyPoints is the combined ceiling (persisted + queued) per collection
// for objectives and requirements.
const MaxStudyPoints = 10

var (
	// ErrNoChanges signals that a patch matched last-known server state
	// field-for-field; no call was issued.
	ErrNoChanges = errors.New("no changes to save")

	// ErrSectionNotEmpty blocks deleting a section that still holds items.
	ErrSectionNotEmpty = errors.New("section still holds items; remove them first")

	// ErrNoDraft is returned by operations that need a persisted draft.
	ErrNoDraft = errors.New("no draft course created yet")
)

// API is the slice of the request layer the session needs.
type API interface {
	CreateDraft(ctx context.Context, fields map[string]string, thumbnail *client.FileField) (*models.Course, error)
	UpdateDraft(ctx context.Context, courseID int, fields map[string]string, thumbnail *client.FileField) (*models.Course, error)
	FetchDraft(ctx context.Context, courseID int) (*models.Course, error)
	MarkComplete(ctx context.Context, courseID int) (*models.Course, error)

	FetchObjectives(ctx context.Context, courseID int) ([]models.Objective, error)
	DeleteObjective(ctx context.Context, courseID, objectiveID int) ([]models.Objective, error)
	FetchRequirements(ctx context.Context, courseID int) ([]models.Requirement, error)
	DeleteRequirement(ctx context.Context, courseID, requirementID int) ([]models.Requirement, error)
	SubmitStudyPoints(ctx context.Context, courseID int, objectives, requirements []string) (*models.StudyPoints, error)

	CreateSection(ctx context.Context, courseID int, title string, order int) (*models.Section, error)
	DeleteSection(ctx context.Context, courseID, sectionID int) ([]models.Section, error)
	CreateSectionItem(ctx context.Context, courseID, sectionID int, item *models.SectionItem) (*models.SectionItem, error)
	UpdateSectionItem(ctx context.Context, courseID, sectionID, itemID int, patch map[string]interface{}) (*models.SectionItem, error)
	DeleteSectionItem(ctx context.Context, courseID, sectionID, itemID int) ([]models.SectionItem, error)
}

// Thumbnail is a step-1 thumbnail candidate.
type Thumbnail struct {
	FileName string
	Content  []byte
}

// VideoItemInput describes a new video item backed by a local file.
type VideoItemInput struct {
	Title        string
	FileName     string
	Data         io.ReaderAt
	Size         int64
	Duration     float64
	ThumbnailURL string
}

// Session owns one draft course. All mutations flow through it so local and
// server state cannot drift: every server response is merged back through the
// collection synchronizers.
type Session struct {
	api      API
	uploads  *uploader.Uploader
	notifier notify.Notifier
	log      *zap.Logger

	course       *models.Course
	objectives   *collection.Synchronizer[models.Objective]
	requirements *collection.Synchronizer[models.Requirement]
	sections     *collection.Synchronizer[models.Section]

	thumbName string
	thumbSize int
}

// NewSession wires a session. notifier and log may be nil.
func NewSession(api API, uploads *uploader.Uploader, notifier notify.Notifier, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.LogNotifier{Log: log}
	}
	return &Session{
		api:      api,
		uploads:  uploads,
		notifier: notifier,
		log:      log,
		objectives: collection.New(
			collection.WithLimit[models.Objective](MaxStudyPoints)),
		requirements: collection.New(
			collection.WithLimit[models.Requirement](MaxStudyPoints)),
		sections: collection.New(
			collection.WithDeleteGuard[models.Section](func(s models.Section) error {
				if len(s.Items) > 0 {
					return ErrSectionNotEmpty
				}
				return nil
			})),
	}
}

// Course returns the current draft, nil before the first step-1 submission.
func (s *Session) Course() *models.Course { return s.course }

// Objectives returns persisted objectives.
func (s *Session) Objectives() []models.Objective { return s.objectives.Confirmed() }

// Requirements returns persisted requirements.
func (s *Session) Requirements() []models.Requirement { return s.requirements.Confirmed() }

// Sections returns persisted sections with their items.
func (s *Session) Sections() []models.Section { return s.sections.Confirmed() }

// StudyPointsReady reports the step-2 gate: at least one objective and one
// requirement persisted.
func (s *Session) StudyPointsReady() bool {
	return len(s.objectives.Confirmed()) > 0 && len(s.requirements.Confirmed()) > 0
}

// ContentReady reports the step-3 gate: at least one section, each holding
// at least one item.
func (s *Session) ContentReady() bool {
	sections := s.sections.Confirmed()
	if len(sections) == 0 {
		return false
	}
	for i := range sections {
		if len(sections[i].Items) == 0 {
			return false
		}
	}
	return true
}

// Create submits the step-1 form. The server assigns the draft id; the draft
// is resumable by that id alone from then on.
func (s *Session) Create(ctx context.Context, in validators.Step1Input, thumb *Thumbnail) error {
	if err := validators.Step1(&in); err != nil {
		return s.boundary(err)
	}

	fields := step1Fields(in)
	course, err := s.api.CreateDraft(ctx, fields, thumbFile(thumb))
	if err != nil {
		return s.boundary(err)
	}

	s.course = course
	s.rememberThumb(thumb)
	s.log.Info("draft created", zap.Int("course_id", course.ID))
	return nil
}

// Patch diffs the submitted form against last-known server state and sends
// only the changed fields. A zero-entry diff returns ErrNoChanges with no
// network call. The thumbnail is replaced only when its name or byte size
// differs from the one already uploaded.
func (s *Session) Patch(ctx context.Context, in validators.Step1Input, thumb *Thumbnail) error {
	if s.course == nil {
		return s.boundary(ErrNoDraft)
	}
	if err := validators.Step1(&in); err != nil {
		return s.boundary(err)
	}

	diff := s.diffStep1(in)
	newThumb := thumb
	if thumb != nil && thumb.FileName == s.thumbName && len(thumb.Content) == s.thumbSize {
		newThumb = nil // same name and size means unchanged
	}

	if len(diff) == 0 && newThumb == nil {
		return ErrNoChanges
	}

	course, err := s.api.UpdateDraft(ctx, s.course.ID, diff, thumbFile(newThumb))
	if err != nil {
		return s.boundary(err)
	}
	s.course = course
	s.rememberThumb(newThumb)
	return nil
}

// AdvanceStep records wizard progress. Transitions are purely local except
// into step 4: there the stored step is persisted once while it is still at
// or below 3, so a resumed draft remembers that authoring finished.
func (s *Session) AdvanceStep(ctx context.Context, target int) error {
	if s.course == nil {
		return s.boundary(ErrNoDraft)
	}
	if target != 4 || s.course.Step > 3 {
		return nil
	}

	course, err := s.api.UpdateDraft(ctx, s.course.ID, map[string]string{"step": "4"}, nil)
	if err != nil {
		return s.boundary(err)
	}
	s.course = course
	return nil
}

// QueueObjective stages an objective locally. Orders are assigned up front
// and never reused; the combined ceiling counts persisted entries too.
func (s *Session) QueueObjective(text string) error {
	if err := validators.StudyPoint(text); err != nil {
		return s.boundary(err)
	}
	err := s.objectives.Queue(models.Objective{
		Text:  text,
		Order: s.objectives.NextOrder(),
	})
	if err != nil {
		return s.boundary(err)
	}
	return nil
}

// QueueRequirement stages a requirement locally.
func (s *Session) QueueRequirement(text string) error {
	if err := validators.StudyPoint(text); err != nil {
		return s.boundary(err)
	}
	err := s.requirements.Queue(models.Requirement{
		Text:  text,
		Order: s.requirements.NextOrder(),
	})
	if err != nil {
		return s.boundary(err)
	}
	return nil
}

// SubmitStudyPoints sends queued objectives and requirements in one batch
// call. The response replaces both collections wholesale. At least one entry
// of each kind must exist, queued or persisted.
func (s *Session) SubmitStudyPoints(ctx context.Context) error {
	if s.course == nil {
		return s.boundary(ErrNoDraft)
	}
	if s.objectives.Len() == 0 || s.requirements.Len() == 0 {
		return s.boundary(validators.FieldErrors{
			"study_points": {"Add at least one objective and one requirement!"},
		})
	}

	points, err := s.api.SubmitStudyPoints(ctx, s.course.ID,
		texts(s.objectives.Pending(), func(o models.Objective) string { return o.Text }),
		texts(s.requirements.Pending(), func(r models.Requirement) string { return r.Text }))
	if err != nil {
		return s.boundary(err)
	}

	s.objectives.Merge(points.Objectives)
	s.requirements.Merge(points.Requirements)
	return nil
}

// ReloadStudyPoints refetches both collections, used when an author revisits
// step 2 after navigating away. Queued entries are discarded; the server
// lists are authoritative.
func (s *Session) ReloadStudyPoints(ctx context.Context) error {
	if s.course == nil {
		return s.boundary(ErrNoDraft)
	}
	objectives, err := s.api.FetchObjectives(ctx, s.course.ID)
	if err != nil {
		return s.boundary(err)
	}
	requirements, err := s.api.FetchRequirements(ctx, s.course.ID)
	if err != nil {
		return s.boundary(err)
	}
	s.objectives.Merge(objectives)
	s.requirements.Merge(requirements)
	return nil
}

// DeleteObjective removes a persisted objective. The server's post-delete
// list replaces the collection; surviving orders are never recomputed.
func (s *Session) DeleteObjective(ctx context.Context, objectiveID int) error {
	if s.course == nil {
		return s.boundary(ErrNoDraft)
	}
	err := s.objectives.Delete(objectiveID, func() ([]models.Objective, error) {
		return s.api.DeleteObjective(ctx, s.course.ID, objectiveID)
	})
	if err != nil {
		return s.boundary(err)
	}
	return nil
}

// DeleteRequirement removes a persisted requirement.
func (s *Session) DeleteRequirement(ctx context.Context, requirementID int) error {
	if s.course == nil {
		return s.boundary(ErrNoDraft)
	}
	err := s.requirements.Delete(requirementID, func() ([]models.Requirement, error) {
		return s.api.DeleteRequirement(ctx, s.course.ID, requirementID)
	})
	if err != nil {
		return s.boundary(err)
	}
	return nil
}

// AddSection creates a section with the next never-reused order.
func (s *Session) AddSection(ctx context.Context, title string) error {
	if s.course == nil {
		return s.boundary(ErrNoDraft)
	}
	if err := validators.Section(&validators.SectionInput{Title: title}); err != nil {
		return s.boundary(err)
	}

	section, err := s.api.CreateSection(ctx, s.course.ID, title, s.sections.NextOrder())
	if err != nil {
		return s.boundary(err)
	}
	s.sections.Confirm(*section)
	return nil
}

// DeleteSection removes an empty section. A section that still holds items
// is rejected client-side; no delete call is issued.
func (s *Session) DeleteSection(ctx context.Context, sectionID int) error {
	if s.course == nil {
		return s.boundary(ErrNoDraft)
	}
	err := s.sections.Delete(sectionID, func() ([]models.Section, error) {
		return s.api.DeleteSection(ctx, s.course.ID, sectionID)
	})
	if err != nil {
		return s.boundary(err)
	}
	return nil
}

// AddVideoItem chunk-uploads the file and finalizes it with the item-creation
// call. The video is not usable until that call succeeds; the uploader keeps
// reported progress under 100% until then.
func (s *Session) AddVideoItem(ctx context.Context, sectionID int, in VideoItemInput) error {
	if s.course == nil {
		return s.boundary(ErrNoDraft)
	}
	section, ok := s.sections.Find(sectionID)
	if !ok {
		return s.boundary(fmt.Errorf("no section with id %d", sectionID))
	}

	sessionID := uploader.NewSessionID(in.FileName)
	item := &models.SectionItem{
		SectionID: sectionID,
		ItemType:  models.ItemTypeVideo,
		Title:     in.Title,
		Order:     nextItemOrder(section),
		Video: &models.VideoDetail{
			Duration:     in.Duration,
			ThumbnailURL: in.ThumbnailURL,
			UploadID:     sessionID,
		},
	}

	err := s.uploads.Upload(ctx, sessionID, in.FileName, in.Data, in.Size, func(ctx context.Context) error {
		created, err := s.api.CreateSectionItem(ctx, s.course.ID, sectionID, item)
		if err != nil {
			return err
		}
		return s.sections.Update(sectionID, func(sec *models.Section) {
			sec.Items = append(sec.Items, *created)
		})
	})
	if err != nil {
		return s.boundary(err)
	}
	return nil
}

// AddAssessmentItem creates an assessment item. No media is involved, but
// items are still created one at a time, never batched.
func (s *Session) AddAssessmentItem(ctx context.Context, sectionID int, in validators.AssessmentInput) error {
	if s.course == nil {
		return s.boundary(ErrNoDraft)
	}
	section, ok := s.sections.Find(sectionID)
	if !ok {
		return s.boundary(fmt.Errorf("no section with id %d", sectionID))
	}
	if err := validators.Assessment(&in); err != nil {
		return s.boundary(err)
	}

	item := &models.SectionItem{
		SectionID:  sectionID,
		ItemType:   models.ItemTypeAssessment,
		Title:      in.Title,
		Order:      nextItemOrder(section),
		Assessment: assessmentDetail(in),
	}
	created, err := s.api.CreateSectionItem(ctx, s.course.ID, sectionID, item)
	if err != nil {
		return s.boundary(err)
	}
	err = s.sections.Update(sectionID, func(sec *models.Section) {
		sec.Items = append(sec.Items, *created)
	})
	if err != nil {
		return s.boundary(err)
	}
	return nil
}

// UpdateItem applies a partial-field patch; the server's view of the item
// replaces the matching local item in place.
func (s *Session) UpdateItem(ctx context.Context, sectionID, itemID int, patch map[string]interface{}) error {
	if s.course == nil {
		return s.boundary(ErrNoDraft)
	}
	updated, err := s.api.UpdateSectionItem(ctx, s.course.ID, sectionID, itemID, patch)
	if err != nil {
		return s.boundary(err)
	}
	err = s.sections.Update(sectionID, func(sec *models.Section) {
		for i := range sec.Items {
			if sec.Items[i].ID == itemID {
				sec.Items[i] = *updated
				return
			}
		}
	})
	if err != nil {
		return s.boundary(err)
	}
	return nil
}

// DeleteItem removes one item; the server's post-delete item list replaces
// the section's items.
func (s *Session) DeleteItem(ctx context.Context, sectionID, itemID int) error {
	if s.course == nil {
		return s.boundary(ErrNoDraft)
	}
	list, err := s.api.DeleteSectionItem(ctx, s.course.ID, sectionID, itemID)
	if err != nil {
		return s.boundary(err)
	}
	err = s.sections.Update(sectionID, func(sec *models.Section) {
		sec.Items = list
	})
	if err != nil {
		return s.boundary(err)
	}
	return nil
}

// Complete marks the draft complete and available. The pipeline exposes no
// reverse path; afterwards the draft is immutable to it.
func (s *Session) Complete(ctx context.Context) error {
	if s.course == nil {
		return s.boundary(ErrNoDraft)
	}
	course, err := s.api.MarkComplete(ctx, s.course.ID)
	if err != nil {
		return s.boundary(err)
	}
	s.course = course
	return nil
}

// Resume reconstructs the whole session from server reads, by draft id alone.
func (s *Session) Resume(ctx context.Context, courseID int) error {
	course, err := s.api.FetchDraft(ctx, courseID)
	if err != nil {
		return s.boundary(err)
	}
	s.course = course
	s.objectives.Merge(course.Objectives)
	s.requirements.Merge(course.Requirements)
	s.sections.Merge(course.Sections)
	s.log.Info("draft resumed",
		zap.Int("course_id", course.ID),
		zap.Int("server_step", course.Step))
	return nil
}

// boundary is the error boundary of every public operation: surface one
// notification and hand the error back without rethrowing it further.
func (s *Session) boundary(err error) error {
	s.notifier.Notify(notify.Message(err))
	return err
}

func (s *Session) rememberThumb(thumb *Thumbnail) {
	if thumb == nil {
		return
	}
	s.thumbName = thumb.FileName
	s.thumbSize = len(thumb.Content)
}

// diffStep1 compares the submitted form field-by-field against last-known
// server state. Subscription-dependent fields only enter the diff while the
// submitted subscription flag is true.
func (s *Session) diffStep1(in validators.Step1Input) map[string]string {
	diff := map[string]string{}
	c := s.course

	if in.Title != c.Title {
		diff["title"] = in.Title
	}
	if in.Description != c.Description {
		diff["description"] = in.Description
	}
	if in.CategoryID != c.CategoryID {
		diff["category"] = strconv.Itoa(in.CategoryID)
	}
	if in.Freemium != c.Freemium {
		diff["is_freemium"] = strconv.FormatBool(in.Freemium)
	}
	if in.Subscription != c.Subscription {
		diff["is_subscription"] = strconv.FormatBool(in.Subscription)
	}
	if in.Subscription {
		if in.SubscriptionAmount != c.SubscriptionAmount {
			diff["subscription_amount"] = strconv.Itoa(in.SubscriptionAmount)
		}
		if in.VideoSessionCount != c.VideoSessionCount {
			diff["video_session_count"] = strconv.Itoa(in.VideoSessionCount)
		}
		if in.ChatUptoDays != c.ChatUptoDays {
			diff["chat_upto"] = strconv.Itoa(in.ChatUptoDays)
		}
		if in.SafePeriodDays != c.SafePeriodDays {
			diff["safe_period"] = strconv.Itoa(in.SafePeriodDays)
		}
	}
	return diff
}

func step1Fields(in validators.Step1Input) map[string]string {
	fields := map[string]string{
		"title":           in.Title,
		"description":     in.Description,
		"category":        strconv.Itoa(in.CategoryID),
		"is_freemium":     strconv.FormatBool(in.Freemium),
		"is_subscription": strconv.FormatBool(in.Subscription),
	}
	if in.Subscription {
		fields["subscription_amount"] = strconv.Itoa(in.SubscriptionAmount)
		fields["video_session_count"] = strconv.Itoa(in.VideoSessionCount)
		fields["chat_upto"] = strconv.Itoa(in.ChatUptoDays)
		fields["safe_period"] = strconv.Itoa(in.SafePeriodDays)
	}
	return fields
}

func thumbFile(thumb *Thumbnail) *client.FileField {
	if thumb == nil {
		return nil
	}
	return &client.FileField{
		Param:    "thumbnail",
		FileName: thumb.FileName,
		Content:  thumb.Content,
	}
}

func nextItemOrder(section models.Section) int {
	max := 0
	for _, item := range section.Items {
		if item.Order > max {
			max = item.Order
		}
	}
	return max + 1
}

func assessmentDetail(in validators.AssessmentInput) *models.AssessmentDetail {
	detail := &models.AssessmentDetail{
		Instructions: in.Instructions,
		PassingScore: in.PassingScore,
	}
	for i, q := range in.Questions {
		question := models.Question{Text: q.Text, Order: i + 1}
		for j, choice := range q.Choices {
			question.Choices = append(question.Choices, models.Choice{
				Text:      choice,
				IsCorrect: j == q.CorrectIndex,
			})
		}
		detail.Questions = append(detail.Questions, question)
	}
	return detail
}

func texts[T any](entries []T, text func(T) string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, text(e))
	}
	return out
}
