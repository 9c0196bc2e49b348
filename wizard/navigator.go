// Package wizard drives the four-step authoring flow as a small state
// machine over the draft session.
package wizard

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nasif-muhamed/learnerd-authoring/draft"
)

// Step of the authoring wizard.
type Step int

const (
	StepBasicInfo   Step = 1 // title, description, pricing
	StepStudyPoints Step = 2 // objectives and requirements
	StepContent     Step = 3 // sections and items
	StepPreview     Step = 4 // preview and publish
)

var (
	// ErrDraftRequired blocks leaving step 1 before a draft id exists.
	ErrDraftRequired = errors.New("create the course draft before moving on")

	// ErrStudyPointsRequired blocks leaving step 2 before at least one
	// objective and one requirement are persisted.
	ErrStudyPointsRequired = errors.New("at least one objective and one requirement are required")

	// ErrContentRequired blocks leaving step 3 before every section holds an
	// item.
	ErrContentRequired = errors.New("every section needs at least one item")

	// ErrNotAtPreview blocks publishing from any step but the last.
	ErrNotAtPreview = errors.New("publishing is only possible from the preview step")

	// ErrPublished means the pipeline already exited.
	ErrPublished = errors.New("course already published")
)

// Navigator enforces forward guards across the wizard. Backward moves are
// always allowed.
type Navigator struct {
	session   *draft.Session
	step      Step
	published bool
	log       *zap.Logger
}

// NewNavigator starts at step 1.
func NewNavigator(session *draft.Session, log *zap.Logger) *Navigator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Navigator{session: session, step: StepBasicInfo, log: log}
}

// Current returns the wizard's current step.
func (n *Navigator) Current() Step { return n.step }

// Published reports whether the terminal publish action ran.
func (n *Navigator) Published() bool { return n.published }

// Next advances one step when the current step's gate is satisfied. The 3->4
// transition also persists authoring progress through the session.
func (n *Navigator) Next(ctx context.Context) error {
	if n.published {
		return ErrPublished
	}

	switch n.step {
	case StepBasicInfo:
		course := n.session.Course()
		if course == nil || course.ID == 0 {
			return ErrDraftRequired
		}
	case StepStudyPoints:
		if !n.session.StudyPointsReady() {
			return ErrStudyPointsRequired
		}
	case StepContent:
		if !n.session.ContentReady() {
			return ErrContentRequired
		}
		if err := n.session.AdvanceStep(ctx, int(StepPreview)); err != nil {
			return err
		}
	case StepPreview:
		return ErrNotAtPreview
	}

	n.step++
	n.log.Debug("wizard advanced", zap.Int("step", int(n.step)))
	return nil
}

// Back moves one step backward, unguarded. Completed earlier steps stay
// revisitable.
func (n *Navigator) Back() {
	if n.step > StepBasicInfo {
		n.step--
	}
}

// Resume reloads the draft by id and lands on the furthest reachable step,
// computed from the shape of the fetched data rather than the stored step
// counter alone.
func (n *Navigator) Resume(ctx context.Context, courseID int) error {
	if err := n.session.Resume(ctx, courseID); err != nil {
		return err
	}

	n.step = StepBasicInfo
	course := n.session.Course()
	if course == nil || course.ID == 0 {
		return nil
	}
	n.step = StepStudyPoints
	if !n.session.StudyPointsReady() {
		return nil
	}
	n.step = StepContent
	if !n.session.ContentReady() {
		return nil
	}
	n.step = StepPreview
	return nil
}

// Publish runs the terminal completion call and exits the pipeline.
func (n *Navigator) Publish(ctx context.Context) error {
	if n.published {
		return ErrPublished
	}
	if n.step != StepPreview {
		return ErrNotAtPreview
	}
	if err := n.session.Complete(ctx); err != nil {
		return err
	}
	n.published = true
	n.log.Info("course published",
		zap.Int("course_id", n.session.Course().ID))
	return nil
}
