// Package validators holds the client-side checks run before any wizard
// payload leaves the process. A rejected input never issues a network call.
package validators

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// FieldErrors maps a field name to its validation messages, mirroring the
// error envelope the API itself returns.
type FieldErrors map[string][]string

func (e FieldErrors) Error() string {
	return fmt.Sprintf("validation failed: %s", e.First())
}

// First returns one message to surface to the user.
func (e FieldErrors) First() string {
	for _, field := range []string{"title", "description", "category", "subscription_amount", "video_session_count", "chat_upto", "safe_period", "instruction", "passing_score", "questions"} {
		if msgs, ok := e[field]; ok && len(msgs) > 0 {
			return msgs[0]
		}
	}
	for _, msgs := range e {
		if len(msgs) > 0 {
			return msgs[0]
		}
	}
	return "Validation failed!"
}

// Step1Input is the basic-info form of wizard step 1.
type Step1Input struct {
	Title       string `validate:"required,min=10,max=120"`
	Description string `validate:"required,min=20"`
	CategoryID  int    `validate:"required,gt=0"`
	Freemium    bool

	Subscription bool
	// Required only while Subscription is true; not validated otherwise.
	SubscriptionAmount int
	VideoSessionCount  int
	ChatUptoDays       int
	SafePeriodDays     int
}

// Step1 validates the basic-info form. Subscription-dependent fields are
// checked only while the subscription flag is set.
func Step1(in *Step1Input) error {
	errs := FieldErrors{}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); !ok {
			return fmt.Errorf("validate step 1: %w", err)
		}
		for _, fe := range verrs {
			switch fe.Field() {
			case "Title":
				errs.add("title", "Title must be between 10 and 120 characters!")
			case "Description":
				errs.add("description", "Description must be at least 20 characters long!")
			case "CategoryID":
				errs.add("category", "Pick a category!")
			}
		}
	}

	if in.Subscription {
		if in.SubscriptionAmount <= 0 {
			errs.add("subscription_amount", "Subscription amount must be greater than zero!")
		}
		if in.VideoSessionCount <= 0 {
			errs.add("video_session_count", "At least one video session is required!")
		}
		if in.ChatUptoDays <= 0 {
			errs.add("chat_upto", "Chat availability days must be greater than zero!")
		}
		if in.SafePeriodDays <= 0 {
			errs.add("safe_period", "Safe period days must be greater than zero!")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SectionInput is a new-section form.
type SectionInput struct {
	Title string `validate:"required,min=10,max=100"`
}

// Section validates a new-section form.
func Section(in *SectionInput) error {
	if err := validate.Struct(in); err != nil {
		return FieldErrors{"title": {"Section title must be between 10 and 100 characters!"}}
	}
	return nil
}

// QuestionInput is one assessment question with its choices.
type QuestionInput struct {
	Text    string   `validate:"required,min=5"`
	Choices []string `validate:"min=2,dive,required"`
	// CorrectIndex points at the single correct choice.
	CorrectIndex int
}

// AssessmentInput is an assessment item form.
type AssessmentInput struct {
	Title        string          `validate:"required,min=3"`
	Instructions string          `validate:"required,min=10"`
	PassingScore int             `validate:"gte=0,lte=100"`
	Questions    []QuestionInput `validate:"min=1,dive"`
}

// Assessment validates an assessment form, including that every question
// names exactly one in-range correct choice.
func Assessment(in *AssessmentInput) error {
	errs := FieldErrors{}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); !ok {
			return fmt.Errorf("validate assessment: %w", err)
		}
		for _, fe := range verrs {
			switch {
			case fe.Field() == "Title":
				errs.add("title", "Item title must be at least 3 characters long!")
			case fe.Field() == "Instructions":
				errs.add("instruction", "Instructions must be at least 10 characters long!")
			case fe.Field() == "PassingScore":
				errs.add("passing_score", "Passing score must be between 0 and 100!")
			case strings.HasPrefix(fe.StructNamespace(), "AssessmentInput.Questions"):
				errs.add("questions", "Every question needs text and at least 2 choices!")
			case fe.Field() == "Questions":
				errs.add("questions", "Add at least one question!")
			}
		}
	}

	for i, q := range in.Questions {
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Choices) {
			errs.add("questions", fmt.Sprintf("Question %d must mark exactly one correct choice!", i+1))
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// StudyPoint validates one objective or requirement text.
func StudyPoint(text string) error {
	if len(strings.TrimSpace(text)) < 5 {
		return FieldErrors{"text": {"Entry must be at least 5 characters long!"}}
	}
	return nil
}

func (e FieldErrors) add(field, msg string) {
	e[field] = append(e[field], msg)
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}
