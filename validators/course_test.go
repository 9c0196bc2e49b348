package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStep1() Step1Input {
	return Step1Input{
		Title:       "Practical Go",
		Description: "Build production services with Go, step by step.",
		CategoryID:  3,
	}
}

func TestStep1(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Step1Input)
		wantErr string // empty means valid
	}{
		{
			name:   "valid basic form",
			mutate: func(*Step1Input) {},
		},
		{
			name:    "short title",
			mutate:  func(in *Step1Input) { in.Title = "Go" },
			wantErr: "title",
		},
		{
			name:    "short description",
			mutate:  func(in *Step1Input) { in.Description = "Too short" },
			wantErr: "description",
		},
		{
			name:    "missing category",
			mutate:  func(in *Step1Input) { in.CategoryID = 0 },
			wantErr: "category",
		},
		{
			name: "subscription without amount",
			mutate: func(in *Step1Input) {
				in.Subscription = true
				in.VideoSessionCount = 4
				in.ChatUptoDays = 30
				in.SafePeriodDays = 7
			},
			wantErr: "subscription_amount",
		},
		{
			name: "subscription complete",
			mutate: func(in *Step1Input) {
				in.Subscription = true
				in.SubscriptionAmount = 499
				in.VideoSessionCount = 4
				in.ChatUptoDays = 30
				in.SafePeriodDays = 7
			},
		},
		{
			// Dependent fields are meaningless while the flag is off and
			// must not be validated.
			name: "subscription off ignores dependent fields",
			mutate: func(in *Step1Input) {
				in.Subscription = false
				in.SubscriptionAmount = 0
				in.VideoSessionCount = 0
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validStep1()
			tt.mutate(&in)

			err := Step1(&in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var fieldErrs FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			assert.Contains(t, fieldErrs, tt.wantErr)
		})
	}
}

func TestSection(t *testing.T) {
	assert.NoError(t, Section(&SectionInput{Title: "Getting started with Go"}))
	assert.Error(t, Section(&SectionInput{Title: "Intro"}))
	assert.Error(t, Section(&SectionInput{}))
}

func validAssessment() AssessmentInput {
	return AssessmentInput{
		Title:        "Checkpoint quiz",
		Instructions: "Answer every question to pass this module.",
		PassingScore: 70,
		Questions: []QuestionInput{
			{Text: "What starts a goroutine?", Choices: []string{"go", "run", "spawn"}, CorrectIndex: 0},
		},
	}
}

func TestAssessment(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AssessmentInput)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*AssessmentInput) {},
		},
		{
			name:    "passing score above 100",
			mutate:  func(in *AssessmentInput) { in.PassingScore = 120 },
			wantErr: "passing_score",
		},
		{
			name:    "no questions",
			mutate:  func(in *AssessmentInput) { in.Questions = nil },
			wantErr: "questions",
		},
		{
			name: "correct index out of range",
			mutate: func(in *AssessmentInput) {
				in.Questions[0].CorrectIndex = 5
			},
			wantErr: "questions",
		},
		{
			name: "single choice question",
			mutate: func(in *AssessmentInput) {
				in.Questions[0].Choices = []string{"go"}
			},
			wantErr: "questions",
		},
		{
			name:    "short instructions",
			mutate:  func(in *AssessmentInput) { in.Instructions = "Do it" },
			wantErr: "instruction",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validAssessment()
			tt.mutate(&in)

			err := Assessment(&in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var fieldErrs FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			assert.Contains(t, fieldErrs, tt.wantErr)
		})
	}
}

func TestStudyPoint(t *testing.T) {
	assert.NoError(t, StudyPoint("Understand goroutines"))
	assert.Error(t, StudyPoint("Go"))
	assert.Error(t, StudyPoint("    "))
}

func TestFieldErrorsFirstIsStable(t *testing.T) {
	errs := FieldErrors{
		"description": {"second"},
		"title":       {"first"},
	}
	// title outranks description in surfacing order.
	for i := 0; i < 10; i++ {
		assert.Equal(t, "first", errs.First())
	}
	assert.Contains(t, errs.Error(), "first")
}
