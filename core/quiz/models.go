package quiz

import (
	"time"

	"github.com/darasa/backend/core"
)

// Quiz belongs to a class. Questions are stored inline; grading happens
// server side against CorrectOption, which is never sent to students.
type Quiz struct {
	ID          string     `json:"id"`
	ClassID     string     `json:"class_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	TimeLimit   int        `json:"time_limit"` // minutes; 0 = unlimited
	Questions   []Question `json:"questions"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
}

type Question struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	Points        int      `json:"points"`
}

// MaxScore is the sum of all question points.
func (q Quiz) MaxScore() int {
	var max int
	for _, qn := range q.Questions {
		max += qn.Points
	}
	return max
}

// QuizView is the student-facing rendition of a Quiz, with the correct
// options stripped.
type QuizView struct {
	ID          string         `json:"id"`
	ClassID     string         `json:"class_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	TimeLimit   int            `json:"time_limit"`
	Questions   []QuestionView `json:"questions"`
	CreatedAt   time.Time      `json:"created_at"`
}

type QuestionView struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Points  int      `json:"points"`
}

func (q Quiz) View() QuizView {
	qns := make([]QuestionView, len(q.Questions))
	for i, qn := range q.Questions {
		qns[i] = QuestionView{Text: qn.Text, Options: qn.Options, Points: qn.Points}
	}
	return QuizView{
		ID:          q.ID,
		ClassID:     q.ClassID,
		Title:       q.Title,
		Description: q.Description,
		TimeLimit:   q.TimeLimit,
		Questions:   qns,
		CreatedAt:   q.CreatedAt,
	}
}

// Result is a student's graded submission. One per (quiz, student);
// resubmission is rejected.
type Result struct {
	ID          string    `json:"id"`
	QuizID      string    `json:"quiz_id"`
	ClassID     string    `json:"class_id"`
	StudentID   string    `json:"student_id"`
	Score       int       `json:"score"`
	MaxScore    int       `json:"max_score"`
	Percentage  float64   `json:"percentage"`
	Answers     []int     `json:"answers"` // chosen option index per question; -1 = skipped
	SubmittedAt time.Time `json:"submitted_at"` // UTC
}

// StudentResult is a Result enriched with student display info for the
// teacher's result list.
type StudentResult struct {
	Result
	StudentName string `json:"student_name"`
}

// RankingEntry is one row of a class leaderboard, ordered by average
// percentage then total score.
type RankingEntry struct {
	Rank              int     `json:"rank"`
	StudentID         string  `json:"student_id"`
	StudentName       string  `json:"student_name"`
	QuizzesTaken      int     `json:"quizzes_taken"`
	TotalScore        int     `json:"total_score"`
	AveragePercentage float64 `json:"average_percentage"`
}

// NewQuiz contains information needed to create a new Quiz.
type NewQuiz struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	TimeLimit   int        `json:"time_limit" validate:"min=0"`
	Questions   []Question `json:"questions" validate:"required,min=1"`
}

func (nq *NewQuiz) Validate() error {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	return core.Validate.Struct(nq)
}

// UpdateQuiz defines what information may be provided to modify an existing Quiz.
type UpdateQuiz struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TimeLimit   *int       `json:"time_limit"`
	Questions   []Question `json:"questions"`
	IsActive    *bool      `json:"is_active"`
}

func (uq *UpdateQuiz) Validate(orig Quiz) error {
	if title := core.CleanString(uq.Title); title != "" {
		uq.Title = title
	} else {
		uq.Title = orig.Title
	}
	uq.Description = core.CleanString(uq.Description)

	if uq.Questions == nil {
		uq.Questions = orig.Questions
	}
	return core.Validate.Struct(uq)
}

// Submission is a student's answer sheet for a quiz.
type Submission struct {
	Answers []int `json:"answers" validate:"required,min=1"`
}

func (s Submission) Validate() error { return core.Validate.Struct(s) }
