package quiz

import (
	"github.com/go-playground/validator/v10"

	"github.com/darasa/backend/core"
)

var (
	questionTextTag  = "qntext"
	questionTextText = "question text is required"

	questionOptionsTag  = "qnoptions"
	questionOptionsText = "a question needs at least 2 options"

	questionCorrectTag  = "qncorrect"
	questionCorrectText = "correct option is out of range"

	questionPointsTag  = "qnpoints"
	questionPointsText = "question points must be at least 1"
)

func init() {
	core.Validate.RegisterStructValidation(quizStructValidation, NewQuiz{})
	core.Validate.RegisterStructValidation(quizStructValidation, UpdateQuiz{})
	core.RegisterCustomTranslation(questionTextTag, questionTextText)
	core.RegisterCustomTranslation(questionOptionsTag, questionOptionsText)
	core.RegisterCustomTranslation(questionCorrectTag, questionCorrectText)
	core.RegisterCustomTranslation(questionPointsTag, questionPointsText)
}

// quizStructValidation checks every question of a NewQuiz or UpdateQuiz.
func quizStructValidation(sl validator.StructLevel) {
	var qns []Question
	switch q := sl.Current().Interface().(type) {
	case NewQuiz:
		qns = q.Questions
	case UpdateQuiz:
		qns = q.Questions
	}
	validateQuestions(qns, sl)
}

func validateQuestions(qns []Question, sl validator.StructLevel) {
	reportErr := func(tag string) {
		sl.ReportError(qns, "questions", "Questions", tag, "")
	}
	for _, qn := range qns {
		if core.CleanString(qn.Text) == "" {
			reportErr(questionTextTag)
			return
		}
		if len(qn.Options) < 2 {
			reportErr(questionOptionsTag)
			return
		}
		if qn.CorrectOption < 0 || qn.CorrectOption >= len(qn.Options) {
			reportErr(questionCorrectTag)
			return
		}
		if qn.Points < 1 {
			reportErr(questionPointsTag)
			return
		}
	}
}
