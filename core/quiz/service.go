package quiz

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/darasa/backend/core/account"
	"github.com/darasa/backend/core/class"
)

var (
	// errors
	ErrNotFound     = errors.New("quiz not found")
	ErrResultExists = errors.New("quiz already submitted")
	ErrNotEnrolled  = errors.New("not enrolled in this class")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateQuiz(q Quiz) (Quiz, error)
		GetQuizByID(id string) (Quiz, error)
		QueryQuizzesByClass(classID string, activeOnly bool) ([]Quiz, error)
		// UpdateQuiz replaces the stored quiz with q; isActive, when non-nil,
		// overrides q.IsActive.
		UpdateQuiz(q Quiz, isActive *bool) (Quiz, error)
		CountActiveQuizzes(classID string) (int, error)

		CreateResult(res Result) (Result, error)
		GetResult(quizID, studentID string) (Result, error)
		QueryResultsByQuiz(quizID string) ([]Result, error)
		QueryResultsByStudent(classID, studentID string) ([]Result, error)
		QueryResultsByClass(classID string) ([]Result, error)
	}

	// ClassDirectory is the slice of the class service the quiz service
	// needs: ownership and membership checks, and the denormalized
	// per-class quiz counters it keeps fresh.
	ClassDirectory interface {
		GetOwned(classID, teacherID string) (class.Class, error)
		IsEnrolled(classID, studentID string) bool
		UpdateQuizStats(classID string, quizCount int, avgScore float64) error
	}

	// AccountDirectory provides student display info.
	AccountDirectory interface {
		GetByID(id string) (account.Account, error)
	}

	Service interface {
		Create(classID, teacherID string, nq NewQuiz) (Quiz, error)
		GetOwned(quizID, teacherID string) (Quiz, error)
		GetForStudent(quizID, studentID string) (QuizView, error)
		QueryByClass(classID, teacherID string) ([]Quiz, error)
		QueryByClassForStudent(classID, studentID string) ([]QuizView, error)
		Update(quizID, teacherID string, uq UpdateQuiz) (Quiz, error)

		SubmitResult(quizID, studentID string, sub Submission) (Result, error)
		QuizResults(quizID, teacherID string) ([]StudentResult, error)
		StudentResults(classID, studentID string) ([]Result, error)
		Ranking(classID string) ([]RankingEntry, error)
	}

	service struct {
		repo     Repository
		classes  ClassDirectory
		accounts AccountDirectory
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, classes ClassDirectory, accounts AccountDirectory) Service {
	return &service{
		repo:     repo,
		classes:  classes,
		accounts: accounts,
	}
}

func (svc *service) Create(classID, teacherID string, nq NewQuiz) (Quiz, error) {
	cls, err := svc.classes.GetOwned(classID, teacherID)
	if err != nil {
		return Quiz{}, err
	}
	now := nowFunc().UTC()
	q, err := svc.repo.CreateQuiz(Quiz{
		ID:          uuid.New().String(),
		ClassID:     cls.ID,
		Title:       nq.Title,
		Description: nq.Description,
		TimeLimit:   nq.TimeLimit,
		Questions:   nq.Questions,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Quiz{}, err
	}
	if err = svc.refreshClassStats(cls.ID); err != nil {
		return Quiz{}, err
	}
	return q, nil
}

// GetOwned returns the quiz if the teacher owns its class.
func (svc *service) GetOwned(quizID, teacherID string) (Quiz, error) {
	q, err := svc.repo.GetQuizByID(quizID)
	if err != nil {
		return Quiz{}, err
	}
	if _, err = svc.classes.GetOwned(q.ClassID, teacherID); err != nil {
		return Quiz{}, ErrNotFound
	}
	return q, nil
}

// GetForStudent returns an active quiz with answers stripped; the student
// must be enrolled in the quiz's class.
func (svc *service) GetForStudent(quizID, studentID string) (QuizView, error) {
	q, err := svc.repo.GetQuizByID(quizID)
	if err != nil {
		return QuizView{}, err
	}
	if !q.IsActive {
		return QuizView{}, ErrNotFound
	}
	if !svc.classes.IsEnrolled(q.ClassID, studentID) {
		return QuizView{}, ErrNotEnrolled
	}
	return q.View(), nil
}

func (svc *service) QueryByClass(classID, teacherID string) ([]Quiz, error) {
	if _, err := svc.classes.GetOwned(classID, teacherID); err != nil {
		return nil, err
	}
	return svc.repo.QueryQuizzesByClass(classID, false)
}

func (svc *service) QueryByClassForStudent(classID, studentID string) ([]QuizView, error) {
	if !svc.classes.IsEnrolled(classID, studentID) {
		return nil, ErrNotEnrolled
	}
	qs, err := svc.repo.QueryQuizzesByClass(classID, true /* activeOnly */)
	if err != nil {
		return nil, err
	}
	views := make([]QuizView, len(qs))
	for i, q := range qs {
		views[i] = q.View()
	}
	return views, nil
}

func (svc *service) Update(quizID, teacherID string, uq UpdateQuiz) (Quiz, error) {
	q, err := svc.GetOwned(quizID, teacherID)
	if err != nil {
		return Quiz{}, err
	}
	q.Title = uq.Title
	q.Description = uq.Description
	q.Questions = uq.Questions
	if uq.TimeLimit != nil {
		q.TimeLimit = *uq.TimeLimit
	}
	q.UpdatedAt = nowFunc().UTC()

	q, err = svc.repo.UpdateQuiz(q, uq.IsActive)
	if err != nil {
		return Quiz{}, err
	}
	// archiving changes the active-quiz counter
	if err = svc.refreshClassStats(q.ClassID); err != nil {
		return Quiz{}, err
	}
	return q, nil
}

// SubmitResult grades the submission against the stored correct options
// and records the result. One result per (quiz, student).
func (svc *service) SubmitResult(quizID, studentID string, sub Submission) (Result, error) {
	q, err := svc.repo.GetQuizByID(quizID)
	if err != nil {
		return Result{}, err
	}
	if !q.IsActive {
		return Result{}, ErrNotFound
	}
	if !svc.classes.IsEnrolled(q.ClassID, studentID) {
		return Result{}, ErrNotEnrolled
	}
	if _, err = svc.repo.GetResult(quizID, studentID); err == nil {
		return Result{}, ErrResultExists
	} else if err != ErrNotFound {
		return Result{}, err
	}

	var score int
	answers := make([]int, len(q.Questions))
	for i, qn := range q.Questions {
		answers[i] = -1
		if i < len(sub.Answers) {
			answers[i] = sub.Answers[i]
		}
		if answers[i] == qn.CorrectOption {
			score += qn.Points
		}
	}
	maxScore := q.MaxScore()
	var pct float64
	if maxScore > 0 {
		pct = float64(score) / float64(maxScore) * 100
	}

	res, err := svc.repo.CreateResult(Result{
		ID:          uuid.New().String(),
		QuizID:      q.ID,
		ClassID:     q.ClassID,
		StudentID:   studentID,
		Score:       score,
		MaxScore:    maxScore,
		Percentage:  pct,
		Answers:     answers,
		SubmittedAt: nowFunc().UTC(),
	})
	if err != nil {
		return Result{}, err
	}
	if err = svc.refreshClassStats(q.ClassID); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (svc *service) QuizResults(quizID, teacherID string) ([]StudentResult, error) {
	if _, err := svc.GetOwned(quizID, teacherID); err != nil {
		return nil, err
	}
	results, err := svc.repo.QueryResultsByQuiz(quizID)
	if err != nil {
		return nil, err
	}
	enriched := make([]StudentResult, 0, len(results))
	for _, res := range results {
		sr := StudentResult{Result: res}
		if acct, err := svc.accounts.GetByID(res.StudentID); err == nil {
			sr.StudentName = acct.Name
		}
		enriched = append(enriched, sr)
	}
	return enriched, nil
}

func (svc *service) StudentResults(classID, studentID string) ([]Result, error) {
	if !svc.classes.IsEnrolled(classID, studentID) {
		return nil, ErrNotEnrolled
	}
	return svc.repo.QueryResultsByStudent(classID, studentID)
}

// Ranking orders a class's students by average percentage, ties broken by
// total score.
func (svc *service) Ranking(classID string) ([]RankingEntry, error) {
	results, err := svc.repo.QueryResultsByClass(classID)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[string]*RankingEntry)
	pctSums := make(map[string]float64)
	for _, res := range results {
		entry, ok := byStudent[res.StudentID]
		if !ok {
			entry = &RankingEntry{StudentID: res.StudentID}
			byStudent[res.StudentID] = entry
		}
		entry.QuizzesTaken++
		entry.TotalScore += res.Score
		pctSums[res.StudentID] += res.Percentage
	}

	ranking := make([]RankingEntry, 0, len(byStudent))
	for id, entry := range byStudent {
		entry.AveragePercentage = pctSums[id] / float64(entry.QuizzesTaken)
		if acct, err := svc.accounts.GetByID(id); err == nil {
			entry.StudentName = acct.Name
		}
		ranking = append(ranking, *entry)
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].AveragePercentage != ranking[j].AveragePercentage {
			return ranking[i].AveragePercentage > ranking[j].AveragePercentage
		}
		return ranking[i].TotalScore > ranking[j].TotalScore
	})
	for i := range ranking {
		ranking[i].Rank = i + 1
	}
	return ranking, nil
}

// refreshClassStats recomputes the class's active quiz count and average
// result percentage.
func (svc *service) refreshClassStats(classID string) error {
	count, err := svc.repo.CountActiveQuizzes(classID)
	if err != nil {
		return err
	}
	results, err := svc.repo.QueryResultsByClass(classID)
	if err != nil {
		return err
	}
	var avg float64
	if len(results) > 0 {
		for _, res := range results {
			avg += res.Percentage
		}
		avg /= float64(len(results))
	}
	return svc.classes.UpdateQuizStats(classID, count, avg)
}
