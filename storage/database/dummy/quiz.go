package dummydb

import (
	"sort"

	"github.com/darasa/backend/core/quiz"
)

type quizRepository struct {
	db *quizTable
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db.quiz}
}

func (repo *quizRepository) CreateQuiz(q quiz.Quiz) (quiz.Quiz, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.quizzes[q.ID] = &q
	return q, nil
}

func (repo *quizRepository) GetQuizByID(id string) (quiz.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if q, ok := repo.db.quizzes[id]; ok {
		return *q, nil
	}
	return quiz.Quiz{}, quiz.ErrNotFound
}

func (repo *quizRepository) QueryQuizzesByClass(classID string, activeOnly bool) ([]quiz.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var quizzes []quiz.Quiz
	for _, q := range repo.db.quizzes {
		if q.ClassID != classID {
			continue
		}
		if activeOnly && !q.IsActive {
			continue
		}
		quizzes = append(quizzes, *q)
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].CreatedAt.Before(quizzes[j].CreatedAt) })
	return quizzes, nil
}

func (repo *quizRepository) UpdateQuiz(q quiz.Quiz, isActive *bool) (quiz.Quiz, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.quizzes[q.ID]
	if !ok {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	if isActive != nil {
		q.IsActive = *isActive
	} else {
		q.IsActive = orig.IsActive
	}
	q.ClassID = orig.ClassID
	q.CreatedAt = orig.CreatedAt

	repo.db.quizzes[q.ID] = &q
	return q, nil
}

func (repo *quizRepository) CountActiveQuizzes(classID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, q := range repo.db.quizzes {
		if q.ClassID == classID && q.IsActive {
			count++
		}
	}
	return count, nil
}

func (repo *quizRepository) CreateResult(res quiz.Result) (quiz.Result, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.results[res.ID] = &res
	return res, nil
}

func (repo *quizRepository) GetResult(quizID, studentID string) (quiz.Result, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, res := range repo.db.results {
		if res.QuizID == quizID && res.StudentID == studentID {
			return *res, nil
		}
	}
	return quiz.Result{}, quiz.ErrNotFound
}

func (repo *quizRepository) QueryResultsByQuiz(quizID string) ([]quiz.Result, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var results []quiz.Result
	for _, res := range repo.db.results {
		if res.QuizID == quizID {
			results = append(results, *res)
		}
	}
	sortResults(results)
	return results, nil
}

func (repo *quizRepository) QueryResultsByStudent(classID, studentID string) ([]quiz.Result, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var results []quiz.Result
	for _, res := range repo.db.results {
		if res.ClassID == classID && res.StudentID == studentID {
			results = append(results, *res)
		}
	}
	sortResults(results)
	return results, nil
}

func (repo *quizRepository) QueryResultsByClass(classID string) ([]quiz.Result, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var results []quiz.Result
	for _, res := range repo.db.results {
		if res.ClassID == classID {
			results = append(results, *res)
		}
	}
	sortResults(results)
	return results, nil
}

func sortResults(results []quiz.Result) {
	sort.Slice(results, func(i, j int) bool { return results[i].SubmittedAt.Before(results[j].SubmittedAt) })
}
