package sqlxrepos

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasa/backend/core/quiz"
)

type quizRow struct {
	ID          string    `db:"id"`
	ClassID     string    `db:"class_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	TimeLimit   int       `db:"time_limit"`
	Questions   []byte    `db:"questions"` // JSONB
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row quizRow) toQuiz() (quiz.Quiz, error) {
	q := quiz.Quiz{
		ID:          row.ID,
		ClassID:     row.ClassID,
		Title:       row.Title,
		Description: row.Description,
		TimeLimit:   row.TimeLimit,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Questions, &q.Questions); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "decoding questions")
	}
	return q, nil
}

func newQuizRow(q quiz.Quiz) (quizRow, error) {
	qns, err := json.Marshal(q.Questions)
	if err != nil {
		return quizRow{}, errors.Wrap(err, "encoding questions")
	}
	return quizRow{
		ID:          q.ID,
		ClassID:     q.ClassID,
		Title:       q.Title,
		Description: q.Description,
		TimeLimit:   q.TimeLimit,
		Questions:   qns,
		IsActive:    q.IsActive,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}, nil
}

type resultRow struct {
	ID          string    `db:"id"`
	QuizID      string    `db:"quiz_id"`
	ClassID     string    `db:"class_id"`
	StudentID   string    `db:"student_id"`
	Score       int       `db:"score"`
	MaxScore    int       `db:"max_score"`
	Percentage  float64   `db:"percentage"`
	Answers     []byte    `db:"answers"` // JSONB
	SubmittedAt time.Time `db:"submitted_at"`
}

func (row resultRow) toResult() (quiz.Result, error) {
	res := quiz.Result{
		ID:          row.ID,
		QuizID:      row.QuizID,
		ClassID:     row.ClassID,
		StudentID:   row.StudentID,
		Score:       row.Score,
		MaxScore:    row.MaxScore,
		Percentage:  row.Percentage,
		SubmittedAt: row.SubmittedAt,
	}
	if err := json.Unmarshal(row.Answers, &res.Answers); err != nil {
		return quiz.Result{}, errors.Wrap(err, "decoding answers")
	}
	return res, nil
}

type quizRepository struct {
	db *sqlx.DB
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *sql.DB) quiz.Repository {
	return &quizRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *quizRepository) CreateQuiz(q quiz.Quiz) (quiz.Quiz, error) {
	row, err := newQuizRow(q)
	if err != nil {
		return quiz.Quiz{}, err
	}
	query := `
		INSERT INTO quiz (id, class_id, title, description, time_limit, questions, is_active, created_at, updated_at)
		VALUES (:id, :class_id, :title, :description, :time_limit, :questions, :is_active, :created_at, :updated_at)`
	if _, err = repo.db.NamedExec(query, row); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "creating quiz")
	}
	return q, nil
}

func (repo *quizRepository) GetQuizByID(id string) (quiz.Quiz, error) {
	var row quizRow
	if err := repo.db.Get(&row, `SELECT * FROM quiz WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return quiz.Quiz{}, quiz.ErrNotFound
		}
		return quiz.Quiz{}, errors.Wrap(err, "getting quiz")
	}
	return row.toQuiz()
}

func (repo *quizRepository) QueryQuizzesByClass(classID string, activeOnly bool) ([]quiz.Quiz, error) {
	query := `SELECT * FROM quiz WHERE class_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY created_at`

	var rows []quizRow
	if err := repo.db.Select(&rows, query, classID); err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}
	quizzes := make([]quiz.Quiz, len(rows))
	for i, row := range rows {
		q, err := row.toQuiz()
		if err != nil {
			return nil, err
		}
		quizzes[i] = q
	}
	return quizzes, nil
}

func (repo *quizRepository) UpdateQuiz(q quiz.Quiz, isActive *bool) (quiz.Quiz, error) {
	orig, err := repo.GetQuizByID(q.ID)
	if err != nil {
		return quiz.Quiz{}, err
	}
	if isActive != nil {
		q.IsActive = *isActive
	} else {
		q.IsActive = orig.IsActive
	}
	q.ClassID = orig.ClassID
	q.CreatedAt = orig.CreatedAt

	row, err := newQuizRow(q)
	if err != nil {
		return quiz.Quiz{}, err
	}
	query := `
		UPDATE quiz
		SET title = :title, description = :description, time_limit = :time_limit,
		    questions = :questions, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	if _, err = repo.db.NamedExec(query, row); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "updating quiz")
	}
	return q, nil
}

func (repo *quizRepository) CountActiveQuizzes(classID string) (int, error) {
	var count int
	err := repo.db.Get(&count, `SELECT COUNT(*) FROM quiz WHERE class_id = $1 AND is_active`, classID)
	if err != nil {
		return 0, errors.Wrap(err, "counting quizzes")
	}
	return count, nil
}

func (repo *quizRepository) CreateResult(res quiz.Result) (quiz.Result, error) {
	answers, err := json.Marshal(res.Answers)
	if err != nil {
		return quiz.Result{}, errors.Wrap(err, "encoding answers")
	}
	query := `
		INSERT INTO result (id, quiz_id, class_id, student_id, score, max_score, percentage, answers, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = repo.db.Exec(query, res.ID, res.QuizID, res.ClassID, res.StudentID,
		res.Score, res.MaxScore, res.Percentage, answers, res.SubmittedAt)
	if err != nil {
		return quiz.Result{}, errors.Wrap(err, "creating result")
	}
	return res, nil
}

func (repo *quizRepository) GetResult(quizID, studentID string) (quiz.Result, error) {
	var row resultRow
	err := repo.db.Get(&row, `SELECT * FROM result WHERE quiz_id = $1 AND student_id = $2`, quizID, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return quiz.Result{}, quiz.ErrNotFound
		}
		return quiz.Result{}, errors.Wrap(err, "getting result")
	}
	return row.toResult()
}

func (repo *quizRepository) queryResults(query string, args ...interface{}) ([]quiz.Result, error) {
	var rows []resultRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	results := make([]quiz.Result, len(rows))
	for i, row := range rows {
		res, err := row.toResult()
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

func (repo *quizRepository) QueryResultsByQuiz(quizID string) ([]quiz.Result, error) {
	return repo.queryResults(`SELECT * FROM result WHERE quiz_id = $1 ORDER BY submitted_at`, quizID)
}

func (repo *quizRepository) QueryResultsByStudent(classID, studentID string) ([]quiz.Result, error) {
	return repo.queryResults(
		`SELECT * FROM result WHERE class_id = $1 AND student_id = $2 ORDER BY submitted_at`, classID, studentID)
}

func (repo *quizRepository) QueryResultsByClass(classID string) ([]quiz.Result, error) {
	return repo.queryResults(`SELECT * FROM result WHERE class_id = $1 ORDER BY submitted_at`, classID)
}
