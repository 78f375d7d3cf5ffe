package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasa/backend/core/class"
)

type classRow struct {
	ID           string    `db:"id"`
	TeacherID    string    `db:"teacher_id"`
	Name         string    `db:"name"`
	Subject      string    `db:"subject"`
	Description  string    `db:"description"`
	IsActive     bool      `db:"is_active"`
	StudentCount int       `db:"student_count"`
	QuizCount    int       `db:"quiz_count"`
	AverageScore float64   `db:"average_score"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (row classRow) toClass() class.Class { return class.Class(row) }

type joinRequestRow struct {
	ID          string      `db:"id"`
	ClassID     string      `db:"class_id"`
	StudentID   string      `db:"student_id"`
	Status      string      `db:"status"`
	Reason      string      `db:"reason"`
	RequestedAt time.Time   `db:"requested_at"`
	ProcessedAt null.Time   `db:"processed_at"`
	ProcessedBy null.String `db:"processed_by"`
}

func (row joinRequestRow) toJoinRequest() class.JoinRequest {
	return class.JoinRequest{
		ID:          row.ID,
		ClassID:     row.ClassID,
		StudentID:   row.StudentID,
		Status:      class.JoinRequestStatus(row.Status),
		Reason:      row.Reason,
		RequestedAt: row.RequestedAt,
		ProcessedAt: row.ProcessedAt.Time,
		ProcessedBy: row.ProcessedBy.String,
	}
}

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sql.DB) class.Repository {
	return &classRepository{db: sqlx.NewDb(db, "postgres")}
}

// classes

func (repo *classRepository) CheckClassUniqueness(teacherID, name, subject string, excludedClasses ...class.Class) error {
	query := `SELECT EXISTS (SELECT 1 FROM class WHERE teacher_id = ? AND name = ? AND subject = ?)`
	args := []interface{}{teacherID, name, subject}
	if len(excludedClasses) > 0 {
		exclIDs := make([]string, len(excludedClasses))
		for i, cls := range excludedClasses {
			exclIDs[i] = cls.ID
		}
		query = `SELECT EXISTS (SELECT 1 FROM class WHERE teacher_id = ? AND name = ? AND subject = ? AND id NOT IN (?))`
		var err error
		if query, args, err = sqlx.In(query, teacherID, name, subject, exclIDs); err != nil {
			return errors.Wrap(err, "checking class uniqueness")
		}
	}
	var exists bool
	if err := repo.db.Get(&exists, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking class uniqueness")
	}
	if exists {
		return class.ErrClassExists
	}
	return nil
}

func (repo *classRepository) CreateClass(cls class.Class) (class.Class, error) {
	query := `
		INSERT INTO class (id, teacher_id, name, subject, description, is_active,
		                   student_count, quiz_count, average_score, created_at, updated_at)
		VALUES (:id, :teacher_id, :name, :subject, :description, :is_active,
		        :student_count, :quiz_count, :average_score, :created_at, :updated_at)`
	if _, err := repo.db.NamedExec(query, classRow(cls)); err != nil {
		return class.Class{}, errors.Wrap(err, "creating class")
	}
	return cls, nil
}

func (repo *classRepository) GetClassByID(id string) (class.Class, error) {
	var row classRow
	if err := repo.db.Get(&row, `SELECT * FROM class WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return class.Class{}, class.ErrNotFound
		}
		return class.Class{}, errors.Wrap(err, "getting class")
	}
	return row.toClass(), nil
}

func (repo *classRepository) GetTeacherClass(classID, teacherID string) (class.Class, error) {
	var row classRow
	err := repo.db.Get(&row, `SELECT * FROM class WHERE id = $1 AND teacher_id = $2`, classID, teacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return class.Class{}, class.ErrNotFound
		}
		return class.Class{}, errors.Wrap(err, "getting class")
	}
	return row.toClass(), nil
}

func (repo *classRepository) queryClasses(query string, args ...interface{}) ([]class.Class, error) {
	var rows []classRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, len(rows))
	for i, row := range rows {
		classes[i] = row.toClass()
	}
	return classes, nil
}

func (repo *classRepository) QueryClassesByTeacher(teacherID string) ([]class.Class, error) {
	return repo.queryClasses(`SELECT * FROM class WHERE teacher_id = $1 ORDER BY created_at`, teacherID)
}

func (repo *classRepository) QueryClassesByStudent(studentID string) ([]class.Class, error) {
	query := `
		SELECT c.* FROM class c
		JOIN enrollment e ON e.class_id = c.id
		WHERE e.student_id = $1 AND e.is_active AND c.is_active
		ORDER BY c.created_at`
	return repo.queryClasses(query, studentID)
}

func (repo *classRepository) UpdateClass(cls class.Class, isActive *bool) (class.Class, error) {
	orig, err := repo.GetClassByID(cls.ID)
	if err != nil {
		return class.Class{}, err
	}
	if isActive != nil {
		cls.IsActive = *isActive
	} else {
		cls.IsActive = orig.IsActive
	}
	cls.TeacherID = orig.TeacherID
	cls.CreatedAt = orig.CreatedAt

	query := `
		UPDATE class
		SET name = :name, subject = :subject, description = :description, is_active = :is_active,
		    student_count = :student_count, quiz_count = :quiz_count, average_score = :average_score,
		    updated_at = :updated_at
		WHERE id = :id`
	if _, err = repo.db.NamedExec(query, classRow(cls)); err != nil {
		return class.Class{}, errors.Wrap(err, "updating class")
	}
	return cls, nil
}

// join codes

func (repo *classRepository) CreateJoinCode(jc class.JoinCode) (class.JoinCode, error) {
	query := `
		INSERT INTO join_code (id, class_id, code, usage_count, max_usage, is_active, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.Exec(query, jc.ID, jc.ClassID, jc.Code, jc.UsageCount, jc.MaxUsage, jc.IsActive, jc.CreatedAt, jc.ExpiresAt)
	if err != nil {
		return class.JoinCode{}, errors.Wrap(err, "creating join code")
	}
	return jc, nil
}

func (repo *classRepository) getJoinCodeWhere(clause string, args ...interface{}) (class.JoinCode, error) {
	var jc class.JoinCode
	err := repo.db.QueryRowx(`
		SELECT id, class_id, code, usage_count, max_usage, is_active, created_at, expires_at
		FROM join_code WHERE `+clause, args...).
		Scan(&jc.ID, &jc.ClassID, &jc.Code, &jc.UsageCount, &jc.MaxUsage, &jc.IsActive, &jc.CreatedAt, &jc.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return class.JoinCode{}, class.ErrCodeNotFound
		}
		return class.JoinCode{}, errors.Wrap(err, "getting join code")
	}
	return jc, nil
}

func (repo *classRepository) GetActiveJoinCodeByClass(classID string) (class.JoinCode, error) {
	return repo.getJoinCodeWhere(`class_id = $1 AND is_active ORDER BY created_at DESC LIMIT 1`, classID)
}

func (repo *classRepository) GetActiveJoinCodeByValue(code string) (class.JoinCode, error) {
	return repo.getJoinCodeWhere(`code = $1 AND is_active`, code)
}

func (repo *classRepository) DeactivateJoinCode(id string) error {
	if _, err := repo.db.Exec(`UPDATE join_code SET is_active = FALSE WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deactivating join code")
	}
	return nil
}

func (repo *classRepository) DeactivateClassJoinCodes(classID string) error {
	if _, err := repo.db.Exec(`UPDATE join_code SET is_active = FALSE WHERE class_id = $1`, classID); err != nil {
		return errors.Wrap(err, "deactivating join codes")
	}
	return nil
}

// ConsumeJoinCode increments the usage counter in a single conditional
// update; the WHERE clause is the whole consumption rule, so two racing
// submits cannot both take the last usage.
func (repo *classRepository) ConsumeJoinCode(id string, now time.Time) (class.JoinCode, error) {
	var jc class.JoinCode
	err := repo.db.QueryRowx(`
		UPDATE join_code SET usage_count = usage_count + 1
		WHERE id = $1 AND is_active AND expires_at > $2 AND usage_count < max_usage
		RETURNING id, class_id, code, usage_count, max_usage, is_active, created_at, expires_at`, id, now).
		Scan(&jc.ID, &jc.ClassID, &jc.Code, &jc.UsageCount, &jc.MaxUsage, &jc.IsActive, &jc.CreatedAt, &jc.ExpiresAt)
	if err == nil {
		return jc, nil
	}
	if err != sql.ErrNoRows {
		return class.JoinCode{}, errors.Wrap(err, "consuming join code")
	}

	// no eligible row: classify why
	jc, err = repo.getJoinCodeWhere(`id = $1 AND is_active`, id)
	if err != nil {
		return class.JoinCode{}, err
	}
	if jc.Expired(now) {
		return class.JoinCode{}, class.ErrCodeExpired
	}
	return class.JoinCode{}, class.ErrCodeUsageExceeded
}

// enrollments

func (repo *classRepository) GetEnrollment(classID, studentID string) (class.Enrollment, error) {
	var enr class.Enrollment
	err := repo.db.QueryRowx(`
		SELECT id, class_id, student_id, is_active, enrolled_at, updated_at
		FROM enrollment WHERE class_id = $1 AND student_id = $2`, classID, studentID).
		Scan(&enr.ID, &enr.ClassID, &enr.StudentID, &enr.IsActive, &enr.EnrolledAt, &enr.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return class.Enrollment{}, class.ErrEnrollmentNotFound
		}
		return class.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return enr, nil
}

func (repo *classRepository) CreateEnrollment(enr class.Enrollment) (class.Enrollment, error) {
	query := `
		INSERT INTO enrollment (id, class_id, student_id, is_active, enrolled_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.Exec(query, enr.ID, enr.ClassID, enr.StudentID, enr.IsActive, enr.EnrolledAt, enr.UpdatedAt)
	if err != nil {
		return class.Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	return enr, nil
}

func (repo *classRepository) SetEnrollmentActive(classID, studentID string, active bool) (class.Enrollment, error) {
	_, err := repo.db.Exec(`
		UPDATE enrollment SET is_active = $3, updated_at = $4
		WHERE class_id = $1 AND student_id = $2`, classID, studentID, active, time.Now().UTC())
	if err != nil {
		return class.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	return repo.GetEnrollment(classID, studentID)
}

func (repo *classRepository) CountActiveEnrollments(classID string) (int, error) {
	var count int
	err := repo.db.Get(&count, `SELECT COUNT(*) FROM enrollment WHERE class_id = $1 AND is_active`, classID)
	if err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return count, nil
}

func (repo *classRepository) QueryActiveEnrollments(classID string) ([]class.Enrollment, error) {
	rows, err := repo.db.Queryx(`
		SELECT id, class_id, student_id, is_active, enrolled_at, updated_at
		FROM enrollment WHERE class_id = $1 AND is_active ORDER BY enrolled_at`, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	defer func() { _ = rows.Close() }()

	var enrs []class.Enrollment
	for rows.Next() {
		var enr class.Enrollment
		if err = rows.Scan(&enr.ID, &enr.ClassID, &enr.StudentID, &enr.IsActive, &enr.EnrolledAt, &enr.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "querying enrollments")
		}
		enrs = append(enrs, enr)
	}
	return enrs, rows.Err()
}

// join requests

func (repo *classRepository) getJoinRequestWhere(clause string, args ...interface{}) (class.JoinRequest, error) {
	var row joinRequestRow
	if err := repo.db.Get(&row, `SELECT * FROM join_request WHERE `+clause, args...); err != nil {
		if err == sql.ErrNoRows {
			return class.JoinRequest{}, class.ErrRequestNotFound
		}
		return class.JoinRequest{}, errors.Wrap(err, "getting join request")
	}
	return row.toJoinRequest(), nil
}

func (repo *classRepository) GetJoinRequestByID(id string) (class.JoinRequest, error) {
	return repo.getJoinRequestWhere(`id = $1`, id)
}

func (repo *classRepository) GetLatestJoinRequest(classID, studentID string) (class.JoinRequest, error) {
	return repo.getJoinRequestWhere(
		`class_id = $1 AND student_id = $2 ORDER BY requested_at DESC LIMIT 1`, classID, studentID)
}

func (repo *classRepository) QueryPendingJoinRequests(classID string) ([]class.JoinRequest, error) {
	var rows []joinRequestRow
	err := repo.db.Select(&rows, `
		SELECT * FROM join_request
		WHERE class_id = $1 AND status = $2 ORDER BY requested_at`, classID, class.JoinRequestPending)
	if err != nil {
		return nil, errors.Wrap(err, "querying join requests")
	}
	reqs := make([]class.JoinRequest, len(rows))
	for i, row := range rows {
		reqs[i] = row.toJoinRequest()
	}
	return reqs, nil
}

func (repo *classRepository) CreateJoinRequest(req class.JoinRequest) (class.JoinRequest, error) {
	query := `
		INSERT INTO join_request (id, class_id, student_id, status, reason, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.Exec(query, req.ID, req.ClassID, req.StudentID, req.Status, req.Reason, req.RequestedAt)
	if err != nil {
		return class.JoinRequest{}, errors.Wrap(err, "creating join request")
	}
	return req, nil
}

func (repo *classRepository) UpdateJoinRequest(req class.JoinRequest) (class.JoinRequest, error) {
	query := `
		UPDATE join_request
		SET status = $2, reason = $3, processed_at = $4, processed_by = $5
		WHERE id = $1`
	res, err := repo.db.Exec(query, req.ID, req.Status, req.Reason,
		null.NewTime(req.ProcessedAt, !req.ProcessedAt.IsZero()),
		null.NewString(req.ProcessedBy, req.ProcessedBy != ""))
	if err != nil {
		return class.JoinRequest{}, errors.Wrap(err, "updating join request")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return class.JoinRequest{}, class.ErrRequestNotFound
	}
	return req, nil
}

func (repo *classRepository) DeleteJoinRequest(id string) error {
	if _, err := repo.db.Exec(`DELETE FROM join_request WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting join request")
	}
	return nil
}

func (repo *classRepository) ApproveStudentJoinRequests(classID, studentID, processedBy string) error {
	_, err := repo.db.Exec(`
		UPDATE join_request
		SET status = $3, processed_at = $4, processed_by = $5
		WHERE class_id = $1 AND student_id = $2 AND status = $6`,
		classID, studentID, class.JoinRequestApproved, time.Now().UTC(), processedBy, class.JoinRequestPending)
	if err != nil {
		return errors.Wrap(err, "approving join requests")
	}
	return nil
}
