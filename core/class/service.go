package class

import (
	"errors"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/darasa/backend/core"
	"github.com/darasa/backend/core/account"
)

var (
	// errors
	ErrNotFound          = errors.New("class not found")
	ErrClassExists       = errors.New("a class with this name and subject already exists")
	ErrCodeNotFound      = errors.New("invalid join code")
	ErrCodeExpired       = errors.New("join code has expired")
	ErrCodeUsageExceeded = errors.New("join code usage limit reached")
	ErrAlreadyEnrolled   = errors.New("already enrolled in this class")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrRequestPending    = errors.New("a join request for this class is already pending")
	ErrRequestNotFound   = errors.New("join request not found")
	ErrInvalidAction     = errors.New("invalid action; expected approve or reject")

	nowFunc = time.Now // mockable

	codeGenMaxAttempts = 5
)

// Resolution actions for ResolveJoinRequest.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

type (
	Repository interface {
		// classes
		CheckClassUniqueness(teacherID, name, subject string, excludedClasses ...Class) error
		CreateClass(cls Class) (Class, error)
		GetClassByID(id string) (Class, error)
		// GetTeacherClass returns ErrNotFound when the class does not exist
		// OR is not owned by the teacher; ownership leaks nothing.
		GetTeacherClass(classID, teacherID string) (Class, error)
		QueryClassesByTeacher(teacherID string) ([]Class, error)
		QueryClassesByStudent(studentID string) ([]Class, error)
		// UpdateClass replaces the stored class with cls; isActive, when
		// non-nil, overrides cls.IsActive.
		UpdateClass(cls Class, isActive *bool) (Class, error)

		// join codes
		CreateJoinCode(jc JoinCode) (JoinCode, error)
		GetActiveJoinCodeByClass(classID string) (JoinCode, error)
		GetActiveJoinCodeByValue(code string) (JoinCode, error)
		DeactivateJoinCode(id string) error
		DeactivateClassJoinCodes(classID string) error
		// ConsumeJoinCode increments the code's usage counter as a single
		// conditional update: it only succeeds while the code is active,
		// unexpired and under its cap, and classifies the failure otherwise
		// (ErrCodeNotFound / ErrCodeExpired / ErrCodeUsageExceeded).
		// Two racing students cannot both consume the last usage.
		ConsumeJoinCode(id string, now time.Time) (JoinCode, error)

		// enrollments
		GetEnrollment(classID, studentID string) (Enrollment, error)
		CreateEnrollment(enr Enrollment) (Enrollment, error)
		SetEnrollmentActive(classID, studentID string, active bool) (Enrollment, error)
		CountActiveEnrollments(classID string) (int, error)
		QueryActiveEnrollments(classID string) ([]Enrollment, error)

		// join requests
		GetJoinRequestByID(id string) (JoinRequest, error)
		// GetLatestJoinRequest returns the most recent request for the
		// (class, student) pair, whatever its status.
		GetLatestJoinRequest(classID, studentID string) (JoinRequest, error)
		QueryPendingJoinRequests(classID string) ([]JoinRequest, error)
		CreateJoinRequest(req JoinRequest) (JoinRequest, error)
		UpdateJoinRequest(req JoinRequest) (JoinRequest, error)
		DeleteJoinRequest(id string) error
		// ApproveStudentJoinRequests marks all of the student's outstanding
		// requests for the class as approved (reactivation path).
		ApproveStudentJoinRequests(classID, studentID, processedBy string) error
	}

	// AccountDirectory is the slice of the account service the class
	// service needs for display info and notifications.
	AccountDirectory interface {
		GetByID(id string) (account.Account, error)
	}

	Service interface {
		// classes
		CheckUniqueness(teacherID, name, subject string, exclClasses ...Class) error
		Create(teacherID string, nc NewClass) (Class, error)
		GetByID(id string) (Class, error)
		GetOwned(classID, teacherID string) (Class, error)
		QueryByTeacher(teacherID string) ([]Class, error)
		QueryByStudent(studentID string) ([]Class, error)
		Update(classID, teacherID string, uc UpdateClass) (Class, error)
		Roster(classID, teacherID string) ([]RosterEntry, error)
		RemoveStudent(classID, studentID, teacherID string) (Class, error)
		UpdateQuizStats(classID string, quizCount int, avgScore float64) error

		// enrollment manager
		IssueJoinCode(classID, teacherID string) (JoinCode, error)
		ActiveJoinCode(classID, teacherID string) (JoinCode, error)
		ValidateJoinCode(code, studentID string) (ClassInfo, error)
		SubmitJoinRequest(code, studentID string) (JoinResult, error)
		ListJoinRequests(classID, teacherID string) ([]PendingRequest, error)
		ResolveJoinRequest(classID, requestID, action, teacherID, reason string) (JoinRequest, error)

		IsEnrolled(classID, studentID string) bool
	}

	service struct {
		repo     Repository
		accounts AccountDirectory
		mailSvc  core.EmailService
		conf     *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, accounts AccountDirectory, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:     repo,
		accounts: accounts,
		mailSvc:  mailSvc,
		conf:     conf,
	}
}

// Classes

func (svc *service) CheckUniqueness(teacherID, name, subject string, exclClasses ...Class) error {
	if err := svc.repo.CheckClassUniqueness(teacherID, name, subject, exclClasses...); err != nil {
		if err == ErrClassExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(teacherID string, nc NewClass) (Class, error) {
	now := nowFunc().UTC()
	cls := Class{
		ID:          uuid.New().String(),
		TeacherID:   teacherID,
		Name:        nc.Name,
		Subject:     nc.Subject,
		Description: nc.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateClass(cls)
}

func (svc *service) GetByID(id string) (Class, error) {
	return svc.repo.GetClassByID(id)
}

func (svc *service) GetOwned(classID, teacherID string) (Class, error) {
	return svc.repo.GetTeacherClass(classID, teacherID)
}

func (svc *service) QueryByTeacher(teacherID string) ([]Class, error) {
	return svc.repo.QueryClassesByTeacher(teacherID)
}

func (svc *service) QueryByStudent(studentID string) ([]Class, error) {
	return svc.repo.QueryClassesByStudent(studentID)
}

func (svc *service) Update(classID, teacherID string, uc UpdateClass) (Class, error) {
	cls, err := svc.repo.GetTeacherClass(classID, teacherID)
	if err != nil {
		return Class{}, err
	}
	cls.Name = uc.Name
	cls.Subject = uc.Subject
	cls.Description = uc.Description
	cls.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateClass(cls, uc.IsActive)
}

func (svc *service) Roster(classID, teacherID string) ([]RosterEntry, error) {
	if _, err := svc.repo.GetTeacherClass(classID, teacherID); err != nil {
		return nil, err
	}
	enrs, err := svc.repo.QueryActiveEnrollments(classID)
	if err != nil {
		return nil, err
	}
	roster := make([]RosterEntry, 0, len(enrs))
	for _, enr := range enrs {
		entry := RosterEntry{StudentID: enr.StudentID, EnrolledAt: enr.EnrolledAt}
		if acct, err := svc.accounts.GetByID(enr.StudentID); err == nil {
			entry.Name = acct.Name
			entry.Email = acct.Email
		}
		roster = append(roster, entry)
	}
	return roster, nil
}

func (svc *service) RemoveStudent(classID, studentID, teacherID string) (Class, error) {
	cls, err := svc.repo.GetTeacherClass(classID, teacherID)
	if err != nil {
		return Class{}, err
	}
	if _, err = svc.repo.SetEnrollmentActive(classID, studentID, false); err != nil {
		return Class{}, err
	}
	return svc.recountStudents(cls)
}

// UpdateQuizStats refreshes the class's denormalized quiz counters.
func (svc *service) UpdateQuizStats(classID string, quizCount int, avgScore float64) error {
	cls, err := svc.repo.GetClassByID(classID)
	if err != nil {
		return err
	}
	cls.QuizCount = quizCount
	cls.AverageScore = avgScore
	cls.UpdatedAt = nowFunc().UTC()
	_, err = svc.repo.UpdateClass(cls, nil)
	return err
}

func (svc *service) IsEnrolled(classID, studentID string) bool {
	enr, err := svc.repo.GetEnrollment(classID, studentID)
	return err == nil && enr.IsActive
}

// recountStudents refreshes the class's student counter from a fresh count
// of active enrollments.
func (svc *service) recountStudents(cls Class) (Class, error) {
	count, err := svc.repo.CountActiveEnrollments(cls.ID)
	if err != nil {
		return Class{}, err
	}
	cls.StudentCount = count
	cls.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateClass(cls, nil)
}

// Enrollment manager

// IssueJoinCode deactivates any active codes for the class and issues a
// fresh one, unique among all currently-active codes.
func (svc *service) IssueJoinCode(classID, teacherID string) (JoinCode, error) {
	cls, err := svc.repo.GetTeacherClass(classID, teacherID)
	if err != nil {
		return JoinCode{}, err
	}
	if err = svc.repo.DeactivateClassJoinCodes(cls.ID); err != nil {
		return JoinCode{}, err
	}

	var code string
	for attempt := 0; ; attempt++ {
		if attempt >= codeGenMaxAttempts {
			return JoinCode{}, errCodeGenExhausted
		}
		if code, err = generateCode(); err != nil {
			return JoinCode{}, err
		}
		if _, err = svc.repo.GetActiveJoinCodeByValue(code); err == ErrCodeNotFound {
			break // unique among active codes
		} else if err != nil {
			return JoinCode{}, err
		}
	}

	now := nowFunc().UTC()
	jc := JoinCode{
		ID:        uuid.New().String(),
		ClassID:   cls.ID,
		Code:      code,
		MaxUsage:  svc.conf.JoinCode.MaxUsage,
		IsActive:  true,
		CreatedAt: now,
		ExpiresAt: now.Add(svc.conf.JoinCode.TTL),
	}
	return svc.repo.CreateJoinCode(jc)
}

// ActiveJoinCode returns the class's current active, unexpired code.
func (svc *service) ActiveJoinCode(classID, teacherID string) (JoinCode, error) {
	cls, err := svc.repo.GetTeacherClass(classID, teacherID)
	if err != nil {
		return JoinCode{}, err
	}
	jc, err := svc.repo.GetActiveJoinCodeByClass(cls.ID)
	if err != nil {
		return JoinCode{}, err
	}
	if jc.Expired(nowFunc().UTC()) {
		_ = svc.repo.DeactivateJoinCode(jc.ID)
		return JoinCode{}, ErrCodeNotFound
	}
	return jc, nil
}

// ValidateJoinCode checks a code on behalf of a student without consuming
// a usage, so the frontend can show the class before the student commits.
func (svc *service) ValidateJoinCode(code, studentID string) (ClassInfo, error) {
	jc, err := svc.checkCode(code)
	if err != nil {
		return ClassInfo{}, err
	}

	if enr, err := svc.repo.GetEnrollment(jc.ClassID, studentID); err == nil && enr.IsActive {
		return ClassInfo{}, ErrAlreadyEnrolled
	} else if err != nil && err != ErrEnrollmentNotFound {
		return ClassInfo{}, err
	}
	if req, err := svc.repo.GetLatestJoinRequest(jc.ClassID, studentID); err == nil && req.Status == JoinRequestPending {
		return ClassInfo{}, ErrRequestPending
	} else if err != nil && err != ErrRequestNotFound {
		return ClassInfo{}, err
	}

	return svc.classInfo(jc.ClassID)
}

// SubmitJoinRequest consumes one usage of the code and creates a pending
// join request. A student holding an inactive enrollment is instead
// reactivated on the spot, bypassing approval and consuming nothing.
func (svc *service) SubmitJoinRequest(code, studentID string) (JoinResult, error) {
	jc, err := svc.checkCode(code)
	if err != nil {
		return JoinResult{}, err
	}

	enr, err := svc.repo.GetEnrollment(jc.ClassID, studentID)
	switch {
	case err == nil && enr.IsActive:
		return JoinResult{}, ErrAlreadyEnrolled

	case err == nil: // inactive: reactivate, skip the request workflow
		if _, err = svc.repo.SetEnrollmentActive(jc.ClassID, studentID, true); err != nil {
			return JoinResult{}, err
		}
		if err = svc.repo.ApproveStudentJoinRequests(jc.ClassID, studentID, studentID); err != nil {
			return JoinResult{}, err
		}
		cls, err := svc.repo.GetClassByID(jc.ClassID)
		if err != nil {
			return JoinResult{}, err
		}
		if _, err = svc.recountStudents(cls); err != nil {
			return JoinResult{}, err
		}
		info, err := svc.classInfo(jc.ClassID)
		if err != nil {
			return JoinResult{}, err
		}
		return JoinResult{Enrolled: true, Info: info}, nil

	case err != ErrEnrollmentNotFound:
		return JoinResult{}, err
	}

	// no enrollment: a pending request blocks, a rejected one is replaced
	if prev, err := svc.repo.GetLatestJoinRequest(jc.ClassID, studentID); err == nil {
		switch prev.Status {
		case JoinRequestPending:
			return JoinResult{}, ErrRequestPending
		case JoinRequestRejected:
			if err = svc.repo.DeleteJoinRequest(prev.ID); err != nil {
				return JoinResult{}, err
			}
		}
	} else if err != ErrRequestNotFound {
		return JoinResult{}, err
	}

	if _, err = svc.repo.ConsumeJoinCode(jc.ID, nowFunc().UTC()); err != nil {
		return JoinResult{}, err
	}

	req, err := svc.repo.CreateJoinRequest(JoinRequest{
		ID:          uuid.New().String(),
		ClassID:     jc.ClassID,
		StudentID:   studentID,
		Status:      JoinRequestPending,
		RequestedAt: nowFunc().UTC(),
	})
	if err != nil {
		return JoinResult{}, err
	}
	info, err := svc.classInfo(jc.ClassID)
	if err != nil {
		return JoinResult{}, err
	}
	return JoinResult{Request: &req, Info: info}, nil
}

func (svc *service) ListJoinRequests(classID, teacherID string) ([]PendingRequest, error) {
	if _, err := svc.repo.GetTeacherClass(classID, teacherID); err != nil {
		return nil, err
	}
	reqs, err := svc.repo.QueryPendingJoinRequests(classID)
	if err != nil {
		return nil, err
	}
	pending := make([]PendingRequest, 0, len(reqs))
	for _, req := range reqs {
		pr := PendingRequest{JoinRequest: req}
		if acct, err := svc.accounts.GetByID(req.StudentID); err == nil {
			pr.StudentName = acct.Name
			pr.StudentEmail = acct.Email
		}
		pending = append(pending, pr)
	}
	return pending, nil
}

// ResolveJoinRequest approves or rejects a pending request on behalf of the
// owning teacher.
func (svc *service) ResolveJoinRequest(classID, requestID, action, teacherID, reason string) (JoinRequest, error) {
	if action != ActionApprove && action != ActionReject {
		return JoinRequest{}, ErrInvalidAction
	}

	cls, err := svc.repo.GetTeacherClass(classID, teacherID)
	if err != nil {
		return JoinRequest{}, err
	}
	req, err := svc.repo.GetJoinRequestByID(requestID)
	if err != nil {
		return JoinRequest{}, err
	}
	if req.ClassID != cls.ID || req.Status != JoinRequestPending {
		return JoinRequest{}, ErrRequestNotFound
	}

	now := nowFunc().UTC()
	if action == ActionApprove {
		if _, err = svc.repo.GetEnrollment(cls.ID, req.StudentID); err == ErrEnrollmentNotFound {
			_, err = svc.repo.CreateEnrollment(Enrollment{
				ID:         uuid.New().String(),
				ClassID:    cls.ID,
				StudentID:  req.StudentID,
				IsActive:   true,
				EnrolledAt: now,
				UpdatedAt:  now,
			})
		} else if err == nil {
			_, err = svc.repo.SetEnrollmentActive(cls.ID, req.StudentID, true)
		}
		if err != nil {
			return JoinRequest{}, err
		}
		if _, err = svc.recountStudents(cls); err != nil {
			return JoinRequest{}, err
		}
		req.Status = JoinRequestApproved
	} else {
		req.Status = JoinRequestRejected
		req.Reason = reason
	}
	req.ProcessedAt = now
	req.ProcessedBy = teacherID

	req, err = svc.repo.UpdateJoinRequest(req)
	if err != nil {
		return JoinRequest{}, err
	}
	svc.notifyStudent(cls, req)
	return req, nil
}

// checkCode looks up an active code by value and applies the expiry and
// usage-cap rules, read-only. An expired code is opportunistically
// deactivated on the way out.
func (svc *service) checkCode(code string) (JoinCode, error) {
	jc, err := svc.repo.GetActiveJoinCodeByValue(core.CleanString(code))
	if err != nil {
		return JoinCode{}, err
	}
	if jc.Expired(nowFunc().UTC()) {
		_ = svc.repo.DeactivateJoinCode(jc.ID)
		return JoinCode{}, ErrCodeExpired
	}
	if jc.Exhausted() {
		return JoinCode{}, ErrCodeUsageExceeded
	}
	return jc, nil
}

func (svc *service) classInfo(classID string) (ClassInfo, error) {
	cls, err := svc.repo.GetClassByID(classID)
	if err != nil {
		return ClassInfo{}, err
	}
	info := ClassInfo{
		ClassID:      cls.ID,
		Name:         cls.Name,
		Subject:      cls.Subject,
		StudentCount: cls.StudentCount,
	}
	if teacher, err := svc.accounts.GetByID(cls.TeacherID); err == nil {
		info.TeacherName = teacher.Name
	}
	return info, nil
}

func (svc *service) notifyStudent(cls Class, req JoinRequest) {
	acct, err := svc.accounts.GetByID(req.StudentID)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject:      "Your join request was " + string(req.Status),
		TemplateName: "join-request-resolved",
		TemplateData: struct {
			Name      string
			ClassName string
			Subject   string
			Status    string
			Reason    string
		}{acct.Name, cls.Name, cls.Subject, string(req.Status), req.Reason},
	})
}
