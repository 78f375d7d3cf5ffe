package class

import (
	"time"

	"github.com/darasa/backend/core"
)

// Class is owned by a single teacher. Name+Subject are unique per teacher.
// StudentCount, QuizCount and AverageScore are denormalized; StudentCount is
// recomputed from active enrollments on every membership change.
type Class struct {
	ID           string    `json:"id"`
	TeacherID    string    `json:"teacher_id"`
	Name         string    `json:"name"`
	Subject      string    `json:"subject"`
	Description  string    `json:"description,omitempty"`
	IsActive     bool      `json:"is_active"`
	StudentCount int       `json:"student_count"`
	QuizCount    int       `json:"quiz_count"`
	AverageScore float64   `json:"average_score"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// Enrollment is the one logical (class, student) membership row.
// It is soft-deactivated, never deleted; re-joining reactivates it.
type Enrollment struct {
	ID         string    `json:"id"`
	ClassID    string    `json:"class_id"`
	StudentID  string    `json:"student_id"`
	IsActive   bool      `json:"is_active"`
	EnrolledAt time.Time `json:"enrolled_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"`  // UTC
}

// JoinCode is a short-lived shared secret a teacher hands out so students
// can request enrollment. At most one is active per class at any time.
type JoinCode struct {
	ID         string    `json:"id"`
	ClassID    string    `json:"class_id"`
	Code       string    `json:"code"`
	UsageCount int       `json:"usage_count"`
	MaxUsage   int       `json:"max_usage"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	ExpiresAt  time.Time `json:"expires_at"` // UTC
}

func (jc JoinCode) Expired(now time.Time) bool { return now.After(jc.ExpiresAt) }
func (jc JoinCode) Exhausted() bool            { return jc.UsageCount >= jc.MaxUsage }

func (jc JoinCode) RemainingTime(now time.Time) time.Duration {
	if jc.Expired(now) {
		return 0
	}
	return jc.ExpiresAt.Sub(now).Round(time.Second)
}

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

// JoinRequest is a student's pending ask to enroll, requiring teacher
// approval. At most one pending request per (class, student).
type JoinRequest struct {
	ID          string            `json:"id"`
	ClassID     string            `json:"class_id"`
	StudentID   string            `json:"student_id"`
	Status      JoinRequestStatus `json:"status"`
	Reason      string            `json:"reason,omitempty"` // rejection reason
	RequestedAt time.Time         `json:"requested_at"`     // UTC
	ProcessedAt time.Time         `json:"processed_at,omitempty"`
	ProcessedBy string            `json:"processed_by,omitempty"`
}

// ClassInfo is the class metadata shown to a student during a join attempt.
type ClassInfo struct {
	ClassID      string `json:"class_id"`
	Name         string `json:"name"`
	Subject      string `json:"subject"`
	TeacherName  string `json:"teacher_name"`
	StudentCount int    `json:"student_count"`
}

// PendingRequest is a JoinRequest enriched with student display info for
// the teacher's approval list.
type PendingRequest struct {
	JoinRequest
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
}

// RosterEntry is an active class member with student display info.
type RosterEntry struct {
	StudentID   string    `json:"student_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	EnrolledAt  time.Time `json:"enrolled_at"`
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name        string `json:"name" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
	Description string `json:"description"`
}

func (nc *NewClass) Validate(teacherID string, svc Service) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Subject = core.CleanString(nc.Subject)
	nc.Description = core.CleanString(nc.Description)

	if err := core.Validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckUniqueness(teacherID, nc.Name, nc.Subject)
}

// UpdateClass defines what information may be provided to modify an existing Class.
type UpdateClass struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

func (uc *UpdateClass) Validate(orig Class, svc Service) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}

	if subject := core.CleanString(uc.Subject); subject != "" {
		uc.Subject = subject
	} else {
		uc.Subject = orig.Subject
	}
	uc.Description = core.CleanString(uc.Description)

	if uc.Name == orig.Name && uc.Subject == orig.Subject {
		return nil
	}
	return svc.CheckUniqueness(orig.TeacherID, uc.Name, uc.Subject, orig)
}

// JoinResult is the outcome of a student's join attempt: either an
// immediate (re)enrollment or a pending request awaiting approval.
type JoinResult struct {
	Enrolled bool         `json:"enrolled"`
	Request  *JoinRequest `json:"request,omitempty"`
	Info     ClassInfo    `json:"class_info"`
}
