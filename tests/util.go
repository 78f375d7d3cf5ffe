package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/darasa/backend/core/account"
	"github.com/darasa/backend/core/class"
	"github.com/darasa/backend/core/quiz"
)

func CreateAccount(
	t *testing.T,
	repo account.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) account.Account {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	acct := account.Account{
		ID:            uuid.New().String(),
		Name:          name,
		Username:      uname,
		Email:         email,
		Roles:         roles,
		IsActive:      isActive,
		EmailVerified: true,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	}
	if pwd != "" {
		if err := acct.SetPassword(pwd); err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
	}
	acct, err := repo.CreateAccount(acct)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acct
}

func CreateClass(t *testing.T, repo class.Repository, teacherID, name, subject string) class.Class {
	now := time.Now().UTC()
	cls, err := repo.CreateClass(class.Class{
		ID:        uuid.New().String(),
		TeacherID: teacherID,
		Name:      name,
		Subject:   subject,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

func CreateEnrollment(t *testing.T, repo class.Repository, classID, studentID string, isActive bool) class.Enrollment {
	now := time.Now().UTC()
	enr, err := repo.CreateEnrollment(class.Enrollment{
		ID:         uuid.New().String(),
		ClassID:    classID,
		StudentID:  studentID,
		IsActive:   isActive,
		EnrolledAt: now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}
	return enr
}

func CreateJoinCode(
	t *testing.T,
	repo class.Repository,
	classID, code string,
	usageCount, maxUsage int,
	expiresAt time.Time,
) class.JoinCode {
	jc, err := repo.CreateJoinCode(class.JoinCode{
		ID:         uuid.New().String(),
		ClassID:    classID,
		Code:       code,
		UsageCount: usageCount,
		MaxUsage:   maxUsage,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		t.Fatalf("CreateJoinCode() failed: %v", err)
	}
	return jc
}

func CreateJoinRequest(
	t *testing.T,
	repo class.Repository,
	classID, studentID string,
	status class.JoinRequestStatus,
) class.JoinRequest {
	req, err := repo.CreateJoinRequest(class.JoinRequest{
		ID:          uuid.New().String(),
		ClassID:     classID,
		StudentID:   studentID,
		Status:      status,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateJoinRequest() failed: %v", err)
	}
	return req
}

func CreateQuiz(t *testing.T, repo quiz.Repository, classID, title string, qns []quiz.Question) quiz.Quiz {
	now := time.Now().UTC()
	q, err := repo.CreateQuiz(quiz.Quiz{
		ID:        uuid.New().String(),
		ClassID:   classID,
		Title:     title,
		Questions: qns,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return q
}
