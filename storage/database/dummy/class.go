package dummydb

import (
	"sort"
	"time"

	"github.com/darasa/backend/core/class"
)

type classRepository struct {
	db *classTable
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db.class}
}

// classes

func (repo *classRepository) CheckClassUniqueness(teacherID, name, subject string, excludedClasses ...class.Class) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, cls := range repo.db.classes {
		if cls.TeacherID != teacherID || cls.Name != name || cls.Subject != subject {
			continue
		}
		excluded := false
		for _, excl := range excludedClasses {
			if excl.ID == cls.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return class.ErrClassExists
		}
	}
	return nil
}

func (repo *classRepository) CreateClass(cls class.Class) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) GetClassByID(id string) (class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return *cls, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) GetTeacherClass(classID, teacherID string) (class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.classes[classID]; ok && cls.TeacherID == teacherID {
		return *cls, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) QueryClassesByTeacher(teacherID string) ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var classes []class.Class
	for _, cls := range repo.db.classes {
		if cls.TeacherID == teacherID {
			classes = append(classes, *cls)
		}
	}
	sortClasses(classes)
	return classes, nil
}

func (repo *classRepository) QueryClassesByStudent(studentID string) ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var classes []class.Class
	for _, enr := range repo.db.enrollments {
		if enr.StudentID != studentID || !enr.IsActive {
			continue
		}
		if cls, ok := repo.db.classes[enr.ClassID]; ok && cls.IsActive {
			classes = append(classes, *cls)
		}
	}
	sortClasses(classes)
	return classes, nil
}

func (repo *classRepository) UpdateClass(cls class.Class, isActive *bool) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.classes[cls.ID]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	if isActive != nil {
		cls.IsActive = *isActive
	} else {
		cls.IsActive = orig.IsActive
	}
	cls.TeacherID = orig.TeacherID
	cls.CreatedAt = orig.CreatedAt

	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

// join codes

func (repo *classRepository) CreateJoinCode(jc class.JoinCode) (class.JoinCode, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.joinCodes[jc.ID] = &jc
	return jc, nil
}

func (repo *classRepository) GetActiveJoinCodeByClass(classID string) (class.JoinCode, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, jc := range repo.db.joinCodes {
		if jc.ClassID == classID && jc.IsActive {
			return *jc, nil
		}
	}
	return class.JoinCode{}, class.ErrCodeNotFound
}

func (repo *classRepository) GetActiveJoinCodeByValue(code string) (class.JoinCode, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, jc := range repo.db.joinCodes {
		if jc.Code == code && jc.IsActive {
			return *jc, nil
		}
	}
	return class.JoinCode{}, class.ErrCodeNotFound
}

func (repo *classRepository) DeactivateJoinCode(id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if jc, ok := repo.db.joinCodes[id]; ok {
		jc.IsActive = false
	}
	return nil
}

func (repo *classRepository) DeactivateClassJoinCodes(classID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, jc := range repo.db.joinCodes {
		if jc.ClassID == classID {
			jc.IsActive = false
		}
	}
	return nil
}

// ConsumeJoinCode checks and increments under the table's write lock, so
// concurrent submits serialize on the last usage.
func (repo *classRepository) ConsumeJoinCode(id string, now time.Time) (class.JoinCode, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	jc, ok := repo.db.joinCodes[id]
	if !ok || !jc.IsActive {
		return class.JoinCode{}, class.ErrCodeNotFound
	}
	if jc.Expired(now) {
		return class.JoinCode{}, class.ErrCodeExpired
	}
	if jc.Exhausted() {
		return class.JoinCode{}, class.ErrCodeUsageExceeded
	}
	jc.UsageCount++
	return *jc, nil
}

// enrollments

func (repo *classRepository) GetEnrollment(classID, studentID string) (class.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.ClassID == classID && enr.StudentID == studentID {
			return *enr, nil
		}
	}
	return class.Enrollment{}, class.ErrEnrollmentNotFound
}

func (repo *classRepository) CreateEnrollment(enr class.Enrollment) (class.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *classRepository) SetEnrollmentActive(classID, studentID string, active bool) (class.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, enr := range repo.db.enrollments {
		if enr.ClassID == classID && enr.StudentID == studentID {
			enr.IsActive = active
			enr.UpdatedAt = time.Now().UTC()
			return *enr, nil
		}
	}
	return class.Enrollment{}, class.ErrEnrollmentNotFound
}

func (repo *classRepository) CountActiveEnrollments(classID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, enr := range repo.db.enrollments {
		if enr.ClassID == classID && enr.IsActive {
			count++
		}
	}
	return count, nil
}

func (repo *classRepository) QueryActiveEnrollments(classID string) ([]class.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var enrs []class.Enrollment
	for _, enr := range repo.db.enrollments {
		if enr.ClassID == classID && enr.IsActive {
			enrs = append(enrs, *enr)
		}
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].EnrolledAt.Before(enrs[j].EnrolledAt) })
	return enrs, nil
}

// join requests

func (repo *classRepository) GetJoinRequestByID(id string) (class.JoinRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if req, ok := repo.db.joinReqs[id]; ok {
		return *req, nil
	}
	return class.JoinRequest{}, class.ErrRequestNotFound
}

func (repo *classRepository) GetLatestJoinRequest(classID, studentID string) (class.JoinRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *class.JoinRequest
	for _, req := range repo.db.joinReqs {
		if req.ClassID != classID || req.StudentID != studentID {
			continue
		}
		if latest == nil || req.RequestedAt.After(latest.RequestedAt) {
			latest = req
		}
	}
	if latest == nil {
		return class.JoinRequest{}, class.ErrRequestNotFound
	}
	return *latest, nil
}

func (repo *classRepository) QueryPendingJoinRequests(classID string) ([]class.JoinRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var reqs []class.JoinRequest
	for _, req := range repo.db.joinReqs {
		if req.ClassID == classID && req.Status == class.JoinRequestPending {
			reqs = append(reqs, *req)
		}
	}
	// oldest first
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].RequestedAt.Before(reqs[j].RequestedAt) })
	return reqs, nil
}

func (repo *classRepository) CreateJoinRequest(req class.JoinRequest) (class.JoinRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.joinReqs[req.ID] = &req
	return req, nil
}

func (repo *classRepository) UpdateJoinRequest(req class.JoinRequest) (class.JoinRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.joinReqs[req.ID]; !ok {
		return class.JoinRequest{}, class.ErrRequestNotFound
	}
	repo.db.joinReqs[req.ID] = &req
	return req, nil
}

func (repo *classRepository) DeleteJoinRequest(id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.joinReqs, id)
	return nil
}

func (repo *classRepository) ApproveStudentJoinRequests(classID, studentID, processedBy string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	now := time.Now().UTC()
	for _, req := range repo.db.joinReqs {
		if req.ClassID == classID && req.StudentID == studentID && req.Status == class.JoinRequestPending {
			req.Status = class.JoinRequestApproved
			req.ProcessedAt = now
			req.ProcessedBy = processedBy
		}
	}
	return nil
}

func sortClasses(classes []class.Class) {
	sort.Slice(classes, func(i, j int) bool { return classes[i].CreatedAt.Before(classes[j].CreatedAt) })
}
