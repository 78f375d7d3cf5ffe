package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/darasa/backend/apps/api/echo"
	"github.com/darasa/backend/core/account"
	"github.com/darasa/backend/core/class"
	"github.com/darasa/backend/services/email"
	"github.com/darasa/backend/tests"
)

func Test_classApi_generateJoinCode(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateAccount(t, acctRepo, "Teacher", "teacher", "teacher@test.cd", "", account.TeacherRoles, true)
	student := testutil.CreateAccount(t, acctRepo, "Hero", "herooo", "hero@test.cd", "", account.StudentRoles, true)
	other := testutil.CreateAccount(t, acctRepo, "Other", "other1", "other@test.cd", "", account.TeacherRoles, true)
	cls := testutil.CreateClass(t, classRepo, teacher.ID, "Algebra I", "Math")

	path := "/v1/classes/" + cls.ID + "/generate-join-code"

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Teacher required", token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "Not the owner", token: getToken(t, other), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Message: "class not found"}),
		},
		{
			name: "Unknown class", path: "/v1/classes/lost/generate-join-code", token: getToken(t, teacher),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Message: "class not found"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		if tt.path == "" {
			tt.path = path
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Code generated", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, teacher))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %v", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var respData echoapi.JoinCodeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if !respData.Success || len(respData.JoinCode) != 6 || respData.UsageCount != 0 || respData.MaxUsage != 50 {
			t.Errorf("failed! data = %+v", respData)
		}
		if respData.ExpiresInMinutes < 9 || respData.ExpiresInMinutes > 10 {
			t.Errorf("failed! expiresInMinutes = %v; want ~10", respData.ExpiresInMinutes)
		}
	})

	t.Run("Regenerating replaces the active code", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, teacher))
		app.ServeHTTP(rec, req)

		var newCode echoapi.JoinCodeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &newCode); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/classes/"+cls.ID+"/active-join-code", getToken(t, teacher))
		app.ServeHTTP(rec, req)

		var active echoapi.ActiveJoinCodeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &active); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if !active.HasActiveCode || active.JoinCode != newCode.JoinCode {
			t.Errorf("failed! active = %+v; want code %v", active, newCode.JoinCode)
		}
	})
}

func Test_classApi_activeJoinCode(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateAccount(t, acctRepo, "Teacher", "teacher", "teacher@test.cd", "", account.TeacherRoles, true)
	cls := testutil.CreateClass(t, classRepo, teacher.ID, "Algebra I", "Math")
	teacherToken := getToken(t, teacher)

	path := "/v1/classes/" + cls.ID + "/active-join-code"

	t.Run("No active code", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.ActiveJoinCodeResponse{Success: true, HasActiveCode: false}),
		}, rec)
	})

	t.Run("Active code with remaining time", func(t *testing.T) {
		jc := testutil.CreateJoinCode(t, classRepo, cls.ID, "GOODIE", 3, 50, time.Now().UTC().Add(5*time.Minute))

		req, rec := newAuthRequest(http.MethodGet, path, teacherToken)
		app.ServeHTTP(rec, req)

		var respData echoapi.ActiveJoinCodeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if !respData.HasActiveCode || respData.JoinCode != jc.Code {
			t.Errorf("failed! data = %+v", respData)
		}
		if !strings.HasPrefix(respData.RemainingTime, "4m") && !strings.HasPrefix(respData.RemainingTime, "5m") {
			t.Errorf("failed! remainingTime = %v; want ~5m", respData.RemainingTime)
		}
	})

	t.Run("Expired code reported as absent", func(t *testing.T) {
		// deactivate the live one from the previous subtest first
		if err := classRepo.DeactivateClassJoinCodes(cls.ID); err != nil {
			t.Fatalf("DeactivateClassJoinCodes() failed: %v", err)
		}
		testutil.CreateJoinCode(t, classRepo, cls.ID, "EXPIRD", 0, 50, time.Now().UTC().Add(-time.Minute))

		req, rec := newAuthRequest(http.MethodGet, path, teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.ActiveJoinCodeResponse{Success: true, HasActiveCode: false}),
		}, rec)
	})
}

func Test_classApi_validateJoinCode(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateAccount(t, acctRepo, "Ms. Ada", "msada1", "ada@test.cd", "", account.TeacherRoles, true)
	student := testutil.CreateAccount(t, acctRepo, "Hero", "herooo", "hero@test.cd", "", account.StudentRoles, true)
	enrolled := testutil.CreateAccount(t, acctRepo, "Awa", "awa123", "awa@test.cd", "", account.StudentRoles, true)
	pending := testutil.CreateAccount(t, acctRepo, "Zed", "zed123", "zed@test.cd", "", account.StudentRoles, true)
	cls := testutil.CreateClass(t, classRepo, teacher.ID, "Algebra I", "Math")

	future := time.Now().UTC().Add(10 * time.Minute)
	good := testutil.CreateJoinCode(t, classRepo, cls.ID, "GOODIE", 0, 50, future)
	testutil.CreateEnrollment(t, classRepo, cls.ID, enrolled.ID, true)
	testutil.CreateJoinRequest(t, classRepo, cls.ID, pending.ID, class.JoinRequestPending)

	cls2 := testutil.CreateClass(t, classRepo, teacher.ID, "Algebra II", "Math")
	testutil.CreateJoinCode(t, classRepo, cls2.ID, "EXPIRD", 0, 50, time.Now().UTC().Add(-time.Minute))
	cls3 := testutil.CreateClass(t, classRepo, teacher.ID, "Algebra III", "Math")
	testutil.CreateJoinCode(t, classRepo, cls3.ID, "MAXOUT", 50, 50, future)

	path := func(code string) string { return "/v1/classes/validate-join-code/" + code }
	studentToken := getToken(t, student)

	tests := []httpTest{
		{name: "Auth required", path: path(good.Code), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Student required", path: path(good.Code), token: getToken(t, teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Unknown code", path: path("LOSTIT"), token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Message: "invalid join code"}),
		},
		{
			name: "Expired code", path: path("EXPIRD"), token: studentToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Message: "join code has expired"}),
		},
		{
			name: "Exhausted code", path: path("MAXOUT"), token: studentToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Message: "join code usage limit reached"}),
		},
		{
			name: "Already enrolled", path: path(good.Code), token: getToken(t, enrolled),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Message: "already enrolled in this class"}),
		},
		{
			name: "Request already pending", path: path(good.Code), token: getToken(t, pending),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Message: "a join request for this class is already pending"}),
		},
		{
			name: "Valid code", path: path(good.Code), token: studentToken, wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.ValidateJoinCodeResponse{
				Success: true,
				Valid:   true,
				ClassInfo: class.ClassInfo{
					ClassID:      cls.ID,
					Name:         cls.Name,
					Subject:      cls.Subject,
					TeacherName:  teacher.Name,
					StudentCount: cls.StudentCount,
				},
			}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_classApi_submitJoinRequest(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateAccount(t, acctRepo, "Ms. Ada", "msada1", "ada@test.cd", "", account.TeacherRoles, true)
	student := testutil.CreateAccount(t, acctRepo, "Hero", "herooo", "hero@test.cd", "", account.StudentRoles, true)
	returning := testutil.CreateAccount(t, acctRepo, "Awa", "awa123", "awa@test.cd", "", account.StudentRoles, true)
	cls := testutil.CreateClass(t, classRepo, teacher.ID, "Algebra I", "Math")

	jc := testutil.CreateJoinCode(t, classRepo, cls.ID, "GOODIE", 0, 50, time.Now().UTC().Add(10*time.Minute))
	testutil.CreateEnrollment(t, classRepo, cls.ID, returning.ID, false)

	path := "/v1/classes/join-request"
	studentToken := getToken(t, student)
	body := marchallObj(t, echoapi.JoinRequestRequest{JoinCode: jc.Code})

	t.Run("Required fields", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, studentToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: map[string]string{"joinCode": "this field is required"}}),
		}, rec)
	})

	t.Run("Request submitted", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, studentToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %v", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var respData echoapi.JoinRequestResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if !respData.Success || respData.Enrolled || respData.ClassInfo.ClassID != cls.ID {
			t.Errorf("failed! data = %+v", respData)
		}
		if respData.Message != "Join request submitted; awaiting teacher approval." {
			t.Errorf("failed! message = %v", respData.Message)
		}

		got, err := classRepo.GetActiveJoinCodeByValue(jc.Code)
		if err != nil {
			t.Fatalf("GetActiveJoinCodeByValue() failed: %v", err)
		}
		if got.UsageCount != 1 {
			t.Errorf("failed! usageCount = %v; want 1", got.UsageCount)
		}
	})

	t.Run("Duplicate request rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, studentToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Message: "a join request for this class is already pending"}),
		}, rec)
	})

	t.Run("Former student re-enrolled on the spot", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, returning), body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %v", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var respData echoapi.JoinRequestResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if !respData.Enrolled || respData.Message != "You have been re-enrolled in this class." {
			t.Errorf("failed! data = %+v", respData)
		}
	})
}

func Test_classApi_joinRequests(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateAccount(t, acctRepo, "Ms. Ada", "msada1", "ada@test.cd", "", account.TeacherRoles, true)
	student := testutil.CreateAccount(t, acctRepo, "Hero Kabeya", "herooo", "hero@test.cd", "", account.StudentRoles, true)
	student2 := testutil.CreateAccount(t, acctRepo, "Awa Mwamba", "awa123", "awa@test.cd", "", account.StudentRoles, true)
	cls := testutil.CreateClass(t, classRepo, teacher.ID, "Algebra I", "Math")

	req1 := testutil.CreateJoinRequest(t, classRepo, cls.ID, student.ID, class.JoinRequestPending)
	req2 := testutil.CreateJoinRequest(t, classRepo, cls.ID, student2.ID, class.JoinRequestPending)

	teacherToken := getToken(t, teacher)
	listPath := "/v1/classes/" + cls.ID + "/join-requests"
	resolvePath := func(reqID, action string) string { return listPath + "/" + reqID + "/" + action }

	t.Run("Pending requests listed with student info", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, listPath, teacherToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var respData []class.PendingRequest
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(respData) != 2 {
			t.Fatalf("failed! len = %v; want 2", len(respData))
		}
		if respData[0].ID != req1.ID || respData[0].StudentName != student.Name || respData[0].StudentEmail != student.Email {
			t.Errorf("failed! data = %+v", respData[0])
		}
	})

	t.Run("Unknown action", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, resolvePath(req1.ID, "maybe"), teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: "invalid action; expected approve or reject"}),
		}, rec)
	})

	t.Run("Request approved", func(t *testing.T) {
		emailsvc.ClearSentMessages()

		req, rec := newAuthRequest(http.MethodPost, resolvePath(req1.ID, "approve"), teacherToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var respData class.JoinRequest
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if respData.Status != class.JoinRequestApproved || respData.ProcessedBy != teacher.ID {
			t.Errorf("failed! data = %+v", respData)
		}

		enr, err := classRepo.GetEnrollment(cls.ID, student.ID)
		if err != nil || !enr.IsActive {
			t.Errorf("failed! enrollment = %+v; err %v", enr, err)
		}
		got, _ := classRepo.GetClassByID(cls.ID)
		if got.StudentCount != 1 {
			t.Errorf("failed! studentCount = %v; want 1", got.StudentCount)
		}

		if len(emailsvc.SentMessages) != 1 || !strings.Contains(emailsvc.SentMessages[0].Subject, "approved") {
			t.Errorf("failed! sentMessages = %+v", emailsvc.SentMessages)
		}
	})

	t.Run("Resolved request cannot be resolved again", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, resolvePath(req1.ID, "reject"), teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Message: "join request not found"}),
		}, rec)
	})

	t.Run("Request rejected with a reason", func(t *testing.T) {
		body := marchallObj(t, echoapi.ResolveJoinRequestRequest{Reason: "class is full"})
		req, rec := newAuthRequest(http.MethodPost, resolvePath(req2.ID, "reject"), teacherToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var respData class.JoinRequest
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if respData.Status != class.JoinRequestRejected || respData.Reason != "class is full" {
			t.Errorf("failed! data = %+v", respData)
		}
	})
}

func Test_classApi_roster(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateAccount(t, acctRepo, "Ms. Ada", "msada1", "ada@test.cd", "", account.TeacherRoles, true)
	student := testutil.CreateAccount(t, acctRepo, "Hero Kabeya", "herooo", "hero@test.cd", "", account.StudentRoles, true)
	cls := testutil.CreateClass(t, classRepo, teacher.ID, "Algebra I", "Math")
	testutil.CreateEnrollment(t, classRepo, cls.ID, student.ID, true)

	teacherToken := getToken(t, teacher)

	t.Run("Roster listed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/classes/"+cls.ID+"/roster", teacherToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var respData []class.RosterEntry
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(respData) != 1 || respData[0].StudentID != student.ID || respData[0].Name != student.Name {
			t.Errorf("failed! data = %+v", respData)
		}
	})

	t.Run("Student removed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/classes/"+cls.ID+"/students/"+student.ID, teacherToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		enr, err := classRepo.GetEnrollment(cls.ID, student.ID)
		if err != nil {
			t.Fatalf("GetEnrollment() failed: %v", err)
		}
		if enr.IsActive {
			t.Error("failed! enrollment still active")
		}
	})
}
