package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/darasa/backend/core/account"
	"github.com/darasa/backend/core/quiz"
	"github.com/darasa/backend/tests"
)

func quizBody(t *testing.T, title string) []byte {
	return marchallObj(t, quiz.NewQuiz{
		Title: title,
		Questions: []quiz.Question{
			{Text: "2 + 2 = ?", Options: []string{"3", "4"}, CorrectOption: 1, Points: 2},
			{Text: "3 x 3 = ?", Options: []string{"6", "9"}, CorrectOption: 1, Points: 3},
		},
	})
}

func Test_quizApi_create(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateAccount(t, acctRepo, "Ms. Ada", "msada1", "ada@test.cd", "", account.TeacherRoles, true)
	student := testutil.CreateAccount(t, acctRepo, "Hero", "herooo", "hero@test.cd", "", account.StudentRoles, true)
	cls := testutil.CreateClass(t, classRepo, teacher.ID, "Algebra I", "Math")

	path := "/v1/classes/" + cls.ID + "/quizzes"
	teacherToken := getToken(t, teacher)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Teacher required", token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "Required fields", token: teacherToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: map[string]string{
				"title":     "this field is required",
				"questions": "this field is required",
			}}),
		},
		{
			name: "Questions need at least 2 options", token: teacherToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, quiz.NewQuiz{
				Title:     "Broken",
				Questions: []quiz.Question{{Text: "Pick one", Options: []string{"only"}, Points: 1}},
			}),
			wantData: marchallObj(t, httpErr{Message: map[string]string{"questions": "a question needs at least 2 options"}}),
		},
		{
			name: "Correct option must be in range", token: teacherToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, quiz.NewQuiz{
				Title:     "Broken",
				Questions: []quiz.Question{{Text: "Pick one", Options: []string{"a", "b"}, CorrectOption: 5, Points: 1}},
			}),
			wantData: marchallObj(t, httpErr{Message: map[string]string{"questions": "correct option is out of range"}}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = path

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Quiz created", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, teacherToken, quizBody(t, "Arithmetic"))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var respData quiz.Quiz
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if respData.ClassID != cls.ID || !respData.IsActive || len(respData.Questions) != 2 {
			t.Errorf("failed! data = %+v", respData)
		}
	})
}

func Test_quizApi_studentFlow(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateAccount(t, acctRepo, "Ms. Ada", "msada1", "ada@test.cd", "", account.TeacherRoles, true)
	student := testutil.CreateAccount(t, acctRepo, "Hero Kabeya", "herooo", "hero@test.cd", "", account.StudentRoles, true)
	outsider := testutil.CreateAccount(t, acctRepo, "Zed", "zed123", "zed@test.cd", "", account.StudentRoles, true)
	cls := testutil.CreateClass(t, classRepo, teacher.ID, "Algebra I", "Math")
	testutil.CreateEnrollment(t, classRepo, cls.ID, student.ID, true)

	q := testutil.CreateQuiz(t, quizRepo, cls.ID, "Arithmetic", []quiz.Question{
		{Text: "2 + 2 = ?", Options: []string{"3", "4"}, CorrectOption: 1, Points: 2},
		{Text: "3 x 3 = ?", Options: []string{"6", "9"}, CorrectOption: 1, Points: 3},
	})

	studentToken := getToken(t, student)

	t.Run("Listed quizzes hide correct options", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/classes/"+cls.ID+"/quizzes", studentToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		if strings.Contains(rec.Body.String(), "correct_option") {
			t.Errorf("failed! correct options leaked: %v", rec.Body.String())
		}
		var respData []quiz.QuizView
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(respData) != 1 || respData[0].ID != q.ID {
			t.Errorf("failed! data = %+v", respData)
		}
	})

	t.Run("Outsider cannot list quizzes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/classes/"+cls.ID+"/quizzes", getToken(t, outsider))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Message: "not enrolled in this class"}),
		}, rec)
	})

	t.Run("Submission graded", func(t *testing.T) {
		body := marchallObj(t, quiz.Submission{Answers: []int{1, 0}})
		req, rec := newAuthRequest(http.MethodPost, "/v1/quizzes/"+q.ID+"/submit", studentToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var respData quiz.Result
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if respData.Score != 2 || respData.MaxScore != 5 || respData.Percentage != 40 {
			t.Errorf("failed! data = %+v; want 2/5 (40%%)", respData)
		}
	})

	t.Run("Resubmission rejected", func(t *testing.T) {
		body := marchallObj(t, quiz.Submission{Answers: []int{1, 1}})
		req, rec := newAuthRequest(http.MethodPost, "/v1/quizzes/"+q.ID+"/submit", studentToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Message: "quiz already submitted"}),
		}, rec)
	})

	t.Run("Teacher sees results with student names", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/quizzes/"+q.ID+"/results", getToken(t, teacher))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var respData []quiz.StudentResult
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(respData) != 1 || respData[0].StudentName != student.Name {
			t.Errorf("failed! data = %+v", respData)
		}
	})

	t.Run("Student sees own results", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/classes/"+cls.ID+"/my-results", studentToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var respData []quiz.Result
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(respData) != 1 || respData[0].QuizID != q.ID {
			t.Errorf("failed! data = %+v", respData)
		}
	})

	t.Run("Ranking", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/classes/"+cls.ID+"/ranking", studentToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var respData []quiz.RankingEntry
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(respData) != 1 || respData[0].Rank != 1 || respData[0].StudentID != student.ID {
			t.Errorf("failed! data = %+v", respData)
		}
	})
}
