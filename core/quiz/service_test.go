package quiz_test

import (
	"testing"

	"github.com/darasa/backend/core"
	"github.com/darasa/backend/core/account"
	"github.com/darasa/backend/core/class"
	"github.com/darasa/backend/core/quiz"
	"github.com/darasa/backend/services/email"
	"github.com/darasa/backend/storage/database/dummy"
	"github.com/darasa/backend/tests"
)

type testEnv struct {
	svc       quiz.Service
	repo      quiz.Repository
	classRepo class.Repository
	acctRepo  account.Repository
	classSvc  class.Service
	teacher   account.Account
	student   account.Account
	student2  account.Account
	classroom class.Class
}

func setup(t *testing.T) *testEnv {
	conf := core.NewTestConfig()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewQuizRepository(db)
	classRepo := dummydb.NewClassRepository(db)
	acctRepo := dummydb.NewAccountRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock()
	acctSvc := account.NewServiceMock(acctRepo, mailSvc, conf)
	classSvc := class.NewService(classRepo, acctSvc, mailSvc, conf)
	svc := quiz.NewService(repo, classSvc, acctSvc)

	teacher := testutil.CreateAccount(t, acctRepo, "Ms. Ada", "msada1", "ada@test.cd", "", account.TeacherRoles, true)
	student := testutil.CreateAccount(t, acctRepo, "Hero Kabeya", "herokb", "hero@test.cd", "", account.StudentRoles, true)
	student2 := testutil.CreateAccount(t, acctRepo, "Awa Mwamba", "awamwa", "awa@test.cd", "", account.StudentRoles, true)
	classroom := testutil.CreateClass(t, classRepo, teacher.ID, "Algebra I", "Math")
	testutil.CreateEnrollment(t, classRepo, classroom.ID, student.ID, true)
	testutil.CreateEnrollment(t, classRepo, classroom.ID, student2.ID, true)

	return &testEnv{
		svc:       svc,
		repo:      repo,
		classRepo: classRepo,
		acctRepo:  acctRepo,
		classSvc:  classSvc,
		teacher:   teacher,
		student:   student,
		student2:  student2,
		classroom: classroom,
	}
}

func sampleQuestions() []quiz.Question {
	return []quiz.Question{
		{Text: "2 + 2 = ?", Options: []string{"3", "4", "5"}, CorrectOption: 1, Points: 2},
		{Text: "3 x 3 = ?", Options: []string{"6", "9"}, CorrectOption: 1, Points: 3},
		{Text: "10 / 2 = ?", Options: []string{"5", "2"}, CorrectOption: 0, Points: 5},
	}
}

func Test_service_Create(t *testing.T) {
	env := setup(t)

	q, err := env.svc.Create(env.classroom.ID, env.teacher.ID, quiz.NewQuiz{
		Title:     "Arithmetic",
		Questions: sampleQuestions(),
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if !q.IsActive || q.ClassID != env.classroom.ID || q.MaxScore() != 10 {
		t.Errorf("quiz = %+v", q)
	}

	cls, _ := env.classRepo.GetClassByID(env.classroom.ID)
	if cls.QuizCount != 1 {
		t.Errorf("QuizCount = %d; want 1", cls.QuizCount)
	}

	// only the owning teacher can create
	if _, err = env.svc.Create(env.classroom.ID, env.student.ID, quiz.NewQuiz{
		Title:     "Nope",
		Questions: sampleQuestions(),
	}); err != class.ErrNotFound {
		t.Errorf("err = %v; want %v", err, class.ErrNotFound)
	}
}

func Test_service_GetForStudent(t *testing.T) {
	env := setup(t)
	q := testutil.CreateQuiz(t, env.repo, env.classroom.ID, "Arithmetic", sampleQuestions())

	t.Run("strips correct options", func(t *testing.T) {
		view, err := env.svc.GetForStudent(q.ID, env.student.ID)
		if err != nil {
			t.Fatalf("GetForStudent() failed: %v", err)
		}
		if len(view.Questions) != 3 {
			t.Fatalf("len(Questions) = %d; want 3", len(view.Questions))
		}
		for i, qn := range view.Questions {
			if len(qn.Options) != len(q.Questions[i].Options) || qn.Points != q.Questions[i].Points {
				t.Errorf("question %d = %+v", i, qn)
			}
		}
	})

	t.Run("not enrolled", func(t *testing.T) {
		outsider := testutil.CreateAccount(t, env.acctRepo, "Zed", "zedout", "zed@test.cd", "", account.StudentRoles, true)
		if _, err := env.svc.GetForStudent(q.ID, outsider.ID); err != quiz.ErrNotEnrolled {
			t.Errorf("err = %v; want %v", err, quiz.ErrNotEnrolled)
		}
	})

	t.Run("archived quiz is hidden from students", func(t *testing.T) {
		inactive := false
		if _, err := env.svc.Update(q.ID, env.teacher.ID, quiz.UpdateQuiz{
			Title:     q.Title,
			Questions: q.Questions,
			IsActive:  &inactive,
		}); err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		if _, err := env.svc.GetForStudent(q.ID, env.student.ID); err != quiz.ErrNotFound {
			t.Errorf("err = %v; want %v", err, quiz.ErrNotFound)
		}
		// the teacher still sees it
		if _, err := env.svc.GetOwned(q.ID, env.teacher.ID); err != nil {
			t.Errorf("GetOwned() failed: %v", err)
		}
		cls, _ := env.classRepo.GetClassByID(env.classroom.ID)
		if cls.QuizCount != 0 {
			t.Errorf("QuizCount = %d; want 0", cls.QuizCount)
		}
	})
}

func Test_service_SubmitResult(t *testing.T) {
	env := setup(t)
	q := testutil.CreateQuiz(t, env.repo, env.classroom.ID, "Arithmetic", sampleQuestions())

	t.Run("grades against correct options", func(t *testing.T) {
		res, err := env.svc.SubmitResult(q.ID, env.student.ID, quiz.Submission{Answers: []int{1, 0, 0}})
		if err != nil {
			t.Fatalf("SubmitResult() failed: %v", err)
		}
		// first and third right: 2 + 5 of 10
		if res.Score != 7 || res.MaxScore != 10 || res.Percentage != 70 {
			t.Errorf("result = score %d/%d (%.1f%%); want 7/10 (70%%)", res.Score, res.MaxScore, res.Percentage)
		}
	})

	t.Run("resubmission is rejected", func(t *testing.T) {
		if _, err := env.svc.SubmitResult(q.ID, env.student.ID, quiz.Submission{Answers: []int{1, 1, 0}}); err != quiz.ErrResultExists {
			t.Errorf("err = %v; want %v", err, quiz.ErrResultExists)
		}
	})

	t.Run("short answer sheet pads with skips", func(t *testing.T) {
		res, err := env.svc.SubmitResult(q.ID, env.student2.ID, quiz.Submission{Answers: []int{1}})
		if err != nil {
			t.Fatalf("SubmitResult() failed: %v", err)
		}
		if res.Score != 2 || res.Percentage != 20 {
			t.Errorf("result = score %d (%.1f%%); want 2 (20%%)", res.Score, res.Percentage)
		}
		if len(res.Answers) != 3 || res.Answers[1] != -1 || res.Answers[2] != -1 {
			t.Errorf("Answers = %v; want [1 -1 -1]", res.Answers)
		}
	})

	t.Run("class average refreshed", func(t *testing.T) {
		cls, _ := env.classRepo.GetClassByID(env.classroom.ID)
		if cls.AverageScore != 45 { // (70 + 20) / 2
			t.Errorf("AverageScore = %.1f; want 45", cls.AverageScore)
		}
	})
}

func Test_service_Ranking(t *testing.T) {
	env := setup(t)
	q1 := testutil.CreateQuiz(t, env.repo, env.classroom.ID, "Quiz 1", sampleQuestions())
	q2 := testutil.CreateQuiz(t, env.repo, env.classroom.ID, "Quiz 2", sampleQuestions())

	// student: 70% then 100%; student2: 100% then 50%
	mustSubmit(t, env, q1.ID, env.student.ID, []int{1, 0, 0})
	mustSubmit(t, env, q2.ID, env.student.ID, []int{1, 1, 0})
	mustSubmit(t, env, q1.ID, env.student2.ID, []int{1, 1, 0})
	mustSubmit(t, env, q2.ID, env.student2.ID, []int{0, 0, 0}) // only Q3 right, 5/10

	ranking, err := env.svc.Ranking(env.classroom.ID)
	if err != nil {
		t.Fatalf("Ranking() failed: %v", err)
	}
	if len(ranking) != 2 {
		t.Fatalf("len(ranking) = %d; want 2", len(ranking))
	}
	first, second := ranking[0], ranking[1]
	if first.StudentID != env.student.ID || first.Rank != 1 || first.AveragePercentage != 85 || first.TotalScore != 17 {
		t.Errorf("first = %+v; want student at 85%% with 17 points", first)
	}
	if second.StudentID != env.student2.ID || second.Rank != 2 || second.AveragePercentage != 75 {
		t.Errorf("second = %+v; want student2 at 75%%", second)
	}
	if first.StudentName != "Hero Kabeya" || first.QuizzesTaken != 2 {
		t.Errorf("first = %+v", first)
	}
}

func Test_service_StudentResults(t *testing.T) {
	env := setup(t)
	q := testutil.CreateQuiz(t, env.repo, env.classroom.ID, "Quiz 1", sampleQuestions())
	mustSubmit(t, env, q.ID, env.student.ID, []int{1, 1, 0})

	results, err := env.svc.StudentResults(env.classroom.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StudentResults() failed: %v", err)
	}
	if len(results) != 1 || results[0].QuizID != q.ID {
		t.Errorf("results = %+v", results)
	}

	// teacher-side listing carries student names
	sres, err := env.svc.QuizResults(q.ID, env.teacher.ID)
	if err != nil {
		t.Fatalf("QuizResults() failed: %v", err)
	}
	if len(sres) != 1 || sres[0].StudentName != "Hero Kabeya" {
		t.Errorf("results = %+v", sres)
	}
}

func mustSubmit(t *testing.T, env *testEnv, quizID, studentID string, answers []int) quiz.Result {
	t.Helper()
	res, err := env.svc.SubmitResult(quizID, studentID, quiz.Submission{Answers: answers})
	if err != nil {
		t.Fatalf("SubmitResult() failed: %v", err)
	}
	return res
}
