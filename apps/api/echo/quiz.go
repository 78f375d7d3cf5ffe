package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasa/backend/core/quiz"
)

type quizApi struct {
	svc quiz.Service
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc quiz.Service) {
	api := quizApi{svc: svc}

	// class-scoped endpoints
	cg := g.Group("/classes/:id", jwt)
	cg.POST("/quizzes", api.create, teacherMiddleware())
	cg.GET("/quizzes", api.queryByClass)
	cg.GET("/my-results", api.myResults, studentMiddleware())
	cg.GET("/ranking", api.ranking)

	qg := g.Group("/quizzes/:id", jwt)
	qg.GET("", api.retrieve)
	qg.PUT("", api.update, teacherMiddleware())
	qg.POST("/submit", api.submit, studentMiddleware())
	qg.GET("/results", api.results, teacherMiddleware())
}

// Handlers

func (api *quizApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data quiz.NewQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	q, err := api.svc.Create(ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return apiError(err)
	}
	return ctx.JSON(http.StatusCreated, q)
}

// queryByClass lists a class's quizzes: full quizzes for the owning
// teacher, active answer-stripped views for an enrolled student.
func (api *quizApi) queryByClass(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if claims.IsTeacher || claims.IsAdmin {
		quizzes, err := api.svc.QueryByClass(ctx.Param("id"), claims.Subject)
		if err != nil {
			return apiError(err)
		}
		if quizzes == nil {
			quizzes = []quiz.Quiz{}
		}
		return ctx.JSON(http.StatusOK, quizzes)
	}

	views, err := api.svc.QueryByClassForStudent(ctx.Param("id"), claims.Subject)
	if err != nil {
		return apiError(err)
	}
	if views == nil {
		views = []quiz.QuizView{}
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if claims.IsTeacher || claims.IsAdmin {
		q, err := api.svc.GetOwned(ctx.Param("id"), claims.Subject)
		if err != nil {
			return apiError(err)
		}
		return ctx.JSON(http.StatusOK, q)
	}

	view, err := api.svc.GetForStudent(ctx.Param("id"), claims.Subject)
	if err != nil {
		return apiError(err)
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *quizApi) update(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	orig, err := api.svc.GetOwned(ctx.Param("id"), claims.Subject)
	if err != nil {
		return apiError(err)
	}

	var data quiz.UpdateQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	if err = data.Validate(orig); err != nil {
		return err
	}

	q, err := api.svc.Update(orig.ID, claims.Subject, data)
	if err != nil {
		return apiError(err)
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data quiz.Submission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	res, err := api.svc.SubmitResult(ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return apiError(err)
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *quizApi) results(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	results, err := api.svc.QuizResults(ctx.Param("id"), claims.Subject)
	if err != nil {
		return apiError(err)
	}
	if results == nil {
		results = []quiz.StudentResult{}
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *quizApi) myResults(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	results, err := api.svc.StudentResults(ctx.Param("id"), claims.Subject)
	if err != nil {
		return apiError(err)
	}
	if results == nil {
		results = []quiz.Result{}
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *quizApi) ranking(ctx echo.Context) error {
	ranking, err := api.svc.Ranking(ctx.Param("id"))
	if err != nil {
		return apiError(err)
	}
	if ranking == nil {
		ranking = []quiz.RankingEntry{}
	}
	return ctx.JSON(http.StatusOK, ranking)
}
