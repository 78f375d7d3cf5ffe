package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasa/backend/core"
	"github.com/darasa/backend/core/class"
)

type classApi struct {
	svc class.Service
}

func registerClassAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc class.Service) {
	api := classApi{svc: svc}

	cg := g.Group("/classes", jwt)

	cg.POST("", api.create, teacherMiddleware())
	cg.GET("", api.query)

	// student join flow
	cg.GET("/validate-join-code/:code", api.validateJoinCode, studentMiddleware())
	cg.POST("/join-request", api.submitJoinRequest, studentMiddleware())

	// detail endpoints
	dg := cg.Group("/:id")
	dg.GET("", api.retrieve, teacherMiddleware())
	dg.PUT("", api.update, teacherMiddleware())
	dg.GET("/roster", api.roster, teacherMiddleware())
	dg.DELETE("/students/:studentID", api.removeStudent, teacherMiddleware())

	// enrollment manager (teacher side)
	dg.POST("/generate-join-code", api.generateJoinCode, teacherMiddleware())
	dg.GET("/active-join-code", api.activeJoinCode, teacherMiddleware())
	dg.GET("/join-requests", api.listJoinRequests, teacherMiddleware())
	dg.POST("/join-requests/:requestID/:action", api.resolveJoinRequest, teacherMiddleware())
}

// Handlers

func (api *classApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data class.NewClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err = data.Validate(claims.Subject, api.svc); err != nil {
		return err
	}

	cls, err := api.svc.Create(claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

// query returns the caller's classes: owned classes for a teacher, active
// enrolled classes for a student.
func (api *classApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var classes []class.Class
	if claims.IsTeacher || claims.IsAdmin {
		classes, err = api.svc.QueryByTeacher(claims.Subject)
	} else {
		classes, err = api.svc.QueryByStudent(claims.Subject)
	}
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cls, err := api.svc.GetOwned(ctx.Param("id"), claims.Subject)
	if err != nil {
		return apiError(err)
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) update(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	orig, err := api.svc.GetOwned(ctx.Param("id"), claims.Subject)
	if err != nil {
		return apiError(err)
	}

	var data class.UpdateClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err = data.Validate(orig, api.svc); err != nil {
		return err
	}

	cls, err := api.svc.Update(orig.ID, claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) roster(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	roster, err := api.svc.Roster(ctx.Param("id"), claims.Subject)
	if err != nil {
		return apiError(err)
	}
	return ctx.JSON(http.StatusOK, roster)
}

func (api *classApi) removeStudent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if _, err = api.svc.RemoveStudent(ctx.Param("id"), ctx.Param("studentID"), claims.Subject); err != nil {
		return apiError(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) generateJoinCode(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	jc, err := api.svc.IssueJoinCode(ctx.Param("id"), claims.Subject)
	if err != nil {
		return apiError(err)
	}
	return ctx.JSON(http.StatusCreated, JoinCodeResponse{
		Success:          true,
		JoinCode:         jc.Code,
		ExpiresAt:        jc.ExpiresAt,
		ExpiresInMinutes: int(time.Until(jc.ExpiresAt).Round(time.Minute).Minutes()),
		UsageCount:       jc.UsageCount,
		MaxUsage:         jc.MaxUsage,
	})
}

func (api *classApi) activeJoinCode(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	jc, err := api.svc.ActiveJoinCode(ctx.Param("id"), claims.Subject)
	if err != nil {
		if errors.Cause(err) == class.ErrCodeNotFound {
			return ctx.JSON(http.StatusOK, ActiveJoinCodeResponse{Success: true, HasActiveCode: false})
		}
		return apiError(err)
	}
	return ctx.JSON(http.StatusOK, ActiveJoinCodeResponse{
		Success:       true,
		HasActiveCode: true,
		JoinCode:      jc.Code,
		ExpiresAt:     jc.ExpiresAt,
		RemainingTime: jc.RemainingTime(time.Now().UTC()).String(),
	})
}

func (api *classApi) validateJoinCode(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	info, err := api.svc.ValidateJoinCode(ctx.Param("code"), claims.Subject)
	if err != nil {
		return apiError(err)
	}
	return ctx.JSON(http.StatusOK, ValidateJoinCodeResponse{Success: true, Valid: true, ClassInfo: info})
}

func (api *classApi) submitJoinRequest(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data JoinRequestRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinRequestRequest")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	result, err := api.svc.SubmitJoinRequest(data.JoinCode, claims.Subject)
	if err != nil {
		return apiError(err)
	}

	msg := "Join request submitted; awaiting teacher approval."
	if result.Enrolled {
		msg = "You have been re-enrolled in this class."
	}
	return ctx.JSON(http.StatusCreated, JoinRequestResponse{
		Success:   true,
		Message:   msg,
		Enrolled:  result.Enrolled,
		ClassInfo: result.Info,
	})
}

func (api *classApi) listJoinRequests(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	reqs, err := api.svc.ListJoinRequests(ctx.Param("id"), claims.Subject)
	if err != nil {
		return apiError(err)
	}
	if reqs == nil {
		reqs = []class.PendingRequest{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *classApi) resolveJoinRequest(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data ResolveJoinRequestRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResolveJoinRequestRequest")
	}

	req, err := api.svc.ResolveJoinRequest(
		ctx.Param("id"), ctx.Param("requestID"), ctx.Param("action"), claims.Subject, core.CleanString(data.Reason))
	if err != nil {
		return apiError(err)
	}
	return ctx.JSON(http.StatusOK, req)
}

type (
	JoinCodeResponse struct {
		Success          bool      `json:"success"`
		JoinCode         string    `json:"joinCode"`
		ExpiresAt        time.Time `json:"expiresAt"`
		ExpiresInMinutes int       `json:"expiresInMinutes"`
		UsageCount       int       `json:"usageCount"`
		MaxUsage         int       `json:"maxUsage"`
	}

	ActiveJoinCodeResponse struct {
		Success       bool      `json:"success"`
		HasActiveCode bool      `json:"hasActiveCode"`
		JoinCode      string    `json:"joinCode,omitempty"`
		ExpiresAt     time.Time `json:"expiresAt,omitempty"`
		RemainingTime string    `json:"remainingTime,omitempty"`
	}

	ValidateJoinCodeResponse struct {
		Success   bool            `json:"success"`
		Valid     bool            `json:"valid"`
		ClassInfo class.ClassInfo `json:"classInfo"`
	}

	JoinRequestRequest struct {
		JoinCode string `json:"joinCode" validate:"required"`
	}

	JoinRequestResponse struct {
		Success   bool            `json:"success"`
		Message   string          `json:"message"`
		Enrolled  bool            `json:"enrolled"`
		ClassInfo class.ClassInfo `json:"classInfo"`
	}

	ResolveJoinRequestRequest struct {
		Reason string `json:"reason"`
	}
)

func (jr *JoinRequestRequest) Validate() error {
	jr.JoinCode = core.CleanString(jr.JoinCode)
	return core.Validate.Struct(jr)
}
