package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func adminMiddleware() echo.MiddlewareFunc {
	return portalMiddleware(func(claims Claims) bool { return claims.IsAdmin })
}

func teacherMiddleware() echo.MiddlewareFunc {
	return portalMiddleware(func(claims Claims) bool { return claims.IsTeacher || claims.IsAdmin })
}

func studentMiddleware() echo.MiddlewareFunc {
	return portalMiddleware(func(claims Claims) bool { return claims.IsStudent })
}

func portalMiddleware(allowed func(Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if allowed(claims) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
