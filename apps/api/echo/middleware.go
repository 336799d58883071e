package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ministerio/escalas/core/schedule"
	"github.com/ministerio/escalas/core/user"
)

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		if usr.IsAdmin() {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// ctxUserOrAdminMiddleware loads the member identified by the :id param as the context object.
// Members only see themselves; anyone else is reported as not found.
func ctxUserOrAdminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx)
			if err != nil {
				return err
			}

			if ctx.Param("id") == ctxUsr.ID || ctxUsr.IsAdmin() {
				if usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set(contextObjectKey, usr)
					return next(ctx)
				} else if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

// scheduleMiddleware loads the schedule identified by the :id param as the context object.
func scheduleMiddleware(svc *schedule.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			s, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return err
			}
			ctx.Set(contextObjectKey, s)
			return next(ctx)
		}
	}
}

func getContextObject[T any](ctx echo.Context) (T, error) {
	obj, ok := ctx.Get(contextObjectKey).(T)
	if !ok {
		return obj, errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return obj, nil
}
