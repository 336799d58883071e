package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ministerio/escalas/core/dashboard"
)

func registerDashboardAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	g.GET("/dashboard", dashboardHandler(deps.DashboardSvc), authed...)
}

func dashboardHandler(svc *dashboard.Service) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		db, err := svc.Get(ctx.Request().Context(), usr)
		if err != nil {
			return errors.Wrap(err, "loading dashboard")
		}
		return ctx.JSON(http.StatusOK, db)
	}
}
