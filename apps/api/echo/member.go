package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ministerio/escalas/core/user"
)

type memberApi struct {
	svc      *user.Service
	validate *validator.Validate
}

func registerMemberAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := memberApi{
		svc:      deps.UserSvc,
		validate: deps.Validate,
	}

	ag := g.Group("", authed...)
	ag.GET("/functions", api.queryFunctions)
	ag.GET("/roles", api.queryRoles, adminMiddleware)

	mg := g.Group("/members", authed...)
	mg.GET("", api.query, adminMiddleware)
	mg.POST("", api.create, adminMiddleware)
	mg.DELETE("", api.destroyMultiple, adminMiddleware)

	// detail endpoints
	dg := mg.Group("/:id", ctxUserOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware)
	dg.PUT("/role", api.setRole, adminMiddleware)
	dg.POST("/functions", api.addFunction, adminMiddleware)
	dg.DELETE("/functions/:fid", api.removeFunction, adminMiddleware)
}

// Handlers

func (api *memberApi) query(ctx echo.Context) error {
	filter, err := bindUserFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *memberApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *memberApi) retrieve(ctx echo.Context) error {
	usr, err := getContextObject[user.User](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *memberApi) update(ctx echo.Context) error {
	usr, err := getContextObject[user.User](ctx)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if !ctxUsr.IsAdmin() || usr.ID == ctxUsr.ID {
		// on their own account users may only change name & password
		if data.IsActive != nil || data.Email != "" {
			return errHttpForbidden
		}
	}

	if err = data.Validate(ctx.Request().Context(), usr, api.validate, api.svc); err != nil {
		return err
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *memberApi) destroy(ctx echo.Context) error {
	usr, err := getContextObject[user.User](ctx)
	if err != nil {
		return err
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if _, err = api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *memberApi) destroyMultiple(ctx echo.Context) error {
	ids := bindIDs(ctx)
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == ctxUsr.ID {
			return errHttpForbidden
		}
	}

	if _, err = api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *memberApi) setRole(ctx echo.Context) error {
	usr, err := getContextObject[user.User](ctx)
	if err != nil {
		return err
	}

	// admins cannot demote themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	var data user.SetRole
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetRole")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err = api.svc.SetRole(ctx.Request().Context(), usr, data.Role)
	if err != nil {
		return errors.Wrap(err, "setting role")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *memberApi) addFunction(ctx echo.Context) error {
	usr, err := getContextObject[user.User](ctx)
	if err != nil {
		return err
	}

	var data user.NewFunction
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFunction")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	fn, err := api.svc.AddFunction(ctx.Request().Context(), usr, data.Function)
	if err != nil {
		return errors.Wrap(err, "adding function")
	}
	return ctx.JSON(http.StatusCreated, fn)
}

func (api *memberApi) removeFunction(ctx echo.Context) error {
	usr, err := getContextObject[user.User](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveFunction(ctx.Request().Context(), usr.ID, ctx.Param("fid")); err != nil {
		return errors.Wrap(err, "removing function")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *memberApi) queryFunctions(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.TeamFunctions)
}

func (api *memberApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}
