package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ministerio/escalas/core/schedule"
)

type scheduleApi struct {
	svc      *schedule.Service
	validate *validator.Validate
}

func registerScheduleAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := scheduleApi{
		svc:      deps.ScheduleSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/schedules", authed...)
	sg.GET("", api.query)
	sg.POST("", api.create, adminMiddleware)

	// detail endpoints
	dg := sg.Group("/:id", scheduleMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware)
	dg.DELETE("", api.destroy, adminMiddleware)
	dg.POST("/members", api.addMember, adminMiddleware)
	dg.DELETE("/members/:aid", api.removeMember, adminMiddleware)
	dg.POST("/songs", api.addSong, adminMiddleware)
	dg.DELETE("/songs/:eid", api.removeSong, adminMiddleware)
	dg.PUT("/songs/order", api.reorderSongs, adminMiddleware)
}

func (api *scheduleApi) query(ctx echo.Context) error {
	filter, err := bindScheduleFilter(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	summaries, err := api.svc.List(ctx.Request().Context(), filter, usr)
	if err != nil {
		return errors.Wrap(err, "listing schedules")
	}
	return ctx.JSON(http.StatusOK, summaries)
}

func (api *scheduleApi) create(ctx echo.Context) error {
	var data schedule.NewSchedule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchedule")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), data, usr)
	if err != nil {
		return errors.Wrap(err, "creating schedule")
	}
	return api.detail(ctx, s, http.StatusCreated)
}

func (api *scheduleApi) detail(ctx echo.Context, s schedule.Schedule, code int) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	d, err := api.svc.Detail(ctx.Request().Context(), s, usr)
	if err != nil {
		return errors.Wrap(err, "loading schedule detail")
	}
	return ctx.JSON(code, d)
}

func (api *scheduleApi) retrieve(ctx echo.Context) error {
	s, err := getContextObject[schedule.Schedule](ctx)
	if err != nil {
		return err
	}
	return api.detail(ctx, s, http.StatusOK)
}

func (api *scheduleApi) update(ctx echo.Context) error {
	s, err := getContextObject[schedule.Schedule](ctx)
	if err != nil {
		return err
	}

	var data schedule.NewSchedule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchedule")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate); err != nil {
		return err
	}

	s, err = api.svc.Update(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "updating schedule")
	}
	return api.detail(ctx, s, http.StatusOK)
}

func (api *scheduleApi) destroy(ctx echo.Context) error {
	s, err := getContextObject[schedule.Schedule](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *scheduleApi) addMember(ctx echo.Context) error {
	s, err := getContextObject[schedule.Schedule](ctx)
	if err != nil {
		return err
	}

	var data schedule.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate); err != nil {
		return err
	}

	a, err := api.svc.AddMember(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "adding member")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *scheduleApi) removeMember(ctx echo.Context) error {
	s, err := getContextObject[schedule.Schedule](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveMember(ctx.Request().Context(), s, ctx.Param("aid")); err != nil {
		return errors.Wrap(err, "removing member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *scheduleApi) addSong(ctx echo.Context) error {
	s, err := getContextObject[schedule.Schedule](ctx)
	if err != nil {
		return err
	}

	var data schedule.NewSetlistEntry
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSetlistEntry")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate); err != nil {
		return err
	}

	e, err := api.svc.AddSong(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "adding song")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *scheduleApi) removeSong(ctx echo.Context) error {
	s, err := getContextObject[schedule.Schedule](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveSong(ctx.Request().Context(), s, ctx.Param("eid")); err != nil {
		return errors.Wrap(err, "removing song")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *scheduleApi) reorderSongs(ctx echo.Context) error {
	s, err := getContextObject[schedule.Schedule](ctx)
	if err != nil {
		return err
	}

	var data schedule.ReorderSetlist
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReorderSetlist")
	}

	setlist, err := api.svc.ReorderSongs(ctx.Request().Context(), s, data.EntryIDs)
	if err != nil {
		return errors.Wrap(err, "reordering songs")
	}
	return ctx.JSON(http.StatusOK, setlist)
}
