package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ministerio/escalas/core/song"
)

type songApi struct {
	svc      *song.Service
	validate *validator.Validate
}

func registerSongAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := songApi{
		svc:      deps.SongSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/songs", authed...)
	sg.GET("", api.query)
	sg.POST("", api.create, adminMiddleware)
	sg.GET("/options", api.queryOptions, adminMiddleware)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update, adminMiddleware)
	sg.DELETE("/:id", api.destroy, adminMiddleware)
}

func (api *songApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	songs, err := api.svc.Query(ctx.Request().Context(), bindSongFilter(ctx), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying songs")
	}
	return ctx.JSON(http.StatusOK, songs)
}

func (api *songApi) queryOptions(ctx echo.Context) error {
	opts, err := api.svc.QueryOptions(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying song options")
	}
	return ctx.JSON(http.StatusOK, opts)
}

func (api *songApi) create(ctx echo.Context) error {
	var data song.NewSong
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSong")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate); err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating song")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *songApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *songApi) update(ctx echo.Context) error {
	s, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	var data song.NewSong
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSong")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate); err != nil {
		return err
	}

	s, err = api.svc.Update(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "updating song")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *songApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting song")
	}
	return ctx.NoContent(http.StatusNoContent)
}
