package echoapi

import (
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/labstack/echo/v4"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/schedule"
	"github.com/ministerio/escalas/core/song"
	"github.com/ministerio/escalas/core/user"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindUserFilter reads ?search=&role=&is_active= into a user.QueryFilter.
func bindUserFilter(ctx echo.Context) (*user.QueryFilter, error) {
	filter := &user.QueryFilter{
		Search: ctx.QueryParam("search"),
		Role:   ctx.QueryParam("role"),
	}
	if val := ctx.QueryParam("is_active"); val != "" {
		isActive, err := strconv.ParseBool(val)
		if err != nil {
			return nil, core.NewFieldError("is_active", "must be a boolean")
		}
		filter.IsActive = &isActive
	}
	filter.Clean()
	return filter, nil
}

func bindSongFilter(ctx echo.Context) *song.QueryFilter {
	filter := &song.QueryFilter{Search: ctx.QueryParam("search")}
	filter.Clean()
	return filter
}

// bindScheduleFilter reads ?from=&to= (YYYY-MM-DD) into a schedule.QueryFilter.
func bindScheduleFilter(ctx echo.Context) (schedule.QueryFilter, error) {
	var filter schedule.QueryFilter
	for param, dest := range map[string]*civil.Date{"from": &filter.From, "to": &filter.To} {
		val := strings.TrimSpace(ctx.QueryParam(param))
		if val == "" {
			continue
		}
		d, err := civil.ParseDate(val)
		if err != nil {
			return schedule.QueryFilter{}, core.NewFieldError(param, "must be a date formatted as YYYY-MM-DD")
		}
		*dest = d
	}
	return filter, nil
}

// bindIDs reads the repeated ?id= param.
func bindIDs(ctx echo.Context) []string {
	var ids []string
	for _, id := range ctx.QueryParams()["id"] {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
