package httpserver

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/repo"
)

const dateLayout = "2006-01-02"

// pagination turns page/size query params into offset and limit.
func pagination(c echo.Context) (offset, limit int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return (page - 1) * size, size
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}

// orderFilter reads status, from, to and include_demo. Dates are whole days
// in loc; to is inclusive.
func orderFilter(c echo.Context, loc *time.Location) (repo.OrderFilter, error) {
	var f repo.OrderFilter

	if raw := c.QueryParam("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, err := domain.ParseStatus(s)
			if err != nil {
				return f, err
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if raw := c.QueryParam("from"); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			return f, fmt.Errorf("from: %w", err)
		}
		d = d.UTC()
		f.From = &d
	}
	if raw := c.QueryParam("to"); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			return f, fmt.Errorf("to: %w", err)
		}
		d = d.AddDate(0, 0, 1).UTC()
		f.To = &d
	}
	f.IncludeDemo, _ = strconv.ParseBool(c.QueryParam("include_demo"))
	f.Offset, f.Limit = pagination(c)
	return f, nil
}
