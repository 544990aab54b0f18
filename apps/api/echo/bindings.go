package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/learnhub/core"
)

const (
	pageParam       = "page"
	defaultPageSize = 10
)

// bindPage reads the 1-based page number from the query string; invalid values select the
// first page.
func bindPage(ctx echo.Context) core.Page {
	page := core.Page{Number: 1, Size: defaultPageSize}
	if n, err := strconv.Atoi(ctx.QueryParam(pageParam)); err == nil && n > 0 {
		page.Number = n
	}
	return page
}
