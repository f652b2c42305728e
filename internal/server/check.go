package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hanbitlabs/rankwatch/internal/rank"
)

// CheckHandler exposes ad-hoc rank checks that persist nothing.
type CheckHandler struct {
	Checker RankChecker
}

func (h *CheckHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("/check", h.check)
}

func (h *CheckHandler) check(c echo.Context) error {
	var req CheckRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Keyword == "" || req.BlogURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "keyword and blog_url required")
	}
	results, err := h.Checker.CheckAllAreas(c.Request().Context(), req.Keyword, req.BlogURL)
	if err != nil {
		if rank.IsRetryable(err) {
			return echo.NewHTTPError(http.StatusBadGateway, checkFailedMessage)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// A completed check with no match is a success ("not currently
	// ranked"), never an error.
	return c.JSON(http.StatusOK, results)
}
