package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hanbitlabs/rankwatch/internal/rank"
	"github.com/hanbitlabs/rankwatch/internal/store"
)

// RankChecker runs one combined rank check. *rank.Checker satisfies it;
// tests substitute stubs.
type RankChecker interface {
	CheckAllAreas(ctx context.Context, keyword, target string) (rank.AllResults, error)
}

type TrackersHandler struct {
	Store   *store.Store
	Checker RankChecker
	Limits  map[string]int
	// Spacing is the pause between consecutive checks in a bulk refresh.
	Spacing time.Duration
	Logger  *log.Logger
}

func (h *TrackersHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/quota", h.quota)
	g.POST("/refresh", h.refreshAll)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/refresh", h.refresh)
}

func (h *TrackersHandler) logf(format string, args ...interface{}) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
	}
}

func (h *TrackersHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	items, err := h.Store.ListTrackers(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *TrackersHandler) quota(c echo.Context) error {
	userID := c.Get("user_id").(string)
	q, err := h.Store.QuotaFor(c.Request().Context(), userID, h.Limits)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, q)
}

// create starts tracking a (keyword, URL) pair. The plan quota is checked
// before anything is written; a denied quota is a structured response, not
// an exception. The initial rank check runs immediately but its failure does
// not fail tracker creation.
func (h *TrackersHandler) create(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateTrackerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.BlogURL == "" || req.TargetKeyword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "blog_url and target_keyword required")
	}

	ctx := c.Request().Context()
	q, err := h.Store.QuotaFor(ctx, userID, h.Limits)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !q.CanAdd {
		return c.JSON(http.StatusForbidden, map[string]interface{}{
			"error": "tracker limit reached",
			"quota": q,
		})
	}

	tracker, err := h.Store.CreateTracker(ctx, userID, req.BlogURL, req.TargetKeyword, req.PostTitle)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Initial check. A blocked or unreachable search page leaves the
	// tracker with a null rank until the next refresh.
	if res, err := h.Checker.CheckAllAreas(ctx, tracker.TargetKeyword, tracker.BlogURL); err != nil {
		h.logf("initial check failed for tracker %s: %v", tracker.ID, err)
	} else if tracker, err = h.recordResults(ctx, tracker, res); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, tracker)
}

func (h *TrackersHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	tracker, err := h.Store.GetTracker(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "tracker not found")
	}
	history, err := h.Store.ListTrackerHistory(c.Request().Context(), tracker.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, TrackerResponse{Tracker: tracker, History: history})
}

func (h *TrackersHandler) delete(c echo.Context) error {
	userID := c.Get("user_id").(string)
	if err := h.Store.DeleteTracker(c.Request().Context(), c.Param("id"), userID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "tracker not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// refresh re-checks one tracker, appends a history entry and reports the
// rank transition against the previously stored rank.
func (h *TrackersHandler) refresh(c echo.Context) error {
	userID := c.Get("user_id").(string)
	ctx := c.Request().Context()
	tracker, err := h.Store.GetTracker(ctx, c.Param("id"), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "tracker not found")
	}
	resp, err := h.refreshOne(ctx, tracker)
	if err != nil {
		if rank.IsRetryable(err) {
			return echo.NewHTTPError(http.StatusBadGateway, checkFailedMessage)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

// refreshAll re-checks every tracker owned by the caller, spacing requests
// out so the search engine does not block us. Individual failures are
// reported per tracker; the bulk call itself succeeds.
func (h *TrackersHandler) refreshAll(c echo.Context) error {
	userID := c.Get("user_id").(string)
	ctx := c.Request().Context()
	trackers, err := h.Store.ListTrackers(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	items := make([]RefreshAllItem, 0, len(trackers))
	for i, tracker := range trackers {
		if i > 0 && h.Spacing > 0 {
			time.Sleep(h.Spacing)
		}
		resp, err := h.refreshOne(ctx, tracker)
		item := RefreshAllItem{TrackerID: tracker.ID}
		if err != nil {
			h.logf("refresh failed for tracker %s: %v", tracker.ID, err)
			item.Error = checkFailedMessage
		} else {
			item.Result = &resp
		}
		items = append(items, item)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *TrackersHandler) refreshOne(ctx context.Context, tracker store.Tracker) (RefreshResponse, error) {
	results, err := h.Checker.CheckAllAreas(ctx, tracker.TargetKeyword, tracker.BlogURL)
	if err != nil {
		return RefreshResponse{}, err
	}
	previous := tracker.CurrentRank
	tracker, err = h.recordResults(ctx, tracker, results)
	if err != nil {
		return RefreshResponse{}, err
	}
	return RefreshResponse{
		Tracker: tracker,
		Results: results,
		Change:  rank.AnalyzeChange(previous, tracker.CurrentRank),
	}, nil
}

// recordResults persists the best-area outcome of a check (history append +
// current-rank update in one transaction) and returns the tracker with the
// new current fields applied.
func (h *TrackersHandler) recordResults(ctx context.Context, tracker store.Tracker, results rank.AllResults) (store.Tracker, error) {
	best := results.Best()
	var area *string
	if best.Found {
		a := string(best.Area)
		area = &a
	}
	if err := h.Store.RecordCheck(ctx, tracker.ID, best.Rank, area, best.CheckedAt); err != nil {
		return store.Tracker{}, err
	}
	tracker.CurrentRank = best.Rank
	tracker.CurrentArea = area
	checkedAt := best.CheckedAt
	tracker.LastChecked = &checkedAt
	return tracker, nil
}
