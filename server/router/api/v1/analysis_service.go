package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/feedbacksense/ai/feedback"
	"github.com/hrygo/feedbacksense/store"
)

const defaultStatsWindow = 24 * time.Hour

var errNoStore = echo.NewHTTPError(http.StatusServiceUnavailable, "analysis history is unavailable: no database configured")

// ListAnalyses returns recent persisted analyses, newest first.
func (s *APIV1Service) ListAnalyses(c echo.Context) error {
	if s.Store == nil {
		return errNoStore
	}

	find := &store.FindFeedbackAnalysis{}
	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return err
	}
	find.Limit = limit

	if v := c.QueryParam("category"); v != "" {
		category, ok := feedback.ParseCategory(v)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid category: "+v)
		}
		value := string(category)
		find.Category = &value
	}
	if v := c.QueryParam("priority"); v != "" {
		priority, ok := feedback.ParsePriority(v)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid priority: "+v)
		}
		value := string(priority)
		find.Priority = &value
	}

	list, err := s.Store.ListFeedbackAnalyses(c.Request().Context(), find)
	if err != nil {
		return errors.Wrap(err, "failed to list feedback analyses")
	}
	return c.JSON(http.StatusOK, success(list))
}

// GetAnalysis returns one persisted analysis.
func (s *APIV1Service) GetAnalysis(c echo.Context) error {
	if s.Store == nil {
		return errNoStore
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid analysis id")
	}

	analysis, err := s.Store.GetFeedbackAnalysis(c.Request().Context(), id)
	if err != nil {
		return errors.Wrapf(err, "failed to get feedback analysis %d", id)
	}
	if analysis == nil {
		return echo.NewHTTPError(http.StatusNotFound, "analysis not found")
	}
	return c.JSON(http.StatusOK, success(analysis))
}

// GetAnalysisStats aggregates the analyses of the requested window.
func (s *APIV1Service) GetAnalysisStats(c echo.Context) error {
	if s.Store == nil {
		return errNoStore
	}

	window, err := parseWindow(c.QueryParam("window"))
	if err != nil {
		return err
	}

	stats, err := s.Store.GetAnalysisStats(c.Request().Context(), &store.GetAnalysisStats{Since: time.Now().Add(-window)})
	if err != nil {
		return errors.Wrap(err, "failed to get analysis stats")
	}
	return c.JSON(http.StatusOK, success(stats))
}

// CreateStatsSnapshot stores the statistics of the requested window.
func (s *APIV1Service) CreateStatsSnapshot(c echo.Context) error {
	if s.Store == nil {
		return errNoStore
	}

	window, err := parseWindow(c.QueryParam("window"))
	if err != nil {
		return err
	}

	summary, err := s.Store.SnapshotStats(c.Request().Context(), window)
	if err != nil {
		return errors.Wrap(err, "failed to snapshot analysis stats")
	}
	return c.JSON(http.StatusCreated, success(summary))
}

// ListStatsSnapshots returns stored snapshots, newest first.
func (s *APIV1Service) ListStatsSnapshots(c echo.Context) error {
	if s.Store == nil {
		return errNoStore
	}

	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return err
	}

	list, err := s.Store.ListAnalysisSummaries(c.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "failed to list analysis summaries")
	}
	return c.JSON(http.StatusOK, success(list))
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return store.DefaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > store.MaxListLimit {
		return 0, echo.NewHTTPError(http.StatusBadRequest,
			"limit must be between 1 and "+strconv.Itoa(store.MaxListLimit))
	}
	return limit, nil
}

func parseWindow(raw string) (time.Duration, error) {
	if raw == "" {
		return defaultStatsWindow, nil
	}
	window, err := time.ParseDuration(raw)
	if err != nil || window <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "window must be a positive duration such as 24h")
	}
	return window, nil
}
