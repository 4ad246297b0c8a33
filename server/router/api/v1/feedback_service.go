package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type analyzeRequest struct {
	Feedback string `json:"feedback"`
}

// Analyze analyzes one piece of feedback.
// Validation errors reach the error handler as 400 responses.
func (s *APIV1Service) Analyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}

	result, err := s.Analyzer.Analyze(c.Request().Context(), req.Feedback)
	if err != nil {
		return err
	}

	resp := success(result.Analysis)
	resp.Note = result.Note
	return c.JSON(http.StatusOK, resp)
}
