package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/feedbacksense/internal/profile"
	"github.com/hrygo/feedbacksense/server/service/analyzer"
	"github.com/hrygo/feedbacksense/store"
)

type APIV1Service struct {
	Profile  *profile.Profile
	Analyzer *analyzer.Analyzer
	// Store is nil when persistence is disabled.
	Store *store.Store
}

func NewAPIV1Service(profile *profile.Profile, analyzer *analyzer.Analyzer, store *store.Store) *APIV1Service {
	return &APIV1Service{
		Profile:  profile,
		Analyzer: analyzer,
		Store:    store,
	}
}

// successResponse is the envelope of every successful API response.
type successResponse struct {
	Status string `json:"status"`
	Result any    `json:"result"`
	Note   string `json:"note,omitempty"`
}

func success(result any) successResponse {
	return successResponse{Status: "success", Result: result}
}

// RegisterRoutes registers the REST endpoints with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(_ context.Context, echoServer *echo.Echo) {
	echoServer.GET("/", s.Index)
	echoServer.GET("/health", s.Health)
	echoServer.POST("/analyze", s.Analyze)

	apiGroup := echoServer.Group("/api/v1")
	apiGroup.POST("/analyze", s.Analyze)
	apiGroup.GET("/analyses", s.ListAnalyses)
	apiGroup.GET("/analyses/stats", s.GetAnalysisStats)
	apiGroup.POST("/analyses/stats/snapshot", s.CreateStatsSnapshot)
	apiGroup.GET("/analyses/stats/snapshots", s.ListStatsSnapshots)
	apiGroup.GET("/analyses/:id", s.GetAnalysis)
}

type indexResponse struct {
	Status       string            `json:"status"`
	Message      string            `json:"message"`
	Version      string            `json:"version"`
	Mode         string            `json:"mode"`
	AnalysisMode string            `json:"analysis_mode"`
	Endpoints    map[string]string `json:"endpoints"`
}

// Index describes the service and its endpoints.
func (s *APIV1Service) Index(c echo.Context) error {
	endpoints := map[string]string{
		"health":  "/health",
		"analyze": "/analyze",
		"metrics": "/metrics",
	}
	if s.Store != nil {
		endpoints["analyses"] = "/api/v1/analyses"
		endpoints["stats"] = "/api/v1/analyses/stats"
	}
	return c.JSON(http.StatusOK, indexResponse{
		Status:       "ok",
		Message:      "Customer Feedback Analysis service",
		Version:      s.Profile.Version,
		Mode:         s.Profile.Mode,
		AnalysisMode: string(s.Analyzer.Mode()),
		Endpoints:    endpoints,
	})
}

type healthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	AnalysisMode string `json:"analysis_mode"`
	Store        bool   `json:"store"`
}

// Health reports liveness. It does not call the LLM or the database.
func (s *APIV1Service) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:       "ok",
		Version:      s.Profile.Version,
		AnalysisMode: string(s.Analyzer.Mode()),
		Store:        s.Store != nil,
	})
}
