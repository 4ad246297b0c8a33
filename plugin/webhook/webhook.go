// Package webhook notifies the team a feedback analysis is routed to.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/feedbacksense/ai/feedback"
)

var (
	// timeout is the timeout for webhook request. Default to 30 seconds.
	timeout = 30 * time.Second

	client = &http.Client{Timeout: timeout}
)

// ActivityType of the payloads sent for analyses.
const ActivityTypeAnalyzed = "feedback.analyzed"

type WebhookRequestPayload struct {
	URL          string             `json:"url"`
	ActivityType string             `json:"activityType"`
	Route        string             `json:"route"`
	Source       string             `json:"source"`
	Analysis     *feedback.Analysis `json:"analysis"`
}

// Post posts the message to webhook endpoint.
// A JSON response carrying a non-zero "code" is treated as a failure.
func Post(ctx context.Context, requestPayload *WebhookRequestPayload) error {
	body, err := json.Marshal(requestPayload)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal webhook request to %s", requestPayload.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestPayload.URL, bytes.NewBuffer(body))
	if err != nil {
		return errors.Wrapf(err, "failed to construct webhook request to %s", requestPayload.URL)
	}

	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to post webhook to %s", requestPayload.URL)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrapf(err, "failed to read webhook response from %s", requestPayload.URL)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("failed to post webhook %s, status code: %d, response body: %s", requestPayload.URL, resp.StatusCode, b)
	}

	response := &struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	}{}
	if len(bytes.TrimSpace(b)) == 0 || json.Unmarshal(b, response) != nil {
		return nil
	}
	if response.Code != 0 {
		return errors.Errorf("receive error code sent by webhook server, code %d, msg: %s", response.Code, response.Message)
	}

	return nil
}

// RouteNotifier posts analyses to the webhook configured for their route.
type RouteNotifier struct {
	urls map[string]string
}

// NewRouteNotifier creates a notifier from a route -> URL map.
func NewRouteNotifier(urls map[string]string) *RouteNotifier {
	copied := make(map[string]string, len(urls))
	for route, url := range urls {
		copied[route] = url
	}
	return &RouteNotifier{urls: copied}
}

// Notify posts the analysis to its route's webhook. Routes without a
// webhook are skipped.
func (n *RouteNotifier) Notify(ctx context.Context, source string, analysis *feedback.Analysis) error {
	url, ok := n.urls[analysis.Route]
	if !ok {
		return nil
	}
	return Post(ctx, &WebhookRequestPayload{
		URL:          url,
		ActivityType: ActivityTypeAnalyzed,
		Route:        analysis.Route,
		Source:       source,
		Analysis:     analysis,
	})
}

// Routes returns the number of routes with a webhook.
func (n *RouteNotifier) Routes() int {
	return len(n.urls)
}
