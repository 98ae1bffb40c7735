package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/zerotrust-labs/sentinel/internal/reconciliation"
	"github.com/zerotrust-labs/sentinel/internal/telemetry"
)

// Register creates a new account and returns the created identity.
func (c *Client) Register(ctx context.Context, email, password string) (reconciliation.UserIdentity, error) {
	body := map[string]string{"email": email, "password": password}
	payload, err := c.do(ctx, "register", http.MethodPost, "/api/auth/register", nil, body, false)
	if err != nil {
		return reconciliation.UserIdentity{}, err
	}
	if user, ok := payload["user"].(map[string]any); ok {
		return reconciliation.Identity(user), nil
	}
	// Some deployments return the identity fields at the top level.
	return reconciliation.Identity(payload), nil
}

// Login authenticates and returns the session token. Persisting the token
// is the credential manager's job, not the gateway's.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	payload, err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", nil, body, false)
	if err != nil {
		return "", err
	}

	for _, key := range []string{"token", "access_token"} {
		if token, ok := payload[key].(string); ok && token != "" {
			return token, nil
		}
	}
	return "", &Error{Kind: KindMalformedResponse, Detail: "login response carried no token"}
}

// FetchProfile returns the authenticated user's identity.
func (c *Client) FetchProfile(ctx context.Context) (reconciliation.UserIdentity, error) {
	payload, err := c.do(ctx, "profile", http.MethodGet, "/api/auth/profile", nil, nil, true)
	if err != nil {
		return reconciliation.UserIdentity{}, err
	}
	user, _ := payload["user"].(map[string]any)
	return reconciliation.Identity(user), nil
}

// Logout invalidates the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, "logout", http.MethodPost, "/api/auth/logout", nil, nil, true)
	return err
}

// SubmitBehavior logs one behavior sample. Fire-and-forget telemetry: the
// response body is an acknowledgement only.
func (c *Client) SubmitBehavior(ctx context.Context, sample telemetry.Sample) error {
	_, err := c.do(ctx, "log_behavior", http.MethodPost, "/api/behavior/log", nil, sample, true)
	return err
}

// FetchBaseline returns the server-computed behavioral baseline.
func (c *Client) FetchBaseline(ctx context.Context) (map[string]any, error) {
	return c.do(ctx, "baseline", http.MethodGet, "/api/behavior/baseline", nil, nil, true)
}

// SubmitForRiskCalculation scores one behavior sample.
func (c *Client) SubmitForRiskCalculation(ctx context.Context, sample telemetry.Sample) (map[string]any, error) {
	return c.do(ctx, "calculate_risk", http.MethodPost, "/api/risk/calculate", nil, sample, true)
}

// FetchCurrentRisk returns the most recent server-side assessment.
func (c *Client) FetchCurrentRisk(ctx context.Context) (map[string]any, error) {
	payload, err := c.do(ctx, "current_risk", http.MethodGet, "/api/risk/current", nil, nil, true)
	if err != nil {
		return nil, err
	}
	if r, ok := payload["risk"].(map[string]any); ok {
		return r, nil
	}
	return payload, nil
}

// FetchRiskHistory returns up to limit past assessments, newest first.
func (c *Client) FetchRiskHistory(ctx context.Context, limit int) ([]map[string]any, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	payload, err := c.do(ctx, "risk_history", http.MethodGet, "/api/risk/history", query, nil, true)
	if err != nil {
		return nil, err
	}

	raw, _ := payload["risks"].([]any)
	items := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items, nil
}

// FetchDashboard returns the raw dashboard payload for reconciliation.
func (c *Client) FetchDashboard(ctx context.Context) (map[string]any, error) {
	return c.do(ctx, "dashboard", http.MethodGet, "/api/dashboard", nil, nil, true)
}

// TriggerModelTraining asks the backend to (re)train the anomaly model.
func (c *Client) TriggerModelTraining(ctx context.Context) (map[string]any, error) {
	return c.do(ctx, "train_model", http.MethodPost, "/api/ml/train", nil, nil, true)
}

// FetchModelStatus returns the anomaly model's training state.
func (c *Client) FetchModelStatus(ctx context.Context) (map[string]any, error) {
	return c.do(ctx, "model_status", http.MethodGet, "/api/ml/status", nil, nil, true)
}

// HealthCheck reports backend reachability. It never returns an error;
// any failure collapses to false.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.do(ctx, "health", http.MethodGet, "/api/health", nil, nil, false)
	return err == nil
}
