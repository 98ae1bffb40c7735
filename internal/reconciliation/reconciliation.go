// Package reconciliation converts loosely-typed server payloads into the
// strongly-typed snapshot the agent displays.
//
// The backend is treated as partially trusted: payloads may be sparse,
// fields may arrive as the wrong JSON type, and optional sub-objects may
// be missing entirely. Reconciliation is total on such input — every field
// is coerced or defaulted, and only a missing top-level container is a
// contract violation worth surfacing.
package reconciliation

import (
	"fmt"
	"time"

	"github.com/zerotrust-labs/sentinel/internal/risk"
)

// UserIdentity is the account half of a dashboard snapshot.
type UserIdentity struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	LastLogin time.Time `json:"lastLogin"`
}

// DashboardSnapshot is the single authoritative view of a user's current
// risk and account statistics. Snapshots are produced atomically from one
// server response and replaced wholesale, never field-patched.
type DashboardSnapshot struct {
	Identity                 UserIdentity     `json:"identity"`
	LatestRisk               *risk.Assessment `json:"latestRisk,omitempty"`
	BaselineReady            bool             `json:"baselineReady"`
	TotalSessionsForBaseline int              `json:"totalSessionsForBaseline"`
	ModelTrained             bool             `json:"modelTrained"`
	TotalBehaviorsLogged     int              `json:"totalBehaviorsLogged"`
	AverageRiskScore         float64          `json:"averageRiskScore"`
}

// deviationKeys are the per-factor deviation fields a risk payload may
// carry alongside the score.
var deviationKeys = []string{
	"typing_deviation",
	"location_deviation",
	"time_deviation",
	"device_deviation",
	"ml_anomaly_score",
}

// Assessment reconciles one risk payload into an Assessment. It returns
// nil when the payload carries no score at all — a session that has never
// been scored must not surface as a zero-score LOW reading.
func Assessment(payload map[string]any) *risk.Assessment {
	if payload == nil {
		return nil
	}

	rawScore, ok := first(payload, "risk_score", "score")
	if !ok {
		return nil
	}
	score := floatOr(rawScore, 0)

	level := risk.LevelUnknown
	if v, ok := first(payload, "risk_level", "level"); ok {
		level = risk.ParseLevel(stringOr(v, ""))
	}
	if level == risk.LevelUnknown {
		// Server omitted or mangled the label; derive it from the score.
		level = risk.LevelForScore(score)
	}

	action := risk.ActionUnknown
	if v, ok := first(payload, "action", "action_taken"); ok {
		action = risk.ParseAction(stringOr(v, ""))
	}

	observed := timeOr(firstOr(payload, "timestamp", "observed_at", "created_at"), time.Time{})

	var deviations map[string]float64
	if factors := objectOr(payload, "factors"); factors != nil {
		deviations = make(map[string]float64, len(factors))
		for k, v := range factors {
			deviations[k] = floatOr(v, 0)
		}
	}
	for _, k := range deviationKeys {
		if v, ok := payload[k]; ok {
			if deviations == nil {
				deviations = make(map[string]float64)
			}
			deviations[k] = floatOr(v, 0)
		}
	}

	return &risk.Assessment{
		Score:      score,
		Level:      level,
		Action:     action,
		ObservedAt: observed,
		Deviations: deviations,
	}
}

// Identity reconciles a user object into a UserIdentity. Total on sparse
// input; missing fields default.
func Identity(payload map[string]any) UserIdentity {
	if payload == nil {
		return UserIdentity{}
	}
	return UserIdentity{
		ID:        int64(intOr(payload["id"], 0)),
		Email:     stringOr(payload["email"], ""),
		CreatedAt: timeOr(payload["created_at"], time.Time{}),
		LastLogin: timeOr(payload["last_login"], time.Time{}),
	}
}

// Dashboard reconciles a full dashboard response into a snapshot. The
// response must carry a "dashboard" container; its absence is a contract
// violation and the only way this function fails. Every field inside the
// container is optional.
func Dashboard(payload map[string]any) (*DashboardSnapshot, error) {
	dash := objectOr(payload, "dashboard")
	if dash == nil {
		return nil, fmt.Errorf("dashboard payload missing 'dashboard' object")
	}

	snap := &DashboardSnapshot{
		Identity:   Identity(objectOr(dash, "user")),
		LatestRisk: Assessment(objectOr(dash, "current_risk")),
	}

	if baseline := objectOr(dash, "baseline_status"); baseline != nil {
		snap.BaselineReady = boolOr(baseline["is_ready"], false)
		snap.TotalSessionsForBaseline = intOr(baseline["samples_collected"], 0)
	}
	if ml := objectOr(dash, "ml_status"); ml != nil {
		snap.ModelTrained = boolOr(ml["trained"], false)
	}
	if stats := objectOr(dash, "statistics"); stats != nil {
		snap.TotalBehaviorsLogged = intOr(stats["total_behaviors"], 0)
		snap.AverageRiskScore = floatOr(firstOr(stats, "avg_risk_score", "average_risk_score"), 0)
	}

	return snap, nil
}

// History reconciles a risk-history response into assessments, skipping
// entries without a score.
func History(items []map[string]any) []*risk.Assessment {
	out := make([]*risk.Assessment, 0, len(items))
	for _, item := range items {
		if a := Assessment(item); a != nil {
			out = append(out, a)
		}
	}
	return out
}

func firstOr(m map[string]any, keys ...string) any {
	v, _ := first(m, keys...)
	return v
}
