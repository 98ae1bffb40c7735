// Package risk defines the risk vocabulary shared across the agent.
//
// The backend scores sessions on a 0–100 scale. Levels and actions either
// arrive labelled by the server or are derived locally from the score, and
// the two classifications must agree: a score in the LOW band is never
// displayed as anything but LOW when the server omits its own label.
package risk

import (
	"strings"
	"time"
)

// Level is the severity band of a risk score.
type Level string

const (
	LevelLow     Level = "LOW"
	LevelMedium  Level = "MEDIUM"
	LevelHigh    Level = "HIGH"
	LevelUnknown Level = "UNKNOWN"
)

// Action is the access decision attached to an assessment.
type Action string

const (
	ActionAllow   Action = "ALLOW"
	ActionWarnMFA Action = "WARN_MFA"
	ActionBlock   Action = "BLOCK"
	ActionUnknown Action = "UNKNOWN"
)

// Score bands. A score below MediumThreshold is LOW, below HighThreshold
// is MEDIUM, everything else is HIGH.
const (
	MediumThreshold = 31.0
	HighThreshold   = 61.0
)

// Assessment is one scored, leveled, actioned verdict about the current
// session.
type Assessment struct {
	Score      float64            `json:"score"`
	Level      Level              `json:"level"`
	Action     Action             `json:"action"`
	ObservedAt time.Time          `json:"observedAt"`
	Deviations map[string]float64 `json:"deviations,omitempty"`
}

// LevelForScore classifies a score into a severity band.
func LevelForScore(score float64) Level {
	switch {
	case score < MediumThreshold:
		return LevelLow
	case score < HighThreshold:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// ParseLevel normalizes a server-provided level string. Unrecognized
// values map to LevelUnknown rather than failing.
func ParseLevel(s string) Level {
	switch normalize(s) {
	case "LOW":
		return LevelLow
	case "MEDIUM":
		return LevelMedium
	case "HIGH":
		return LevelHigh
	default:
		return LevelUnknown
	}
}

// ParseAction normalizes a server-provided action string. The legacy
// backend emits "WARN" where newer responses carry "WARN_MFA"; both map
// to ActionWarnMFA. Unrecognized values map to ActionUnknown.
func ParseAction(s string) Action {
	switch normalize(s) {
	case "ALLOW":
		return ActionAllow
	case "WARN", "WARN_MFA":
		return ActionWarnMFA
	case "BLOCK":
		return ActionBlock
	default:
		return ActionUnknown
	}
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
