// Package events provides real-time pipeline progress delivery via
// WebSocket: an in-process broadcast bus keyed by project id, fed by the
// Pipeline Orchestrator (C6) and the Sandbox & Repair Loop (C7), and
// drained by subscribed WebSocket connections. There is a single
// orchestrator process per deployment, so unlike the teacher's
// multi-pod design this carries no PostgreSQL NOTIFY/LISTEN fan-out
// layer — see DESIGN.md for what was dropped and why.
package events

import "time"

// Stage lifecycle event types (spec.md §4.6: "stage enter, stage
// complete, error, warning").
const (
	EventTypeStageEntered  = "stage.entered"
	EventTypeStageComplete = "stage.completed"
	EventTypeError         = "stage.error"
	EventTypeWarning       = "stage.warning"
)

// Event is a single progress notification for one project's pipeline run.
type Event struct {
	Type      string    `json:"type"`
	ProjectID string    `json:"project_id"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProjectChannel returns the broadcast channel name for a project's events.
func ProjectChannel(projectID string) string {
	return "project:" + projectID
}

// ClientMessage is the JSON structure for client → server WebSocket
// subscription requests.
type ClientMessage struct {
	Action    string `json:"action"` // "subscribe" or "unsubscribe"
	ProjectID string `json:"project_id"`
}
