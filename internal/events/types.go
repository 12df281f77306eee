package events

import "time"

// Topic names used across packls.
const (
	TopicDiagnostics = "diagnostics" // diagnostic collection changed
	TopicPacks       = "packs"       // pack manifests changed on disk
	TopicConfig      = "config"      // configuration changed
)

// Event is a single bus message.
type Event struct {
	Topic     string
	Timestamp time.Time
	Payload   any
}

// DiagnosticsUpdated is published after the diagnostic collection is
// replaced. Files lists every file whose entries changed, including files
// whose entries were cleared.
type DiagnosticsUpdated struct {
	Files []string
}

// PacksChanged is published when pack manifests or the workspace
// configuration change on disk.
type PacksChanged struct {
	Paths []string
}

// ConfigChanged is published when settings are reloaded.
type ConfigChanged struct{}

// NewEvent builds an event stamped with the current time.
func NewEvent(topic string, payload any) Event {
	return Event{
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}
