package events

import "time"

const (
	SubjectDisplayRotated  = "remwatch.display.rotated"
	SubjectDatasetReloaded = "remwatch.dataset.reloaded"

	StreamName = "REMWATCH_EVENTS"
	// StreamMaxAge bounds JetStream event retention.
	StreamMaxAge = 72 * time.Hour
)

// DisplayRotatedEvent announces a new rotation frame for wall displays.
type DisplayRotatedEvent struct {
	FrameID       string    `json:"frame_id"`
	Tick          uint64    `json:"tick"`
	AgencyKey     string    `json:"agency_key"`
	AgencyDisplay string    `json:"agency_display"`
	Status        string    `json:"status"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// DatasetReloadedEvent announces that the dataset snapshot changed.
type DatasetReloadedEvent struct {
	Records   int       `json:"records"`
	Agencies  int       `json:"agencies"`
	LoadedAt  time.Time `json:"loaded_at"`
	Timestamp time.Time `json:"timestamp"`
}
