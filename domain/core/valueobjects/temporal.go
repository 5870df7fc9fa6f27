package valueobjects

import "time"

// EventSource classifies how a node's event time was determined.
type EventSource string

const (
	EventSourceExplicit   EventSource = "explicit"
	EventSourceUserStated  EventSource = "user_stated"
	EventSourceInferred    EventSource = "inferred"
	EventSourceDefault     EventSource = "default"
)

// ContentTimeType classifies a reference to time found inside a node's
// content, independent of the node's own ingestion/event timestamps.
type ContentTimeType string

const (
	ContentTimeRelative   ContentTimeType = "relative"
	ContentTimeHistorical ContentTimeType = "historical"
	ContentTimeAbsolute   ContentTimeType = "absolute"
	ContentTimeRange      ContentTimeType = "range"
)

// Ingestion is always present on a node: when and in what timezone the
// node entered the system.
type Ingestion struct {
	Timestamp time.Time
	Timezone  string
}

// EventTime is the optional "this is when it actually happened" time,
// distinct from when it was recorded.
type EventTime struct {
	Timestamp  time.Time
	Confidence float64// [0,1]
	Source     EventSource
}

// ContentTime is one parsed time reference found within a node's text.
type ContentTime struct {
	OriginalText string
	Resolved     time.Time
	Type         ContentTimeType
	Confidence   float64
}

// ReferencePattern is a learned regular expression-shaped pattern used to
// recognize future content-time references (e.g. "every Tuesday" resolving
// relative to a recurring anchor). Learning/maintenance of these patterns
// is an operational concern outside this engine; the engine only stores
// and reads them.
type ReferencePattern struct {
	Pattern    string
	TimeType   ContentTimeType
	Confidence float64
}

// TemporalModel is a node's complete four-type temporal record.
type TemporalModel struct {
	Ingestion         Ingestion
	Event             *EventTime
	ContentTimes      []ContentTime
	ReferencePatterns []ReferencePattern
}

// PrimaryTimestamp returns the node's primary timestamp: its Event time
// if present, otherwise its Ingestion time.
func (t TemporalModel) PrimaryTimestamp() time.Time {
	if t.Event != nil {
		return t.Event.Timestamp
	}
	return t.Ingestion.Timestamp
}

// NewIngestion builds an Ingestion record for "now" in the given timezone
// name (e.g. "UTC", "America/Los_Angeles").
func NewIngestion(now time.Time, timezone string) Ingestion {
	if timezone == "" {
		timezone = "UTC"
	}
	return Ingestion{Timestamp: now, Timezone: timezone}
}
