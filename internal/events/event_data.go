package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// HistoricalUpdatedData contains data for HistoricalUpdated events
type HistoricalUpdatedData struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

// EventType returns the event type for HistoricalUpdatedData
func (d *HistoricalUpdatedData) EventType() EventType {
	return HistoricalUpdated
}

// CacheHitData contains data for CacheHit events
type CacheHitData struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Stale    bool   `json:"stale"`
}

// EventType returns the event type for CacheHitData
func (d *CacheHitData) EventType() EventType {
	return CacheHit
}
