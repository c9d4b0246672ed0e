package realtime

import "time"

// Event is one message pushed to websocket subscribers
// ⭐ SSOT: 실시간 이벤트 구조
type Event struct {
	Type      string      `json:"type"`    // prediction.created, outcome.graded
	Payload   interface{} `json:"payload"` // Prediction / OutcomeHistoryRecord
	Timestamp time.Time   `json:"timestamp"`
}
