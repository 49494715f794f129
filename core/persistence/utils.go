package persistence

import (
	"time"

	"github.com/asaidimu/go-arangoql/core/schema"
)

func createEvent(
	eventType QueryEventType,
	operation string,
	collection string,
	input any,
	output any,
	err *string,
	issues []schema.Issue,
	startTime time.Time,
) QueryEvent {
	var duration *int64
	if !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		duration = &d
	}

	return QueryEvent{
		Type:       eventType,
		Timestamp:  time.Now().UnixMilli(),
		Operation:  operation,
		Collection: collection,
		Input:      input,
		Output:     output,
		Error:      err,
		Issues:     issues,
		Duration:   duration,
	}
}
