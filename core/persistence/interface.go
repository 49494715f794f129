// Package persistence ties compilation, execution and decoding together and
// reports every operation on an event bus.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-arangoql/core/schema"
)

// QueryEventType identifies an event emitted by the Executor.
type QueryEventType string

const (
	QueryStart              QueryEventType = "query:start"
	QuerySuccess            QueryEventType = "query:success"
	QueryFailed             QueryEventType = "query:failed"
	InsertStart             QueryEventType = "insert:start"
	InsertSuccess           QueryEventType = "insert:success"
	InsertFailed            QueryEventType = "insert:failed"
	CollectionCreateStart   QueryEventType = "collection:create:start"
	CollectionCreateSuccess QueryEventType = "collection:create:success"
	CollectionCreateFailed  QueryEventType = "collection:create:failed"
	SubscriptionRegister    QueryEventType = "subscription:register"
	SubscriptionUnregister  QueryEventType = "subscription:unregister"
)

// QueryEvent describes one step of an operation.
type QueryEvent struct {
	Type       QueryEventType `json:"type"`
	Timestamp  int64          `json:"timestamp"` // Unix milliseconds.
	Operation  string         `json:"operation"` // e.g. "query", "get", "insert".
	Collection string         `json:"collection"`
	QueryID    string         `json:"queryId,omitempty"`
	Query      string         `json:"query,omitempty"`
	Params     []any          `json:"params,omitempty"`
	Input      any            `json:"input,omitempty"`
	Output     any            `json:"output,omitempty"`
	Rows       *int           `json:"rows,omitempty"`
	Error      *string        `json:"error,omitempty"`
	Issues     []schema.Issue `json:"issues,omitempty"`
	Duration   *int64         `json:"duration,omitempty"` // Milliseconds since the start event.
}

// EventCallbackFunction handles an emitted event.
type EventCallbackFunction func(ctx context.Context, event QueryEvent) error

// SubscriptionInfo describes a subscription configuration.
type SubscriptionInfo struct {
	Id          *string        `json:"id,omitempty"`
	Event       QueryEventType `json:"event"`
	Label       *string        `json:"label,omitempty"`
	Description *string        `json:"description,omitempty"`
	Unsubscribe func()         `json:"-"`
}

// RegisterSubscriptionOptions defines options for registering a subscription.
type RegisterSubscriptionOptions struct {
	Event       QueryEventType `json:"event"`
	Label       *string        `json:"label,omitempty"`
	Description *string        `json:"description,omitempty"`
	Callback    EventCallbackFunction
}

// ErrDocumentNotFound is returned by Get when nothing matches.
var ErrDocumentNotFound = errors.New("document not found")

// ValidationError reports the issues that stopped a row object from being written.
type ValidationError struct {
	Index  int
	Issues []schema.Issue
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	messages := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		messages[i] = issue.Message
	}
	return fmt.Sprintf("object %d failed validation: %s", e.Index, strings.Join(messages, "; "))
}
