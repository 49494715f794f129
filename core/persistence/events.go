package persistence

import (
	"time"

	"github.com/google/uuid"
)

// emitEvent is a helper method to emit events
func (e *Executor) emitEvent(event QueryEvent) {
	if e.bus != nil {
		e.bus.Emit(string(event.Type), event)
	}
}

// withEventEmission wraps an operation with start, success, and failure events
func (e *Executor) withEventEmission(
	operation string,
	collection string,
	startEventType QueryEventType,
	successEventType QueryEventType,
	failedEventType QueryEventType,
	input any,
	fn func() (any, error),
) (any, error) {
	startTime := time.Now()
	e.emitEvent(createEvent(startEventType, operation, collection, input, nil, nil, nil, startTime))

	result, err := fn()
	if err != nil {
		errStr := err.Error()
		failEvent := createEvent(failedEventType, operation, collection, input, nil, &errStr, nil, startTime)
		if verr, ok := err.(*ValidationError); ok {
			failEvent.Issues = verr.Issues
		}
		e.emitEvent(failEvent)
		return nil, err
	}

	e.emitEvent(createEvent(successEventType, operation, collection, input, result, nil, nil, startTime))
	return result, nil
}

// RegisterSubscription registers a callback for an event type. It returns a
// unique ID that can be used to unregister the subscription later.
func (e *Executor) RegisterSubscription(options RegisterSubscriptionOptions) string {
	e.subMu.Lock()
	unsubscribe := e.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()
	e.subscriptions[id] = &SubscriptionInfo{
		Id:          &id,
		Event:       options.Event,
		Unsubscribe: unsubscribe,
		Label:       options.Label,
		Description: options.Description,
	}
	e.subMu.Unlock()

	e.emitEvent(createEvent(SubscriptionRegister, "register_subscription", "",
		map[string]any{"event": options.Event, "label": options.Label},
		map[string]any{"subscriptionId": id},
		nil, nil, time.Now()))
	return id
}

// UnregisterSubscription removes a subscription by its ID.
func (e *Executor) UnregisterSubscription(id string) {
	e.subMu.Lock()
	info, ok := e.subscriptions[id]
	if ok {
		info.Unsubscribe()
		delete(e.subscriptions, id)
	}
	e.subMu.Unlock()

	if ok {
		e.emitEvent(createEvent(SubscriptionUnregister, "unregister_subscription", "",
			map[string]any{"subscriptionId": id}, nil, nil, nil, time.Now()))
	}
}

// Subscriptions returns a list of all currently active subscriptions.
func (e *Executor) Subscriptions() []SubscriptionInfo {
	e.subMu.RLock()
	defer e.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(e.subscriptions))
	for _, sub := range e.subscriptions {
		subs = append(subs, *sub)
	}
	return subs
}
