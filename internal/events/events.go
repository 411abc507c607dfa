// Package events publishes order lifecycle messages to a broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// Routing keys.
const (
	OrderCreated       = "order.created"
	OrderQueued        = "order.queued"
	OrderStatusChanged = "order.status_changed"
)

// Publisher sends a message body under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// PublishJSON marshals v and publishes it.
func PublishJSON(ctx context.Context, p Publisher, routingKey string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", routingKey, err)
	}
	return p.Publish(ctx, routingKey, body)
}
