package repository

import (
	"context"

	"github.com/cml-fleet/worker-engine/domain/event"
)

// EventPublisher is the narrow collaborator the repository needs from the
// Event Relay: publish one event, fire-and-forget from the repository's
// point of view (the relay owns its own retry/drop policy).
// Defining it here rather than depending on package relay directly avoids
// an import cycle, since relay depends on nothing in this package.
type EventPublisher interface {
	Publish(ctx context.Context, e event.Event) error
}
