// Package events fans filesystem change notifications out to connected
// clients over websockets. Publishing is fire-and-forget: a slow or dead
// connection is dropped, never allowed to block a filesystem operation.
package events

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// Publisher delivers an event to every live subscriber of ownerID.
// Implementations must not fail the calling operation; the filesystem
// mutation has already committed by the time an event is published.
type Publisher interface {
	Publish(ctx context.Context, ownerID string, event models.Event)
}
