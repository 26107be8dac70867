package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	ID   uuid.UUID           `json:"id"`
	Kind enums.PrincipalKind `json:"kind"`
	Role enums.UserRole      `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events and
// sent as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
