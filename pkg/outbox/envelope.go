package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// EnvelopeVersion is the envelope layout written by Emit.
const EnvelopeVersion = 1

var ErrEmptyData = errors.New("envelope carries no data")

// ActorRef identifies who caused the event.
type ActorRef struct {
	ID   string          `json:"id"`
	Name string          `json:"name,omitempty"`
	Type enums.ActorType `json:"type"`
}

// PayloadEnvelope wraps every outbox payload and is published verbatim.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	TenantID   string          `json:"tenantId,omitempty"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored or published payload and checks its event id.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if _, err := uuid.Parse(env.EventID); err != nil {
		return env, fmt.Errorf("envelope event id %q: %w", env.EventID, err)
	}
	return env, nil
}

// Unpack decodes Data into dst. A missing or null body is ErrEmptyData.
func (e PayloadEnvelope) Unpack(dst any) error {
	data := bytes.TrimSpace(e.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrEmptyData
	}
	return json.Unmarshal(data, dst)
}
