package stripewebhook

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
)

// DefaultGuardScope namespaces provider event ids in Redis.
const DefaultGuardScope = "stripe-webhook"

// EventGuard remembers provider event ids that were handled, so redeliveries
// skip settlement. Ids are marked only after HandleEvent succeeds; concurrent
// deliveries both reach the conditional PAID update, which settles once.
type EventGuard = idempotency.Ledger

func NewEventGuard(store idempotency.Store, ttl time.Duration, scope string) (*EventGuard, error) {
	if scope == "" {
		scope = DefaultGuardScope
	}
	return idempotency.NewLedger(store, scope, ttl)
}
