package stripewebhook

import (
	"github.com/stripe/stripe-go/v84"
)

// EventKind is the closed set of provider events settlement understands.
type EventKind int

const (
	EventKindUnrecognized EventKind = iota
	EventKindCheckoutCompleted
	EventKindPaymentIntentSucceeded
)

func (k EventKind) String() string {
	switch k {
	case EventKindCheckoutCompleted:
		return "checkout_completed"
	case EventKindPaymentIntentSucceeded:
		return "payment_intent_succeeded"
	default:
		return "unrecognized"
	}
}

// ClassifyEvent maps a provider event type onto an EventKind.
func ClassifyEvent(t stripe.EventType) EventKind {
	switch t {
	case stripe.EventTypeCheckoutSessionCompleted:
		return EventKindCheckoutCompleted
	case stripe.EventTypePaymentIntentSucceeded:
		return EventKindPaymentIntentSucceeded
	default:
		return EventKindUnrecognized
	}
}

// Outcome records how an event was handled. Every outcome except
// OutcomeTenantMismatch and OutcomeFailed is acknowledged to the provider.
type Outcome string

const (
	OutcomeSettled        Outcome = "settled"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeIgnored        Outcome = "ignored"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeTenantMismatch Outcome = "tenant_mismatch"
	OutcomeFailed         Outcome = "failed"
)

// Acknowledged reports whether the provider should stop retrying.
func (o Outcome) Acknowledged() bool {
	return o != OutcomeTenantMismatch && o != OutcomeFailed
}
