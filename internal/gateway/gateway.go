// Package gateway translates provider-specific payloads and API responses
// into normalized payment signals. Adapters never touch the ledger; they
// only report what the provider believes about a checkout session.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"topup-service/internal/models"
)

// Status is the normalized view of a gateway-side payment. Unknown means
// the gateway could not be asked (timeout, bad credentials, transport
// failure) and must never be treated as failed or approved.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusApproved
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrBadEvent     = errors.New("gateway: malformed event")
	ErrNotSupported = errors.New("gateway: operation not supported")
)

// Event is a parsed webhook notification before any API lookup.
type Event struct {
	Type       string
	ExternalID string
}

// PaymentInfo is the authoritative state of one gateway payment, including
// the local attempt the gateway carries in its metadata.
type PaymentInfo struct {
	Status    Status
	AttemptID string
}

type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

type Adapter interface {
	Name() string
	// CreateCheckout opens a provider checkout session for the attempt and
	// returns the session id plus the URL the buyer is sent to.
	CreateCheckout(ctx context.Context, order models.Order, att models.PaymentAttempt) (CheckoutSession, error)
	// ResumeCheckout re-fetches the redirect URL of an existing session.
	ResumeCheckout(ctx context.Context, sessionID string) (string, error)
	// VerifySignature authenticates a webhook request cryptographically.
	VerifySignature(r *http.Request, body []byte) bool
	// ParseEvent extracts the event type and external id from a webhook
	// body without trusting any status the payload claims.
	ParseEvent(r *http.Request, body []byte) (Event, error)
	// LookupPayment asks the provider for the authoritative payment state.
	LookupPayment(ctx context.Context, externalID string) (PaymentInfo, error)
}

// OrderSearcher is implemented by adapters whose provider can be queried by
// our local attempt id (Mercado Pago merchant orders). The reconciliation
// sweep and the status poll use it.
type OrderSearcher interface {
	// LookupOrder resolves a provider order id to its local attempt and
	// approval state.
	LookupOrder(ctx context.Context, externalID string) (PaymentInfo, error)
	// SearchOrder queries by our attempt id (the external reference).
	SearchOrder(ctx context.Context, attemptID string) (Status, error)
}

// Registry holds one adapter per enabled payment method.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[strings.ToLower(a.Name())] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) Get(method string) (Adapter, bool) {
	a, ok := r.adapters[strings.ToLower(method)]
	return a, ok
}

// All returns every registered adapter in no particular order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}
