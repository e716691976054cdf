// Package stripe verifies and parses Stripe webhook deliveries without the
// Stripe SDK. Only the subscription lifecycle events the billing gate needs
// are parsed; everything else is reported as ignored.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	billingdomain "github.com/velocibid/velocibid/internal/billing/domain"
)

// signatureTolerance bounds how old a signed delivery may be. Stripe uses
// the same five minute window; anything outside it is treated as a replay.
const signatureTolerance = 5 * time.Minute

type Adapter struct {
	webhookSecret string
	now           func() time.Time
}

func NewAdapter(webhookSecret string) *Adapter {
	return &Adapter{
		webhookSecret: strings.TrimSpace(webhookSecret),
		now:           time.Now,
	}
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if a.webhookSecret == "" {
		return billingdomain.ErrWebhookSecretUnset
	}

	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return billingdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return billingdomain.ErrInvalidSignature
	}

	signedAt, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return billingdomain.ErrInvalidSignature
	}
	age := a.now().Sub(time.Unix(signedAt, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return billingdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return billingdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*billingdomain.SubscriptionEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		return a.parseCheckoutSession(event)
	case "customer.subscription.updated":
		return a.parseSubscription(event, billingdomain.EventTypeSubscriptionUpdated)
	case "customer.subscription.deleted":
		return a.parseSubscription(event, billingdomain.EventTypeSubscriptionDeleted)
	default:
		return nil, billingdomain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID                string `json:"id"`
	ClientReferenceID string `json:"client_reference_id"`
	Customer          string `json:"customer"`
	Subscription      string `json:"subscription"`
	Created           int64  `json:"created"`
}

type stripeSubscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Created  int64  `json:"created"`
}

func (a *Adapter) parseCheckoutSession(event stripeEvent) (*billingdomain.SubscriptionEvent, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ClientReferenceID) == "" || strings.TrimSpace(session.Customer) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	return &billingdomain.SubscriptionEvent{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		Type:            billingdomain.EventTypeCheckoutCompleted,
		OrgID:           strings.TrimSpace(session.ClientReferenceID),
		CustomerID:      strings.TrimSpace(session.Customer),
		SubscriptionID:  strings.TrimSpace(session.Subscription),
		OccurredAt:      timestamp(session.Created, event.Created),
	}, nil
}

func (a *Adapter) parseSubscription(event stripeEvent, eventType string) (*billingdomain.SubscriptionEvent, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.Customer) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	return &billingdomain.SubscriptionEvent{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		Type:            eventType,
		CustomerID:      strings.TrimSpace(sub.Customer),
		SubscriptionID:  strings.TrimSpace(sub.ID),
		Status:          strings.ToLower(strings.TrimSpace(sub.Status)),
		OccurredAt:      timestamp(sub.Created, event.Created),
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}
