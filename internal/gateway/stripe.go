package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"topup-service/internal/config"
	"topup-service/internal/models"
)

// Stripe drives Stripe Checkout sessions through the form-encoded REST API.
// Webhooks use the Stripe-Signature scheme: v1 is HMAC-SHA256 over
// "<t>.<body>" with the endpoint secret. Stripe has no merchant-order
// search, so it does not implement OrderSearcher.
type Stripe struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	returnBase    string
	client        *http.Client
}

func NewStripe(cfg config.GatewayConfig, returnBase string, timeout time.Duration) *Stripe {
	return &Stripe{
		secretKey:     cfg.AccessToken,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		returnBase:    strings.TrimRight(returnBase, "/"),
		client:        &http.Client{Timeout: timeout},
	}
}

func (g *Stripe) Name() string { return "stripe" }

func (g *Stripe) CreateCheckout(ctx context.Context, order models.Order, att models.PaymentAttempt) (CheckoutSession, error) {
	// Stripe wants the amount in minor units.
	cents := att.Amount.Shift(2).IntPart()

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price_data][currency]", "brl")
	form.Set("line_items[0][price_data][product_data][name]", "Coin top-up")
	form.Set("line_items[0][price_data][unit_amount]", fmt.Sprintf("%d", cents))
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", g.returnBase+"/payments/return/success?payment_id={CHECKOUT_SESSION_ID}&status=approved")
	form.Set("cancel_url", g.returnBase+"/payments/return/failure")
	form.Set("metadata[attempt_id]", att.ID)
	form.Set("client_reference_id", att.ID)

	var resp struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := g.call(ctx, http.MethodPost, "/v1/checkout/sessions", form, &resp); err != nil {
		return CheckoutSession{}, err
	}
	if resp.ID == "" || resp.URL == "" {
		return CheckoutSession{}, fmt.Errorf("stripe: session response missing id or url")
	}
	return CheckoutSession{SessionID: resp.ID, RedirectURL: resp.URL}, nil
}

func (g *Stripe) ResumeCheckout(ctx context.Context, sessionID string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := g.call(ctx, http.MethodGet, "/v1/checkout/sessions/"+sessionID, nil, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("stripe: session %s is no longer open", sessionID)
	}
	return resp.URL, nil
}

func (g *Stripe) VerifySignature(r *http.Request, body []byte) bool {
	header := r.Header.Get("Stripe-Signature")
	if header == "" {
		return false
	}
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, s := range sigs {
		if hmac.Equal([]byte(expected), []byte(s)) {
			return true
		}
	}
	return false
}

func (g *Stripe) ParseEvent(r *http.Request, body []byte) (Event, error) {
	var b struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &b); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	if b.Type == "" || b.Data.Object.ID == "" {
		return Event{}, fmt.Errorf("%w: missing type or object id", ErrBadEvent)
	}
	// the session id is the only external id we track
	typ := "payment"
	if !strings.HasPrefix(b.Type, "checkout.session.") {
		typ = b.Type
	}
	return Event{Type: typ, ExternalID: b.Data.Object.ID}, nil
}

func (g *Stripe) LookupPayment(ctx context.Context, externalID string) (PaymentInfo, error) {
	var resp struct {
		Status        string `json:"status"`         // open | complete | expired
		PaymentStatus string `json:"payment_status"` // paid | unpaid | no_payment_required
		Metadata      struct {
			AttemptID string `json:"attempt_id"`
		} `json:"metadata"`
		ClientReferenceID string `json:"client_reference_id"`
	}
	if err := g.call(ctx, http.MethodGet, "/v1/checkout/sessions/"+externalID, nil, &resp); err != nil {
		return PaymentInfo{Status: StatusUnknown}, err
	}

	attemptID := resp.Metadata.AttemptID
	if attemptID == "" {
		attemptID = resp.ClientReferenceID
	}

	status := StatusPending
	switch {
	case resp.PaymentStatus == "paid":
		status = StatusApproved
	case resp.Status == "expired":
		status = StatusFailed
	}
	return PaymentInfo{Status: status, AttemptID: attemptID}, nil
}

func (g *Stripe) call(ctx context.Context, method, path string, form url.Values, out any) error {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.secretKey, "")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("stripe: %s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
