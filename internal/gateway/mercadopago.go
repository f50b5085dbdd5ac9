package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"topup-service/internal/config"
	"topup-service/internal/models"
)

// MercadoPago talks to the Mercado Pago checkout-preference and payment
// APIs. Webhooks are authenticated with the HMAC manifest scheme from the
// provider docs: the v1 part of x-signature is HMAC-SHA256 over
// "id:<dataId>;request-id:<reqId>;ts:<ts>;".
type MercadoPago struct {
	accessToken   string
	webhookSecret string
	baseURL       string
	returnBase    string
	client        *http.Client
}

func NewMercadoPago(cfg config.GatewayConfig, returnBase string, timeout time.Duration) *MercadoPago {
	return &MercadoPago{
		accessToken:   cfg.AccessToken,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		returnBase:    strings.TrimRight(returnBase, "/"),
		client:        &http.Client{Timeout: timeout},
	}
}

func (g *MercadoPago) Name() string { return "mercadopago" }

func (g *MercadoPago) CreateCheckout(ctx context.Context, order models.Order, att models.PaymentAttempt) (CheckoutSession, error) {
	payload := map[string]any{
		"items": []map[string]any{{
			"title":       "Coin top-up",
			"quantity":    1,
			"currency_id": "BRL",
			"unit_price":  att.Amount.InexactFloat64(),
		}},
		"back_urls": map[string]string{
			"success": g.returnBase + "/payments/return/success",
			"failure": g.returnBase + "/payments/return/failure",
			"pending": g.returnBase + "/payments/return/pending",
		},
		"auto_return":        "approved",
		"external_reference": att.ID,
		"metadata":           map[string]string{"attempt_id": att.ID},
	}

	var resp struct {
		ID        string `json:"id"`
		InitPoint string `json:"init_point"`
	}
	if err := g.call(ctx, http.MethodPost, "/checkout/preferences", payload, &resp); err != nil {
		return CheckoutSession{}, err
	}
	if resp.ID == "" || resp.InitPoint == "" {
		return CheckoutSession{}, fmt.Errorf("mercadopago: preference response missing id or init_point")
	}
	return CheckoutSession{SessionID: resp.ID, RedirectURL: resp.InitPoint}, nil
}

func (g *MercadoPago) ResumeCheckout(ctx context.Context, sessionID string) (string, error) {
	var resp struct {
		InitPoint string `json:"init_point"`
	}
	if err := g.call(ctx, http.MethodGet, "/checkout/preferences/"+sessionID, nil, &resp); err != nil {
		return "", err
	}
	if resp.InitPoint == "" {
		return "", fmt.Errorf("mercadopago: preference %s has no init_point", sessionID)
	}
	return resp.InitPoint, nil
}

func (g *MercadoPago) VerifySignature(r *http.Request, body []byte) bool {
	xSignature := r.Header.Get("x-signature")
	xRequestID := r.Header.Get("x-request-id")
	if xSignature == "" || xRequestID == "" {
		return false
	}

	dataID := r.URL.Query().Get("data.id")
	if dataID == "" {
		var b struct {
			ID   json.Number `json:"id"`
			Data struct {
				ID json.Number `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &b); err != nil {
			return false
		}
		dataID = b.Data.ID.String()
		if dataID == "" {
			dataID = b.ID.String()
		}
	}
	if dataID == "" {
		return false
	}

	var ts, v1 string
	for _, part := range strings.Split(xSignature, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return false
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, xRequestID, ts)
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(v1))
}

func (g *MercadoPago) ParseEvent(r *http.Request, body []byte) (Event, error) {
	var b struct {
		Type string      `json:"type"`
		ID   json.Number `json:"id"`
		Data struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &b); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	if b.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrBadEvent)
	}
	// alternative topic notifications carry the same payload
	if b.Type == "topic_merchant_order_wh" {
		b.Type = "merchant_order"
	}

	id := b.Data.ID.String()
	if id == "" || b.Type == "merchant_order" {
		// merchant_order events put the id at the root
		if root := b.ID.String(); root != "" {
			id = root
		}
	}
	if id == "" {
		return Event{}, fmt.Errorf("%w: missing id", ErrBadEvent)
	}
	return Event{Type: b.Type, ExternalID: id}, nil
}

func (g *MercadoPago) LookupPayment(ctx context.Context, externalID string) (PaymentInfo, error) {
	var resp struct {
		Status   string `json:"status"`
		Metadata struct {
			AttemptID string `json:"attempt_id"`
		} `json:"metadata"`
	}
	if err := g.call(ctx, http.MethodGet, "/v1/payments/"+externalID, nil, &resp); err != nil {
		return PaymentInfo{Status: StatusUnknown}, err
	}
	return PaymentInfo{Status: mapMPStatus(resp.Status), AttemptID: resp.Metadata.AttemptID}, nil
}

type mpPayment struct {
	Status string `json:"status"`
}

func anyApproved(payments []mpPayment) bool {
	for _, p := range payments {
		if p.Status == "approved" {
			return true
		}
	}
	return false
}

func (g *MercadoPago) LookupOrder(ctx context.Context, externalID string) (PaymentInfo, error) {
	var resp struct {
		ExternalReference string      `json:"external_reference"`
		Payments          []mpPayment `json:"payments"`
	}
	if err := g.call(ctx, http.MethodGet, "/merchant_orders/"+externalID, nil, &resp); err != nil {
		return PaymentInfo{Status: StatusUnknown}, err
	}
	status := StatusPending
	if anyApproved(resp.Payments) {
		status = StatusApproved
	}
	return PaymentInfo{Status: status, AttemptID: resp.ExternalReference}, nil
}

func (g *MercadoPago) SearchOrder(ctx context.Context, attemptID string) (Status, error) {
	var resp struct {
		Elements []struct {
			Payments []mpPayment `json:"payments"`
		} `json:"elements"`
	}
	if err := g.call(ctx, http.MethodGet, "/merchant_orders/search?external_reference="+attemptID, nil, &resp); err != nil {
		return StatusUnknown, err
	}
	for _, el := range resp.Elements {
		if anyApproved(el.Payments) {
			return StatusApproved, nil
		}
	}
	return StatusPending, nil
}

func mapMPStatus(s string) Status {
	switch s {
	case "approved":
		return StatusApproved
	case "pending", "in_process", "in_mediation", "authorized":
		return StatusPending
	case "rejected", "cancelled", "refunded", "charged_back":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

func (g *MercadoPago) call(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("mercadopago: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mercadopago: %s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
