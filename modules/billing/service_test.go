package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingmod "github.com/formexa/formexa/modules/billing"
	"github.com/formexa/formexa/pkg/auth"
	"github.com/formexa/formexa/pkg/billing"
	"github.com/formexa/formexa/pkg/jwt"
	"github.com/formexa/formexa/pkg/plans"
)

// webhookProvider accepts only the "valid" signature and decodes the payload
// as an already-normalized event.
type webhookProvider struct{}

func (p *webhookProvider) CreateCheckoutLink(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutLink, error) {
	return &billing.CheckoutLink{
		URL:       "https://checkout.example.com/" + req.PriceID,
		SessionID: "txn_test",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (p *webhookProvider) GetCustomerPortalLink(ctx context.Context, sub *billing.Subscription) (*billing.PortalLink, error) {
	return &billing.PortalLink{URL: "https://portal.example.com"}, nil
}

func (p *webhookProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*billing.WebhookEvent, error) {
	if signature != "valid" {
		return nil, billing.ErrWebhookVerificationFailed
	}
	var ev billing.WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, errors.Join(billing.ErrWebhookVerificationFailed, err)
	}
	return &ev, nil
}

type env struct {
	handler http.Handler
	token   string
	user    *auth.User
}

func newEnv(t *testing.T) *env {
	t.Helper()

	ctx := context.Background()
	catalog, err := plans.NewCatalog(ctx, plans.NewDefaultSource())
	require.NoError(t, err)

	authSvc := auth.NewPasswordService(auth.NewMemoryStorage(), auth.WithBcryptCost(4))
	user, err := authSvc.Register(ctx, "jane@example.com", "s3cret-password")
	require.NoError(t, err)

	store := billing.NewMemoryStore()
	directory := billing.NewMemoryDirectory(billing.Account{
		ID:     user.ID,
		Email:  user.Email,
		Plan:   user.Plan,
		Status: user.SubscriptionStatus,
	})

	provider := &webhookProvider{}
	billingSvc := billing.NewService(store, directory, catalog, provider,
		billing.WithPriceIDs(map[plans.PlanID]map[plans.BillingCycle]string{
			plans.PlanPro: {
				plans.CycleMonthly: "pri_pro_monthly",
				plans.CycleYearly:  "pri_pro_yearly",
			},
			plans.PlanBusiness: {
				plans.CycleMonthly: "pri_business_monthly",
				plans.CycleYearly:  "pri_business_yearly",
			},
		}),
		billing.WithCheckoutURLs("https://app.example.com/success", "https://app.example.com/cancel"),
	)
	processor := billing.NewProcessor(store, directory)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	modSvc := billingmod.NewService(billingSvc, processor, provider, authSvc, nil, log)

	tokens, err := jwt.NewFromString("test-signing-key")
	require.NoError(t, err)
	token, err := tokens.Generate(auth.NewAccessClaims(user, time.Hour))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/webhooks", modSvc.WebhookRouter())
	r.Group(func(r chi.Router) {
		r.Use(jwt.Middleware[auth.AccessClaims](tokens, nil))
		r.Mount("/billing", modSvc.Router())
	})

	return &env{handler: r, token: token, user: user}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+e.token)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *env) deliver(t *testing.T, signature string, ev billing.WebhookEvent) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/paddle", bytes.NewReader(payload))
	req.Header.Set("Paddle-Signature", signature)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestSubscribeFreePlan(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/billing/subscribe", map[string]string{"plan": "free"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Code string `json:"code"`
		Data struct {
			Plan   string `json:"plan"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "subscribed", body.Code)
	assert.Equal(t, "free", body.Data.Plan)
	assert.Equal(t, "active", body.Data.Status)
}

func TestSubscribeValidation(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/billing/subscribe", map[string]string{"plan": "platinum"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Paid plans need a billing cycle.
	rec = e.do(t, http.MethodPost, "/billing/subscribe", map[string]string{"plan": "pro"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPaidSubscriptionLifecycle(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/billing/subscribe", map[string]string{"plan": "pro", "cycle": "monthly"})
	require.Equal(t, http.StatusOK, rec.Code)

	var checkout struct {
		Code string `json:"code"`
		Data struct {
			CheckoutURL  string `json:"checkout_url"`
			Subscription struct {
				Status string `json:"status"`
			} `json:"subscription"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checkout))
	assert.Equal(t, "checkout_created", checkout.Code)
	assert.Equal(t, "https://checkout.example.com/pri_pro_monthly", checkout.Data.CheckoutURL)
	assert.Equal(t, "pending", checkout.Data.Subscription.Status)

	occurred := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rec = e.deliver(t, "valid", billing.WebhookEvent{
		EventID:         "evt_1",
		Type:            billing.EventSubscriptionCreated,
		SubscriptionID:  "psub_1",
		SubscriberEmail: e.user.Email,
		OccurredAt:      occurred,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.deliver(t, "valid", billing.WebhookEvent{
		EventID:        "evt_2",
		Type:           billing.EventSubscriptionActivated,
		SubscriptionID: "psub_1",
		OccurredAt:     occurred.Add(5 * time.Minute),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/billing/subscription", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sub struct {
		Data struct {
			Plan   string `json:"plan"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, "pro", sub.Data.Plan)
	assert.Equal(t, "active", sub.Data.Status)

	rec = e.do(t, http.MethodPost, "/billing/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cancelled struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, "cancelled", cancelled.Data.Status)

	rec = e.do(t, http.MethodPost, "/billing/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubscriptionFallsBackToUserMirror(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/billing/subscription", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Plan   string `json:"plan"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "free", body.Data.Plan)
	assert.Equal(t, "inactive", body.Data.Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	rec := e.deliver(t, "forged", billing.WebhookEvent{
		EventID: "evt_1",
		Type:    billing.EventSubscriptionCreated,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookAcknowledgesUnmatchedEvents(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	rec := e.deliver(t, "valid", billing.WebhookEvent{
		EventID:         "evt_ghost",
		Type:            billing.EventSubscriptionActivated,
		SubscriptionID:  "psub_unknown",
		SubscriberEmail: "stranger@example.com",
		OccurredAt:      time.Now().UTC(),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookReplayIsSafe(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/billing/subscribe", map[string]string{"plan": "pro", "cycle": "monthly"})
	require.Equal(t, http.StatusOK, rec.Code)

	ev := billing.WebhookEvent{
		EventID:         "evt_1",
		Type:            billing.EventSubscriptionCreated,
		SubscriptionID:  "psub_1",
		SubscriberEmail: e.user.Email,
		OccurredAt:      time.Now().UTC(),
	}
	for i := 0; i < 3; i++ {
		rec = e.deliver(t, "valid", ev)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
