package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formexa/formexa/pkg/billing"
	"github.com/formexa/formexa/pkg/plans"
)

type fakeProvider struct {
	checkouts int
}

func (f *fakeProvider) CreateCheckoutLink(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutLink, error) {
	f.checkouts++
	return &billing.CheckoutLink{
		URL:       "https://checkout.example.com/" + req.PriceID,
		SessionID: "txn_test",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeProvider) GetCustomerPortalLink(ctx context.Context, sub *billing.Subscription) (*billing.PortalLink, error) {
	return &billing.PortalLink{URL: "https://portal.example.com"}, nil
}

func (f *fakeProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*billing.WebhookEvent, error) {
	return nil, nil
}

func testPriceIDs() map[plans.PlanID]map[plans.BillingCycle]string {
	return map[plans.PlanID]map[plans.BillingCycle]string{
		plans.PlanPro: {
			plans.CycleMonthly: "pri_pro_monthly",
			plans.CycleYearly:  "pri_pro_yearly",
		},
		plans.PlanBusiness: {
			plans.CycleMonthly: "pri_business_monthly",
			plans.CycleYearly:  "pri_business_yearly",
		},
	}
}

type serviceEnv struct {
	store   billing.SubscriptionStore
	users   billing.UserDirectory
	svc     *billing.Service
	account billing.Account
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	catalog, err := plans.NewCatalog(context.Background(), plans.NewDefaultSource())
	require.NoError(t, err)

	account := billing.Account{
		ID:     uuid.New(),
		Email:  "jane@example.com",
		Plan:   plans.PlanFree,
		Status: billing.StatusInactive,
	}
	store := billing.NewMemoryStore()
	users := billing.NewMemoryDirectory(account)

	svc := billing.NewService(store, users, catalog, &fakeProvider{},
		billing.WithPriceIDs(testPriceIDs()),
		billing.WithCheckoutURLs("https://app.example.com/billing/success", "https://app.example.com/billing"),
	)
	return &serviceEnv{store: store, users: users, svc: svc, account: account}
}

func TestInitiateFreePlan(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()

	intent, err := env.svc.Initiate(ctx, &env.account, plans.PlanFree, plans.CycleMonthly)
	require.NoError(t, err)
	assert.Nil(t, intent.Checkout, "free tier needs no checkout")
	assert.Nil(t, intent.Subscription)

	acc, err := env.users.FindByEmail(ctx, env.account.Email)
	require.NoError(t, err)
	assert.Equal(t, plans.PlanFree, acc.Plan)
	assert.Equal(t, billing.StatusActive, acc.Status)

	_, err = env.store.GetByUser(ctx, env.account.ID)
	assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
}

func TestInitiatePaidPlan(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()

	intent, err := env.svc.Initiate(ctx, &env.account, plans.PlanPro, plans.CycleMonthly)
	require.NoError(t, err)
	require.NotNil(t, intent.Checkout)
	assert.Contains(t, intent.Checkout.URL, "pri_pro_monthly")

	sub := intent.Subscription
	require.NotNil(t, sub)
	assert.Equal(t, billing.StatusPending, sub.Status)
	assert.Equal(t, plans.PlanPro, sub.Plan)
	assert.Equal(t, plans.Money{Amount: 999, Currency: "USD"}, sub.Price)
	assert.Empty(t, sub.ProviderSubID, "provider id is unknown until the webhook arrives")

	// The plan mirrored on the user does not change before activation.
	acc, err := env.users.FindByEmail(ctx, env.account.Email)
	require.NoError(t, err)
	assert.Equal(t, plans.PlanFree, acc.Plan)
}

func TestInitiateSupersedesPendingCheckout(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()

	first, err := env.svc.Initiate(ctx, &env.account, plans.PlanPro, plans.CycleMonthly)
	require.NoError(t, err)

	second, err := env.svc.Initiate(ctx, &env.account, plans.PlanBusiness, plans.CycleYearly)
	require.NoError(t, err)
	assert.Equal(t, plans.Money{Amount: 29990, Currency: "USD"}, second.Subscription.Price)

	old, err := env.store.Get(ctx, first.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusInactive, old.Status)

	pending, err := env.store.GetPendingByUser(ctx, env.account.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Subscription.ID, pending.ID)
}

func TestInitiateUnknownPlan(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)

	_, err := env.svc.Initiate(context.Background(), &env.account, plans.PlanID("enterprise"), plans.CycleMonthly)
	assert.ErrorIs(t, err, plans.ErrPlanNotFound)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()

	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	sub := &billing.Subscription{
		ID:            uuid.New(),
		UserID:        env.account.ID,
		Plan:          plans.PlanPro,
		BillingCycle:  plans.CycleMonthly,
		Price:         plans.Money{Amount: 999, Currency: "USD"},
		ProviderSubID: "psub_1",
		Status:        billing.StatusActive,
		StartDate:     &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, env.store.Create(ctx, sub))

	cancelled, err := env.svc.Cancel(ctx, env.account.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, "psub_1", cancelled.ProviderSubID, "audit identity survives cancellation")

	acc, err := env.users.FindByEmail(ctx, env.account.Email)
	require.NoError(t, err)
	assert.Equal(t, plans.PlanFree, acc.Plan)
	assert.Equal(t, billing.StatusCancelled, acc.Status)

	_, err = env.svc.Cancel(ctx, env.account.ID)
	assert.ErrorIs(t, err, billing.ErrNoActiveSubscription)
}

func TestCancelWithoutSubscription(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)

	_, err := env.svc.Cancel(context.Background(), env.account.ID)
	assert.ErrorIs(t, err, billing.ErrNoActiveSubscription)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()

	_, err := env.svc.Status(ctx, env.account.ID)
	assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)

	intent, err := env.svc.Initiate(ctx, &env.account, plans.PlanPro, plans.CycleMonthly)
	require.NoError(t, err)

	sub, err := env.svc.Status(ctx, env.account.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.Subscription.ID, sub.ID)
	assert.Equal(t, billing.StatusPending, sub.Status)
}
