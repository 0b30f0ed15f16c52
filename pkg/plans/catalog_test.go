package plans_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formexa/formexa/pkg/plans"
)

func defaultCatalog(t *testing.T) *plans.Catalog {
	t.Helper()
	catalog, err := plans.NewCatalog(context.Background(), plans.NewDefaultSource())
	require.NoError(t, err)
	return catalog
}

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	catalog := defaultCatalog(t)

	t.Run("free tier limits", func(t *testing.T) {
		t.Parallel()

		limits, err := catalog.LimitsFor(plans.PlanFree)
		require.NoError(t, err)
		assert.Equal(t, plans.Limit(5), limits[plans.FeatureArticles])
		assert.Equal(t, plans.Limit(2), limits[plans.FeatureImages])
		assert.Equal(t, plans.Limit(5), limits[plans.FeatureCode])
	})

	t.Run("business tier is unbounded", func(t *testing.T) {
		t.Parallel()

		for _, feature := range plans.Features() {
			limit, err := catalog.LimitFor(plans.PlanBusiness, feature)
			require.NoError(t, err)
			assert.True(t, limit.IsUnlimited())
		}
	})

	t.Run("prices", func(t *testing.T) {
		t.Parallel()

		price, err := catalog.PriceFor(plans.PlanPro, plans.CycleMonthly)
		require.NoError(t, err)
		assert.Equal(t, plans.Money{Amount: 999, Currency: "USD"}, price)

		price, err = catalog.PriceFor(plans.PlanBusiness, plans.CycleYearly)
		require.NoError(t, err)
		assert.Equal(t, plans.Money{Amount: 29990, Currency: "USD"}, price)

		price, err = catalog.PriceFor(plans.PlanFree, plans.CycleMonthly)
		require.NoError(t, err)
		assert.True(t, price.IsZero())
	})

	t.Run("unknown lookups", func(t *testing.T) {
		t.Parallel()

		_, err := catalog.Plan("enterprise")
		assert.ErrorIs(t, err, plans.ErrPlanNotFound)

		_, err = catalog.LimitFor(plans.PlanFree, "videos")
		assert.ErrorIs(t, err, plans.ErrInvalidFeature)

		_, err = catalog.PriceFor(plans.PlanPro, "weekly")
		assert.ErrorIs(t, err, plans.ErrInvalidBillingCycle)
	})
}

func TestCatalogValidation(t *testing.T) {
	t.Parallel()

	// Mutating a single default plan keeps the fixtures honest.
	broken := func(mutate func(map[plans.PlanID]plans.Plan)) plans.Source {
		list := plans.Defaults()
		m := make(map[plans.PlanID]plans.Plan, len(list))
		for _, p := range list {
			m[p.ID] = p
		}
		mutate(m)
		var out []plans.Plan
		for _, p := range m {
			out = append(out, p)
		}
		return plans.NewInMemSource(out...)
	}

	tests := []struct {
		name   string
		source plans.Source
	}{
		{
			name: "missing tier",
			source: broken(func(m map[plans.PlanID]plans.Plan) {
				delete(m, plans.PlanPro)
			}),
		},
		{
			name: "missing feature limit",
			source: broken(func(m map[plans.PlanID]plans.Plan) {
				p := m[plans.PlanFree]
				delete(p.Limits, plans.FeatureImages)
				m[plans.PlanFree] = p
			}),
		},
		{
			name: "negative limit",
			source: broken(func(m map[plans.PlanID]plans.Plan) {
				p := m[plans.PlanFree]
				p.Limits[plans.FeatureCode] = -5
				m[plans.PlanFree] = p
			}),
		},
		{
			name: "unknown feature",
			source: broken(func(m map[plans.PlanID]plans.Plan) {
				p := m[plans.PlanPro]
				p.Limits["videos"] = 10
				m[plans.PlanPro] = p
			}),
		},
		{
			name: "missing price",
			source: broken(func(m map[plans.PlanID]plans.Plan) {
				p := m[plans.PlanBusiness]
				delete(p.Prices, plans.CycleYearly)
				m[plans.PlanBusiness] = p
			}),
		},
		{
			name: "price without currency",
			source: broken(func(m map[plans.PlanID]plans.Plan) {
				p := m[plans.PlanPro]
				p.Prices[plans.CycleMonthly] = plans.Money{Amount: 999}
				m[plans.PlanPro] = p
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := plans.NewCatalog(context.Background(), tt.source)
			assert.ErrorIs(t, err, plans.ErrInvalidPlanConfiguration)
		})
	}
}

func TestCatalogIsolation(t *testing.T) {
	t.Parallel()

	catalog := defaultCatalog(t)

	plan, err := catalog.Plan(plans.PlanFree)
	require.NoError(t, err)
	plan.Limits[plans.FeatureArticles] = 1000

	again, err := catalog.Plan(plans.PlanFree)
	require.NoError(t, err)
	assert.Equal(t, plans.Limit(5), again.Limits[plans.FeatureArticles])
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	t.Run("overrides defaults", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "plans.yml")
		require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - id: free
    name: Free
    limits: {articles: 3, images: 1, code: 3}
    prices:
      monthly: {amount: 0, currency: USD}
      yearly: {amount: 0, currency: USD}
  - id: pro
    name: Pro
    limits: {articles: 200, images: 80, code: 200}
    prices:
      monthly: {amount: 1499, currency: EUR}
      yearly: {amount: 14990, currency: EUR}
  - id: business
    name: Business
    limits: {articles: -1, images: -1, code: -1}
    prices:
      monthly: {amount: 2999, currency: EUR}
      yearly: {amount: 29990, currency: EUR}
`), 0o600))

		catalog, err := plans.NewCatalog(context.Background(), plans.NewFileSource(path))
		require.NoError(t, err)

		limit, err := catalog.LimitFor(plans.PlanFree, plans.FeatureArticles)
		require.NoError(t, err)
		assert.Equal(t, plans.Limit(3), limit)

		price, err := catalog.PriceFor(plans.PlanPro, plans.CycleMonthly)
		require.NoError(t, err)
		assert.Equal(t, plans.Money{Amount: 1499, Currency: "EUR"}, price)

		limit, err = catalog.LimitFor(plans.PlanBusiness, plans.FeatureCode)
		require.NoError(t, err)
		assert.True(t, limit.IsUnlimited())
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := plans.NewCatalog(context.Background(), plans.NewFileSource("/nonexistent/plans.yml"))
		assert.ErrorIs(t, err, plans.ErrFailedToLoadPlans)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "plans.yml")
		require.NoError(t, os.WriteFile(path, []byte("plans: [not: valid: yaml"), 0o600))

		_, err := plans.NewCatalog(context.Background(), plans.NewFileSource(path))
		assert.ErrorIs(t, err, plans.ErrFailedToLoadPlans)
	})
}

func TestLimitAllows(t *testing.T) {
	t.Parallel()

	assert.True(t, plans.Limit(5).Allows(4))
	assert.False(t, plans.Limit(5).Allows(5))
	assert.False(t, plans.Limit(0).Allows(0))
	assert.True(t, plans.Unlimited.Allows(1<<40))
}
