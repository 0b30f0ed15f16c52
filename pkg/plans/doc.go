// Package plans defines the plan catalog: the closed set of tiers (free, pro,
// business), their per-feature generation limits, and their per-cycle prices.
//
// Limits use an explicit Unlimited sentinel instead of a numeric infinity so
// comparisons never touch floating point. The catalog is validated when it is
// constructed; an unknown plan or missing limit is a configuration error that
// prevents startup, not a runtime failure path.
package plans
