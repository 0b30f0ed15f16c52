// Package entitlement implements the usage ledger and the entitlement guard:
// per-user counters for each metered generation feature, a calendar-month
// reset rule, and limit enforcement against the plan catalog.
//
// The ordering policy is reset-then-check: a due monthly reset is always
// applied before a limit is compared, so a user is never denied on last
// period's counters. Consumption is an atomic conditional increment at the
// store level; two concurrent requests can never both slip under the last
// remaining unit of quota.
package entitlement
