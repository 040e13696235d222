// Package models defines the core domain models for debtbook.
//
// # Entities
//
//   - Session: the time-boxed record that authorizes guest-mode data access
//   - Debt: an amount owed, with a running balance maintained by its ledger
//   - IncomeSource: a recurring or one-off source of income
//   - Transaction: one immutable ledger entry against a Debt
//   - User: a registered account in the cloud store
//
// Every entity except Session and User has the same shape in guest storage
// and in the cloud store; only the origin of the ID differs. Guest IDs are
// generated on-device by the guest store and never reach the cloud schema.
//
// # Money
//
// Amounts, balances and rates are decimal.Decimal values. Optional numeric
// fields use decimal.NullDecimal so that "not set" survives both JSON and SQL
// round trips.
//
// # Relationships
//
// Relationships use ID strings instead of pointers. A Transaction always
// references exactly one Debt through DebtID.
package models
