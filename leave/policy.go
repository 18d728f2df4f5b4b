/*
policy.go - The absence-type policy table

PURPOSE:
  Translates an absence's type into its balance effect. This is the single
  place where the four absence types differ.

POLICY TABLE (delta applied to Personnel.LeaveBalance, in days):

  type          | effect when charged | when charged
  --------------+---------------------+------------------------------------
  ANNUAL_LEAVE  | -duration           | on creation (balance must cover it)
  SICK          | 0                   | never
  EXCEPTIONAL   | 0                   | never
  UNJUSTIFIED   | -(duration x 2)     | when AdminValidated flips false->true

  UNJUSTIFIED penalties are clamped at zero: the balance never goes negative,
  excess penalty is capped rather than deferred. The clamp is why the ledger
  records realized deltas (see ledger.go).

SEE ALSO:
  - ledger.go: Applies and reverses these effects
  - service.go: Decides WHEN each effect fires (state machine)
*/
package leave

import "github.com/shopspring/decimal"

// penaltyFactor is the number of leave days deducted per day of validated
// unjustified absence.
const penaltyFactor = 2

// ChargedAtCreation reports whether the type deducts balance when the
// absence is created.
func ChargedAtCreation(t AbsenceType) bool {
	return t == TypeAnnualLeave
}

// PenalizedAtValidation reports whether the type deducts balance when an
// administrator validates the absence.
func PenalizedAtValidation(t AbsenceType) bool {
	return t == TypeUnjustified
}

// RequiresReason reports whether the type mandates a textual reason.
func RequiresReason(t AbsenceType) bool {
	return t == TypeExceptional || t == TypeUnjustified
}

// creationCharge returns the signed creation-time delta for a type and
// duration. Zero for types that are never charged at creation.
func creationCharge(t AbsenceType, duration int) decimal.Decimal {
	if !ChargedAtCreation(t) {
		return decimal.Zero
	}
	return Days(duration).Neg()
}

// validationPenalty returns the signed nominal penalty for a validated
// unjustified absence of the given duration, before clamping.
func validationPenalty(duration int) decimal.Decimal {
	return Days(duration * penaltyFactor).Neg()
}
