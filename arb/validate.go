package arb

import (
	"errors"
	"fmt"
)

var (
	// ErrOutcomeRequired signals that no terminal outcome was chosen.
	ErrOutcomeRequired = errors.New("arb: outcome is required")
	// ErrInvalidOutcome signals an outcome submission that breaks the
	// per-type rules.
	ErrInvalidOutcome = errors.New("arb: invalid outcome submission")
)

// OutcomeInput carries the conditional fields submitted with an outcome.
type OutcomeInput struct {
	AdjustmentCents *int64
	TransportCents  *int64
}

// allowed enumerates the terminal outcomes per case type. "Buyer Withdrew"
// only exists for sold cases, "Withdrawn" only for inventory cases.
var allowed = map[ArbType][]Outcome{
	TypeSold:      {OutcomeDenied, OutcomePriceAdjustment, OutcomeBuyerWithdrew},
	TypeInventory: {OutcomeDenied, OutcomePriceAdjustment, OutcomeWithdrawn},
}

// ValidateOutcome enforces the submission rules: the outcome must be terminal
// and allowed for the case type, a price adjustment needs a positive
// adjustment amount, and a buyer withdrawal needs a positive transport cost.
// Pure; performs no I/O.
func ValidateOutcome(arbType ArbType, outcome Outcome, input OutcomeInput) error {
	if outcome == "" || outcome == OutcomePending {
		return ErrOutcomeRequired
	}

	outcomes, ok := allowed[arbType]
	if !ok {
		return fmt.Errorf("%w: unknown arb type %q", ErrInvalidOutcome, arbType)
	}
	found := false
	for _, o := range outcomes {
		if o == outcome {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: outcome %q is not valid for %s", ErrInvalidOutcome, outcome, arbType)
	}

	switch outcome {
	case OutcomePriceAdjustment:
		if input.AdjustmentCents == nil || *input.AdjustmentCents <= 0 {
			return fmt.Errorf("%w: price adjustment requires a positive adjustment amount", ErrInvalidOutcome)
		}
	case OutcomeBuyerWithdrew:
		if input.TransportCents == nil || *input.TransportCents <= 0 {
			return fmt.Errorf("%w: buyer withdrawal requires a positive transport cost", ErrInvalidOutcome)
		}
	}

	return nil
}
