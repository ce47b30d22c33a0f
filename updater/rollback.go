package updater

import (
	"context"
	"fmt"
)

// Outcome is the decision reached by TryRollback.
type Outcome int

const (
	// OutcomeNoReference means no reference record exists; nothing was compared
	OutcomeNoReference Outcome = iota

	// OutcomeSizeMismatch means the candidate length differs from the reference
	OutcomeSizeMismatch

	// OutcomeDigestMismatch means the lengths match but the digests differ
	OutcomeDigestMismatch

	// OutcomeRollbackUnavailable means the candidate matches but the flash
	// subsystem refused the rollback
	OutcomeRollbackUnavailable

	// OutcomeReverted means the other slot was selected and the device restarted
	OutcomeReverted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoReference:
		return "no reference"
	case OutcomeSizeMismatch:
		return "size mismatch"
	case OutcomeDigestMismatch:
		return "digest mismatch"
	case OutcomeRollbackUnavailable:
		return "rollback unavailable"
	case OutcomeReverted:
		return "reverted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Reverted reports whether the device was sent back to the other slot.
func (o Outcome) Reverted() bool {
	return o == OutcomeReverted
}

// TryRollback compares the next update partition with the reference
// record and rolls back to it when it is the same image:
//  1. No reference (size 0): stay
//  2. Candidate length differs from the reference size: stay; the digest
//     is not compared
//  3. Any of the 32 digest bytes differ: stay
//  4. The subsystem cannot roll back: stay
//  5. Otherwise roll back once and restart once
//
// Rollback is gated on equality: a candidate identical to the last
// accepted privileged image is booted directly instead of being flashed
// again.
//
// Only subsystem failures during rollback or restart are returned as
// errors; every "stay" outcome is a normal result.
func (u *Updater) TryRollback(ctx context.Context) (Outcome, error) {
	ref := u.refs.Load()
	u.logDebug("trying rollback")

	if ref.IsZero() {
		u.logInfo("no reference image size recorded, cannot check whether rollback is worth a try")
		return OutcomeNoReference, nil
	}

	candidate := u.flash.NextUpdatePartition()
	meta := candidate.Metadata()

	if meta.Length != ref.Size {
		u.logInfo("cancelling rollback, image sizes differ",
			"partition", candidate.String(),
			"candidate", meta.Length,
			"reference", ref.Size,
		)
		return OutcomeSizeMismatch, nil
	}

	u.logDebug("sizes match, checking digest", "size", meta.Length)
	if !meta.Digest.Equal(ref.Digest) {
		u.logInfo("no match for reference digest",
			"candidate", meta.Digest.String(),
			"reference", ref.Digest.String(),
		)
		return OutcomeDigestMismatch, nil
	}

	if !u.flash.CanRollback() {
		u.logError("rollback desired but not available", "partition", candidate.String())
		return OutcomeRollbackUnavailable, nil
	}
	if err := ctx.Err(); err != nil {
		return OutcomeRollbackUnavailable, fmt.Errorf("cancelled: %w", err)
	}

	if err := u.flash.Rollback(); err != nil {
		u.logError("rollback failed", "partition", candidate.String(), "error", err)
		return OutcomeRollbackUnavailable, fmt.Errorf("rollback: %w", err)
	}

	u.logInfo("rollback done, restarting", "partition", candidate.String())
	if err := u.flash.Restart(); err != nil {
		return OutcomeReverted, fmt.Errorf("restart: %w", err)
	}
	return OutcomeReverted, nil
}
