package utility

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"utilitychain/observability/logging"
)

func (e *Engine) loadEligibility() ([]EligibilityEntry, error) {
	var entries []EligibilityEntry
	if err := e.state.KVGetList(eligibleKey, &entries); err != nil {
		return nil, fmt.Errorf("utility: load eligibility: %w", err)
	}
	return entries, nil
}

// MarkEligible appends a (user, utility) assertion to the eligibility ledger.
// Entries are not de-duplicated and do not gate claims or redemptions.
func (e *Engine) MarkEligible(id uint64, user, caller common.Address) error {
	return e.run("mark_eligible", caller, true, func(ctx *opContext) error {
		if !ctx.isAdmin() {
			return ErrNotAuthorized
		}
		entries, err := e.loadEligibility()
		if err != nil {
			return err
		}
		entries = append(entries, EligibilityEntry{User: user, UtilityID: id})
		if err := e.state.KVPut(eligibleKey, entries); err != nil {
			return fmt.Errorf("utility: store eligibility: %w", err)
		}
		ctx.log(slog.Uint64("utilityId", id), logging.MaskField("user", user.Hex()))
		ctx.emit(UserEligibleEvent(id, user))
		return nil
	})
}

// EligibilityEntries returns the eligibility ledger in insertion order.
func (e *Engine) EligibilityEntries() ([]EligibilityEntry, error) {
	var out []EligibilityEntry
	err := e.run("eligibility_entries", common.Address{}, false, func(*opContext) error {
		entries, err := e.loadEligibility()
		if err != nil {
			return err
		}
		out = entries
		return nil
	})
	return out, err
}

// EligibleUtilities returns the utility ids user has been marked eligible
// for, in insertion order and without duplicates.
func (e *Engine) EligibleUtilities(user common.Address) ([]uint64, error) {
	entries, err := e.EligibilityEntries()
	if err != nil {
		return nil, err
	}
	seen := make(map[uint64]struct{})
	ids := make([]uint64, 0)
	for _, entry := range entries {
		if entry.User != user {
			continue
		}
		if _, dup := seen[entry.UtilityID]; dup {
			continue
		}
		seen[entry.UtilityID] = struct{}{}
		ids = append(ids, entry.UtilityID)
	}
	return ids, nil
}
