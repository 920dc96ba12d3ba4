package utility

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func (e *Engine) loadRegistry() ([]Utility, error) {
	var registry []Utility
	if err := e.state.KVGetList(registryKey, &registry); err != nil {
		return nil, fmt.Errorf("utility: load registry: %w", err)
	}
	return registry, nil
}

func (e *Engine) storeRegistry(registry []Utility) error {
	if registry == nil {
		registry = []Utility{}
	}
	if err := e.state.KVPut(registryKey, registry); err != nil {
		return fmt.Errorf("utility: store registry: %w", err)
	}
	return nil
}

// loadUtility returns the registry together with the entry at id. The entry
// is a pointer into the returned slice so callers can mutate it in place and
// store the registry back.
func (e *Engine) loadUtility(id uint64) ([]Utility, *Utility, error) {
	registry, err := e.loadRegistry()
	if err != nil {
		return nil, nil, err
	}
	if id >= uint64(len(registry)) {
		return nil, nil, fmt.Errorf("%w: id %d", ErrUtilityNotFound, id)
	}
	return registry, &registry[id], nil
}

func validateUtility(u *Utility, now uint64) error {
	if !u.ExpiryType.Valid() || !u.UsageType.Valid() {
		return ErrInvalidExpiry
	}
	if !u.Selection.Valid() {
		return ErrInvalidRaffleSelection
	}
	if !u.Reward.Receipt.Valid() {
		return ErrInvalidReceiptType
	}
	if u.Selection == SelectionRaffle {
		if u.Raffle.StartTime < now || u.Raffle.StartTime > u.OfferExpiry {
			return fmt.Errorf("%w: raffle start %d outside [%d, %d]", ErrInvalidTime, u.Raffle.StartTime, now, u.OfferExpiry)
		}
	}
	if u.OfferExpiry < now {
		return fmt.Errorf("%w: offer expiry %d already passed", ErrInvalidExpiry, u.OfferExpiry)
	}
	if u.UsageType == UsageLimited && u.Usage < 1 {
		return fmt.Errorf("%w: limited usage requires at least one use", ErrInvalidExpiry)
	}
	if (u.ExpiryType == ExpiryTimeBased || u.ExpiryType == ExpiryDateBased) && u.Expiry < now {
		return fmt.Errorf("%w: expiry %d already passed", ErrInvalidExpiry, u.Expiry)
	}
	return nil
}

// reserveAmount is the per-token amount moved into the contract's holding when
// an External reward is created.
func reserveAmount(u *Utility) *uint256.Int {
	if u.Reward.TotalAmount == 0 {
		return uint256.NewInt(1)
	}
	return uint256.NewInt(u.Reward.TotalAmount)
}

// CreateUtility validates u, records the caller as its provider and appends it
// to the registry. External rewards are reserved from the provider's balance
// of every listed token. The new utility's id is returned.
func (e *Engine) CreateUtility(u *Utility, caller common.Address) (uint64, error) {
	if u == nil {
		return 0, errInvalidUtility
	}
	created := u.Clone()
	created.Provider = caller
	var id uint64
	err := e.run("create_utility", caller, true, func(ctx *opContext) error {
		if err := validateUtility(created, ctx.now); err != nil {
			return err
		}
		registry, err := e.loadRegistry()
		if err != nil {
			return err
		}
		if created.Reward.Receipt == ReceiptExternal {
			if err := e.reserve(created); err != nil {
				return err
			}
		}
		id = uint64(len(registry))
		registry = append(registry, *created)
		if err := e.storeRegistry(registry); err != nil {
			return err
		}
		ctx.log(slog.Uint64("utilityId", id))
		ctx.emit(UtilityCreatedEvent(id, created))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// reserve checks the provider covers the reserve on every token before moving
// any of it, so a shortfall on a later token leaves nothing staged.
func (e *Engine) reserve(u *Utility) error {
	if e.tokens == nil {
		return errNilTokens
	}
	if e.contract == (common.Address{}) {
		return errContractNotSet
	}
	amount := reserveAmount(u)
	for _, tok := range u.Reward.TokenAddresses {
		balance, err := e.tokens.BalanceOf(tok, u.Provider)
		if err != nil {
			return fmt.Errorf("utility: balance of %s: %w", tok.Hex(), err)
		}
		if balance.Lt(amount) {
			return fmt.Errorf("%w: provider holds %s of %s, needs %s", ErrInsufficientBalance, balance.Dec(), tok.Hex(), amount.Dec())
		}
	}
	for _, tok := range u.Reward.TokenAddresses {
		if err := e.tokens.TransferFrom(tok, u.Provider, u.Provider, e.contract, amount); err != nil {
			return fmt.Errorf("utility: reserve %s: %w", tok.Hex(), err)
		}
	}
	return nil
}

// GetUtility returns a copy of the utility with the given id.
func (e *Engine) GetUtility(id uint64) (*Utility, error) {
	var out *Utility
	err := e.run("get_utility", common.Address{}, false, func(*opContext) error {
		_, u, err := e.loadUtility(id)
		if err != nil {
			return err
		}
		out = u.Clone()
		return nil
	})
	return out, err
}

// Utilities returns a copy of the full registry in id order.
func (e *Engine) Utilities() ([]*Utility, error) {
	var out []*Utility
	err := e.run("list_utilities", common.Address{}, false, func(*opContext) error {
		registry, err := e.loadRegistry()
		if err != nil {
			return err
		}
		out = make([]*Utility, 0, len(registry))
		for i := range registry {
			out = append(out, registry[i].Clone())
		}
		return nil
	})
	return out, err
}

// Count returns the number of registered utilities.
func (e *Engine) Count() (uint64, error) {
	var n uint64
	err := e.run("count_utilities", common.Address{}, false, func(*opContext) error {
		registry, err := e.loadRegistry()
		if err != nil {
			return err
		}
		n = uint64(len(registry))
		return nil
	})
	return n, err
}
