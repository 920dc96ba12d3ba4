package utility

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"utilitychain/observability/logging"
)

func (e *Engine) loadTokenUtilities() ([]tokenUtilityEntry, error) {
	var entries []tokenUtilityEntry
	if err := e.state.KVGetList(tokenUtilityKey, &entries); err != nil {
		return nil, fmt.Errorf("utility: load asset utilities: %w", err)
	}
	return entries, nil
}

func (e *Engine) storeTokenUtilities(entries []tokenUtilityEntry) error {
	if err := e.state.KVPut(tokenUtilityKey, entries); err != nil {
		return fmt.Errorf("utility: store asset utilities: %w", err)
	}
	return nil
}

// findTokenUtility scans the asset index. The index is expected to stay small.
func findTokenUtility(entries []tokenUtilityEntry, asset common.Address) (int, bool) {
	for i := range entries {
		if entries[i].Asset == asset {
			return i, true
		}
	}
	return -1, false
}

func (e *Engine) loadTokenUtility(asset common.Address) ([]tokenUtilityEntry, *TokenUtility, error) {
	entries, err := e.loadTokenUtilities()
	if err != nil {
		return nil, nil, err
	}
	idx, ok := findTokenUtility(entries, asset)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no utility bound to asset %s", ErrUtilityNotFound, asset.Hex())
	}
	return entries, &entries[idx].Utility, nil
}

// RegisterAsset creates the empty utility record of asset that BindToAsset
// populates later.
func (e *Engine) RegisterAsset(asset common.Address, usageType UsageType, expiryType ExpiryType, caller common.Address) error {
	return e.run("register_asset", caller, true, func(ctx *opContext) error {
		if !ctx.isAdmin() {
			return ErrNotAuthorized
		}
		if !usageType.Valid() || !expiryType.Valid() {
			return ErrInvalidExpiry
		}
		entries, err := e.loadTokenUtilities()
		if err != nil {
			return err
		}
		if _, exists := findTokenUtility(entries, asset); exists {
			return ErrAssetRegistered
		}
		tu := TokenUtility{UsageType: usageType, ExpiryType: expiryType}
		entries = append(entries, tokenUtilityEntry{Asset: asset, Utility: tu})
		if err := e.storeTokenUtilities(entries); err != nil {
			return err
		}
		ctx.log(slog.String("asset", asset.Hex()))
		ctx.emit(AssetRegisteredEvent(asset, tu))
		return nil
	})
}

// GetTokenUtility returns the utility record bound to asset.
func (e *Engine) GetTokenUtility(asset common.Address) (TokenUtility, error) {
	var out TokenUtility
	err := e.run("get_token_utility", common.Address{}, false, func(*opContext) error {
		_, tu, err := e.loadTokenUtility(asset)
		if err != nil {
			return err
		}
		out = *tu
		return nil
	})
	return out, err
}

// BindToAsset applies utility id to the record of asset. The caller must be
// both the admin and the utility's provider. Limited records take the
// template's usage; expiry is resolved from the template's expiry type.
func (e *Engine) BindToAsset(asset common.Address, id uint64, user, caller common.Address) error {
	return e.run("bind_to_asset", caller, true, func(ctx *opContext) error {
		if !ctx.isAdmin() {
			return ErrNotAuthorized
		}
		_, u, err := e.loadUtility(id)
		if err != nil {
			return err
		}
		if u.Provider != ctx.caller {
			return ErrNotAuthorized
		}
		entries, tu, err := e.loadTokenUtility(asset)
		if err != nil {
			return err
		}
		if tu.UsageType == UsageLimited {
			tu.Usage = u.Usage
		}
		switch u.ExpiryType {
		case ExpiryTimeBased:
			if u.Expiry > math.MaxUint64-ctx.now {
				return fmt.Errorf("%w: expiry overflows", ErrInvalidExpiry)
			}
			tu.Expiry = u.Expiry + ctx.now
		case ExpiryDateBased:
			tu.Expiry = u.Expiry
		}
		if err := e.storeTokenUtilities(entries); err != nil {
			return err
		}
		ctx.log(slog.Uint64("utilityId", id), slog.String("asset", asset.Hex()), logging.MaskField("user", user.Hex()))
		ctx.emit(UtilityClaimedEvent(asset, user, id))
		return nil
	})
}

// RedeemUtility consumes one use of utility id through asset on behalf of its
// holder. Limited redemptions draw on the template's shared usage counter.
func (e *Engine) RedeemUtility(asset common.Address, id uint64, user common.Address) error {
	return e.run("redeem_utility", user, true, func(ctx *opContext) error {
		if e.tokens == nil {
			return errNilTokens
		}
		owner, err := e.tokens.IsAuthorizedHolder(asset, user)
		if err != nil {
			return fmt.Errorf("utility: ownership of %s: %w", asset.Hex(), err)
		}
		if !owner {
			return ErrNotAuthorized
		}
		registry, u, err := e.loadUtility(id)
		if err != nil {
			return err
		}
		_, tu, err := e.loadTokenUtility(asset)
		if err != nil {
			return err
		}
		if u.ExpiryType == ExpiryNone && tu.Expiry < ctx.now {
			return ErrUtilityExpired
		}
		if tu.UsageType == UsageLimited {
			if u.Usage == 0 {
				return ErrUsageExceeded
			}
			u.Usage--
			if err := e.storeRegistry(registry); err != nil {
				return err
			}
		}
		ctx.log(slog.Uint64("utilityId", id), slog.String("asset", asset.Hex()))
		ctx.emit(UtilityRedeemedEvent(asset, user, id))
		return nil
	})
}

// CheckUtility reports whether utility id can still be used through asset.
// An empty registry yields false; an unknown id in a populated registry fails
// with ErrUtilityNotFound.
func (e *Engine) CheckUtility(asset common.Address, id uint64) (bool, error) {
	var usable bool
	err := e.run("check_utility", common.Address{}, false, func(ctx *opContext) error {
		registry, err := e.loadRegistry()
		if err != nil {
			return err
		}
		if len(registry) == 0 {
			return nil
		}
		if id >= uint64(len(registry)) {
			return fmt.Errorf("%w: id %d", ErrUtilityNotFound, id)
		}
		u := &registry[id]
		_, tu, err := e.loadTokenUtility(asset)
		if err != nil {
			return err
		}
		usable = true
		if u.ExpiryType == ExpiryNone && tu.Expiry < ctx.now {
			usable = false
		}
		// Gated on the template's usage type being anything but Limited.
		if u.UsageType != UsageLimited && tu.Usage == 0 {
			usable = false
		}
		return nil
	})
	return usable, err
}

// CheckOwnership reports whether user is an authorised holder of asset.
func (e *Engine) CheckOwnership(asset, user common.Address) (bool, error) {
	var owner bool
	err := e.run("check_ownership", user, false, func(*opContext) error {
		if e.tokens == nil {
			return errNilTokens
		}
		ok, err := e.tokens.IsAuthorizedHolder(asset, user)
		if err != nil {
			return fmt.Errorf("utility: ownership of %s: %w", asset.Hex(), err)
		}
		owner = ok
		return nil
	})
	return owner, err
}
