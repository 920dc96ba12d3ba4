package utility

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"utilitychain/observability/logging"
)

// ClaimReward issues one reward of utility id to user. Claims are admin
// mediated and at most once per (utility, user). Every check, including the
// receipt kind, runs before the claim record, pool and token balances are
// touched.
func (e *Engine) ClaimReward(id uint64, user, caller common.Address) error {
	return e.run("claim_reward", caller, true, func(ctx *opContext) error {
		if !ctx.isAdmin() {
			return ErrNotAuthorized
		}
		registry, u, err := e.loadUtility(id)
		if err != nil {
			return err
		}
		if u.Reward.TotalAmount < u.Reward.AmountPerWin {
			return ErrAllRewardsClaimed
		}
		if u.Selection == SelectionRaffle && !u.Raffle.Ended {
			return ErrRaffleNotEnded
		}
		key := claimKey(id, user)
		var claimed bool
		if _, err := e.state.KVGet(key, &claimed); err != nil {
			return fmt.Errorf("utility: load claim record: %w", err)
		}
		if claimed {
			return ErrAlreadyClaimed
		}
		tok, err := e.issuanceToken(u)
		if err != nil {
			return err
		}

		if err := e.state.KVPut(key, true); err != nil {
			return fmt.Errorf("utility: store claim record: %w", err)
		}
		u.Reward.TotalAmount -= u.Reward.AmountPerWin
		if err := e.issue(u.Reward.Receipt, tok, user, u.Reward.AmountPerWin); err != nil {
			return err
		}
		if err := e.storeRegistry(registry); err != nil {
			return err
		}

		receipt, amount := u.Reward.Receipt.String(), u.Reward.AmountPerWin
		ctx.log(slog.Uint64("utilityId", id), logging.MaskField("user", user.Hex()), slog.String("receipt", receipt))
		ctx.emit(RewardClaimedEvent(id, user, tok, amount))
		ctx.onCommit = append(ctx.onCommit, func() {
			if e.metrics != nil {
				e.metrics.RecordRewardIssued(receipt, amount)
			}
		})
		return nil
	})
}

// issuanceToken resolves the token a reward is paid in and rejects receipt
// kinds without an issuance path.
func (e *Engine) issuanceToken(u *Utility) (common.Address, error) {
	switch u.Reward.Receipt {
	case ReceiptMintToken, ReceiptExternal:
	case ReceiptNone, ReceiptHTSToken:
		return common.Address{}, fmt.Errorf("%w: %s receipts cannot be issued", ErrInvalidReceiptType, u.Reward.Receipt)
	default:
		return common.Address{}, ErrInvalidReceiptType
	}
	tok, ok := u.RewardToken()
	if !ok {
		return common.Address{}, fmt.Errorf("%w: no reward token configured", ErrInvalidReceiptType)
	}
	if e.tokens == nil {
		return common.Address{}, errNilTokens
	}
	if e.contract == (common.Address{}) {
		return common.Address{}, errContractNotSet
	}
	return tok, nil
}

func (e *Engine) issue(receipt Receipt, tok, user common.Address, amount uint64) error {
	value := uint256.NewInt(amount)
	switch receipt {
	case ReceiptMintToken:
		if err := e.tokens.Mint(tok, e.contract, user, value); err != nil {
			return fmt.Errorf("utility: mint reward: %w", err)
		}
	case ReceiptExternal:
		if err := e.tokens.TransferFrom(tok, e.contract, e.contract, user, value); err != nil {
			return fmt.Errorf("utility: transfer reward: %w", err)
		}
	default:
		return ErrInvalidReceiptType
	}
	return nil
}

// ClaimStatus reports whether user has claimed the reward of utility id.
func (e *Engine) ClaimStatus(id uint64, user common.Address) (bool, error) {
	var claimed bool
	err := e.run("claim_status", common.Address{}, false, func(*opContext) error {
		if _, err := e.state.KVGet(claimKey(id, user), &claimed); err != nil {
			return fmt.Errorf("utility: load claim record: %w", err)
		}
		return nil
	})
	return claimed, err
}
