package main

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
)

// runToken dispatches the token ledger helpers operators use to fund
// providers and record asset holders.
func runToken(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: token needs a subcommand (register, mint, pause-mint, approve, allowance, balance, set-holder)", errUsage)
	}
	switch args[0] {
	case "register":
		return runTokenRegister(ctx, a, args[1:])
	case "mint":
		return runTokenMint(ctx, a, args[1:])
	case "pause-mint":
		return runTokenPauseMint(ctx, a, args[1:])
	case "approve":
		return runTokenApprove(ctx, a, args[1:])
	case "allowance":
		return runTokenAllowance(ctx, a, args[1:])
	case "balance":
		return runTokenBalance(ctx, a, args[1:])
	case "set-holder":
		return runTokenSetHolder(ctx, a, args[1:])
	default:
		return fmt.Errorf("%w: unknown token subcommand %q", errUsage, args[0])
	}
}

func parseAmount(raw string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: -amount %q: %v", errUsage, raw, err)
	}
	return amount, nil
}

func runTokenRegister(ctx context.Context, a *app, args []string) error {
	cf := a.flags("token register", false)
	tokenRaw := cf.String("token", "", "Token identity")
	symbol := cf.String("symbol", "", "Token symbol")
	authorityRaw := cf.String("mint-authority", "", "Mint authority; defaults to the configured contract address")
	if err := cf.parse(args); err != nil {
		return err
	}
	tok, err := identityFlag("token", *tokenRaw)
	if err != nil {
		return err
	}
	return a.withRuntime(ctx, "token-register", cf, func(_ context.Context, rt *runtime) error {
		authority := rt.engine.ContractAddress()
		if *authorityRaw != "" {
			if authority, err = identityFlag("mint-authority", *authorityRaw); err != nil {
				return err
			}
		}
		if err := rt.commitLedger(rt.ledger.RegisterToken(tok, *symbol, authority)); err != nil {
			return err
		}
		return writeJSON(rt.out(), map[string]any{"token": tok, "mintAuthority": authority})
	})
}

func runTokenMint(ctx context.Context, a *app, args []string) error {
	cf := a.flags("token mint", true)
	tokenRaw := cf.String("token", "", "Token identity")
	toRaw := cf.String("to", "", "Recipient identity")
	amountRaw := cf.String("amount", "", "Amount in base units")
	if err := cf.parse(args); err != nil {
		return err
	}
	tok, err := identityFlag("token", *tokenRaw)
	if err != nil {
		return err
	}
	to, err := identityFlag("to", *toRaw)
	if err != nil {
		return err
	}
	amount, err := parseAmount(*amountRaw)
	if err != nil {
		return err
	}
	return a.withRuntime(ctx, "token-mint", cf, func(_ context.Context, rt *runtime) error {
		minter, err := rt.caller()
		if err != nil {
			return err
		}
		if err := rt.commitLedger(rt.ledger.Mint(tok, minter, to, amount)); err != nil {
			return err
		}
		return writeJSON(rt.out(), map[string]any{"token": tok, "to": to, "amount": amount.Dec()})
	})
}

// runTokenPauseMint toggles minting of a token. MintToken rewards of a
// paused token fail at claim time.
func runTokenPauseMint(ctx context.Context, a *app, args []string) error {
	cf := a.flags("token pause-mint", true)
	tokenRaw := cf.String("token", "", "Token identity")
	paused := cf.Bool("paused", true, "Pause (true) or resume (false) minting")
	if err := cf.parse(args); err != nil {
		return err
	}
	tok, err := identityFlag("token", *tokenRaw)
	if err != nil {
		return err
	}
	return a.withRuntime(ctx, "token-pause-mint", cf, func(_ context.Context, rt *runtime) error {
		caller, err := rt.caller()
		if err != nil {
			return err
		}
		if err := rt.commitLedger(rt.ledger.SetMintPaused(tok, caller, *paused)); err != nil {
			return err
		}
		return writeJSON(rt.out(), map[string]any{"token": tok, "mintPaused": *paused})
	})
}

func runTokenApprove(ctx context.Context, a *app, args []string) error {
	cf := a.flags("token approve", true)
	tokenRaw := cf.String("token", "", "Token identity")
	spenderRaw := cf.String("spender", "", "Spender identity")
	amountRaw := cf.String("amount", "", "Allowance in base units")
	if err := cf.parse(args); err != nil {
		return err
	}
	tok, err := identityFlag("token", *tokenRaw)
	if err != nil {
		return err
	}
	spender, err := identityFlag("spender", *spenderRaw)
	if err != nil {
		return err
	}
	amount, err := parseAmount(*amountRaw)
	if err != nil {
		return err
	}
	return a.withRuntime(ctx, "token-approve", cf, func(_ context.Context, rt *runtime) error {
		owner, err := rt.caller()
		if err != nil {
			return err
		}
		if err := rt.commitLedger(rt.ledger.Approve(tok, owner, spender, amount)); err != nil {
			return err
		}
		return writeJSON(rt.out(), map[string]any{"token": tok, "owner": owner, "spender": spender, "amount": amount.Dec()})
	})
}

func runTokenAllowance(ctx context.Context, a *app, args []string) error {
	cf := a.flags("token allowance", false)
	tokenRaw := cf.String("token", "", "Token identity")
	ownerRaw := cf.String("owner", "", "Owner identity")
	spenderRaw := cf.String("spender", "", "Spender identity")
	if err := cf.parse(args); err != nil {
		return err
	}
	tok, err := identityFlag("token", *tokenRaw)
	if err != nil {
		return err
	}
	owner, err := identityFlag("owner", *ownerRaw)
	if err != nil {
		return err
	}
	spender, err := identityFlag("spender", *spenderRaw)
	if err != nil {
		return err
	}
	return a.withRuntime(ctx, "token-allowance", cf, func(_ context.Context, rt *runtime) error {
		allowance, err := rt.ledger.Allowance(tok, owner, spender)
		if err != nil {
			return err
		}
		return writeJSON(rt.out(), map[string]any{"token": tok, "owner": owner, "spender": spender, "allowance": allowance.Dec()})
	})
}

func runTokenBalance(ctx context.Context, a *app, args []string) error {
	cf := a.flags("token balance", false)
	tokenRaw := cf.String("token", "", "Token identity")
	holderRaw := cf.String("holder", "", "Holder identity")
	if err := cf.parse(args); err != nil {
		return err
	}
	tok, err := identityFlag("token", *tokenRaw)
	if err != nil {
		return err
	}
	holder, err := identityFlag("holder", *holderRaw)
	if err != nil {
		return err
	}
	return a.withRuntime(ctx, "token-balance", cf, func(_ context.Context, rt *runtime) error {
		balance, err := rt.ledger.BalanceOf(tok, holder)
		if err != nil {
			return err
		}
		return writeJSON(rt.out(), map[string]any{"token": tok, "holder": holder, "balance": balance.Dec()})
	})
}

func runTokenSetHolder(ctx context.Context, a *app, args []string) error {
	cf := a.flags("token set-holder", false)
	assetRaw := cf.String("asset", "", "Asset identity")
	holderRaw := cf.String("holder", "", "Holder identity")
	if err := cf.parse(args); err != nil {
		return err
	}
	asset, err := identityFlag("asset", *assetRaw)
	if err != nil {
		return err
	}
	holder, err := identityFlag("holder", *holderRaw)
	if err != nil {
		return err
	}
	return a.withRuntime(ctx, "token-set-holder", cf, func(_ context.Context, rt *runtime) error {
		if err := rt.commitLedger(rt.ledger.SetHolder(asset, holder)); err != nil {
			return err
		}
		return writeJSON(rt.out(), map[string]any{"asset": asset, "holder": holder})
	})
}
