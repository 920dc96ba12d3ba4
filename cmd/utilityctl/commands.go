package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"utilitychain/config"
	"utilitychain/crypto"
	"utilitychain/native/utility"
)

func requireFlags(fs *flag.FlagSet, names ...string) error {
	seen := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	for _, name := range names {
		if !seen[name] {
			return fmt.Errorf("%w: -%s is required", errUsage, name)
		}
	}
	return nil
}

func identityFlag(name, raw string) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return common.Address{}, fmt.Errorf("%w: -%s is required", errUsage, name)
	}
	id, err := crypto.ParseIdentity(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("-%s: %w", name, err)
	}
	return id, nil
}

// contractIdentity derives the module's holding identity from the operator
// so every deployment gets a distinct, reproducible address.
func contractIdentity(operator common.Address) common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte("utilitychain/contract"), operator.Bytes()))
}

func runInit(ctx context.Context, a *app, args []string) error {
	cf := a.flags("init", false)
	if err := cf.parse(args); err != nil {
		return err
	}
	return a.withRuntime(ctx, "init", cf, func(_ context.Context, rt *runtime) error {
		pass, err := a.passphrases(rt.cfg.KeystorePassEnv).Get()
		if err != nil {
			return err
		}
		operator, created, err := crypto.EnsureKeystore(rt.cfg.KeystorePath, pass)
		if err != nil {
			return fmt.Errorf("operator keystore: %w", err)
		}
		if strings.TrimSpace(rt.cfg.Admin) == "" {
			rt.cfg.Admin = operator.Hex()
		}
		if strings.TrimSpace(rt.cfg.ContractAddress) == "" {
			rt.cfg.ContractAddress = contractIdentity(operator).Hex()
		}
		if err := config.Save(*cf.configPath, rt.cfg); err != nil {
			return err
		}
		return writeJSON(rt.out(), map[string]any{
			"operator":        operator,
			"operatorBech32":  crypto.FromCommon(operator).String(),
			"keystoreCreated": created,
			"keystore":        rt.cfg.KeystorePath,
			"admin":           rt.cfg.Admin,
			"contract":        rt.cfg.ContractAddress,
		})
	})
}

func runSetup(ctx context.Context, a *app, args []string) error {
	cf := a.flags("setup", false)
	adminRaw := cf.String("admin", "", "Admin identity; defaults to the configured Admin")
	if err := cf.parse(args); err != nil {
		return err
	}
	return a.withRuntime(ctx, "setup", cf, func(_ context.Context, rt *runtime) error {
		raw := *adminRaw
		if raw == "" {
			raw = rt.cfg.Admin
		}
		admin, err := identityFlag("admin", raw)
		if err != nil {
			return err
		}
		if err := rt.engine.SetupConfig(admin); err != nil {
			return err
		}
		return writeResult(rt.out(), rt.recorder, map[string]any{"admin": admin})
	})
}

func runGetConfig(ctx context.Context, a *app, args []string) error {
	cf := a.flags("get-config", false)
	if err := cf.parse(args); err != nil {
		return err
	}
	return a.withRuntime(ctx, "get-config", cf, func(_ context.Context, rt *runtime) error {
		admin, err := rt.engine.GetConfig()
		if err != nil {
			return err
		}
		return writeJSON(rt.out(), map[string]any{"admin": admin})
	})
}

func runCreate(ctx context.Context, a *app, args []string) error {
	cf := a.flags("create", true)
	file := cf.String("file", "", "YAML utility definition")
	if err := cf.parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}
	def, err := loadDefinition(*file)
	if err != nil {
		return err
	}
	return a.withRuntime(ctx, "create", cf, func(_ context.Context, rt *runtime) error {
		caller, err := rt.caller()
		if err != nil {
			return err
		}
		id, err := rt.engine.CreateUtility(def, caller)
		if err != nil {
			return err
		}
		return writeResult(rt.out(), rt.recorder, map[string]any{"id": id})
	})
}

func runGet(ctx context.Context, a *app, args []string) error {
	cf := a.flags("get", false)
	id := cf.Uint64("id", 0, "Utility id")
	if err := cf.parse(args); err != nil {
		return err
	}
	if err := requireFlags(cf.FlagSet, "id"); err != nil {
		return err
	}
	return a.withRuntime(ctx, "get", cf, func(_ context.Context, rt *runtime) error {
		u, err := rt.engine.GetUtility(*id)
		if err != nil {
			return err
		}
		return writeJSON(rt.out(), newUtilityView(*id, u))
	})
}

func runList(ctx context.Context, a *app, args []string) error {
	cf := a.flags("list", false)
	if err := cf.parse(args); err != nil {
		return err
	}
	return a.withRuntime(ctx, "list", cf, func(_ context.Context, rt *runtime) error {
		all, err := rt.engine.Utilities()
		if err != nil {
			return err
		}
		views := make([]utilityView, 0, len(all))
		for i, u := range all {
			views = append(views, newUtilityView(uint64(i), u))
		}
		return writeJSON(rt.out(), map[string]any{"count": len(views), "utilities": views})
	})
}

func runJoin(ctx context.Context, a *app, args []string) error {
	cf := a.flags("join", true)
	id := cf.Uint64("id", 0, "Utility id")
	participantRaw := cf.String("participant", "", "Participant identity; defaults to the caller")
	if err := cf.parse(args); err != nil {
		return err
	}
	if err := requireFlags(cf.FlagSet, "id"); err != nil {
		return err
	}
	return a.withRuntime(ctx, "join", cf, func(_ context.Context, rt *runtime) error {
		caller, err := rt.caller()
		if err != nil {
			return err
		}
		participant := caller
		if *participantRaw != "" {
			if participant, err = identityFlag("participant", *participantRaw); err != nil {
				return err
			}
		}
		if err := rt.engine.JoinRaffle(*id, caller, participant); err != nil {
			return err
		}
		return writeResult(rt.out(), rt.recorder, nil)
	})
}

func runEnd(ctx context.Context, a *app, args []string) error {
	cf := a.flags("end", true)
	id := cf.Uint64("id", 0, "Utility id")
	if err := cf.parse(args); err != nil {
		return err
	}
	if err := requireFlags(cf.FlagSet, "id"); err != nil {
		return err
	}
	return a.withRuntime(ctx, "end", cf, func(_ context.Context, rt *runtime) error {
		caller, err := rt.caller()
		if err != nil {
			return err
		}
		if err := rt.engine.EndRaffle(*id, caller); err != nil {
			return err
		}
		return writeResult(rt.out(), rt.recorder, nil)
	})
}

// utilityUserCommand runs commands shaped as "-id n -user id".
func utilityUserCommand(ctx context.Context, a *app, name string, args []string, withFrom bool,
	fn func(rt *runtime, id uint64, user common.Address) error) error {
	cf := a.flags(name, withFrom)
	id := cf.Uint64("id", 0, "Utility id")
	userRaw := cf.String("user", "", "User identity")
	if err := cf.parse(args); err != nil {
		return err
	}
	if err := requireFlags(cf.FlagSet, "id"); err != nil {
		return err
	}
	user, err := identityFlag("user", *userRaw)
	if err != nil {
		return err
	}
	return a.withRuntime(ctx, name, cf, func(_ context.Context, rt *runtime) error {
		return fn(rt, *id, user)
	})
}

func runClaim(ctx context.Context, a *app, args []string) error {
	return utilityUserCommand(ctx, a, "claim", args, true, func(rt *runtime, id uint64, user common.Address) error {
		caller, err := rt.caller()
		if err != nil {
			return err
		}
		if err := rt.engine.ClaimReward(id, user, caller); err != nil {
			return err
		}
		return writeResult(rt.out(), rt.recorder, nil)
	})
}

func runClaimStatus(ctx context.Context, a *app, args []string) error {
	return utilityUserCommand(ctx, a, "claim-status", args, false, func(rt *runtime, id uint64, user common.Address) error {
		claimed, err := rt.engine.ClaimStatus(id, user)
		if err != nil {
			return err
		}
		return writeJSON(rt.out(), map[string]any{"claimed": claimed})
	})
}

func runMarkEligible(ctx context.Context, a *app, args []string) error {
	return utilityUserCommand(ctx, a, "mark-eligible", args, true, func(rt *runtime, id uint64, user common.Address) error {
		caller, err := rt.caller()
		if err != nil {
			return err
		}
		if err := rt.engine.MarkEligible(id, user, caller); err != nil {
			return err
		}
		return writeResult(rt.out(), rt.recorder, nil)
	})
}

func runEligibility(ctx context.Context, a *app, args []string) error {
	cf := a.flags("eligibility", false)
	userRaw := cf.String("user", "", "Only list utility ids for this identity")
	if err := cf.parse(args); err != nil {
		return err
	}
	return a.withRuntime(ctx, "eligibility", cf, func(_ context.Context, rt *runtime) error {
		if *userRaw != "" {
			user, err := identityFlag("user", *userRaw)
			if err != nil {
				return err
			}
			ids, err := rt.engine.EligibleUtilities(user)
			if err != nil {
				return err
			}
			return writeJSON(rt.out(), map[string]any{"user": user, "utilityIds": ids})
		}
		entries, err := rt.engine.EligibilityEntries()
		if err != nil {
			return err
		}
		type entryView struct {
			User      common.Address `json:"user"`
			UtilityID uint64         `json:"utilityId"`
		}
		views := make([]entryView, 0, len(entries))
		for _, entry := range entries {
			views = append(views, entryView{User: entry.User, UtilityID: entry.UtilityID})
		}
		return writeJSON(rt.out(), map[string]any{"entries": views})
	})
}

func runRegisterAsset(ctx context.Context, a *app, args []string) error {
	cf := a.flags("register-asset", true)
	assetRaw := cf.String("asset", "", "Asset identity")
	usageRaw := cf.String("usage-type", "unlimited", "limited or unlimited")
	expiryRaw := cf.String("expiry-type", "none", "none, time or date")
	if err := cf.parse(args); err != nil {
		return err
	}
	asset, err := identityFlag("asset", *assetRaw)
	if err != nil {
		return err
	}
	usageType, err := utility.ParseUsageType(*usageRaw)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	expiryType, err := utility.ParseExpiryType(*expiryRaw)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return a.withRuntime(ctx, "register-asset", cf, func(_ context.Context, rt *runtime) error {
		caller, err := rt.caller()
		if err != nil {
			return err
		}
		if err := rt.engine.RegisterAsset(asset, usageType, expiryType, caller); err != nil {
			return err
		}
		return writeResult(rt.out(), rt.recorder, nil)
	})
}

func runAsset(ctx context.Context, a *app, args []string) error {
	cf := a.flags("asset", false)
	assetRaw := cf.String("asset", "", "Asset identity")
	if err := cf.parse(args); err != nil {
		return err
	}
	asset, err := identityFlag("asset", *assetRaw)
	if err != nil {
		return err
	}
	return a.withRuntime(ctx, "asset", cf, func(_ context.Context, rt *runtime) error {
		tu, err := rt.engine.GetTokenUtility(asset)
		if err != nil {
			return err
		}
		return writeJSON(rt.out(), map[string]any{
			"asset":      asset,
			"usage":      tu.Usage,
			"usageType":  tu.UsageType.String(),
			"expiry":     tu.Expiry,
			"expiryType": tu.ExpiryType.String(),
		})
	})
}

// assetCommand runs commands shaped as "-asset id -id n".
func assetCommand(ctx context.Context, a *app, name string, args []string, withFrom bool, extra func(*commandFlags) func() error,
	fn func(rt *runtime, asset common.Address, id uint64) error) error {
	cf := a.flags(name, withFrom)
	assetRaw := cf.String("asset", "", "Asset identity")
	id := cf.Uint64("id", 0, "Utility id")
	var validate func() error
	if extra != nil {
		validate = extra(cf)
	}
	if err := cf.parse(args); err != nil {
		return err
	}
	if err := requireFlags(cf.FlagSet, "id"); err != nil {
		return err
	}
	asset, err := identityFlag("asset", *assetRaw)
	if err != nil {
		return err
	}
	if validate != nil {
		if err := validate(); err != nil {
			return err
		}
	}
	return a.withRuntime(ctx, name, cf, func(_ context.Context, rt *runtime) error {
		return fn(rt, asset, *id)
	})
}

func runBind(ctx context.Context, a *app, args []string) error {
	var user common.Address
	userFlag := func(cf *commandFlags) func() error {
		raw := cf.String("user", "", "User identity")
		return func() (err error) {
			user, err = identityFlag("user", *raw)
			return err
		}
	}
	return assetCommand(ctx, a, "bind", args, true, userFlag, func(rt *runtime, asset common.Address, id uint64) error {
		caller, err := rt.caller()
		if err != nil {
			return err
		}
		if err := rt.engine.BindToAsset(asset, id, user, caller); err != nil {
			return err
		}
		return writeResult(rt.out(), rt.recorder, nil)
	})
}

func runRedeem(ctx context.Context, a *app, args []string) error {
	return assetCommand(ctx, a, "redeem", args, true, nil, func(rt *runtime, asset common.Address, id uint64) error {
		user, err := rt.caller()
		if err != nil {
			return err
		}
		if err := rt.engine.RedeemUtility(asset, id, user); err != nil {
			return err
		}
		return writeResult(rt.out(), rt.recorder, nil)
	})
}

func runCheck(ctx context.Context, a *app, args []string) error {
	return assetCommand(ctx, a, "check", args, false, nil, func(rt *runtime, asset common.Address, id uint64) error {
		usable, err := rt.engine.CheckUtility(asset, id)
		if err != nil {
			return err
		}
		return writeJSON(rt.out(), map[string]any{"usable": usable})
	})
}

func runOwnership(ctx context.Context, a *app, args []string) error {
	cf := a.flags("ownership", false)
	assetRaw := cf.String("asset", "", "Asset identity")
	userRaw := cf.String("user", "", "User identity")
	if err := cf.parse(args); err != nil {
		return err
	}
	asset, err := identityFlag("asset", *assetRaw)
	if err != nil {
		return err
	}
	user, err := identityFlag("user", *userRaw)
	if err != nil {
		return err
	}
	return a.withRuntime(ctx, "ownership", cf, func(_ context.Context, rt *runtime) error {
		owner, err := rt.engine.CheckOwnership(asset, user)
		if err != nil {
			return err
		}
		return writeJSON(rt.out(), map[string]any{"owner": owner})
	})
}
