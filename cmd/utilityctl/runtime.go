package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"utilitychain/config"
	"utilitychain/core/events"
	"utilitychain/core/state"
	"utilitychain/crypto"
	"utilitychain/native/token"
	"utilitychain/native/utility"
	"utilitychain/observability"
	"utilitychain/observability/logging"
	"utilitychain/observability/otel"
	"utilitychain/storage"
)

var errUsage = errors.New("invalid usage")

// commandFlags holds the flags every command accepts.
type commandFlags struct {
	*flag.FlagSet
	configPath *string
	from       *string
}

func (a *app) flags(name string, withFrom bool) *commandFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	cf := &commandFlags{
		FlagSet:    fs,
		configPath: fs.String("config", defaultConfig, "Path to the utility config file"),
	}
	if withFrom {
		cf.from = fs.String("from", "", "Acting identity (hex or utl bech32); defaults to the operator keystore")
	}
	return cf
}

func (cf *commandFlags) parse(args []string) error {
	if err := cf.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if cf.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, cf.Args())
	}
	return nil
}

// runtime is the per-invocation wiring of storage, state, token ledger and
// the utility engine.
type runtime struct {
	app       *app
	cfg       *config.Config
	requestID string
	logger    *slog.Logger
	db        *storage.LevelDB
	state     *state.Manager
	ledger    *token.Ledger
	engine    *utility.Engine
	recorder  *events.Recorder
	from      string
}

// withRuntime loads the config, wires the engine and runs fn inside a traced
// command span. Everything opened here is released before it returns.
func (a *app) withRuntime(ctx context.Context, name string, cf *commandFlags, fn func(context.Context, *runtime) error) (err error) {
	cfg, err := config.Load(*cf.configPath)
	if err != nil {
		return err
	}

	logOpts := cfg.LogOptions()
	logOpts.Output = a.stderr
	baseLogger, logCloser, err := logging.SetupWithOptions(serviceName, cfg.Environment, logOpts)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	shutdown, err := otel.Init(ctx, cfg.TelemetryConfig(serviceName))
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := shutdown(context.Background()); shutdownErr != nil {
			baseLogger.Warn("telemetry shutdown failed", slog.Any("error", shutdownErr))
		}
	}()
	telemetry, err := otel.NewCommandTelemetry(nil, nil)
	if err != nil {
		return err
	}

	rt := &runtime{
		app:       a,
		cfg:       cfg,
		requestID: uuid.NewString(),
	}
	if cf.from != nil {
		rt.from = *cf.from
	}
	rt.logger = baseLogger.With(slog.String("requestId", rt.requestID), slog.String("command", name))

	if err := rt.open(); err != nil {
		return err
	}
	defer rt.db.Close()

	err = telemetry.Run(ctx, name, rt.requestID, outcome, func(ctx context.Context) error {
		return fn(ctx, rt)
	})
	if err != nil {
		rt.logger.Debug("command failed", slog.String("outcome", outcome(err)), slog.Any("error", err))
	} else {
		rt.logger.Info("command completed")
	}
	if path := strings.TrimSpace(cfg.Telemetry.PromTextfile); path != "" {
		if writeErr := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); writeErr != nil {
			rt.logger.Warn("prometheus textfile write failed", slog.Any("error", writeErr))
		}
	}
	return err
}

func (rt *runtime) open() error {
	db, err := storage.NewLevelDB(rt.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open data dir %s: %w", rt.cfg.DataDir, err)
	}
	rt.db = db
	rt.state = state.NewManager(db)
	rt.ledger = token.NewLedger(rt.state)
	rt.recorder = &events.Recorder{}

	engine := utility.NewEngine()
	engine.SetState(rt.state)
	engine.SetTokens(rt.ledger)
	engine.SetEmitter(events.Fanout{observability.NewEventCounter(), rt.recorder})
	engine.SetPauses(rt.cfg.Pauses.View())
	engine.SetLogger(rt.logger)
	engine.SetMetrics(observability.Utility())
	contract, _, err := rt.cfg.ContractIdentity()
	if err != nil {
		db.Close()
		return err
	}
	engine.SetContractAddress(contract)
	rt.engine = engine
	return nil
}

// caller resolves the acting identity: the -from flag when given, otherwise
// the operator keystore.
func (rt *runtime) caller() (common.Address, error) {
	if strings.TrimSpace(rt.from) != "" {
		return crypto.ParseIdentity(rt.from)
	}
	return rt.operator()
}

func (rt *runtime) operator() (common.Address, error) {
	pass, err := rt.app.passphrases(rt.cfg.KeystorePassEnv).Get()
	if err != nil {
		return common.Address{}, err
	}
	key, err := crypto.LoadFromKeystore(rt.cfg.KeystorePath, pass)
	if err != nil {
		return common.Address{}, fmt.Errorf("load operator keystore %s: %w", rt.cfg.KeystorePath, err)
	}
	return key.PubKey().Identity(), nil
}

// commitLedger persists writes staged directly on the token ledger.
func (rt *runtime) commitLedger(err error) error {
	if err != nil {
		rt.state.Discard()
		return err
	}
	return rt.state.Commit()
}

func (rt *runtime) out() io.Writer { return rt.app.stdout }
