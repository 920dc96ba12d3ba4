package utility

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"utilitychain/core/events"
	"utilitychain/core/types"
	nativecommon "utilitychain/native/common"
	"utilitychain/observability/logging"
)

// ModuleName is the pause switch key and log component of the utility module.
const ModuleName = "utility"

// NoAdminSet is returned by GetConfig before an admin has been configured.
const NoAdminSet = "No Admin Set"

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVHas(key []byte) (bool, error)
	KVGetList(key []byte, out interface{}) error
	KVPut(key []byte, value interface{}) error
	Commit() error
	Discard()
}

// TokenService is the token and asset collaborator used for reward
// reservation, issuance and asset ownership checks. Its writes must land in
// the same state overlay the engine commits.
type TokenService interface {
	BalanceOf(token, holder common.Address) (*uint256.Int, error)
	TransferFrom(token, spender, from, to common.Address, amount *uint256.Int) error
	Mint(token, minter, to common.Address, amount *uint256.Int) error
	IsAuthorizedHolder(asset, identity common.Address) (bool, error)
}

// Metrics receives per-operation outcomes.
type Metrics interface {
	ObserveOperation(op, outcome string)
	RecordRewardIssued(receipt string, amount uint64)
}

// Engine executes utility operations against the shared state. Every
// operation runs under a single lock: it reads current state, validates,
// stages its writes and commits them in one batch before any event is emitted.
type Engine struct {
	mu       sync.Mutex
	state    engineState
	tokens   TokenService
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	logger   *slog.Logger
	metrics  Metrics
	nowFn    func() int64
	contract common.Address
}

// NewEngine constructs a utility engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokens configures the token and asset service.
func (e *Engine) SetTokens(tokens TokenService) { e.tokens = tokens }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the pause view consulted before mutating operations.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetLogger configures the structured logger. A nil logger disables logging.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		e.logger = nil
		return
	}
	e.logger = logger.With(slog.String("component", ModuleName))
}

// SetMetrics configures the metrics sink.
func (e *Engine) SetMetrics(m Metrics) { e.metrics = m }

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetContractAddress configures the identity that holds reserved External
// rewards and acts as mint authority for MintToken rewards.
func (e *Engine) SetContractAddress(addr common.Address) { e.contract = addr }

// ContractAddress returns the configured holding identity.
func (e *Engine) ContractAddress() common.Address { return e.contract }

type opContext struct {
	caller   common.Address
	now      uint64
	admin    common.Address
	hasAdmin bool
	events   []*types.Event
	attrs    []any
	onCommit []func()
}

func (c *opContext) emit(evt *types.Event) {
	if evt != nil {
		c.events = append(c.events, evt)
	}
}

func (c *opContext) isAdmin() bool {
	return c.hasAdmin && c.caller == c.admin
}

func (c *opContext) log(attrs ...any) {
	c.attrs = append(c.attrs, attrs...)
}

func (e *Engine) now() uint64 {
	var ts int64
	if e.nowFn == nil {
		ts = time.Now().Unix()
	} else {
		ts = e.nowFn()
	}
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) loadAdmin() (common.Address, bool, error) {
	var admin common.Address
	ok, err := e.state.KVGet(adminKey, &admin)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("utility: load admin: %w", err)
	}
	return admin, ok, nil
}

// run executes fn as one atomic operation. Mutating operations are pause
// guarded and their staged writes are committed only when fn succeeds.
func (e *Engine) run(op string, caller common.Address, mutating bool, fn func(*opContext) error) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if mutating {
		if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
			e.finish(op, mutating, nil, err)
			return err
		}
	}
	ctx := &opContext{caller: caller, now: e.now()}
	admin, ok, err := e.loadAdmin()
	if err != nil {
		e.finish(op, mutating, ctx, err)
		return err
	}
	ctx.admin, ctx.hasAdmin = admin, ok

	if err := fn(ctx); err != nil {
		if mutating {
			e.state.Discard()
		}
		e.finish(op, mutating, ctx, err)
		return err
	}
	if mutating {
		if err := e.state.Commit(); err != nil {
			e.state.Discard()
			err = fmt.Errorf("utility: commit %s: %w", op, err)
			e.finish(op, mutating, ctx, err)
			return err
		}
	}
	for _, evt := range ctx.events {
		e.emitter.Emit(WrapEvent(evt))
	}
	for _, fn := range ctx.onCommit {
		fn()
	}
	e.finish(op, mutating, ctx, nil)
	return nil
}

// finish records metrics and logs for mutating operations. Queries stay quiet.
func (e *Engine) finish(op string, mutating bool, ctx *opContext, err error) {
	if !mutating {
		return
	}
	outcome := Outcome(err)
	if errors.Is(err, nativecommon.ErrModulePaused) {
		outcome = "paused"
	}
	if e.metrics != nil {
		e.metrics.ObserveOperation(op, outcome)
	}
	if e.logger == nil {
		return
	}
	attrs := []any{slog.String("op", op), slog.String("outcome", outcome)}
	if ctx != nil {
		attrs = append(attrs, logging.MaskField("caller", ctx.caller.Hex()))
		attrs = append(attrs, ctx.attrs...)
	}
	if err != nil {
		e.logger.Debug("utility operation rejected", append(attrs, slog.Any("error", err))...)
		return
	}
	e.logger.Info("utility operation committed", attrs...)
}

// SetupConfig records the admin identity and initialises an empty registry.
// The admin can only be set once.
func (e *Engine) SetupConfig(admin common.Address) error {
	return e.run("setup_config", admin, true, func(ctx *opContext) error {
		if admin == (common.Address{}) {
			return errZeroAdminSetup
		}
		if ctx.hasAdmin {
			return ErrAdminAlreadySet
		}
		if err := e.state.KVPut(adminKey, admin); err != nil {
			return fmt.Errorf("utility: store admin: %w", err)
		}
		exists, err := e.state.KVHas(registryKey)
		if err != nil {
			return fmt.Errorf("utility: load registry: %w", err)
		}
		if !exists {
			if err := e.state.KVPut(registryKey, []Utility{}); err != nil {
				return fmt.Errorf("utility: init registry: %w", err)
			}
		}
		return nil
	})
}

// GetConfig returns the admin identity as hex, or NoAdminSet.
func (e *Engine) GetConfig() (string, error) {
	admin, err := e.Admin()
	if errors.Is(err, ErrAdminNotSet) {
		return NoAdminSet, nil
	}
	if err != nil {
		return "", err
	}
	return admin.Hex(), nil
}

// Admin returns the configured admin identity.
func (e *Engine) Admin() (common.Address, error) {
	var admin common.Address
	err := e.run("get_config", common.Address{}, false, func(ctx *opContext) error {
		if !ctx.hasAdmin {
			return ErrAdminNotSet
		}
		admin = ctx.admin
		return nil
	})
	return admin, err
}
