package utility

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"utilitychain/core/events"
	"utilitychain/core/state"
	nativecommon "utilitychain/native/common"
	"utilitychain/native/token"
	"utilitychain/storage"
)

const testNow int64 = 1_700_000_000

type testEnv struct {
	engine   *Engine
	state    *state.Manager
	ledger   *token.Ledger
	recorder *events.Recorder
	metrics  *recordingMetrics
	now      int64

	admin    common.Address
	provider common.Address
	contract common.Address
	reward   common.Address
}

type recordingMetrics struct {
	ops    []string
	issued map[string]uint64
}

func (m *recordingMetrics) ObserveOperation(op, outcome string) {
	m.ops = append(m.ops, op+":"+outcome)
}

func (m *recordingMetrics) RecordRewardIssued(receipt string, amount uint64) {
	if m.issued == nil {
		m.issued = make(map[string]uint64)
	}
	m.issued[receipt] += amount
}

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	manager := state.NewManager(db)
	env := &testEnv{
		state:    manager,
		ledger:   token.NewLedger(manager),
		recorder: &events.Recorder{},
		metrics:  &recordingMetrics{},
		now:      testNow,
		admin:    addr(0x01),
		provider: addr(0x02),
		contract: addr(0xC0),
		reward:   addr(0xAA),
	}
	engine := NewEngine()
	engine.SetState(manager)
	engine.SetTokens(env.ledger)
	engine.SetEmitter(env.recorder)
	engine.SetMetrics(env.metrics)
	engine.SetNowFunc(func() int64 { return env.now })
	engine.SetContractAddress(env.contract)
	env.engine = engine

	if err := env.ledger.RegisterToken(env.reward, "RWD", env.contract); err != nil {
		t.Fatalf("register reward token: %v", err)
	}
	if err := manager.Commit(); err != nil {
		t.Fatalf("commit token setup: %v", err)
	}
	return env
}

func newConfiguredEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	if err := env.engine.SetupConfig(env.admin); err != nil {
		t.Fatalf("setup config: %v", err)
	}
	return env
}

// template returns an open, unlimited, mint-receipt utility.
func (env *testEnv) template() *Utility {
	now := uint64(env.now)
	return &Utility{
		URI:         "ipfs://utility",
		Expiry:      now + 1000,
		OfferExpiry: now + 2000,
		ExpiryType:  ExpiryTimeBased,
		UsageType:   UsageUnlimited,
		Selection:   SelectionAll,
		Reward: Reward{
			Receipt:        ReceiptMintToken,
			TokenAddresses: []common.Address{env.reward},
			TotalAmount:    1000,
			AmountPerWin:   100,
			NoOfWinners:    10,
		},
	}
}

func (env *testEnv) create(t *testing.T, u *Utility) uint64 {
	t.Helper()
	id, err := env.engine.CreateUtility(u, env.provider)
	if err != nil {
		t.Fatalf("create utility: %v", err)
	}
	return id
}

func (env *testEnv) balance(t *testing.T, holder common.Address) uint64 {
	t.Helper()
	bal, err := env.ledger.BalanceOf(env.reward, holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Uint64()
}

func (env *testEnv) fund(t *testing.T, holder common.Address, amount uint64) {
	t.Helper()
	if err := env.ledger.Mint(env.reward, env.contract, holder, uint256.NewInt(amount)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := env.state.Commit(); err != nil {
		t.Fatalf("commit fund: %v", err)
	}
}

// failingState fails KVPut for one key so tests can observe rollback.
type failingState struct {
	*state.Manager
	failKey []byte
}

func (f *failingState) KVPut(key []byte, value interface{}) error {
	if bytes.Equal(key, f.failKey) {
		return errors.New("disk full")
	}
	return f.Manager.KVPut(key, value)
}

func TestGetConfigBeforeAndAfterSetup(t *testing.T) {
	env := newTestEnv(t)
	cfg, err := env.engine.GetConfig()
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg != NoAdminSet {
		t.Fatalf("expected %q, got %q", NoAdminSet, cfg)
	}
	if _, err := env.engine.Admin(); !errors.Is(err, ErrAdminNotSet) {
		t.Fatalf("expected ErrAdminNotSet, got %v", err)
	}

	if err := env.engine.SetupConfig(env.admin); err != nil {
		t.Fatalf("setup config: %v", err)
	}
	cfg, err = env.engine.GetConfig()
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg != env.admin.Hex() {
		t.Fatalf("expected admin %s, got %s", env.admin.Hex(), cfg)
	}
	count, err := env.engine.Count()
	if err != nil || count != 0 {
		t.Fatalf("expected empty registry, got count=%d err=%v", count, err)
	}
}

func TestSetupConfigIsSetOnce(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.SetupConfig(common.Address{}); !errors.Is(err, errZeroAdminSetup) {
		t.Fatalf("expected zero admin rejection, got %v", err)
	}
	if err := env.engine.SetupConfig(env.admin); err != nil {
		t.Fatalf("setup config: %v", err)
	}
	env.create(t, env.template())
	if err := env.engine.SetupConfig(addr(0x09)); !errors.Is(err, ErrAdminAlreadySet) {
		t.Fatalf("expected ErrAdminAlreadySet, got %v", err)
	}
	admin, err := env.engine.Admin()
	if err != nil || admin != env.admin {
		t.Fatalf("admin changed: %s err=%v", admin.Hex(), err)
	}
	if count, _ := env.engine.Count(); count != 1 {
		t.Fatalf("registry was reset, count=%d", count)
	}
}

func TestEngineWithoutStateFails(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.CreateUtility(&Utility{}, addr(0x02)); !errors.Is(err, ErrNilState) {
		t.Fatalf("expected ErrNilState, got %v", err)
	}
	if _, err := engine.GetConfig(); !errors.Is(err, ErrNilState) {
		t.Fatalf("expected ErrNilState, got %v", err)
	}
}

func TestPausedModuleRejectsMutations(t *testing.T) {
	env := newConfiguredEnv(t)
	id := env.create(t, env.template())
	env.engine.SetPauses(nativecommon.StaticPauses{ModuleName: true})

	if _, err := env.engine.CreateUtility(env.template(), env.provider); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := env.engine.ClaimReward(id, addr(0x10), env.admin); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if _, err := env.engine.GetUtility(id); err != nil {
		t.Fatalf("queries must still work while paused: %v", err)
	}
	last := env.metrics.ops[len(env.metrics.ops)-1]
	if last != "claim_reward:paused" {
		t.Fatalf("unexpected metric outcome %q", last)
	}

	env.engine.SetPauses(nil)
	if err := env.engine.ClaimReward(id, addr(0x10), env.admin); err != nil {
		t.Fatalf("claim after unpause: %v", err)
	}
}

func TestEventsEmittedOnlyAfterCommit(t *testing.T) {
	env := newConfiguredEnv(t)
	id := env.create(t, env.template())
	env.recorder.Reset()

	env.engine.SetState(&failingState{Manager: env.state, failKey: registryKey})
	if err := env.engine.ClaimReward(id, addr(0x10), env.admin); err == nil {
		t.Fatalf("expected storage failure")
	}
	if got := env.recorder.Types(); len(got) != 0 {
		t.Fatalf("expected no events after failed claim, got %v", got)
	}
	if Outcome(errors.New("disk full")) != "internal" {
		t.Fatalf("infrastructure errors must classify as internal")
	}
}

func TestEngineLogsCommittedOperations(t *testing.T) {
	env := newConfiguredEnv(t)
	var buf bytes.Buffer
	env.engine.SetLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	id := env.create(t, env.template())
	if err := env.engine.ClaimReward(id, addr(0x10), addr(0x77)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"op":"create_utility"`) || !strings.Contains(out, "utility operation committed") {
		t.Fatalf("missing committed log line: %s", out)
	}
	if !strings.Contains(out, `"outcome":"NotAuthorized"`) {
		t.Fatalf("missing rejected log line: %s", out)
	}
	if strings.Contains(out, env.provider.Hex()) {
		t.Fatalf("caller identity must be redacted: %s", out)
	}
}

func TestErrorCodes(t *testing.T) {
	if Code(nil) != 0 || Code(errors.New("other")) != 0 {
		t.Fatalf("non taxonomy errors must map to zero")
	}
	if Code(ErrInvalidTime) != 1 || Code(ErrUsageExceeded) != 14 {
		t.Fatalf("unexpected code boundaries")
	}
	wrapped := errors.Join(errors.New("context"), ErrAlreadyClaimed)
	if Code(wrapped) != 10 || Outcome(wrapped) != "AlreadyClaimed" {
		t.Fatalf("wrapped errors must keep their code, got %d %s", Code(wrapped), Outcome(wrapped))
	}
}
