package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/foresight-project/backend/internal/ledger"
	"github.com/foresight-project/backend/internal/models"
)

// memStore is a map-backed MarketStore for engine tests.
type memStore struct {
	mu      sync.Mutex
	markets map[string]*models.Market
}

func newMemStore() *memStore {
	return &memStore{markets: make(map[string]*models.Market)}
}

func (s *memStore) Insert(ctx context.Context, m *models.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := MarketKey{Creator: m.Creator, Sequence: m.Sequence}.String()
	if _, ok := s.markets[key]; ok {
		return fmt.Errorf("%w: %s", ErrMarketExists, key)
	}
	cp := *m
	s.markets[key] = &cp
	return nil
}

func (s *memStore) Get(ctx context.Context, key MarketKey) (*models.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[key.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, key)
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) MarkResolved(ctx context.Context, key MarketKey, outcome bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[key.String()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, key)
	}
	if m.Status != models.MarketStatusOpen {
		return fmt.Errorf("%w: market already %s", ErrState, m.Status)
	}
	o := outcome
	t := at
	m.Status = models.MarketStatusResolved
	m.Outcome = &o
	m.ResolvedAt = &t
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const collateral = "usdx"

func newTestEngine(t *testing.T) (*Engine, *ledger.MemoryLedger, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := ledger.NewMemoryLedger()
	e := New(newMemStore(), l, WithClock(clock.Now))
	return e, l, clock
}

func createTestMarket(t *testing.T, e *Engine, feeBps uint32) (*models.Market, MarketKey) {
	t.Helper()
	m, err := e.Create(context.Background(), CreateParams{
		Creator:                     "alice",
		Resolver:                    "oracle",
		Sequence:                    1,
		Question:                    "Will it rain tomorrow?",
		Duration:                    time.Hour,
		FeeBps:                      feeBps,
		CollateralAsset:             collateral,
		FeeCollector:                "alice",
		FeeCollectorAccount:         "alice-fees",
		ProtocolFeeCollector:        "protocol-treasury",
		ProtocolFeeCollectorAccount: "protocol-treasury",
	})
	if err != nil {
		t.Fatalf("create market: %v", err)
	}
	return m, MarketKey{Creator: m.Creator, Sequence: m.Sequence}
}

func fund(t *testing.T, l *ledger.MemoryLedger, owner string, amount uint64) {
	t.Helper()
	if err := l.Mint(context.Background(), collateral, owner, amount); err != nil {
		t.Fatalf("fund %s: %v", owner, err)
	}
}

func balance(t *testing.T, l *ledger.MemoryLedger, asset, owner string) uint64 {
	t.Helper()
	bal, err := l.BalanceOf(context.Background(), asset, owner)
	if err != nil {
		t.Fatalf("balance of %s/%s: %v", asset, owner, err)
	}
	return bal
}

func supply(t *testing.T, l *ledger.MemoryLedger, asset string) uint64 {
	t.Helper()
	s, err := l.SupplyOf(context.Background(), asset)
	if err != nil {
		t.Fatalf("supply of %s: %v", asset, err)
	}
	return s
}

// TestScenarioFullLifecycle runs the canonical create → buy → buy → resolve →
// claim sequence with a 1% fee.
func TestScenarioFullLifecycle(t *testing.T) {
	ctx := context.Background()
	e, l, clock := newTestEngine(t)
	m, key := createTestMarket(t, e, 100)

	fund(t, l, "user-a", 1000)
	fund(t, l, "user-b", 500)

	resA, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-a", Amount: 1000, Side: SideYes})
	if err != nil {
		t.Fatalf("buy yes: %v", err)
	}
	if resA.SharesMinted != 990 || resA.FeeCharged != 10 {
		t.Fatalf("buy yes: got shares=%d fee=%d, want 990/10", resA.SharesMinted, resA.FeeCharged)
	}
	if resA.Split.ProtocolFee != 5 || resA.Split.CreatorFee != 5 {
		t.Fatalf("fee split: got protocol=%d creator=%d, want 5/5", resA.Split.ProtocolFee, resA.Split.CreatorFee)
	}
	if got := balance(t, l, collateral, m.Vault); got != 990 {
		t.Fatalf("vault after first buy: got %d, want 990", got)
	}
	if got := balance(t, l, collateral, "protocol-treasury"); got != 5 {
		t.Fatalf("protocol fee account: got %d, want 5", got)
	}
	if got := balance(t, l, collateral, "alice-fees"); got != 5 {
		t.Fatalf("creator fee account: got %d, want 5", got)
	}

	resB, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-b", Amount: 500, Side: SideNo})
	if err != nil {
		t.Fatalf("buy no: %v", err)
	}
	if resB.SharesMinted != 495 {
		t.Fatalf("buy no: got shares=%d, want 495", resB.SharesMinted)
	}
	if got := balance(t, l, collateral, m.Vault); got != 1485 {
		t.Fatalf("vault after second buy: got %d, want 1485", got)
	}

	// Resolve before the deadline must fail.
	if err := e.Resolve(ctx, "oracle", key, true); !errors.Is(err, ErrState) {
		t.Fatalf("early resolve: got %v, want ErrState", err)
	}

	clock.Advance(2 * time.Hour)
	if err := e.Resolve(ctx, "oracle", key, true); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	claimA, err := e.Claim(ctx, ClaimParams{Key: key, Caller: "user-a"})
	if err != nil {
		t.Fatalf("claim a: %v", err)
	}
	if claimA.Payout != 990 || claimA.SharesBurned != 990 {
		t.Fatalf("claim a: got payout=%d burned=%d, want 990/990", claimA.Payout, claimA.SharesBurned)
	}
	if got := balance(t, l, m.YesAsset, "user-a"); got != 0 {
		t.Fatalf("user-a yes shares after claim: got %d, want 0", got)
	}

	// B holds only losing shares: zero payout, not an error, shares untouched.
	claimB, err := e.Claim(ctx, ClaimParams{Key: key, Caller: "user-b"})
	if err != nil {
		t.Fatalf("claim b: %v", err)
	}
	if claimB.Payout != 0 {
		t.Fatalf("claim b: got payout=%d, want 0", claimB.Payout)
	}
	if got := balance(t, l, m.NoAsset, "user-b"); got != 495 {
		t.Fatalf("user-b no shares after claim: got %d, want 495", got)
	}
}

// TestConservation checks vault == yes_supply + no_supply after every
// buy/sell on an open market.
func TestConservation(t *testing.T) {
	ctx := context.Background()
	e, l, _ := newTestEngine(t)
	m, key := createTestMarket(t, e, 250)

	fund(t, l, "user-a", 100_000)
	fund(t, l, "user-b", 100_000)

	check := func(step string) {
		t.Helper()
		vault := balance(t, l, collateral, m.Vault)
		yes := supply(t, l, m.YesAsset)
		no := supply(t, l, m.NoAsset)
		if vault != yes+no {
			t.Fatalf("%s: vault=%d but yes+no=%d", step, vault, yes+no)
		}
	}

	steps := []struct {
		caller string
		action string
		amount uint64
		side   Side
	}{
		{"user-a", "buy", 1000, SideYes},
		{"user-b", "buy", 777, SideNo},
		{"user-a", "buy", 33, SideNo},
		{"user-a", "sell", 200, SideYes},
		{"user-b", "buy", 9999, SideYes},
		{"user-b", "sell", 1, SideNo},
		{"user-a", "sell", 32, SideNo},
	}
	for i, s := range steps {
		var err error
		if s.action == "buy" {
			_, err = e.Buy(ctx, BuyParams{Key: key, Caller: s.caller, Amount: s.amount, Side: s.side})
		} else {
			_, err = e.Sell(ctx, SellParams{Key: key, Caller: s.caller, Amount: s.amount, Side: s.side})
		}
		if err != nil {
			t.Fatalf("step %d (%s %s %d): %v", i, s.caller, s.action, s.amount, err)
		}
		check(fmt.Sprintf("step %d", i))
	}
}

func TestBuyRejectsZeroAmount(t *testing.T) {
	ctx := context.Background()
	e, l, _ := newTestEngine(t)
	m, key := createTestMarket(t, e, 100)
	fund(t, l, "user-a", 1000)

	_, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-a", Amount: 0, Side: SideYes})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
	if got := balance(t, l, collateral, "user-a"); got != 1000 {
		t.Fatalf("balance changed on rejected buy: %d", got)
	}
	if got := balance(t, l, collateral, m.Vault); got != 0 {
		t.Fatalf("vault changed on rejected buy: %d", got)
	}
}

func TestBuyInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	e, l, _ := newTestEngine(t)
	_, key := createTestMarket(t, e, 100)
	fund(t, l, "user-a", 99)

	_, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-a", Amount: 100, Side: SideYes})
	if !errors.Is(err, ErrBalance) {
		t.Fatalf("got %v, want ErrBalance", err)
	}
	if got := balance(t, l, collateral, "user-a"); got != 99 {
		t.Fatalf("balance changed on rejected buy: %d", got)
	}
}

func TestSellInsufficientShares(t *testing.T) {
	ctx := context.Background()
	e, l, _ := newTestEngine(t)
	_, key := createTestMarket(t, e, 0)
	fund(t, l, "user-a", 1000)

	if _, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-a", Amount: 500, Side: SideYes}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	_, err := e.Sell(ctx, SellParams{Key: key, Caller: "user-a", Amount: 501, Side: SideYes})
	if !errors.Is(err, ErrBalance) {
		t.Fatalf("got %v, want ErrBalance", err)
	}
	// Selling the wrong side the caller never bought also fails.
	_, err = e.Sell(ctx, SellParams{Key: key, Caller: "user-a", Amount: 1, Side: SideNo})
	if !errors.Is(err, ErrBalance) {
		t.Fatalf("wrong side sell: got %v, want ErrBalance", err)
	}
}

func TestTimeGating(t *testing.T) {
	ctx := context.Background()
	e, l, clock := newTestEngine(t)
	_, key := createTestMarket(t, e, 100)
	fund(t, l, "user-a", 2000)

	if _, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-a", Amount: 500, Side: SideYes}); err != nil {
		t.Fatalf("buy before close: %v", err)
	}

	// Exactly at close_at the window is shut.
	clock.Advance(time.Hour)
	if _, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-a", Amount: 500, Side: SideYes}); !errors.Is(err, ErrState) {
		t.Fatalf("buy at close: got %v, want ErrState", err)
	}
	if _, err := e.Sell(ctx, SellParams{Key: key, Caller: "user-a", Amount: 100, Side: SideYes}); !errors.Is(err, ErrState) {
		t.Fatalf("sell at close: got %v, want ErrState", err)
	}
}

func TestResolveOneSidedMarket(t *testing.T) {
	ctx := context.Background()
	e, l, clock := newTestEngine(t)
	_, key := createTestMarket(t, e, 100)
	fund(t, l, "user-a", 1000)

	if _, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-a", Amount: 1000, Side: SideYes}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	clock.Advance(2 * time.Hour)

	err := e.Resolve(ctx, "oracle", key, true)
	if !errors.Is(err, ErrState) {
		t.Fatalf("one-sided resolve: got %v, want ErrState", err)
	}
}

func TestResolveIsOneShot(t *testing.T) {
	ctx := context.Background()
	e, l, clock := newTestEngine(t)
	_, key := createTestMarket(t, e, 100)
	fund(t, l, "user-a", 1000)
	fund(t, l, "user-b", 1000)

	if _, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-a", Amount: 500, Side: SideYes}); err != nil {
		t.Fatalf("buy yes: %v", err)
	}
	if _, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-b", Amount: 500, Side: SideNo}); err != nil {
		t.Fatalf("buy no: %v", err)
	}
	clock.Advance(2 * time.Hour)

	if err := e.Resolve(ctx, "oracle", key, true); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	for _, outcome := range []bool{true, false} {
		if err := e.Resolve(ctx, "oracle", key, outcome); !errors.Is(err, ErrState) {
			t.Fatalf("second resolve(%v): got %v, want ErrState", outcome, err)
		}
	}
}

func TestResolveUnauthorized(t *testing.T) {
	ctx := context.Background()
	e, l, clock := newTestEngine(t)
	_, key := createTestMarket(t, e, 100)
	fund(t, l, "user-a", 1000)
	fund(t, l, "user-b", 1000)

	if _, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-a", Amount: 500, Side: SideYes}); err != nil {
		t.Fatalf("buy yes: %v", err)
	}
	if _, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-b", Amount: 500, Side: SideNo}); err != nil {
		t.Fatalf("buy no: %v", err)
	}
	clock.Advance(2 * time.Hour)

	if err := e.Resolve(ctx, "mallory", key, true); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("got %v, want ErrAuthorization", err)
	}

	m, err := e.store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.Status != models.MarketStatusOpen {
		t.Fatalf("status changed on rejected resolve: %s", m.Status)
	}
}

func TestClaimBeforeResolution(t *testing.T) {
	ctx := context.Background()
	e, l, _ := newTestEngine(t)
	_, key := createTestMarket(t, e, 100)
	fund(t, l, "user-a", 1000)

	if _, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-a", Amount: 1000, Side: SideYes}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	_, err := e.Claim(ctx, ClaimParams{Key: key, Caller: "user-a"})
	if !errors.Is(err, ErrState) {
		t.Fatalf("got %v, want ErrState", err)
	}
}

func TestClaimKeepsLosingShares(t *testing.T) {
	ctx := context.Background()
	e, l, clock := newTestEngine(t)
	m, key := createTestMarket(t, e, 0)
	fund(t, l, "user-a", 1000)
	fund(t, l, "user-b", 1000)

	// A holds both sides; only the winning side pays out.
	if _, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-a", Amount: 600, Side: SideYes}); err != nil {
		t.Fatalf("buy yes: %v", err)
	}
	if _, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-a", Amount: 400, Side: SideNo}); err != nil {
		t.Fatalf("buy no: %v", err)
	}
	if _, err := e.Buy(ctx, BuyParams{Key: key, Caller: "user-b", Amount: 100, Side: SideNo}); err != nil {
		t.Fatalf("buy no b: %v", err)
	}
	clock.Advance(2 * time.Hour)
	if err := e.Resolve(ctx, "oracle", key, true); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	res, err := e.Claim(ctx, ClaimParams{Key: key, Caller: "user-a"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.Payout != 600 {
		t.Fatalf("payout: got %d, want 600", res.Payout)
	}
	if got := balance(t, l, m.NoAsset, "user-a"); got != 400 {
		t.Fatalf("losing shares touched: got %d, want 400", got)
	}

	// Re-claim after the winning balance is burned is a no-op.
	res, err = e.Claim(ctx, ClaimParams{Key: key, Caller: "user-a"})
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if res.Payout != 0 {
		t.Fatalf("second claim payout: got %d, want 0", res.Payout)
	}
}

func TestPinnedAccountMismatch(t *testing.T) {
	ctx := context.Background()
	e, l, _ := newTestEngine(t)
	m, key := createTestMarket(t, e, 100)
	fund(t, l, "user-a", 1000)

	_, err := e.Buy(ctx, BuyParams{
		Key: key, Caller: "user-a", Amount: 100, Side: SideYes,
		Vault: "vault-attacker-controlled",
	})
	if !errors.Is(err, ErrResourceMismatch) {
		t.Fatalf("wrong vault: got %v, want ErrResourceMismatch", err)
	}

	_, err = e.Buy(ctx, BuyParams{
		Key: key, Caller: "user-a", Amount: 100, Side: SideYes,
		ShareAsset: m.NoAsset, // pinned asset disagrees with requested side
	})
	if !errors.Is(err, ErrResourceMismatch) {
		t.Fatalf("wrong share asset: got %v, want ErrResourceMismatch", err)
	}
	if got := balance(t, l, collateral, "user-a"); got != 1000 {
		t.Fatalf("balance changed on rejected buy: %d", got)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	base := CreateParams{
		Creator:                     "alice",
		Resolver:                    "oracle",
		Sequence:                    7,
		Question:                    "Will it rain tomorrow?",
		Duration:                    time.Hour,
		FeeBps:                      100,
		CollateralAsset:             collateral,
		FeeCollector:                "alice",
		FeeCollectorAccount:         "alice-fees",
		ProtocolFeeCollector:        "protocol-treasury",
		ProtocolFeeCollectorAccount: "protocol-treasury",
	}

	cases := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"question too short", func(p *CreateParams) { p.Question = "Rain?" }},
		{"question too long", func(p *CreateParams) {
			q := ""
			for i := 0; i < 101; i++ {
				q += "x"
			}
			p.Question = q
		}},
		{"duration too short", func(p *CreateParams) { p.Duration = 59 * time.Minute }},
		{"duration too long", func(p *CreateParams) { p.Duration = 31 * 24 * time.Hour }},
		{"fee above cap", func(p *CreateParams) { p.FeeBps = 1001 }},
		{"missing resolver", func(p *CreateParams) { p.Resolver = "" }},
		{"missing collateral", func(p *CreateParams) { p.CollateralAsset = "" }},
		{"missing fee account", func(p *CreateParams) { p.FeeCollectorAccount = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			if _, err := e.Create(ctx, p); !errors.Is(err, ErrValidation) {
				t.Fatalf("got %v, want ErrValidation", err)
			}
		})
	}

	// Boundary values are accepted.
	p := base
	p.Duration = MinDuration
	if _, err := e.Create(ctx, p); err != nil {
		t.Fatalf("min duration rejected: %v", err)
	}
	p = base
	p.Sequence = 8
	p.Duration = MaxDuration
	p.FeeBps = MaxFeeBps
	if _, err := e.Create(ctx, p); err != nil {
		t.Fatalf("max bounds rejected: %v", err)
	}
}

func TestCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)
	createTestMarket(t, e, 100)

	_, err := e.Create(ctx, CreateParams{
		Creator:                     "alice",
		Resolver:                    "oracle",
		Sequence:                    1,
		Question:                    "Will it rain tomorrow?",
		Duration:                    time.Hour,
		FeeBps:                      100,
		CollateralAsset:             collateral,
		FeeCollector:                "alice",
		FeeCollectorAccount:         "alice-fees",
		ProtocolFeeCollector:        "protocol-treasury",
		ProtocolFeeCollectorAccount: "protocol-treasury",
	})
	if !errors.Is(err, ErrMarketExists) {
		t.Fatalf("got %v, want ErrMarketExists", err)
	}
}

func TestCollateralWhitelist(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	e := New(newMemStore(), ledger.NewMemoryLedger(),
		WithClock(clock.Now), WithCollateralWhitelist([]string{"usdx"}))

	p := CreateParams{
		Creator:                     "alice",
		Resolver:                    "oracle",
		Sequence:                    1,
		Question:                    "Will it rain tomorrow?",
		Duration:                    time.Hour,
		FeeBps:                      100,
		CollateralAsset:             "shadycoin",
		FeeCollector:                "alice",
		FeeCollectorAccount:         "alice-fees",
		ProtocolFeeCollector:        "protocol-treasury",
		ProtocolFeeCollectorAccount: "protocol-treasury",
	}
	if _, err := e.Create(ctx, p); !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
	p.CollateralAsset = "usdx"
	if _, err := e.Create(ctx, p); err != nil {
		t.Fatalf("whitelisted collateral rejected: %v", err)
	}
}

func TestParseSide(t *testing.T) {
	for _, ok := range []string{"YES", "NO", "yes", "no", "Yes", "No"} {
		if _, err := ParseSide(ok); err != nil {
			t.Fatalf("ParseSide(%q): %v", ok, err)
		}
	}
	if _, err := ParseSide("maybe"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseSide(maybe): got %v, want ErrValidation", err)
	}
}
