package payments_test

import (
	"errors"
	"math/big"
	"testing"

	"estatechain/config"
	"estatechain/core"
	"estatechain/core/types"
	"estatechain/crypto"
	"estatechain/native/payments"
	"estatechain/native/pricing"
	"estatechain/native/registry"
	"estatechain/storage"
)

const startTime = 1_700_000_000

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

func bech(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.ESTPrefix, addr[:]).String()
}

var (
	treasuryAddr = testAddr(0xAA)
	devAddr      = testAddr(0xBB)
)

func testConfig() *config.Config {
	return &config.Config{
		DataDir:            "./data",
		NetworkName:        "estate-test",
		TreasuryAddress:    bech(treasuryAddr),
		DevAddress:         bech(devAddr),
		TreasuryFeeBps:     500,
		DevFeeBps:          200,
		BuybackBps:         5_000,
		IncomeBaseRate:     "100",
		HoldingBonusBps:    10,
		MaxHoldingBonusBps: 500,
		PropertyTypes: []config.PropertyType{
			{
				Name:             "house",
				BasePriceEST:     "1000",
				BasePriceZEST:    "10",
				BaseStatusPoints: 100,
				BaseYieldRate:    50,
				Active:           true,
			},
			{
				Name:                 "villa",
				BasePriceEST:         "5000",
				BasePriceZEST:        "50",
				BaseStatusPoints:     500,
				BaseYieldRate:        200,
				Active:               true,
				VerificationRequired: true,
			},
		},
	}
}

type clock struct {
	now int64
}

func (c *clock) fn() func() int64 { return func() int64 { return c.now } }

func newTestNode(t *testing.T) (*core.Node, *clock) {
	t.Helper()
	node, err := core.NewNode(testConfig(), storage.NewMemDB(), nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := &clock{now: startTime}
	node.Payments().SetNowFunc(clk.fn())
	node.Registry().SetNowFunc(clk.fn())
	node.Income().SetNowFunc(clk.fn())
	return node, clk
}

func fund(t *testing.T, node *core.Node, addr [20]byte, est, zest int64) {
	t.Helper()
	err := node.State().PutAccount(addr[:], &types.Account{
		BalanceEST:  big.NewInt(est),
		BalanceZEST: big.NewInt(zest),
	})
	if err != nil {
		t.Fatalf("fund account: %v", err)
	}
}

func balances(t *testing.T, node *core.Node, addr [20]byte) (int64, int64) {
	t.Helper()
	acc, err := node.State().GetAccount(addr[:])
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	est, zest := int64(0), int64(0)
	if acc.BalanceEST != nil {
		est = acc.BalanceEST.Int64()
	}
	if acc.BalanceZEST != nil {
		zest = acc.BalanceZEST.Int64()
	}
	return est, zest
}

func houseSpec() payments.PurchaseSpec {
	return payments.PurchaseSpec{
		PropertyType: "house",
		Name:         "Maple Cottage",
		Location:     "Elm Street 4",
		Level:        1,
		Currency:     pricing.CurrencyEST,
	}
}

func TestPurchaseDirectDistributesFunds(t *testing.T) {
	node, _ := newTestNode(t)
	buyer := testAddr(1)
	fund(t, node, buyer, 1_500, 0)

	asset, err := node.Payments().PurchaseDirect(buyer, houseSpec())
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if asset.Owner != buyer || asset.Level != 1 {
		t.Fatalf("asset: owner/level wrong")
	}
	if asset.PurchasePrice.Int64() != 1_000 {
		t.Fatalf("purchase price: got %s", asset.PurchasePrice)
	}

	buyerEST, _ := balances(t, node, buyer)
	if buyerEST != 500 {
		t.Fatalf("buyer balance: got %d, want 500", buyerEST)
	}
	treasuryEST, _ := balances(t, node, treasuryAddr)
	if treasuryEST != 50 {
		t.Fatalf("treasury share: got %d, want 50", treasuryEST)
	}
	devEST, _ := balances(t, node, devAddr)
	if devEST != 20 {
		t.Fatalf("dev share: got %d, want 20", devEST)
	}
	vaultEST, _ := balances(t, node, core.PaymentsModuleAddress)
	if vaultEST != 930 {
		t.Fatalf("vault remainder: got %d, want 930", vaultEST)
	}

	stats, err := node.Payments().UserStatsFor(buyer)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalPurchases != 1 || stats.TotalSpentEST.Int64() != 1_000 {
		t.Fatalf("stats: purchases=%d spentEST=%s", stats.TotalPurchases, stats.TotalSpentEST)
	}

	// The purchase opens the income accrual window.
	last, err := node.State().IncomeLastClaim(asset.ID)
	if err != nil {
		t.Fatalf("last claim: %v", err)
	}
	if last != startTime {
		t.Fatalf("last claim: got %d, want %d", last, int64(startTime))
	}
}

func TestPurchaseDirectInZEST(t *testing.T) {
	node, _ := newTestNode(t)
	buyer := testAddr(1)
	fund(t, node, buyer, 0, 100)

	spec := houseSpec()
	spec.Currency = pricing.CurrencyZEST
	asset, err := node.Payments().PurchaseDirect(buyer, spec)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if asset.PurchasePrice.Int64() != 10 || asset.PurchaseCurrency != pricing.CurrencyZEST {
		t.Fatalf("purchase record: price=%s currency=%s", asset.PurchasePrice, asset.PurchaseCurrency)
	}
	_, buyerZEST := balances(t, node, buyer)
	if buyerZEST != 90 {
		t.Fatalf("buyer ZEST: got %d, want 90", buyerZEST)
	}
}

func TestPurchaseDirectInsufficientFundsHasNoEffect(t *testing.T) {
	node, _ := newTestNode(t)
	buyer := testAddr(1)
	fund(t, node, buyer, 999, 0)

	_, err := node.Payments().PurchaseDirect(buyer, houseSpec())
	if !errors.Is(err, payments.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	buyerEST, _ := balances(t, node, buyer)
	if buyerEST != 999 {
		t.Fatalf("buyer debited on failed purchase: %d", buyerEST)
	}
	owned, err := node.Registry().OwnerAssets(buyer)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(owned) != 0 {
		t.Fatalf("asset minted on failed purchase: %v", owned)
	}
	stats, _ := node.Payments().UserStatsFor(buyer)
	if stats.TotalPurchases != 0 {
		t.Fatalf("stats recorded on failed purchase")
	}
}

func TestPurchaseByVaultConservesSupply(t *testing.T) {
	node, _ := newTestNode(t)
	// The vault buying from itself makes the debit a self-transfer; the fee
	// shares are the only funds that may leave it.
	fund(t, node, core.PaymentsModuleAddress, 1_500, 0)

	asset, err := node.Payments().PurchaseDirect(core.PaymentsModuleAddress, houseSpec())
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if asset.Owner != core.PaymentsModuleAddress {
		t.Fatalf("minted owner wrong")
	}
	vaultEST, _ := balances(t, node, core.PaymentsModuleAddress)
	if vaultEST != 1_430 {
		t.Fatalf("vault balance: got %d, want 1430", vaultEST)
	}
	treasuryEST, _ := balances(t, node, treasuryAddr)
	devEST, _ := balances(t, node, devAddr)
	if treasuryEST != 50 || devEST != 20 {
		t.Fatalf("fee shares: treasury=%d dev=%d", treasuryEST, devEST)
	}
	if vaultEST+treasuryEST+devEST != 1_500 {
		t.Fatalf("supply not conserved: %d", vaultEST+treasuryEST+devEST)
	}
}

func TestInitiateAndCompletePayment(t *testing.T) {
	node, clk := newTestNode(t)
	buyer := testAddr(1)

	payment, err := node.Payments().InitiatePayment(buyer, houseSpec())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if payment.Amount.Int64() != 1_000 {
		t.Fatalf("locked amount: got %s", payment.Amount)
	}
	if payment.Deadline() != startTime+3_600 {
		t.Fatalf("deadline: got %d", payment.Deadline())
	}

	clk.now = startTime + 1_800
	asset, err := node.Payments().CompletePayment(payment.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if asset.Owner != buyer {
		t.Fatalf("minted owner wrong")
	}
	// The record survives as a completed tombstone; a second completion fails.
	if _, err := node.Payments().CompletePayment(payment.ID); !errors.Is(err, payments.ErrAlreadyCompleted) {
		t.Fatalf("second completion: got %v, want ErrAlreadyCompleted", err)
	}
	stored, ok, err := node.Payments().PendingPaymentByID(payment.ID)
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if !stored.Completed {
		t.Fatalf("completion flag not persisted")
	}
}

func TestInitiatePaymentIDsAreUnique(t *testing.T) {
	node, _ := newTestNode(t)
	buyer := testAddr(1)

	first, err := node.Payments().InitiatePayment(buyer, houseSpec())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	// Same buyer, same instant: the per-buyer nonce still separates the ids.
	second, err := node.Payments().InitiatePayment(buyer, houseSpec())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("payment ids collide")
	}
}

func TestCompletePaymentAfterWindowExpires(t *testing.T) {
	node, clk := newTestNode(t)
	buyer := testAddr(1)

	payment, err := node.Payments().InitiatePayment(buyer, houseSpec())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// Exactly at the deadline the payment is still completable.
	clk.now = payment.Deadline()
	if _, err := node.Payments().CompletePayment(payment.ID); err != nil {
		t.Fatalf("complete at deadline: %v", err)
	}

	late, err := node.Payments().InitiatePayment(buyer, houseSpec())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	clk.now = late.Deadline() + 1
	if _, err := node.Payments().CompletePayment(late.ID); !errors.Is(err, payments.ErrExpired) {
		t.Fatalf("complete past deadline: got %v, want ErrExpired", err)
	}
}

func TestCancelExpiredPayment(t *testing.T) {
	node, clk := newTestNode(t)
	buyer := testAddr(1)

	payment, err := node.Payments().InitiatePayment(buyer, houseSpec())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if err := node.Payments().CancelExpiredPayment(payment.ID); !errors.Is(err, payments.ErrNotExpired) {
		t.Fatalf("early cancel: got %v, want ErrNotExpired", err)
	}
	clk.now = payment.Deadline() + 1
	// Anyone may cancel an expired payment, not just the buyer.
	if err := node.Payments().CancelExpiredPayment(payment.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, ok, _ := node.Payments().PendingPaymentByID(payment.ID); ok {
		t.Fatalf("cancelled payment still stored")
	}
	if err := node.Payments().CancelExpiredPayment(payment.ID); !errors.Is(err, payments.ErrNotFound) {
		t.Fatalf("double cancel: got %v, want ErrNotFound", err)
	}
}

func TestPurchaseValidation(t *testing.T) {
	node, _ := newTestNode(t)
	buyer := testAddr(1)
	fund(t, node, buyer, 100_000, 0)

	spec := houseSpec()
	spec.Name = ""
	if _, err := node.Payments().PurchaseDirect(buyer, spec); !errors.Is(err, payments.ErrInvalidName) {
		t.Fatalf("empty name: got %v", err)
	}
	spec = houseSpec()
	spec.Location = string(make([]byte, 51))
	if _, err := node.Payments().PurchaseDirect(buyer, spec); !errors.Is(err, payments.ErrInvalidLocation) {
		t.Fatalf("long location: got %v", err)
	}
	spec = houseSpec()
	spec.Level = 11
	if _, err := node.Payments().PurchaseDirect(buyer, spec); !errors.Is(err, pricing.ErrInvalidLevel) {
		t.Fatalf("level 11: got %v", err)
	}
	spec = houseSpec()
	spec.PropertyType = "castle"
	if _, err := node.Payments().PurchaseDirect(buyer, spec); !errors.Is(err, pricing.ErrUnknownOrInactiveType) {
		t.Fatalf("unknown type: got %v", err)
	}
}

func TestVerificationRequiredTypes(t *testing.T) {
	node, _ := newTestNode(t)
	buyer := testAddr(1)
	fund(t, node, buyer, 100_000, 0)

	spec := payments.PurchaseSpec{
		PropertyType: "villa",
		Name:         "Hilltop Villa",
		Location:     "Summit Road 9",
		Level:        1,
		Currency:     pricing.CurrencyEST,
	}
	if _, err := node.Payments().PurchaseDirect(buyer, spec); !errors.Is(err, payments.ErrVerificationRequired) {
		t.Fatalf("unverified buyer: got %v, want ErrVerificationRequired", err)
	}
	if err := node.State().SetVerifiedStatus(buyer, true); err != nil {
		t.Fatalf("set verified: %v", err)
	}
	if _, err := node.Payments().PurchaseDirect(buyer, spec); err != nil {
		t.Fatalf("verified purchase: %v", err)
	}
}

func TestSellBackRefundsPurchaseCurrency(t *testing.T) {
	node, _ := newTestNode(t)
	buyer := testAddr(1)
	fund(t, node, buyer, 0, 100)

	spec := houseSpec()
	spec.Currency = pricing.CurrencyZEST
	asset, err := node.Payments().PurchaseDirect(buyer, spec)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if _, err := node.Payments().SellBack(asset.ID, testAddr(9)); !errors.Is(err, registry.ErrNotOwner) {
		t.Fatalf("sellback by stranger: got %v", err)
	}
	refund, err := node.Payments().SellBack(asset.ID, buyer)
	if err != nil {
		t.Fatalf("sellback: %v", err)
	}
	// 10 ZEST at 5000 bps buyback.
	if refund.Int64() != 5 {
		t.Fatalf("refund: got %s, want 5", refund)
	}
	_, buyerZEST := balances(t, node, buyer)
	if buyerZEST != 95 {
		t.Fatalf("buyer ZEST after sellback: got %d, want 95", buyerZEST)
	}
	if _, ok, _ := node.Registry().Get(asset.ID); ok {
		t.Fatalf("asset survives sellback")
	}
	last, err := node.State().IncomeLastClaim(asset.ID)
	if err != nil {
		t.Fatalf("last claim: %v", err)
	}
	if last != 0 {
		t.Fatalf("income claim entry survives sellback: %d", last)
	}
	if _, err := node.Payments().SellBack(asset.ID, buyer); !errors.Is(err, registry.ErrAssetNotFound) {
		t.Fatalf("double sellback: got %v, want ErrAssetNotFound", err)
	}
}

func TestPurchaseClaimAndUpgradeScenario(t *testing.T) {
	node, clk := newTestNode(t)
	buyer := testAddr(1)
	fund(t, node, buyer, 10_000, 0)

	asset, err := node.Payments().PurchaseDirect(buyer, houseSpec())
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	clk.now = startTime + 86_400
	income, err := node.Income().Claim(asset.ID, buyer)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	// Base 100/day, 1 day, level 1, bonus 10 bps * 1 age day truncates to 0.
	if income.Int64() != 100 {
		t.Fatalf("income: got %s, want 100", income)
	}

	upgraded, err := node.Registry().Upgrade(asset.ID, buyer)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if upgraded.Level != 2 || upgraded.StatusPoints != 200 {
		t.Fatalf("upgrade: level=%d status=%d", upgraded.Level, upgraded.StatusPoints)
	}

	stats, err := node.Payments().UserStatsFor(buyer)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalIncomeEarned.Int64() != 100 {
		t.Fatalf("income stat: got %s", stats.TotalIncomeEarned)
	}
}
