package types_test

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/blockberries/ledger/types"
)

func TestMulDiv(t *testing.T) {
	got, err := types.MulDiv(3000, 7, 1024)
	if err != nil || got != 20 {
		t.Fatalf("MulDiv = %d, %v; want 20", got, err)
	}
	// The intermediate product overflows 64 bits but the quotient fits.
	got, err = types.MulDiv(1<<62, 8, 1<<20)
	if err != nil || got != 1<<45 {
		t.Fatalf("wide MulDiv = %d, %v", got, err)
	}
	if _, err := types.MulDiv(uint64(types.MaxShareSupply), 2, 1); err == nil {
		t.Fatal("result above max share supply must fail")
	}
	if _, err := types.MulDiv(1, 1, 0); err == nil {
		t.Fatal("division by zero must fail")
	}
}

func TestPriceMultiply(t *testing.T) {
	p := types.Price{Base: types.NewAsset(10, 1), Quote: types.NewAsset(3, types.CoreAsset)}
	core, err := p.Multiply(types.NewAsset(100, 1))
	if err != nil {
		t.Fatal(err)
	}
	if core != types.NewAsset(30, types.CoreAsset) {
		t.Fatalf("converted to %v", core)
	}
	back, err := p.Multiply(types.NewAsset(30, types.CoreAsset))
	if err != nil || back.Amount != 100 || back.AssetID != 1 {
		t.Fatalf("converted back to %v, %v", back, err)
	}
	if _, err := p.Multiply(types.NewAsset(1, 9)); err == nil {
		t.Fatal("unrelated asset must fail")
	}
}

func TestDataAndRunTimeFees(t *testing.T) {
	fee, err := types.CalculateDataFee(2048, 10*uint64(types.BlockchainPrecision))
	if err != nil || fee != 20*types.BlockchainPrecision {
		t.Fatalf("data fee = %d, %v", fee, err)
	}
	fee, err = types.CalculateRunTimeFee(1500, 1000)
	if err != nil || fee != 1500 {
		t.Fatalf("run time fee = %d, %v", fee, err)
	}
}

func TestFeeSchedule_SetKeepsOrder(t *testing.T) {
	var s types.FeeSchedule
	s.Set(types.FeeParameters{Operation: types.OpCrontabCreate, Fee: 3})
	s.Set(types.FeeParameters{Operation: types.OpTransfer, Fee: 1})
	s.Set(types.FeeParameters{Operation: types.OpAssetCreate, Fee: 2})
	s.Set(types.FeeParameters{Operation: types.OpTransfer, Fee: 5})
	if len(s.Parameters) != 3 {
		t.Fatalf("len = %d", len(s.Parameters))
	}
	for i := 1; i < len(s.Parameters); i++ {
		if s.Parameters[i-1].Operation >= s.Parameters[i].Operation {
			t.Fatal("schedule is not sorted")
		}
	}
	if s.Lookup(types.OpTransfer).Fee != 5 {
		t.Fatal("Set did not replace the transfer record")
	}
	if s.Lookup(types.OpWorkerCreate).Fee != 0 {
		t.Fatal("missing record must be free")
	}
}

func TestChainParameters_Validate(t *testing.T) {
	p := types.DefaultChainParameters()
	if err := p.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	p.MaintenanceInterval = 7
	if err := p.Validate(); err == nil {
		t.Fatal("maintenance interval must be a multiple of the block interval")
	}
	p = types.DefaultChainParameters()
	p.TimeoutMagnification = 0
	if err := p.Validate(); err == nil {
		t.Fatal("zero magnification must be rejected")
	}
}

func TestObjectID_ParseAndKey(t *testing.T) {
	id, err := types.ParseObjectID("1.22.17")
	if err != nil {
		t.Fatal(err)
	}
	if id != types.CrontabID(17).ObjectID() {
		t.Fatalf("parsed %v", id)
	}
	back, ok := types.ObjectIDFromKey(id.Key())
	if !ok || back != id {
		t.Fatalf("key round trip gave %v", back)
	}
	if !types.AccountID(900).ObjectID().Less(types.AssetID(0).ObjectID()) {
		t.Fatal("ids must order by type before instance")
	}
	if _, err := types.ParseObjectID("1.2"); err == nil {
		t.Fatal("short id must fail")
	}
}

func TestNameValidation(t *testing.T) {
	for _, n := range []string{"alice", "bob-2", "abc"} {
		if !types.IsValidAccountName(n) {
			t.Fatalf("%q should be valid", n)
		}
	}
	for _, n := range []string{"ab", "2bob", "bob-", "Bob"} {
		if types.IsValidAccountName(n) {
			t.Fatalf("%q should be invalid", n)
		}
	}
	if !types.IsValidSymbol("GOLD.X") || types.IsValidSymbol("GOLD.") || types.IsValidSymbol("A.B.C") {
		t.Fatal("symbol grammar mismatch")
	}
}

func TestTransferValidate(t *testing.T) {
	op := sampleTransfer()
	if err := op.Validate(); err != nil {
		t.Fatal(err)
	}
	op.To = op.From
	if err := op.Validate(); err == nil {
		t.Fatal("self transfer must fail")
	}
	op = sampleTransfer()
	op.Fee.Amount = -1
	if err := op.Validate(); err == nil {
		t.Fatal("negative fee must fail")
	}
}

func TestCrontabCreateValidate(t *testing.T) {
	op := &types.CrontabCreateOperation{
		CrontabCreator:        7,
		CrontabOps:            []types.OperationEnvelope{types.MustEncodeOperation(sampleTransfer())},
		StartTime:             100,
		ExecuteInterval:       10,
		ScheduledExecuteTimes: 3,
	}
	if err := op.Validate(); err != nil {
		t.Fatal(err)
	}
	if got := op.ImpactedAccounts(); len(got) != 2 || got[1] != 8 {
		t.Fatalf("impacted = %v", got)
	}
	nested := *op
	nested.CrontabOps = append(nested.CrontabOps, types.MustEncodeOperation(&types.CrontabCancelOperation{CrontabCreator: 7}))
	if err := nested.Validate(); err == nil {
		t.Fatal("crontab ops must not be scheduled inside a crontab")
	}
	zero := *op
	zero.ScheduledExecuteTimes = 0
	if err := zero.Validate(); err == nil {
		t.Fatal("zero execute times must fail")
	}
}

func TestExecutionConfig_Scope(t *testing.T) {
	cfg := types.ExecutionConfig{Mode: types.ModeAuthoring}
	func() {
		defer cfg.Scope(types.ExecutionConfig{Mode: types.ModeReplay}.WithSkip(types.SkipFeeConversion))()
		if cfg.Mode != types.ModeReplay || !cfg.Skip.Has(types.SkipFeeConversion) || cfg.Enforcing() {
			t.Fatalf("scoped config = %+v", cfg)
		}
	}()
	if cfg.Mode != types.ModeAuthoring || cfg.Skip != types.SkipNothing || !cfg.Enforcing() {
		t.Fatalf("config not restored: %+v", cfg)
	}
}

func TestUint128(t *testing.T) {
	v := new(uint256.Int).Mul(uint256.NewInt(1<<40), uint256.NewInt(1<<40))
	u := types.Uint128From(v)
	if u.Hi != 1<<16 || u.Lo != 0 {
		t.Fatalf("u = %+v", u)
	}
	if !u.Int().Eq(v) {
		t.Fatal("conversion lost bits")
	}
}

func TestAccountLocks(t *testing.T) {
	var a types.AccountObject
	a.SetLocked(1, 50)
	a.SetLocked(2, 5)
	a.SetLocked(1, 0)
	if a.LockedAmount(1) != 0 || a.LockedAmount(2) != 5 || len(a.Locked) != 1 {
		t.Fatalf("locks = %+v", a.Locked)
	}
}

func TestStatisticsPayFee(t *testing.T) {
	var s types.AccountStatisticsObject
	s.PayFee(10, 100)
	s.PayFee(500, 100)
	if s.PendingVestedFees != 10 || s.PendingFees != 500 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestOperationResult_AddFee(t *testing.T) {
	r := types.VoidResult()
	r.AddFee(types.NewAsset(20, types.CoreAsset))
	r.AddFee(types.NewAsset(5, types.CoreAsset))
	r.AddFee(types.NewAsset(0, 3))
	if len(r.Fees) != 1 || r.TotalFee(types.CoreAsset) != 25 {
		t.Fatalf("fees = %v", r.Fees)
	}
}
