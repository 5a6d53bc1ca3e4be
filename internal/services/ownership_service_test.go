package services

import (
	"testing"

	"propstake/internal/models"
	"propstake/internal/pagination"
	"propstake/internal/testutil"
	"propstake/internal/treasury"
)

func TestIssueUnits(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))

		token, err := env.ownership.IssueUnits(testutil.CoordinatorAddr, listing.ID, 10_000, "PROP", "Harborview Units")
		testutil.AssertNoError(t, err)

		if token.TotalSupply != 10_000 {
			t.Errorf("expected total supply 10000, got %d", token.TotalSupply)
		}
		if token.RemainingSupply != 10_000 {
			t.Errorf("expected remaining supply 10000, got %d", token.RemainingSupply)
		}
		if token.InsuranceRateBps != 15 {
			t.Errorf("expected insurance rate 15 bps, got %d", token.InsuranceRateBps)
		}
	})

	t.Run("listing_not_active", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateTestListing(t, env.db, testutil.NewAddress("owner"), models.ListingPendingActivation)

		_, err := env.ownership.IssueUnits(testutil.CoordinatorAddr, listing.ID, 10_000, "PROP", "Units")
		testutil.AssertAppError(t, err, "INVALID_STATE")
	})

	t.Run("double_issue", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))

		_, err := env.ownership.IssueUnits(testutil.CoordinatorAddr, listing.ID, 10_000, "PROP", "Units")
		testutil.AssertNoError(t, err)

		_, err = env.ownership.IssueUnits(testutil.CoordinatorAddr, listing.ID, 10_000, "PROP", "Units")
		testutil.AssertAppError(t, err, "ALREADY_EXISTS")
	})

	t.Run("unauthorized", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))

		_, err := env.ownership.IssueUnits(testutil.NewAddress("stranger"), listing.ID, 10_000, "PROP", "Units")
		testutil.AssertAppError(t, err, "UNAUTHORIZED")
	})
}

func TestOptIn(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))
		testutil.CreateTestToken(t, env.db, listing.ID, 10_000)

		holding, err := env.ownership.OptIn(testutil.NewAddress("holder"), listing.ID)
		testutil.AssertNoError(t, err)

		if holding.UnitsHeld != 0 {
			t.Errorf("expected zero units after opt-in, got %d", holding.UnitsHeld)
		}
	})

	t.Run("double_opt_in", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))
		testutil.CreateTestToken(t, env.db, listing.ID, 10_000)
		holder := testutil.NewAddress("holder")

		_, err := env.ownership.OptIn(holder, listing.ID)
		testutil.AssertNoError(t, err)

		_, err = env.ownership.OptIn(holder, listing.ID)
		testutil.AssertAppError(t, err, "ALREADY_EXISTS")
	})

	t.Run("units_not_issued", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))

		_, err := env.ownership.OptIn(testutil.NewAddress("holder"), listing.ID)
		testutil.AssertAppError(t, err, "NOT_FOUND")
	})
}

func TestBuy(t *testing.T) {
	setup := func(t *testing.T) (*testEnv, uint) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))
		testutil.CreateTestToken(t, env.db, listing.ID, 10_000)
		return env, listing.ID
	}

	t.Run("valid_with_insurance_split", func(t *testing.T) {
		env, assetID := setup(t)
		holder := testutil.NewAddress("holder")
		_, err := env.ownership.OptIn(holder, assetID)
		testutil.AssertNoError(t, err)

		env.treasury.Credit(holder, 1_000_000)
		holding, err := env.ownership.Buy(holder, assetID, 1_000, 1_000_000)
		testutil.AssertNoError(t, err)

		if holding.UnitsHeld != 1_000 {
			t.Errorf("expected 1000 units held, got %d", holding.UnitsHeld)
		}
		// 1.5% of the payment goes to the insurance pool.
		if got := env.ownership.InsurancePoolBalance(); got != 15_000 {
			t.Errorf("expected insurance pool 15000, got %d", got)
		}
		if got := env.treasury.Balance(treasury.ProceedsAccount(assetID)); got != 985_000 {
			t.Errorf("expected proceeds 985000, got %d", got)
		}

		token, err := env.ownership.GetToken(assetID)
		testutil.AssertNoError(t, err)
		if token.RemainingSupply != 9_000 {
			t.Errorf("expected remaining supply 9000, got %d", token.RemainingSupply)
		}

		listing, err := env.listings.GetListing(assetID)
		testutil.AssertNoError(t, err)
		if listing.UnitsSold != 1_000 {
			t.Errorf("expected units sold 1000, got %d", listing.UnitsSold)
		}
	})

	t.Run("premium_floor_division", func(t *testing.T) {
		env, assetID := setup(t)
		holder := testutil.NewAddress("holder")
		_, err := env.ownership.OptIn(holder, assetID)
		testutil.AssertNoError(t, err)

		// 100100 * 15 / 1000 = 1501 with floor division.
		env.treasury.Credit(holder, 100_100)
		_, err = env.ownership.Buy(holder, assetID, 100, 100_100)
		testutil.AssertNoError(t, err)

		if got := env.ownership.InsurancePoolBalance(); got != 1_501 {
			t.Errorf("expected insurance pool 1501, got %d", got)
		}
	})

	t.Run("requires_opt_in", func(t *testing.T) {
		env, assetID := setup(t)
		holder := testutil.NewAddress("holder")
		env.treasury.Credit(holder, 1_000_000)

		_, err := env.ownership.Buy(holder, assetID, 1_000, 1_000_000)
		testutil.AssertAppError(t, err, "NOT_FOUND")
	})

	t.Run("below_min_units", func(t *testing.T) {
		env, assetID := setup(t)
		holder := testutil.NewAddress("holder")
		_, err := env.ownership.OptIn(holder, assetID)
		testutil.AssertNoError(t, err)
		env.treasury.Credit(holder, 99_000)

		_, err = env.ownership.Buy(holder, assetID, 99, 99_000)
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("above_max_units_cumulative", func(t *testing.T) {
		env, assetID := setup(t)
		holder := testutil.NewAddress("holder")
		env.buyUnits(t, assetID, holder, 4_000)

		env.treasury.Credit(holder, 1_100_000)
		_, err := env.ownership.Buy(holder, assetID, 1_100, 1_100_000)
		testutil.AssertAppError(t, err, "CAPACITY_EXCEEDED")
	})

	t.Run("exceeds_remaining_supply", func(t *testing.T) {
		env, assetID := setup(t)
		holder := testutil.NewAddress("holder")
		_, err := env.ownership.OptIn(holder, assetID)
		testutil.AssertNoError(t, err)
		env.treasury.Credit(holder, 20_000_000)

		_, err = env.ownership.Buy(holder, assetID, 10_001, 20_000_000)
		testutil.AssertAppError(t, err, "CAPACITY_EXCEEDED")
	})

	t.Run("insufficient_funds_rolls_back", func(t *testing.T) {
		env, assetID := setup(t)
		holder := testutil.NewAddress("holder")
		_, err := env.ownership.OptIn(holder, assetID)
		testutil.AssertNoError(t, err)

		_, err = env.ownership.Buy(holder, assetID, 1_000, 1_000_000)
		testutil.AssertAppError(t, err, "PAYMENT_FAILED")

		if got := env.ownership.GetUnits(assetID, holder); got != 0 {
			t.Errorf("expected no units after failed buy, got %d", got)
		}
		token, err := env.ownership.GetToken(assetID)
		testutil.AssertNoError(t, err)
		if token.RemainingSupply != 10_000 {
			t.Errorf("expected supply untouched, got %d", token.RemainingSupply)
		}
	})

	t.Run("partial_funds_leave_balances_untouched", func(t *testing.T) {
		env, assetID := setup(t)
		holder := testutil.NewAddress("holder")
		_, err := env.ownership.OptIn(holder, assetID)
		testutil.AssertNoError(t, err)

		// Enough to cover the 3000 levy but not the 200000 payment.
		env.treasury.Credit(holder, 5_000)
		_, err = env.ownership.Buy(holder, assetID, 200, 200_000)
		testutil.AssertAppError(t, err, "PAYMENT_FAILED")

		if got := env.treasury.Balance(holder); got != 5_000 {
			t.Errorf("expected holder balance untouched at 5000, got %d", got)
		}
		if got := env.ownership.InsurancePoolBalance(); got != 0 {
			t.Errorf("expected empty insurance pool after failed buy, got %d", got)
		}
		if got := env.treasury.Balance(treasury.ProceedsAccount(assetID)); got != 0 {
			t.Errorf("expected empty proceeds custody after failed buy, got %d", got)
		}
		if got := env.ownership.GetUnits(assetID, holder); got != 0 {
			t.Errorf("expected no units after failed buy, got %d", got)
		}
	})
}

func TestGetPercentage(t *testing.T) {
	t.Run("basis_points", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))
		testutil.CreateTestToken(t, env.db, listing.ID, 10_000)
		holder := testutil.NewAddress("holder")
		testutil.CreateTestHolding(t, env.db, listing.ID, holder, 2_500)

		pct, err := env.ownership.GetPercentage(listing.ID, holder)
		testutil.AssertNoError(t, err)
		if pct != 2_500 {
			t.Errorf("expected 2500 bps, got %d", pct)
		}
	})

	t.Run("floors_fractional_share", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))
		testutil.CreateTestToken(t, env.db, listing.ID, 10_000)
		holder := testutil.NewAddress("holder")
		testutil.CreateTestHolding(t, env.db, listing.ID, holder, 333)

		pct, err := env.ownership.GetPercentage(listing.ID, holder)
		testutil.AssertNoError(t, err)
		if pct != 333 {
			t.Errorf("expected 333 bps, got %d", pct)
		}
	})

	t.Run("unknown_holder", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))
		testutil.CreateTestToken(t, env.db, listing.ID, 10_000)

		pct, err := env.ownership.GetPercentage(listing.ID, testutil.NewAddress("nobody"))
		testutil.AssertNoError(t, err)
		if pct != 0 {
			t.Errorf("expected 0 bps, got %d", pct)
		}
	})
}

func TestBurnAll(t *testing.T) {
	t.Run("zeroes_all_holdings", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))
		testutil.CreateTestToken(t, env.db, listing.ID, 10_000)

		h1 := testutil.NewAddress("holder")
		h2 := testutil.NewAddress("holder")
		env.buyUnits(t, listing.ID, h1, 3_000)
		env.buyUnits(t, listing.ID, h2, 2_000)

		err := env.ownership.BurnAll(testutil.SettlementEngineAddr, listing.ID)
		testutil.AssertNoError(t, err)

		if got := env.ownership.GetUnits(listing.ID, h1); got != 0 {
			t.Errorf("expected holder 1 zeroed, got %d", got)
		}
		if got := env.ownership.GetUnits(listing.ID, h2); got != 0 {
			t.Errorf("expected holder 2 zeroed, got %d", got)
		}
		token, err := env.ownership.GetToken(listing.ID)
		testutil.AssertNoError(t, err)
		if token.RemainingSupply != 10_000 {
			t.Errorf("expected full supply restored, got %d", token.RemainingSupply)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))
		testutil.CreateTestToken(t, env.db, listing.ID, 10_000)
		env.buyUnits(t, listing.ID, testutil.NewAddress("holder"), 1_000)

		testutil.AssertNoError(t, env.ownership.BurnAll(testutil.CoordinatorAddr, listing.ID))
		testutil.AssertNoError(t, env.ownership.BurnAll(testutil.CoordinatorAddr, listing.ID))

		token, err := env.ownership.GetToken(listing.ID)
		testutil.AssertNoError(t, err)
		if token.RemainingSupply != 10_000 {
			t.Errorf("expected supply restored exactly once, got %d", token.RemainingSupply)
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))
		testutil.CreateTestToken(t, env.db, listing.ID, 10_000)

		err := env.ownership.BurnAll(testutil.NewAddress("stranger"), listing.ID)
		testutil.AssertAppError(t, err, "UNAUTHORIZED")
	})
}

func TestListHolders(t *testing.T) {
	t.Run("paginated_in_opt_in_order", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))
		testutil.CreateTestToken(t, env.db, listing.ID, 10_000)

		first := testutil.NewAddress("holder")
		_, err := env.ownership.OptIn(first, listing.ID)
		testutil.AssertNoError(t, err)
		for i := 0; i < 2; i++ {
			_, err := env.ownership.OptIn(testutil.NewAddress("holder"), listing.ID)
			testutil.AssertNoError(t, err)
		}

		result, err := env.ownership.ListHolders(listing.ID, pagination.PageRequest{Page: 1, PageSize: 2})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 3 {
			t.Errorf("expected 3 holders, got %d", result.TotalItems)
		}
		if result.Data[0].Holder != first {
			t.Errorf("expected first opted-in holder first, got %s", result.Data[0].Holder)
		}

		count, err := env.ownership.HolderCount(listing.ID)
		testutil.AssertNoError(t, err)
		if count != 3 {
			t.Errorf("expected holder count 3, got %d", count)
		}
	})
}
