package services

import (
	"testing"
	"time"

	"propstake/internal/models"
	"propstake/internal/testutil"
)

func validProposalInput(assetID uint) CreateProposalInput {
	return CreateProposalInput{
		AssetID:       assetID,
		Type:          models.ProposalSell,
		Description:   "Sell the property",
		ProposedValue: 65_000_000_000,
		VotingDays:    7,
		ProposerUnits: 2_000,
		TotalUnits:    10_000,
	}
}

// pastDeadline rewinds a proposal's voting deadline so it can be finalized.
func pastDeadline(t *testing.T, env *testEnv, proposalID uint) {
	t.Helper()
	deadline := time.Now().Add(-time.Hour)
	if err := env.db.Model(&models.Proposal{}).Where("id = ?", proposalID).
		Update("voting_deadline", deadline).Error; err != nil {
		t.Fatalf("failed to rewind deadline: %v", err)
	}
}

func TestCreateProposal(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t)
		listing := testutil.CreateActiveListing(t, env.db, testutil.NewAddress("owner"))

		proposal, err := env.governance.CreateProposal(testutil.NewAddress("proposer"), validProposalInput(listing.ID))
		testutil.AssertNoError(t, err)

		if proposal.Status != models.ProposalActive {
			t.Errorf("expected status active, got %s", proposal.Status)
		}
		if proposal.QuorumThreshold != 51 {
			t.Errorf("expected quorum threshold 51, got %d", proposal.QuorumThreshold)
		}
		if proposal.TotalUnitsSnapshot != 10_000 {
			t.Errorf("expected snapshot 10000, got %d", proposal.TotalUnitsSnapshot)
		}
		wantDeadline := time.Now().Add(7 * 24 * time.Hour)
		if proposal.VotingDeadline.Before(wantDeadline.Add(-time.Minute)) ||
			proposal.VotingDeadline.After(wantDeadline.Add(time.Minute)) {
			t.Errorf("expected deadline about 7 days out, got %v", proposal.VotingDeadline)
		}
	})

	t.Run("stake_just_below_one_percent", func(t *testing.T) {
		env := newTestEnv(t)
		input := validProposalInput(1)
		input.ProposerUnits = 99

		_, err := env.governance.CreateProposal(testutil.NewAddress("proposer"), input)
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("stake_exactly_one_percent", func(t *testing.T) {
		env := newTestEnv(t)
		input := validProposalInput(1)
		input.ProposerUnits = 100

		_, err := env.governance.CreateProposal(testutil.NewAddress("proposer"), input)
		testutil.AssertNoError(t, err)
	})

	t.Run("unknown_type", func(t *testing.T) {
		env := newTestEnv(t)
		input := validProposalInput(1)
		input.Type = models.ProposalType("demolish")

		_, err := env.governance.CreateProposal(testutil.NewAddress("proposer"), input)
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})
}

func TestCastVote(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalActive)
		voter := testutil.NewAddress("voter")

		vote, err := env.governance.CastVote(voter, proposal.ID, true, 2_500)
		testutil.AssertNoError(t, err)
		if vote.Weight != 2_500 {
			t.Errorf("expected weight 2500, got %d", vote.Weight)
		}

		reloaded, err := env.governance.GetProposal(proposal.ID)
		testutil.AssertNoError(t, err)
		if reloaded.YesWeight != 2_500 {
			t.Errorf("expected yes weight 2500, got %d", reloaded.YesWeight)
		}
	})

	t.Run("tallies_both_sides", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalActive)

		_, err := env.governance.CastVote(testutil.NewAddress("voter"), proposal.ID, true, 3_000)
		testutil.AssertNoError(t, err)
		_, err = env.governance.CastVote(testutil.NewAddress("voter"), proposal.ID, false, 2_000)
		testutil.AssertNoError(t, err)

		reloaded, err := env.governance.GetProposal(proposal.ID)
		testutil.AssertNoError(t, err)
		if reloaded.YesWeight != 3_000 || reloaded.NoWeight != 2_000 {
			t.Errorf("expected 3000/2000, got %d/%d", reloaded.YesWeight, reloaded.NoWeight)
		}
	})

	t.Run("double_vote", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalActive)
		voter := testutil.NewAddress("voter")

		_, err := env.governance.CastVote(voter, proposal.ID, true, 1_000)
		testutil.AssertNoError(t, err)

		_, err = env.governance.CastVote(voter, proposal.ID, false, 1_000)
		testutil.AssertAppError(t, err, "ALREADY_VOTED")
	})

	t.Run("after_deadline", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalActive)
		pastDeadline(t, env, proposal.ID)

		_, err := env.governance.CastVote(testutil.NewAddress("voter"), proposal.ID, true, 1_000)
		testutil.AssertAppError(t, err, "DEADLINE_VIOLATION")
	})

	t.Run("no_units", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalActive)

		_, err := env.governance.CastVote(testutil.NewAddress("voter"), proposal.ID, true, 0)
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("empty_voter_address", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalActive)

		_, err := env.governance.CastVote("", proposal.ID, true, 1_000)
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")

		var count int64
		if err := env.db.Model(&models.Vote{}).Where("proposal_id = ?", proposal.ID).Count(&count).Error; err != nil {
			t.Fatalf("failed to count votes: %v", err)
		}
		if count != 0 {
			t.Errorf("expected no vote recorded, got %d", count)
		}
	})
}

func TestFinalizeProposal(t *testing.T) {
	t.Run("passes_above_threshold", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalActive)

		// 5200 / 10000 = 52% > 51%.
		_, err := env.governance.CastVote(testutil.NewAddress("voter"), proposal.ID, true, 5_200)
		testutil.AssertNoError(t, err)
		pastDeadline(t, env, proposal.ID)

		finalized, err := env.governance.Finalize(testutil.NewAddress("anyone"), proposal.ID)
		testutil.AssertNoError(t, err)
		if finalized.Status != models.ProposalPassed {
			t.Errorf("expected passed, got %s", finalized.Status)
		}
		if finalized.AuthorizedAction != "SELL" {
			t.Errorf("expected SELL action, got %q", finalized.AuthorizedAction)
		}
		if !env.governance.CheckSellAuthorized(1) {
			t.Error("expected sale to be authorized")
		}
	})

	t.Run("fails_at_exact_threshold", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalActive)

		// 5100 / 10000 = 51%, not strictly above the threshold.
		_, err := env.governance.CastVote(testutil.NewAddress("voter"), proposal.ID, true, 5_100)
		testutil.AssertNoError(t, err)
		pastDeadline(t, env, proposal.ID)

		finalized, err := env.governance.Finalize(testutil.NewAddress("anyone"), proposal.ID)
		testutil.AssertNoError(t, err)
		if finalized.Status != models.ProposalFailed {
			t.Errorf("expected failed, got %s", finalized.Status)
		}
		if env.governance.CheckSellAuthorized(1) {
			t.Error("expected sale not to be authorized")
		}
	})

	t.Run("abstentions_count_against", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalActive)

		// Unanimous among voters, but only 40% of the snapshot voted.
		_, err := env.governance.CastVote(testutil.NewAddress("voter"), proposal.ID, true, 4_000)
		testutil.AssertNoError(t, err)
		pastDeadline(t, env, proposal.ID)

		finalized, err := env.governance.Finalize(testutil.NewAddress("anyone"), proposal.ID)
		testutil.AssertNoError(t, err)
		if finalized.Status != models.ProposalFailed {
			t.Errorf("expected failed, got %s", finalized.Status)
		}
	})

	t.Run("before_deadline", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalActive)

		_, err := env.governance.Finalize(testutil.NewAddress("anyone"), proposal.ID)
		testutil.AssertAppError(t, err, "DEADLINE_VIOLATION")
	})

	t.Run("already_finalized", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalActive)
		pastDeadline(t, env, proposal.ID)

		_, err := env.governance.Finalize(testutil.NewAddress("anyone"), proposal.ID)
		testutil.AssertNoError(t, err)

		_, err = env.governance.Finalize(testutil.NewAddress("anyone"), proposal.ID)
		testutil.AssertAppError(t, err, "INVALID_STATE")
	})

	t.Run("non_sell_pass_does_not_authorize_sale", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalRenovate, models.ProposalActive)

		_, err := env.governance.CastVote(testutil.NewAddress("voter"), proposal.ID, true, 6_000)
		testutil.AssertNoError(t, err)
		pastDeadline(t, env, proposal.ID)

		finalized, err := env.governance.Finalize(testutil.NewAddress("anyone"), proposal.ID)
		testutil.AssertNoError(t, err)
		if finalized.AuthorizedAction != "RENOVATE" {
			t.Errorf("expected RENOVATE action, got %q", finalized.AuthorizedAction)
		}
		if env.governance.CheckSellAuthorized(1) {
			t.Error("expected no sale authorization from a renovation vote")
		}
	})
}

func TestMarkExecuted(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalPassed)

		updated, err := env.governance.MarkExecuted(testutil.SettlementEngineAddr, proposal.ID)
		testutil.AssertNoError(t, err)
		if updated.Status != models.ProposalExecuted {
			t.Errorf("expected executed, got %s", updated.Status)
		}
	})

	t.Run("not_passed", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalActive)

		_, err := env.governance.MarkExecuted(testutil.CoordinatorAddr, proposal.ID)
		testutil.AssertAppError(t, err, "INVALID_STATE")
	})

	t.Run("unauthorized", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalPassed)

		_, err := env.governance.MarkExecuted(testutil.NewAddress("stranger"), proposal.ID)
		testutil.AssertAppError(t, err, "UNAUTHORIZED")
	})
}

func TestRecordResolution(t *testing.T) {
	t.Run("any_status", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalFailed)

		updated, err := env.governance.RecordResolution(testutil.CoordinatorAddr, proposal.ID, "doc:resolution")
		testutil.AssertNoError(t, err)
		if updated.ResolutionRef != "doc:resolution" {
			t.Errorf("expected resolution ref recorded, got %q", updated.ResolutionRef)
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := testutil.CreateTestProposal(t, env.db, 1, models.ProposalSell, models.ProposalPassed)

		_, err := env.governance.RecordResolution(testutil.NewAddress("stranger"), proposal.ID, "doc:resolution")
		testutil.AssertAppError(t, err, "UNAUTHORIZED")
	})
}

func TestGetAuthorizedSalePrice(t *testing.T) {
	t.Run("from_authorizing_proposal", func(t *testing.T) {
		env := newTestEnv(t)
		testutil.CreateSaleAuthorization(t, env.db, 1, 65_000_000_000)

		price, err := env.governance.GetAuthorizedSalePrice(1)
		testutil.AssertNoError(t, err)
		if price != 65_000_000_000 {
			t.Errorf("expected price 65000000000, got %d", price)
		}
	})

	t.Run("no_authorization", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.governance.GetAuthorizedSalePrice(424242)
		testutil.AssertAppError(t, err, "NOT_FOUND")
	})
}
