// Package workflow drives the multi-step coordinator flows that span
// several ledger modules. Each flow is a sequence of idempotent steps
// recorded per asset, so a crashed or partially failed run can be retried
// and picks up where it stopped.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "propstake/internal/errors"
	"propstake/internal/logger"
	"propstake/internal/models"
	"propstake/internal/oracle"
	"propstake/internal/pagination"
	"propstake/internal/services"
)

// Onboarding step names, in execution order.
const (
	stepVerify          = "verify"
	stepRegisterEntity  = "register_entity"
	stepActivateEntity  = "activate_entity"
	stepConfirmEntity   = "confirm_entity"
	stepActivateListing = "activate_listing"
	stepIssueUnits      = "issue_units"
)

// Closure step names. Per-holder distribution steps are derived as
// "distribute:<holder>".
const (
	stepFinalizeSettlement = "finalize_settlement"
	stepBurnAll            = "burn_all"
	stepMarkSold           = "mark_sold"
	stepWindUp             = "wind_up"
	stepMarkExecuted       = "mark_executed"
)

// OnboardInput carries everything the onboarding flow needs beyond the
// already-submitted listing.
type OnboardInput struct {
	AssetID        uint
	LegalID        string
	TaxID          string
	CharterRef     string
	CertificateRef string
	DeedRef        string
	DepositAmount  int64
	TotalSupply    int64
	Symbol         string
	TokenName      string
}

// CloseInput carries the settlement-closure parameters.
type CloseInput struct {
	AssetID    uint
	ProposalID uint
	WindupRef  string
}

// Coordinator executes onboarding and closure flows under the platform's
// coordinator identity.
type Coordinator struct {
	db         *gorm.DB
	identity   string
	verifier   oracle.Verifier
	entities   services.EntityServicer
	listings   services.ListingServicer
	ownership  services.OwnershipServicer
	governance services.GovernanceServicer
	settlement services.SettlementServicer
	audit      services.AuditServicer
}

// NewCoordinator creates a workflow coordinator acting as the given identity.
func NewCoordinator(
	db *gorm.DB,
	identity string,
	verifier oracle.Verifier,
	entities services.EntityServicer,
	listings services.ListingServicer,
	ownership services.OwnershipServicer,
	governance services.GovernanceServicer,
	settlement services.SettlementServicer,
	audit services.AuditServicer,
) *Coordinator {
	return &Coordinator{
		db:         db,
		identity:   identity,
		verifier:   verifier,
		entities:   entities,
		listings:   listings,
		ownership:  ownership,
		governance: governance,
		settlement: settlement,
		audit:      audit,
	}
}

// Onboard takes a submitted listing all the way to an ACTIVE listing with
// issued units: oracle verification, legal entity registration and
// activation, listing activation with the owner's deposit, and unit
// issuance. Safe to re-run after a partial failure.
func (c *Coordinator) Onboard(ctx context.Context, input OnboardInput) error {
	runID := uuid.New().String()
	log := logger.Get().With("workflow", "onboard", "asset_id", input.AssetID, "run_id", runID)
	log.Info("starting onboarding workflow")

	listing, err := c.listings.GetListing(input.AssetID)
	if err != nil {
		return err
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{stepVerify, func() error {
			verdict, vErr := c.verifier.Verify(ctx, input.AssetID, listing.LocationRef)
			if vErr != nil {
				return apperrors.Wrap(apperrors.ErrInternal, vErr)
			}
			if !verdict.Approved {
				return apperrors.WithMessage(apperrors.ErrValidation,
					fmt.Sprintf("property verification failed with score %d", verdict.Score))
			}
			_, sErr := c.listings.MarkVerified(c.identity, input.AssetID)
			return sErr
		}},
		{stepRegisterEntity, func() error {
			_, sErr := c.entities.Register(c.identity, input.AssetID,
				input.LegalID, input.TaxID, input.CharterRef, input.CertificateRef, input.DeedRef)
			return sErr
		}},
		{stepActivateEntity, func() error {
			_, sErr := c.entities.Activate(c.identity, input.AssetID)
			return sErr
		}},
		{stepConfirmEntity, func() error {
			_, sErr := c.listings.ConfirmEntity(c.identity, input.AssetID)
			return sErr
		}},
		{stepActivateListing, func() error {
			_, sErr := c.listings.Activate(c.identity, input.AssetID, input.DepositAmount)
			return sErr
		}},
		{stepIssueUnits, func() error {
			_, sErr := c.ownership.IssueUnits(c.identity, input.AssetID,
				input.TotalSupply, input.Symbol, input.TokenName)
			return sErr
		}},
	}

	for _, step := range steps {
		if err := c.runStep(input.AssetID, runID, step.name, step.fn); err != nil {
			log.Errorw("onboarding step failed", "step", step.name, "error", err)
			return err
		}
	}

	log.Info("onboarding workflow completed")
	if c.audit != nil {
		c.audit.Log(c.identity, "workflow.onboard", "listing", input.AssetID, map[string]any{"run_id": runID})
	}
	return nil
}

// Close winds an asset down after a funded settlement: pay out every holder
// pro rata, finalize the settlement, burn the holdings, mark the listing
// sold, wind up the legal entity and mark the governance proposal executed.
// Safe to re-run after a partial failure.
func (c *Coordinator) Close(ctx context.Context, input CloseInput) error {
	runID := uuid.New().String()
	log := logger.Get().With("workflow", "close", "asset_id", input.AssetID, "run_id", runID)
	log.Info("starting closure workflow")

	token, err := c.ownership.GetToken(input.AssetID)
	if err != nil {
		return err
	}

	holders, err := c.allHolders(input.AssetID)
	if err != nil {
		return err
	}
	for _, holding := range holders {
		holding := holding
		stepName := "distribute:" + holding.Holder
		err := c.runStep(input.AssetID, runID, stepName, func() error {
			paid, dErr := c.settlement.Distribute(c.identity, input.AssetID,
				holding.Holder, holding.UnitsHeld, token.TotalSupply)
			if dErr != nil {
				return dErr
			}
			log.Infow("distributed settlement payout", "holder", holding.Holder, "amount", paid)
			return nil
		})
		if err != nil {
			log.Errorw("closure step failed", "step", stepName, "error", err)
			return err
		}
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{stepFinalizeSettlement, func() error {
			_, sErr := c.settlement.Finalize(c.identity, input.AssetID)
			return sErr
		}},
		{stepBurnAll, func() error {
			return c.ownership.BurnAll(c.identity, input.AssetID)
		}},
		{stepMarkSold, func() error {
			_, sErr := c.listings.MarkSold(c.identity, input.AssetID)
			return sErr
		}},
		{stepWindUp, func() error {
			_, sErr := c.entities.WindUp(c.identity, input.AssetID, input.WindupRef)
			return sErr
		}},
		{stepMarkExecuted, func() error {
			_, sErr := c.governance.MarkExecuted(c.identity, input.ProposalID)
			return sErr
		}},
	}

	for _, step := range steps {
		if err := c.runStep(input.AssetID, runID, step.name, step.fn); err != nil {
			log.Errorw("closure step failed", "step", step.name, "error", err)
			return err
		}
	}

	log.Info("closure workflow completed")
	if c.audit != nil {
		c.audit.Log(c.identity, "workflow.close", "settlement", input.AssetID, map[string]any{"run_id": runID})
	}
	return nil
}

// runStep executes fn once per (asset, step): a step already recorded as
// completed is skipped, and the record is written only after fn succeeds.
func (c *Coordinator) runStep(assetID uint, runID, step string, fn func() error) error {
	var existing models.WorkflowStep
	err := c.db.Where("asset_id = ? AND step = ?", assetID, step).First(&existing).Error
	if err == nil {
		logger.Get().Debugw("skipping completed workflow step", "asset_id", assetID, "step", step)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}

	if err := fn(); err != nil {
		return err
	}

	completedAt := time.Now()
	record := &models.WorkflowStep{
		AssetID:     assetID,
		Step:        step,
		RunID:       runID,
		CompletedAt: &completedAt,
	}
	if err := c.db.Create(record).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// allHolders pages through every holding for the asset.
func (c *Coordinator) allHolders(assetID uint) ([]models.Holding, error) {
	var holders []models.Holding
	page := 1
	for {
		resp, err := c.ownership.ListHolders(assetID, pagination.PageRequest{Page: page, PageSize: 100})
		if err != nil {
			return nil, err
		}
		holders = append(holders, resp.Data...)
		if page >= resp.TotalPages {
			return holders, nil
		}
		page++
	}
}
