package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "propstake/internal/errors"
	"propstake/internal/models"
	"propstake/internal/roles"
	"propstake/internal/treasury"
)

// dustTolerance is the maximum allowed gap between the escrow balance and
// the sum of floor-divided payouts at finalization.
const dustTolerance = 10

// settlementService runs the escrow-funded sale of a whole asset: the buyer
// funds escrow at the governance-approved price, holders are paid out
// incrementally pro rata, and the residual flooring dust stays in escrow.
type settlementService struct {
	db         *gorm.DB
	governance GovernanceServicer
	auth       roles.Authorizer
	treasury   treasury.Treasury
	audit      AuditServicer
	now        func() time.Time
}

// NewSettlementService creates a new SettlementServicer.
func NewSettlementService(db *gorm.DB, governance GovernanceServicer, auth roles.Authorizer, tre treasury.Treasury, audit AuditServicer) SettlementServicer {
	return &settlementService{db: db, governance: governance, auth: auth, treasury: tre, audit: audit, now: time.Now}
}

// Initiate opens a settlement for an asset whose sale passed governance.
// An aborted settlement (refunded back to NOT_STARTED) can be re-initiated
// with a new price; one that already holds escrow cannot be overwritten.
// Coordinator-only.
func (s *settlementService) Initiate(caller string, assetID uint, approvedPrice int64, proposalID uint) (*models.Settlement, error) {
	if !s.auth.HasRole(caller, roles.Coordinator) {
		return nil, apperrors.ErrUnauthorized
	}
	if approvedPrice <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "approved price must be positive")
	}
	if !s.governance.CheckSellAuthorized(assetID) {
		return nil, apperrors.WithMessage(apperrors.ErrUnauthorized, "sale not authorized by governance")
	}

	var settlement models.Settlement
	err := s.db.Where("asset_id = ?", assetID).First(&settlement).Error
	switch {
	case err == nil:
		if settlement.Status != models.SettlementNotStarted {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "settlement already in progress for this asset")
		}
		if err := s.db.Model(&settlement).Updates(map[string]interface{}{
			"approved_price":    approvedPrice,
			"proposal_id":       proposalID,
			"buyer":             "",
			"escrow_balance":    0,
			"total_distributed": 0,
		}).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, err)
		}
		settlement.ApprovedPrice = approvedPrice
		settlement.ProposalID = proposalID
		settlement.Buyer = ""
		settlement.EscrowBalance = 0
		settlement.TotalDistributed = 0
	case errors.Is(err, gorm.ErrRecordNotFound):
		settlement = models.Settlement{
			AssetID:       assetID,
			ApprovedPrice: approvedPrice,
			ProposalID:    proposalID,
			Status:        models.SettlementNotStarted,
		}
		if err := s.db.Create(&settlement).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, err)
		}
	default:
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &settlement, nil
}

// FundEscrow takes the buyer's payment into escrow custody. The payment must
// match the approved price exactly; the funding caller becomes the recorded
// buyer.
func (s *settlementService) FundEscrow(caller string, assetID uint, payment int64) (*models.Settlement, error) {
	if caller == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "buyer address is required")
	}

	settlement, err := s.getByAsset(assetID)
	if err != nil {
		return nil, err
	}
	if settlement.Status != models.SettlementNotStarted {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "escrow already funded")
	}
	if payment != settlement.ApprovedPrice {
		return nil, apperrors.WithMessage(apperrors.ErrAmountMismatch, "payment must equal the approved price")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Model(settlement).Updates(map[string]interface{}{
			"status":         models.SettlementEscrowFunded,
			"buyer":          caller,
			"escrow_balance": payment,
		}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}
		if txErr := s.treasury.Transfer(caller, treasury.EscrowAccount(assetID), payment); txErr != nil {
			return apperrors.Wrap(apperrors.ErrPaymentFailed, txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	settlement.Status = models.SettlementEscrowFunded
	settlement.Buyer = caller
	settlement.EscrowBalance = payment
	return settlement, nil
}

// Distribute pays one holder's share of the escrow:
// holder_units × approved_price / total_units with floor division. The first
// payout moves the settlement to DISTRIBUTING. Coordinator-only, one call
// per holder; the caller tracks which holders were processed.
func (s *settlementService) Distribute(caller string, assetID uint, holder string, holderUnits, totalUnits int64) (int64, error) {
	if !s.auth.HasRole(caller, roles.Coordinator) {
		return 0, apperrors.ErrUnauthorized
	}
	if totalUnits <= 0 {
		return 0, apperrors.WithMessage(apperrors.ErrValidation, "total units must be positive")
	}
	if holderUnits < 0 {
		return 0, apperrors.WithMessage(apperrors.ErrValidation, "holder units cannot be negative")
	}

	settlement, err := s.getByAsset(assetID)
	if err != nil {
		return 0, err
	}
	if settlement.Status != models.SettlementEscrowFunded && settlement.Status != models.SettlementDistributing {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidState, "escrow must be funded before distribution")
	}

	payout := holderUnits * settlement.ApprovedPrice / totalUnits

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Model(settlement).Updates(map[string]interface{}{
			"status":            models.SettlementDistributing,
			"total_distributed": settlement.TotalDistributed + payout,
		}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}
		if payout > 0 {
			if txErr := s.treasury.Transfer(treasury.EscrowAccount(assetID), holder, payout); txErr != nil {
				return apperrors.Wrap(apperrors.ErrPaymentFailed, txErr)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	settlement.Status = models.SettlementDistributing
	settlement.TotalDistributed += payout
	return payout, nil
}

// Finalize completes a settlement once the distributed total is within the
// dust tolerance of the escrow balance. Coordinator-only.
func (s *settlementService) Finalize(caller string, assetID uint) (*models.Settlement, error) {
	if !s.auth.HasRole(caller, roles.Coordinator) {
		return nil, apperrors.ErrUnauthorized
	}

	settlement, err := s.getByAsset(assetID)
	if err != nil {
		return nil, err
	}
	if settlement.Status != models.SettlementDistributing {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "settlement must be DISTRIBUTING to finalize")
	}

	gap := settlement.EscrowBalance - settlement.TotalDistributed
	if gap < 0 {
		gap = -gap
	}
	if gap > dustTolerance {
		return nil, apperrors.WithMessage(apperrors.ErrAmountMismatch, "distributed total does not match the escrow balance")
	}

	settledAt := s.now()
	if err := s.db.Model(settlement).Updates(map[string]interface{}{
		"status":     models.SettlementComplete,
		"settled_at": settledAt,
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	settlement.Status = models.SettlementComplete
	settlement.SettledAt = &settledAt
	if s.audit != nil {
		s.audit.Log(caller, "settlement.finalize", "settlement", assetID, map[string]any{
			"escrow_balance":    settlement.EscrowBalance,
			"total_distributed": settlement.TotalDistributed,
		})
	}
	return settlement, nil
}

// EmergencyRefund aborts a funded settlement before any distribution: the
// full escrow goes back to the buyer and the settlement resets to
// NOT_STARTED. Once distribution begins the refund path is closed.
// Coordinator-only.
func (s *settlementService) EmergencyRefund(caller string, assetID uint) (*models.Settlement, error) {
	if !s.auth.HasRole(caller, roles.Coordinator) {
		return nil, apperrors.ErrUnauthorized
	}

	settlement, err := s.getByAsset(assetID)
	if err != nil {
		return nil, err
	}
	if settlement.Status != models.SettlementEscrowFunded {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "refund is only possible while escrow is funded and undistributed")
	}

	buyer := settlement.Buyer
	refund := settlement.EscrowBalance
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Model(settlement).Updates(map[string]interface{}{
			"status":         models.SettlementNotStarted,
			"buyer":          "",
			"escrow_balance": 0,
		}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}
		if txErr := s.treasury.Transfer(treasury.EscrowAccount(assetID), buyer, refund); txErr != nil {
			return apperrors.Wrap(apperrors.ErrPaymentFailed, txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	settlement.Status = models.SettlementNotStarted
	settlement.Buyer = ""
	settlement.EscrowBalance = 0
	if s.audit != nil {
		s.audit.Log(caller, "settlement.emergency_refund", "settlement", assetID, map[string]any{
			"buyer":  buyer,
			"amount": refund,
		})
	}
	return settlement, nil
}

// GetSettlement returns the full settlement record for an asset.
func (s *settlementService) GetSettlement(assetID uint) (*models.Settlement, error) {
	return s.getByAsset(assetID)
}

// Status returns the settlement status for an asset, NOT_STARTED for assets
// with no settlement record.
func (s *settlementService) Status(assetID uint) models.SettlementStatus {
	settlement, err := s.getByAsset(assetID)
	if err != nil {
		return models.SettlementNotStarted
	}
	return settlement.Status
}

func (s *settlementService) getByAsset(assetID uint) (*models.Settlement, error) {
	var settlement models.Settlement
	if err := s.db.Where("asset_id = ?", assetID).First(&settlement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "settlement not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &settlement, nil
}
