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

// incomePeriod is the fixed interval between expected income deposits.
const incomePeriod = 90 * 24 * time.Hour

// incomeService distributes periodic income with a deposit-once /
// claim-individually pull pattern: a deposit costs the same regardless of
// holder count, and each claim is independent of other holders.
type incomeService struct {
	db       *gorm.DB
	listings ListingServicer
	auth     roles.Authorizer
	treasury treasury.Treasury
	now      func() time.Time
}

// NewIncomeService creates a new IncomeServicer.
func NewIncomeService(db *gorm.DB, listings ListingServicer, auth roles.Authorizer, tre treasury.Treasury) IncomeServicer {
	return &incomeService{db: db, listings: listings, auth: auth, treasury: tre, now: time.Now}
}

// Deposit takes one period's income from the listing owner into custody and
// advances the next deadline by one period from now.
func (s *incomeService) Deposit(caller string, assetID uint, amount int64) (*models.IncomeRecord, error) {
	if amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "deposit amount must be positive")
	}

	listing, err := s.listings.GetListing(assetID)
	if err != nil {
		return nil, err
	}
	if caller != listing.Owner {
		return nil, apperrors.WithMessage(apperrors.ErrUnauthorized, "only the listing owner can deposit income")
	}

	depositedAt := s.now()
	nextDeadline := depositedAt.Add(incomePeriod)

	var record models.IncomeRecord
	err = s.db.Transaction(func(tx *gorm.DB) error {
		txErr := tx.Where("asset_id = ?", assetID).First(&record).Error
		switch {
		case txErr == nil:
			if txErr := tx.Model(&record).Updates(map[string]interface{}{
				"total_deposited":     record.TotalDeposited + amount,
				"last_deposit_amount": amount,
				"last_deposit_at":     depositedAt,
				"deposit_count":       record.DepositCount + 1,
				"next_deadline":       nextDeadline,
			}).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternal, txErr)
			}
			record.TotalDeposited += amount
			record.DepositCount++
		case errors.Is(txErr, gorm.ErrRecordNotFound):
			record = models.IncomeRecord{
				AssetID:           assetID,
				TotalDeposited:    amount,
				LastDepositAmount: amount,
				DepositCount:      1,
				NextDeadline:      nextDeadline,
			}
			if txErr := tx.Create(&record).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternal, txErr)
			}
		default:
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}

		if txErr := s.treasury.Transfer(caller, treasury.IncomeAccount(assetID), amount); txErr != nil {
			return apperrors.Wrap(apperrors.ErrPaymentFailed, txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	record.LastDepositAmount = amount
	record.LastDepositAt = &depositedAt
	record.NextDeadline = nextDeadline
	return &record, nil
}

// Allocate credits one holder's share of a deposit:
// holder_units × deposit_amount / total_units with floor division. The sum
// across holders is at most the deposit; the remainder is dust absorbed by
// the distributing party and never reassigned. Coordinator-only, one call
// per holder per deposit; the caller tracks which holders were processed.
func (s *incomeService) Allocate(caller string, assetID uint, holder string, holderUnits, totalUnits, depositAmount int64) (*models.Claim, error) {
	if !s.auth.HasRole(caller, roles.Coordinator) {
		return nil, apperrors.ErrUnauthorized
	}
	if totalUnits <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "total units must be positive")
	}
	if holderUnits < 0 || depositAmount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "holder units and deposit amount must be positive")
	}

	delta := holderUnits * depositAmount / totalUnits

	var claim models.Claim
	err := s.db.Where("asset_id = ? AND holder = ?", assetID, holder).First(&claim).Error
	switch {
	case err == nil:
		if err := s.db.Model(&claim).Update("claimable_balance", claim.ClaimableBalance+delta).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, err)
		}
		claim.ClaimableBalance += delta
	case errors.Is(err, gorm.ErrRecordNotFound):
		claim = models.Claim{AssetID: assetID, Holder: holder, ClaimableBalance: delta}
		if err := s.db.Create(&claim).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, err)
		}
	default:
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &claim, nil
}

// Claim pays the caller's full claimable balance out of custody and zeroes
// it. Fails with NOTHING_TO_CLAIM when the balance is zero.
func (s *incomeService) Claim(caller string, assetID uint) (int64, error) {
	var claim models.Claim
	if err := s.db.Where("asset_id = ? AND holder = ?", assetID, caller).First(&claim).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.ErrNothingToClaim
		}
		return 0, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	if claim.ClaimableBalance <= 0 {
		return 0, apperrors.ErrNothingToClaim
	}

	amount := claim.ClaimableBalance
	claimedAt := s.now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Model(&claim).Updates(map[string]interface{}{
			"claimable_balance": 0,
			"total_claimed":     claim.TotalClaimed + amount,
			"last_claim_at":     claimedAt,
		}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}
		if txErr := s.treasury.Transfer(treasury.IncomeAccount(assetID), caller, amount); txErr != nil {
			return apperrors.Wrap(apperrors.ErrPaymentFailed, txErr)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// FlagMissed records a missed deposit once the current deadline has passed
// and advances the deadline by one period, so each miss can be flagged once
// its own deadline lapses. Callable by anyone.
func (s *incomeService) FlagMissed(caller string, assetID uint) (*models.IncomeRecord, error) {
	var record models.IncomeRecord
	if err := s.db.Where("asset_id = ?", assetID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "no income record for this asset")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	if !s.now().After(record.NextDeadline) {
		return nil, apperrors.WithMessage(apperrors.ErrDeadlineViolation, "deposit deadline has not passed yet")
	}

	newDeadline := record.NextDeadline.Add(incomePeriod)
	if err := s.db.Model(&record).Updates(map[string]interface{}{
		"missed_count":  record.MissedCount + 1,
		"next_deadline": newDeadline,
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	record.MissedCount++
	record.NextDeadline = newDeadline
	return &record, nil
}

// GetClaimable returns a holder's claimable balance, zero for unknown
// holders.
func (s *incomeService) GetClaimable(assetID uint, holder string) int64 {
	var claim models.Claim
	if err := s.db.Where("asset_id = ? AND holder = ?", assetID, holder).First(&claim).Error; err != nil {
		return 0
	}
	return claim.ClaimableBalance
}

// GetStats returns the aggregate income record for an asset.
func (s *incomeService) GetStats(assetID uint) (*models.IncomeRecord, error) {
	var record models.IncomeRecord
	if err := s.db.Where("asset_id = ?", assetID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "no income record for this asset")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &record, nil
}

// GetClaimHistory returns a holder's claim record for an asset.
func (s *incomeService) GetClaimHistory(assetID uint, holder string) (*models.Claim, error) {
	var claim models.Claim
	if err := s.db.Where("asset_id = ? AND holder = ?", assetID, holder).First(&claim).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "no claim record for this holder")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &claim, nil
}
