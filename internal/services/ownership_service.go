package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "propstake/internal/errors"
	"propstake/internal/models"
	"propstake/internal/pagination"
	"propstake/internal/roles"
	"propstake/internal/treasury"
)

// insuranceRateBps is the fixed insurance levy on unit purchases:
// 15 = 1.5%, applied as payment * 15 / 1000 with floor division.
const insuranceRateBps = 15

// ownershipService issues fixed-supply ownership units for ACTIVE listings
// and tracks per-holder balances with the embedded insurance levy. It holds
// its own module identity, which the authorizer grants the token-ledger
// role, for the cross-module units-sold counter update.
type ownershipService struct {
	db       *gorm.DB
	listings ListingServicer
	auth     roles.Authorizer
	treasury treasury.Treasury
	audit    AuditServicer
	identity string
	now      func() time.Time
}

// NewOwnershipService creates a new OwnershipServicer acting under the given
// module identity.
func NewOwnershipService(db *gorm.DB, listings ListingServicer, auth roles.Authorizer, tre treasury.Treasury, audit AuditServicer, identity string) OwnershipServicer {
	return &ownershipService{db: db, listings: listings, auth: auth, treasury: tre, audit: audit, identity: identity, now: time.Now}
}

// IssueUnits creates the token record for an ACTIVE listing. One issue per
// asset; the token's id is the unit id. Coordinator-only.
func (s *ownershipService) IssueUnits(caller string, assetID uint, totalSupply int64, symbol, name string) (*models.Token, error) {
	if !s.auth.HasRole(caller, roles.Coordinator) {
		return nil, apperrors.ErrUnauthorized
	}
	if totalSupply <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "total supply must be positive")
	}

	listing, err := s.listings.GetListing(assetID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingActive {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "listing must be ACTIVE to issue units")
	}

	var existing models.Token
	err = s.db.Where("asset_id = ?", assetID).First(&existing).Error
	if err == nil {
		return nil, apperrors.WithMessage(apperrors.ErrAlreadyExists, "units already issued for this asset")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	token := &models.Token{
		AssetID:          assetID,
		Symbol:           symbol,
		Name:             name,
		TotalSupply:      totalSupply,
		RemainingSupply:  totalSupply,
		InsuranceRateBps: insuranceRateBps,
	}
	if err := s.db.Create(token).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return token, nil
}

// OptIn creates a zeroed holding for the caller, the prerequisite before
// any units can be received. Buying without opting in fails, so the ledger
// never silently creates entries for untracked addresses.
func (s *ownershipService) OptIn(caller string, assetID uint) (*models.Holding, error) {
	if caller == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "holder address is required")
	}
	if _, err := s.getToken(assetID); err != nil {
		return nil, err
	}

	var existing models.Holding
	err := s.db.Where("asset_id = ? AND holder = ?", assetID, caller).First(&existing).Error
	if err == nil {
		return nil, apperrors.WithMessage(apperrors.ErrAlreadyExists, "holder already opted in")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	holding := &models.Holding{AssetID: assetID, Holder: caller}
	if err := s.db.Create(holding).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return holding, nil
}

// Buy purchases units for the caller. The payment is levied 1.5% for the
// insurance pool; the remainder goes to the asset's proceeds custody. The
// unit-cost/insurance split is computed off-ledger by the coordinator and
// passed as payment; the ledger validates a nonzero payment and performs
// the levy split but does not reconcile payment against quantity×unit_price.
func (s *ownershipService) Buy(caller string, assetID uint, quantity, payment int64) (*models.Holding, error) {
	if quantity <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "quantity must be positive")
	}
	if payment <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "payment is required")
	}

	token, err := s.getToken(assetID)
	if err != nil {
		return nil, err
	}
	if quantity > token.RemainingSupply {
		return nil, apperrors.WithMessage(apperrors.ErrCapacityExceeded, "not enough units available")
	}

	listing, err := s.listings.GetListing(assetID)
	if err != nil {
		return nil, err
	}

	var holding models.Holding
	if err := s.db.Where("asset_id = ? AND holder = ?", assetID, caller).First(&holding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "holder has not opted in")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	// Per-holder purchase bounds from the listing, checked against the
	// cumulative position.
	newHeld := holding.UnitsHeld + quantity
	if newHeld < listing.MinUnits {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "holding would be below the minimum units per holder")
	}
	if newHeld > listing.MaxUnits {
		return nil, apperrors.WithMessage(apperrors.ErrCapacityExceeded, "holding would exceed the maximum units per holder")
	}

	premium := payment * insuranceRateBps / 1000
	investedAt := s.now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Re-read supply inside the transaction so two concurrent buys
		// cannot both commit against the same remaining supply.
		var fresh models.Token
		if txErr := tx.Where("asset_id = ?", assetID).First(&fresh).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}
		if quantity > fresh.RemainingSupply {
			return apperrors.WithMessage(apperrors.ErrCapacityExceeded, "not enough units available")
		}
		if txErr := tx.Model(&fresh).Update("remaining_supply", fresh.RemainingSupply-quantity).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}

		if txErr := tx.Model(&holding).Updates(map[string]interface{}{
			"units_held":         newHeld,
			"total_invested":     holding.TotalInvested + payment,
			"last_investment_at": investedAt,
		}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}

		if txErr := s.listings.IncrementUnitsSold(tx, s.identity, assetID, quantity); txErr != nil {
			return txErr
		}

		// The buyer is debited exactly once, for the full payment. The
		// levy then moves between custody accounts, which cannot fail for
		// insufficient funds, so a refused payment leaves the buyer and
		// the insurance pool untouched.
		if txErr := s.treasury.Transfer(caller, treasury.ProceedsAccount(assetID), payment); txErr != nil {
			return apperrors.Wrap(apperrors.ErrPaymentFailed, txErr)
		}
		if premium > 0 {
			if txErr := s.treasury.Transfer(treasury.ProceedsAccount(assetID), treasury.InsurancePool, premium); txErr != nil {
				return apperrors.Wrap(apperrors.ErrPaymentFailed, txErr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	holding.UnitsHeld = newHeld
	holding.TotalInvested += payment
	holding.LastInvestmentAt = &investedAt
	return &holding, nil
}

// GetUnits returns the units held by a holder, zero for unknown holders.
func (s *ownershipService) GetUnits(assetID uint, holder string) int64 {
	var holding models.Holding
	if err := s.db.Where("asset_id = ? AND holder = ?", assetID, holder).First(&holding).Error; err != nil {
		return 0
	}
	return holding.UnitsHeld
}

// GetPercentage returns a holder's ownership in basis points:
// units_held × 10000 / total_supply, floor division.
func (s *ownershipService) GetPercentage(assetID uint, holder string) (int64, error) {
	token, err := s.getToken(assetID)
	if err != nil {
		return 0, err
	}
	return s.GetUnits(assetID, holder) * 10000 / token.TotalSupply, nil
}

// GetToken returns the token record for an asset.
func (s *ownershipService) GetToken(assetID uint) (*models.Token, error) {
	return s.getToken(assetID)
}

// InsurancePoolBalance returns the accumulated insurance levies.
func (s *ownershipService) InsurancePoolBalance() int64 {
	return s.treasury.Balance(treasury.InsurancePool)
}

// HolderCount returns the number of opted-in holders for an asset.
func (s *ownershipService) HolderCount(assetID uint) (int64, error) {
	var count int64
	if err := s.db.Model(&models.Holding{}).Where("asset_id = ?", assetID).Count(&count).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return count, nil
}

// ListHolders returns a paginated list of holdings for an asset in opt-in
// order.
func (s *ownershipService) ListHolders(assetID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Holding], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Holding{}).Where("asset_id = ?", assetID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	var holdings []models.Holding
	if err := s.db.Where("asset_id = ?", assetID).Order("id ASC").
		Scopes(pagination.Paginate(page)).Find(&holdings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	result := pagination.NewPageResponse(holdings, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// BurnAll reclaims every nonzero holding for an asset back to the issue,
// used once during settlement finalization. Idempotent: holdings already at
// zero are untouched. Callable by the settlement engine or the coordinator.
func (s *ownershipService) BurnAll(caller string, assetID uint) error {
	if !s.auth.HasRole(caller, roles.SettlementEngine) && !s.auth.HasRole(caller, roles.Coordinator) {
		return apperrors.ErrUnauthorized
	}

	token, err := s.getToken(assetID)
	if err != nil {
		return err
	}

	var reclaimed int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var holdings []models.Holding
		if txErr := tx.Where("asset_id = ? AND units_held > 0", assetID).Find(&holdings).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}
		for i := range holdings {
			reclaimed += holdings[i].UnitsHeld
			if txErr := tx.Model(&holdings[i]).Update("units_held", 0).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternal, txErr)
			}
		}
		if reclaimed > 0 {
			if txErr := tx.Model(token).Update("remaining_supply", token.RemainingSupply+reclaimed).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternal, txErr)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.audit != nil {
		s.audit.Log(caller, "ownership.burn_all", "token", assetID, map[string]any{"units_reclaimed": reclaimed})
	}
	return nil
}

func (s *ownershipService) getToken(assetID uint) (*models.Token, error) {
	var token models.Token
	if err := s.db.Where("asset_id = ?", assetID).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "units not issued for this asset")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &token, nil
}
