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

// listingService owns the asset listing state machine, the backbone every
// other module queries. Preconditions are re-checked defensively on each
// call instead of trusting the coordinator's call order.
type listingService struct {
	db       *gorm.DB
	entities EntityServicer
	auth     roles.Authorizer
	treasury treasury.Treasury
	audit    AuditServicer
	now      func() time.Time
}

// NewListingService creates a new ListingServicer.
func NewListingService(db *gorm.DB, entities EntityServicer, auth roles.Authorizer, tre treasury.Treasury, audit AuditServicer) ListingServicer {
	return &listingService{db: db, entities: entities, auth: auth, treasury: tre, audit: audit, now: time.Now}
}

// Submit creates a new listing in PENDING_VERIFICATION and assigns its asset
// id. The caller becomes the listing owner.
func (s *listingService) Submit(caller string, input SubmitListingInput) (*models.Listing, error) {
	if caller == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "owner address is required")
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}

	listing := &models.Listing{
		Owner:       caller,
		Name:        input.Name,
		LocationRef: input.LocationRef,
		Valuation:   input.Valuation,
		TotalUnits:  input.TotalUnits,
		UnitPrice:   input.UnitPrice,
		MinUnits:    input.MinUnits,
		MaxUnits:    input.MaxUnits,
		Status:      models.ListingPendingVerification,
	}
	if err := s.db.Create(listing).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return listing, nil
}

// MarkVerified records a successful verification verdict and moves the
// listing to PENDING_ENTITY. Coordinator-only.
func (s *listingService) MarkVerified(caller string, assetID uint) (*models.Listing, error) {
	if !s.auth.HasRole(caller, roles.Coordinator) {
		return nil, apperrors.ErrUnauthorized
	}

	listing, err := s.getByAsset(assetID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingPendingVerification {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "listing must be PENDING_VERIFICATION")
	}

	verifiedAt := s.now()
	listing.Status = models.ListingPendingEntity
	listing.VerifiedAt = &verifiedAt
	if err := s.db.Model(listing).Updates(map[string]interface{}{
		"status":      models.ListingPendingEntity,
		"verified_at": verifiedAt,
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return listing, nil
}

// ConfirmEntity moves the listing to PENDING_ACTIVATION once the entity
// registry reports an ACTIVE legal entity for the asset. Coordinator-only.
func (s *listingService) ConfirmEntity(caller string, assetID uint) (*models.Listing, error) {
	if !s.auth.HasRole(caller, roles.Coordinator) {
		return nil, apperrors.ErrUnauthorized
	}

	listing, err := s.getByAsset(assetID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingPendingEntity {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "listing must be PENDING_ENTITY")
	}
	if !s.entities.IsActive(assetID) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "legal entity is not active")
	}

	listing.Status = models.ListingPendingActivation
	if err := s.db.Model(listing).Update("status", models.ListingPendingActivation).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return listing, nil
}

// Activate takes the owner's security deposit into custody and opens the
// listing for unit sales. Coordinator-only.
func (s *listingService) Activate(caller string, assetID uint, depositAmount int64) (*models.Listing, error) {
	if !s.auth.HasRole(caller, roles.Coordinator) {
		return nil, apperrors.ErrUnauthorized
	}
	if depositAmount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "security deposit is required")
	}

	listing, err := s.getByAsset(assetID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingPendingActivation {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "listing must be PENDING_ACTIVATION")
	}

	listedAt := s.now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Model(listing).Updates(map[string]interface{}{
			"status":           models.ListingActive,
			"listed_at":        listedAt,
			"security_deposit": depositAmount,
		}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}
		// Deposit transfer is bundled with the status change: if the owner
		// cannot cover it the whole activation fails.
		if txErr := s.treasury.Transfer(listing.Owner, treasury.DepositAccount(assetID), depositAmount); txErr != nil {
			return apperrors.Wrap(apperrors.ErrPaymentFailed, txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	listing.Status = models.ListingActive
	listing.ListedAt = &listedAt
	listing.SecurityDeposit = depositAmount
	return listing, nil
}

// MarkSold closes an ACTIVE listing after settlement. Callable by the
// settlement engine or the coordinator running the closure workflow.
func (s *listingService) MarkSold(caller string, assetID uint) (*models.Listing, error) {
	if !s.auth.HasRole(caller, roles.SettlementEngine) && !s.auth.HasRole(caller, roles.Coordinator) {
		return nil, apperrors.ErrUnauthorized
	}

	listing, err := s.getByAsset(assetID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingActive {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "listing must be ACTIVE to sell")
	}

	soldAt := s.now()
	listing.Status = models.ListingSold
	listing.SoldAt = &soldAt
	if err := s.db.Model(listing).Updates(map[string]interface{}{
		"status":  models.ListingSold,
		"sold_at": soldAt,
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	if s.audit != nil {
		s.audit.Log(caller, "listing.mark_sold", "listing", assetID, nil)
	}
	return listing, nil
}

// IncrementUnitsSold bumps the units-sold counter inside the caller's
// transaction. Only the ownership ledger's module identity may call it; the
// counter can never exceed total units.
func (s *listingService) IncrementUnitsSold(tx *gorm.DB, caller string, assetID uint, amount int64) error {
	if !s.auth.HasRole(caller, roles.TokenLedger) {
		return apperrors.ErrUnauthorized
	}
	if amount <= 0 {
		return apperrors.WithMessage(apperrors.ErrValidation, "amount must be positive")
	}
	if tx == nil {
		tx = s.db
	}

	var listing models.Listing
	if err := tx.First(&listing, assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.WithMessage(apperrors.ErrNotFound, "listing not found")
		}
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}

	newSold := listing.UnitsSold + amount
	if newSold > listing.TotalUnits {
		return apperrors.WithMessage(apperrors.ErrCapacityExceeded, "cannot sell more than total units")
	}
	if err := tx.Model(&listing).Update("units_sold", newSold).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// SlashDeposit pays the held security deposit to a recipient and zeroes it.
// Coordinator-only, independent of listing status (fraud remediation).
func (s *listingService) SlashDeposit(caller string, assetID uint, recipient string) error {
	if !s.auth.HasRole(caller, roles.Coordinator) {
		return apperrors.ErrUnauthorized
	}
	if recipient == "" {
		return apperrors.WithMessage(apperrors.ErrValidation, "recipient address is required")
	}

	listing, err := s.getByAsset(assetID)
	if err != nil {
		return err
	}
	if listing.SecurityDeposit <= 0 {
		return apperrors.WithMessage(apperrors.ErrValidation, "no deposit to slash")
	}

	deposit := listing.SecurityDeposit
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Model(listing).Update("security_deposit", 0).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}
		if txErr := s.treasury.Transfer(treasury.DepositAccount(assetID), recipient, deposit); txErr != nil {
			return apperrors.Wrap(apperrors.ErrPaymentFailed, txErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	listing.SecurityDeposit = 0
	if s.audit != nil {
		s.audit.Log(caller, "listing.slash_deposit", "listing", assetID, map[string]any{
			"recipient": recipient,
			"amount":    deposit,
		})
	}
	return nil
}

// GetListing returns the full listing record for an asset.
func (s *listingService) GetListing(assetID uint) (*models.Listing, error) {
	return s.getByAsset(assetID)
}

// UnitsAvailable returns the number of unsold units for an asset.
func (s *listingService) UnitsAvailable(assetID uint) (int64, error) {
	listing, err := s.getByAsset(assetID)
	if err != nil {
		return 0, err
	}
	return listing.TotalUnits - listing.UnitsSold, nil
}

// ListListings returns a paginated list of all listings, newest first.
func (s *listingService) ListListings(page pagination.PageRequest) (*pagination.PageResponse[models.Listing], error) {
	page.Defaults()

	var totalItems int64
	if err := s.db.Model(&models.Listing{}).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	var listings []models.Listing
	if err := s.db.Order("id DESC").Scopes(pagination.Paginate(page)).Find(&listings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	result := pagination.NewPageResponse(listings, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func (s *listingService) getByAsset(assetID uint) (*models.Listing, error) {
	var listing models.Listing
	if err := s.db.First(&listing, assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "listing not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &listing, nil
}
