package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "propstake/internal/errors"
	"propstake/internal/models"
	"propstake/internal/roles"
)

// entityService tracks the legal wrapper entity per asset. One record per
// asset, status strictly forward. No operation retries: a failure is
// terminal for that call and must be resubmitted by the coordinator.
type entityService struct {
	db    *gorm.DB
	auth  roles.Authorizer
	audit AuditServicer
	now   func() time.Time
}

// NewEntityService creates a new EntityServicer.
func NewEntityService(db *gorm.DB, auth roles.Authorizer, audit AuditServicer) EntityServicer {
	return &entityService{db: db, auth: auth, audit: audit, now: time.Now}
}

// Register creates the entity record for an asset with status REGISTERED.
// Coordinator-only.
func (s *entityService) Register(caller string, assetID uint, legalID, taxID, charterRef, certificateRef, deedRef string) (*models.Entity, error) {
	if !s.auth.HasRole(caller, roles.Coordinator) {
		return nil, apperrors.ErrUnauthorized
	}
	if legalID == "" || taxID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "legal id and tax id are required")
	}

	var existing models.Entity
	err := s.db.Where("asset_id = ?", assetID).First(&existing).Error
	if err == nil {
		return nil, apperrors.WithMessage(apperrors.ErrAlreadyExists, "entity already registered for this asset")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	entity := &models.Entity{
		AssetID:        assetID,
		LegalID:        legalID,
		TaxID:          taxID,
		CharterRef:     charterRef,
		CertificateRef: certificateRef,
		DeedRef:        deedRef,
		Status:         models.EntityRegistered,
	}
	if err := s.db.Create(entity).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return entity, nil
}

// Activate transitions an entity from REGISTERED to ACTIVE. Coordinator-only.
func (s *entityService) Activate(caller string, assetID uint) (*models.Entity, error) {
	if !s.auth.HasRole(caller, roles.Coordinator) {
		return nil, apperrors.ErrUnauthorized
	}

	entity, err := s.getByAsset(assetID)
	if err != nil {
		return nil, err
	}
	if entity.Status != models.EntityRegistered {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "entity must be REGISTERED to activate")
	}

	entity.Status = models.EntityActive
	if err := s.db.Model(entity).Update("status", models.EntityActive).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return entity, nil
}

// WindUp transitions an ACTIVE entity to WOUND_UP, records the timestamp and
// overwrites the deed reference with the wind-up document reference.
// Callable by the coordinator or the settlement engine.
func (s *entityService) WindUp(caller string, assetID uint, windupRef string) (*models.Entity, error) {
	if !s.auth.HasRole(caller, roles.Coordinator) && !s.auth.HasRole(caller, roles.SettlementEngine) {
		return nil, apperrors.ErrUnauthorized
	}

	entity, err := s.getByAsset(assetID)
	if err != nil {
		return nil, err
	}
	if entity.Status != models.EntityActive {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "entity must be ACTIVE to wind up")
	}

	woundUpAt := s.now()
	entity.Status = models.EntityWoundUp
	entity.DeedRef = windupRef
	entity.WoundUpAt = &woundUpAt
	if err := s.db.Model(entity).Updates(map[string]interface{}{
		"status":      models.EntityWoundUp,
		"deed_ref":    windupRef,
		"wound_up_at": woundUpAt,
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	if s.audit != nil {
		s.audit.Log(caller, "entity.wind_up", "entity", assetID, map[string]any{"windup_ref": windupRef})
	}
	return entity, nil
}

// IsActive reports whether the entity for an asset is ACTIVE. It never
// fails; unknown assets are simply not active.
func (s *entityService) IsActive(assetID uint) bool {
	entity, err := s.getByAsset(assetID)
	if err != nil {
		return false
	}
	return entity.Status == models.EntityActive
}

// GetEntity returns the full entity record for an asset.
func (s *entityService) GetEntity(assetID uint) (*models.Entity, error) {
	return s.getByAsset(assetID)
}

func (s *entityService) getByAsset(assetID uint) (*models.Entity, error) {
	var entity models.Entity
	if err := s.db.Where("asset_id = ?", assetID).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "entity not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &entity, nil
}
