package services

import (
	"encoding/json"

	"gorm.io/gorm"

	"propstake/internal/logger"
	"propstake/internal/models"
)

// auditService appends privileged operations to the audit log. Recording is
// best effort: a failed insert is logged and swallowed so an audit problem
// can never fail the operation being audited.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records one audit entry. The changes map is serialized to JSON; a nil
// map records an empty payload.
func (s *auditService) Log(caller, action, resourceType string, resourceID uint, changes map[string]any) {
	payload := ""
	if changes != nil {
		raw, err := json.Marshal(changes)
		if err != nil {
			logger.Get().Errorw("failed to serialize audit changes",
				"action", action,
				"error", err,
			)
		} else {
			payload = string(raw)
		}
	}

	entry := &models.AuditLog{
		Caller:       caller,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Changes:      payload,
	}
	if err := s.db.Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to write audit log entry",
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
			"error", err,
		)
	}
}
