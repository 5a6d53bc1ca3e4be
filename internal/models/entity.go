package models

import "time"

// EntityStatus represents the lifecycle status of a legal wrapper entity.
// Transitions are strictly forward: FORMING → REGISTERED → ACTIVE → WOUND_UP.
type EntityStatus string

const (
	EntityForming    EntityStatus = "forming"
	EntityRegistered EntityStatus = "registered"
	EntityActive     EntityStatus = "active"
	EntityWoundUp    EntityStatus = "wound_up"
)

// Entity is the legal wrapper company that holds the deed for one asset.
// Exactly one record exists per asset; WOUND_UP is the terminal closure
// signal after the asset is sold.
type Entity struct {
	Base
	AssetID        uint         `gorm:"uniqueIndex;not null" json:"asset_id"`
	LegalID        string       `gorm:"not null" json:"legal_id"`
	TaxID          string       `gorm:"not null" json:"tax_id"`
	CharterRef     string       `json:"charter_ref"`
	CertificateRef string       `json:"certificate_ref"`
	DeedRef        string       `json:"deed_ref"` // overwritten with the wind-up document reference on wind-up
	Status         EntityStatus `gorm:"not null" json:"status"`
	WoundUpAt      *time.Time   `json:"wound_up_at,omitempty"`
}
