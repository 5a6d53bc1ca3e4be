package models

import "time"

// ListingStatus represents the listing state machine. Transitions are
// forward-only: PENDING_VERIFICATION → PENDING_ENTITY → PENDING_ACTIVATION →
// ACTIVE → SOLD.
type ListingStatus string

const (
	ListingPendingVerification ListingStatus = "pending_verification"
	ListingPendingEntity       ListingStatus = "pending_entity"
	ListingPendingActivation   ListingStatus = "pending_activation"
	ListingActive              ListingStatus = "active"
	ListingSold                ListingStatus = "sold"
)

// Listing is the master record for one tokenized asset. Its primary key is
// the asset id every other module keys on.
type Listing struct {
	Base
	Owner           string        `gorm:"not null" json:"owner"`
	Name            string        `gorm:"not null" json:"name"`
	LocationRef     string        `json:"location_ref"` // opaque document bundle reference, never dereferenced
	Valuation       int64         `gorm:"type:bigint;not null" json:"valuation"`
	TotalUnits      int64         `gorm:"type:bigint;not null" json:"total_units"`
	UnitPrice       int64         `gorm:"type:bigint;not null" json:"unit_price"`
	MinUnits        int64         `gorm:"type:bigint;not null" json:"min_units"`
	MaxUnits        int64         `gorm:"type:bigint;not null" json:"max_units"`
	UnitsSold       int64         `gorm:"type:bigint;not null;default:0" json:"units_sold"`
	Status          ListingStatus `gorm:"not null" json:"status"`
	VerifiedAt      *time.Time    `json:"verified_at,omitempty"`
	ListedAt        *time.Time    `json:"listed_at,omitempty"`
	SoldAt          *time.Time    `json:"sold_at,omitempty"`
	SecurityDeposit int64         `gorm:"type:bigint;not null;default:0" json:"security_deposit"`
}

// AssetID returns the listing's primary key under the name the rest of the
// system uses for it.
func (l *Listing) AssetID() uint { return l.ID }
