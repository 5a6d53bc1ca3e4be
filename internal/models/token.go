package models

import "time"

// Token is the fixed-supply unit issue for one asset. Its primary key is the
// unit id returned by issuance. remaining supply plus units sold across
// holders always equals total supply.
type Token struct {
	Base
	AssetID          uint   `gorm:"uniqueIndex;not null" json:"asset_id"`
	Symbol           string `gorm:"not null" json:"symbol"`
	Name             string `gorm:"not null" json:"name"`
	TotalSupply      int64  `gorm:"type:bigint;not null" json:"total_supply"`
	RemainingSupply  int64  `gorm:"type:bigint;not null" json:"remaining_supply"`
	InsuranceRateBps int64  `gorm:"type:bigint;not null" json:"insurance_rate_bps"`
}

// Holding tracks one holder's position in one asset. A zeroed record is
// created by opt-in before any units can be received, so no ledger entry
// appears for an untracked address.
type Holding struct {
	Base
	AssetID          uint       `gorm:"not null;uniqueIndex:idx_holding_asset_holder" json:"asset_id"`
	Holder           string     `gorm:"not null;uniqueIndex:idx_holding_asset_holder" json:"holder"`
	UnitsHeld        int64      `gorm:"type:bigint;not null;default:0" json:"units_held"`
	TotalInvested    int64      `gorm:"type:bigint;not null;default:0" json:"total_invested"`
	LastInvestmentAt *time.Time `json:"last_investment_at,omitempty"`
}
