package models

import "time"

// IncomeRecord tracks periodic income deposits for one asset. The next
// deadline advances monotonically by one period per deposit or missed flag.
type IncomeRecord struct {
	Base
	AssetID           uint       `gorm:"uniqueIndex;not null" json:"asset_id"`
	TotalDeposited    int64      `gorm:"type:bigint;not null;default:0" json:"total_deposited"`
	LastDepositAmount int64      `gorm:"type:bigint;not null;default:0" json:"last_deposit_amount"`
	LastDepositAt     *time.Time `json:"last_deposit_at,omitempty"`
	DepositCount      int64      `gorm:"type:bigint;not null;default:0" json:"deposit_count"`
	NextDeadline      time.Time  `gorm:"not null" json:"next_deadline"`
	MissedCount       int64      `gorm:"type:bigint;not null;default:0" json:"missed_count"`
}

// Claim tracks one holder's claimable income balance for one asset.
// The claimable balance is never negative.
type Claim struct {
	Base
	AssetID          uint       `gorm:"not null;uniqueIndex:idx_claim_asset_holder" json:"asset_id"`
	Holder           string     `gorm:"not null;uniqueIndex:idx_claim_asset_holder" json:"holder"`
	ClaimableBalance int64      `gorm:"type:bigint;not null;default:0" json:"claimable_balance"`
	TotalClaimed     int64      `gorm:"type:bigint;not null;default:0" json:"total_claimed"`
	LastClaimAt      *time.Time `json:"last_claim_at,omitempty"`
}
