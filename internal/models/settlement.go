package models

import "time"

// SettlementStatus represents the settlement state machine:
// NOT_STARTED → ESCROW_FUNDED → DISTRIBUTING → COMPLETE, with an emergency
// refund path back from ESCROW_FUNDED to NOT_STARTED.
type SettlementStatus string

const (
	SettlementNotStarted   SettlementStatus = "not_started"
	SettlementEscrowFunded SettlementStatus = "escrow_funded"
	SettlementDistributing SettlementStatus = "distributing"
	SettlementComplete     SettlementStatus = "complete"
)

// Settlement tracks the escrow-funded sale of one asset. EscrowBalance is
// set exactly once per funding; TotalDistributed accumulates across the
// incremental per-holder payouts and must land within the dust tolerance of
// the escrow before finalization.
type Settlement struct {
	Base
	AssetID          uint             `gorm:"uniqueIndex;not null" json:"asset_id"`
	ApprovedPrice    int64            `gorm:"type:bigint;not null" json:"approved_price"`
	Buyer            string           `json:"buyer"`
	EscrowBalance    int64            `gorm:"type:bigint;not null;default:0" json:"escrow_balance"`
	Status           SettlementStatus `gorm:"not null" json:"status"`
	SettledAt        *time.Time       `json:"settled_at,omitempty"`
	TotalDistributed int64            `gorm:"type:bigint;not null;default:0" json:"total_distributed"`
	ProposalID       uint             `gorm:"not null" json:"proposal_id"`
}
