package models

import "time"

// ProposalType enumerates the decisions governance can make for an asset.
type ProposalType string

const (
	ProposalSell          ProposalType = "sell"
	ProposalRenovate      ProposalType = "renovate"
	ProposalChangeIncome  ProposalType = "change_income"
	ProposalPenalizeOwner ProposalType = "penalize_owner"
)

// ProposalStatus represents the proposal state machine:
// ACTIVE → {PASSED, FAILED}; EXECUTED is reachable from PASSED only.
type ProposalStatus string

const (
	ProposalActive   ProposalStatus = "active"
	ProposalPassed   ProposalStatus = "passed"
	ProposalFailed   ProposalStatus = "failed"
	ProposalExecuted ProposalStatus = "executed"
)

// Proposal is a token-weighted governance proposal. TotalUnitsSnapshot is
// captured at creation and stays the quorum denominator regardless of later
// supply changes; yes plus no weight never exceeds it.
type Proposal struct {
	Base
	AssetID            uint           `gorm:"not null;index" json:"asset_id"`
	Proposer           string         `gorm:"not null" json:"proposer"`
	Type               ProposalType   `gorm:"not null" json:"type"`
	Description        string         `json:"description"`
	ProposedValue      int64          `gorm:"type:bigint;not null" json:"proposed_value"`
	SnapshotAt         time.Time      `gorm:"not null" json:"snapshot_at"`
	VotingDeadline     time.Time      `gorm:"not null" json:"voting_deadline"`
	YesWeight          int64          `gorm:"type:bigint;not null;default:0" json:"yes_weight"`
	NoWeight           int64          `gorm:"type:bigint;not null;default:0" json:"no_weight"`
	TotalUnitsSnapshot int64          `gorm:"type:bigint;not null" json:"total_units_snapshot"`
	QuorumThreshold    int64          `gorm:"type:bigint;not null" json:"quorum_threshold"`
	Status             ProposalStatus `gorm:"not null" json:"status"`
	AuthorizedAction   string         `json:"authorized_action"`
	ResolutionRef      string         `json:"resolution_ref"` // opaque resolution document reference
}

// Vote is one holder's vote on one proposal. The composite unique index is
// what enforces the single-vote rule.
type Vote struct {
	Base
	ProposalID uint      `gorm:"not null;uniqueIndex:idx_vote_proposal_voter" json:"proposal_id"`
	Voter      string    `gorm:"not null;uniqueIndex:idx_vote_proposal_voter" json:"voter"`
	Approve    bool      `gorm:"not null" json:"approve"`
	Weight     int64     `gorm:"type:bigint;not null" json:"weight"`
	VotedAt    time.Time `gorm:"not null" json:"voted_at"`
}

// SaleAuthorization caches the most recent PASSED SELL proposal per asset.
// Written only when a SELL proposal passes; consulted by the settlement
// engine before a sale may begin.
type SaleAuthorization struct {
	Base
	AssetID    uint `gorm:"uniqueIndex;not null" json:"asset_id"`
	ProposalID uint `gorm:"not null" json:"proposal_id"`
}
