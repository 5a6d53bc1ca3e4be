package services

import (
	"gorm.io/gorm"

	"propstake/internal/models"
	"propstake/internal/pagination"
)

// EntityServicer defines the contract for the legal-entity registry.
type EntityServicer interface {
	Register(caller string, assetID uint, legalID, taxID, charterRef, certificateRef, deedRef string) (*models.Entity, error)
	Activate(caller string, assetID uint) (*models.Entity, error)
	WindUp(caller string, assetID uint, windupRef string) (*models.Entity, error)
	IsActive(assetID uint) bool
	GetEntity(assetID uint) (*models.Entity, error)
}

// SubmitListingInput carries the owner-supplied fields of a new listing.
type SubmitListingInput struct {
	Name        string `validate:"required"`
	LocationRef string `validate:"required"`
	Valuation   int64  `validate:"required,gt=0"`
	TotalUnits  int64  `validate:"required,gt=0"`
	UnitPrice   int64  `validate:"required,gt=0"`
	MinUnits    int64  `validate:"required,gt=0"`
	MaxUnits    int64  `validate:"required,gtefield=MinUnits,ltefield=TotalUnits"`
}

// ListingServicer defines the contract for the listing registry.
// IncrementUnitsSold takes the caller's transaction handle so the ownership
// ledger can bundle the counter update with its own mutations.
type ListingServicer interface {
	Submit(caller string, input SubmitListingInput) (*models.Listing, error)
	MarkVerified(caller string, assetID uint) (*models.Listing, error)
	ConfirmEntity(caller string, assetID uint) (*models.Listing, error)
	Activate(caller string, assetID uint, depositAmount int64) (*models.Listing, error)
	MarkSold(caller string, assetID uint) (*models.Listing, error)
	IncrementUnitsSold(tx *gorm.DB, caller string, assetID uint, amount int64) error
	SlashDeposit(caller string, assetID uint, recipient string) error
	GetListing(assetID uint) (*models.Listing, error)
	UnitsAvailable(assetID uint) (int64, error)
	ListListings(page pagination.PageRequest) (*pagination.PageResponse[models.Listing], error)
}

// OwnershipServicer defines the contract for the fractional-ownership ledger.
type OwnershipServicer interface {
	IssueUnits(caller string, assetID uint, totalSupply int64, symbol, name string) (*models.Token, error)
	OptIn(caller string, assetID uint) (*models.Holding, error)
	Buy(caller string, assetID uint, quantity, payment int64) (*models.Holding, error)
	GetUnits(assetID uint, holder string) int64
	GetPercentage(assetID uint, holder string) (int64, error)
	GetToken(assetID uint) (*models.Token, error)
	InsurancePoolBalance() int64
	HolderCount(assetID uint) (int64, error)
	ListHolders(assetID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Holding], error)
	BurnAll(caller string, assetID uint) error
}

// IncomeServicer defines the contract for pull-based income distribution.
type IncomeServicer interface {
	Deposit(caller string, assetID uint, amount int64) (*models.IncomeRecord, error)
	Allocate(caller string, assetID uint, holder string, holderUnits, totalUnits, depositAmount int64) (*models.Claim, error)
	Claim(caller string, assetID uint) (int64, error)
	FlagMissed(caller string, assetID uint) (*models.IncomeRecord, error)
	GetClaimable(assetID uint, holder string) int64
	GetStats(assetID uint) (*models.IncomeRecord, error)
	GetClaimHistory(assetID uint, holder string) (*models.Claim, error)
}

// CreateProposalInput carries the proposer-supplied fields of a proposal.
// Proposer and total units are snapshot values supplied by the coordinator.
type CreateProposalInput struct {
	AssetID       uint                `validate:"required"`
	Type          models.ProposalType `validate:"required"`
	Description   string
	ProposedValue int64 `validate:"gte=0"`
	VotingDays    int64 `validate:"required,gt=0"`
	ProposerUnits int64 `validate:"required,gt=0"`
	TotalUnits    int64 `validate:"required,gt=0"`
}

// GovernanceServicer defines the contract for token-weighted governance.
type GovernanceServicer interface {
	CreateProposal(caller string, input CreateProposalInput) (*models.Proposal, error)
	CastVote(caller string, proposalID uint, approve bool, voterUnits int64) (*models.Vote, error)
	Finalize(caller string, proposalID uint) (*models.Proposal, error)
	MarkExecuted(caller string, proposalID uint) (*models.Proposal, error)
	RecordResolution(caller string, proposalID uint, docRef string) (*models.Proposal, error)
	CheckSellAuthorized(assetID uint) bool
	GetAuthorizedSalePrice(assetID uint) (int64, error)
	GetProposal(proposalID uint) (*models.Proposal, error)
	GetVote(proposalID uint, voter string) (*models.Vote, error)
	ListProposals(assetID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Proposal], error)
}

// SettlementServicer defines the contract for escrow-funded sale settlement.
type SettlementServicer interface {
	Initiate(caller string, assetID uint, approvedPrice int64, proposalID uint) (*models.Settlement, error)
	FundEscrow(caller string, assetID uint, payment int64) (*models.Settlement, error)
	Distribute(caller string, assetID uint, holder string, holderUnits, totalUnits int64) (int64, error)
	Finalize(caller string, assetID uint) (*models.Settlement, error)
	EmergencyRefund(caller string, assetID uint) (*models.Settlement, error)
	GetSettlement(assetID uint) (*models.Settlement, error)
	Status(assetID uint) models.SettlementStatus
}

// AuditServicer records privileged operations for later review.
type AuditServicer interface {
	Log(caller, action, resourceType string, resourceID uint, changes map[string]any)
}
