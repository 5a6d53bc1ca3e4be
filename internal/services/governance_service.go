package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "propstake/internal/errors"
	"propstake/internal/models"
	"propstake/internal/pagination"
	"propstake/internal/roles"
)

const (
	// quorumThreshold is the yes percentage a proposal must exceed, measured
	// against the total-unit snapshot. Abstentions count against passage.
	quorumThreshold = 51

	// minProposerStakeBps is the minimum proposer stake: 100 bps = 1%.
	minProposerStakeBps = 100
)

// authorizedActions maps a passed proposal's type to its action string.
var authorizedActions = map[models.ProposalType]string{
	models.ProposalSell:          "SELL",
	models.ProposalRenovate:      "RENOVATE",
	models.ProposalChangeIncome:  "CHANGE_INCOME",
	models.ProposalPenalizeOwner: "PENALIZE_OWNER",
}

// governanceService runs the token-weighted proposal lifecycle with
// snapshot-based voting weight. The total-unit snapshot captured at creation
// is the quorum denominator for the proposal's whole life.
type governanceService struct {
	db   *gorm.DB
	auth roles.Authorizer
	now  func() time.Time
}

// NewGovernanceService creates a new GovernanceServicer.
func NewGovernanceService(db *gorm.DB, auth roles.Authorizer) GovernanceServicer {
	return &governanceService{db: db, auth: auth, now: time.Now}
}

// CreateProposal opens a proposal for any holder with at least 1% stake.
// Unit counts are snapshot values supplied by the coordinator.
func (s *governanceService) CreateProposal(caller string, input CreateProposalInput) (*models.Proposal, error) {
	if caller == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "proposer address is required")
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}
	if _, ok := authorizedActions[input.Type]; !ok {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "unknown proposal type")
	}
	if input.ProposerUnits*10000/input.TotalUnits < minProposerStakeBps {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "proposer stake below the 1% minimum")
	}

	createdAt := s.now()
	proposal := &models.Proposal{
		AssetID:            input.AssetID,
		Proposer:           caller,
		Type:               input.Type,
		Description:        input.Description,
		ProposedValue:      input.ProposedValue,
		SnapshotAt:         createdAt,
		VotingDeadline:     createdAt.Add(time.Duration(input.VotingDays) * 24 * time.Hour),
		TotalUnitsSnapshot: input.TotalUnits,
		QuorumThreshold:    quorumThreshold,
		Status:             models.ProposalActive,
	}
	if err := s.db.Create(proposal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return proposal, nil
}

// CastVote records one vote per voter per proposal, weighted by the voter's
// snapshot units. A second vote fails ALREADY_VOTED.
func (s *governanceService) CastVote(caller string, proposalID uint, approve bool, voterUnits int64) (*models.Vote, error) {
	if caller == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "voter address is required")
	}
	if voterUnits <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "must hold units to vote")
	}

	proposal, err := s.getProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalActive {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "proposal is not active")
	}
	votedAt := s.now()
	if votedAt.After(proposal.VotingDeadline) {
		return nil, apperrors.WithMessage(apperrors.ErrDeadlineViolation, "voting deadline has passed")
	}

	var existing models.Vote
	err = s.db.Where("proposal_id = ? AND voter = ?", proposalID, caller).First(&existing).Error
	if err == nil {
		return nil, apperrors.ErrAlreadyVoted
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	vote := &models.Vote{
		ProposalID: proposalID,
		Voter:      caller,
		Approve:    approve,
		Weight:     voterUnits,
		VotedAt:    votedAt,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(vote).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}
		column, tally := "yes_weight", proposal.YesWeight+voterUnits
		if !approve {
			column, tally = "no_weight", proposal.NoWeight+voterUnits
		}
		if txErr := tx.Model(proposal).Update(column, tally).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vote, nil
}

// Finalize resolves an ACTIVE proposal after its deadline: PASSED when
// yes_weight × 100 / snapshot exceeds the quorum threshold, FAILED
// otherwise. A passed SELL proposal is recorded in the sale-authorization
// index. Callable by anyone.
func (s *governanceService) Finalize(caller string, proposalID uint) (*models.Proposal, error) {
	proposal, err := s.getProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalActive {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "proposal already finalized")
	}
	if !s.now().After(proposal.VotingDeadline) {
		return nil, apperrors.WithMessage(apperrors.ErrDeadlineViolation, "voting deadline has not been reached")
	}

	yesPct := proposal.YesWeight * 100 / proposal.TotalUnitsSnapshot
	passed := yesPct > proposal.QuorumThreshold

	status := models.ProposalFailed
	action := ""
	if passed {
		status = models.ProposalPassed
		action = authorizedActions[proposal.Type]
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Model(proposal).Updates(map[string]interface{}{
			"status":            status,
			"authorized_action": action,
		}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternal, txErr)
		}
		if passed && proposal.Type == models.ProposalSell {
			var auth models.SaleAuthorization
			txErr := tx.Where("asset_id = ?", proposal.AssetID).First(&auth).Error
			switch {
			case txErr == nil:
				if txErr := tx.Model(&auth).Update("proposal_id", proposalID).Error; txErr != nil {
					return apperrors.Wrap(apperrors.ErrInternal, txErr)
				}
			case errors.Is(txErr, gorm.ErrRecordNotFound):
				if txErr := tx.Create(&models.SaleAuthorization{AssetID: proposal.AssetID, ProposalID: proposalID}).Error; txErr != nil {
					return apperrors.Wrap(apperrors.ErrInternal, txErr)
				}
			default:
				return apperrors.Wrap(apperrors.ErrInternal, txErr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	proposal.Status = status
	proposal.AuthorizedAction = action
	return proposal, nil
}

// MarkExecuted moves a PASSED proposal to EXECUTED. Callable by the
// settlement engine (for SELL) or the coordinator (other types).
func (s *governanceService) MarkExecuted(caller string, proposalID uint) (*models.Proposal, error) {
	if !s.auth.HasRole(caller, roles.SettlementEngine) && !s.auth.HasRole(caller, roles.Coordinator) {
		return nil, apperrors.ErrUnauthorized
	}

	proposal, err := s.getProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalPassed {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidState, "proposal must be PASSED to execute")
	}

	if err := s.db.Model(proposal).Update("status", models.ProposalExecuted).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	proposal.Status = models.ProposalExecuted
	return proposal, nil
}

// RecordResolution attaches the resolution document reference to a
// proposal, independent of its status. Coordinator-only.
func (s *governanceService) RecordResolution(caller string, proposalID uint, docRef string) (*models.Proposal, error) {
	if !s.auth.HasRole(caller, roles.Coordinator) {
		return nil, apperrors.ErrUnauthorized
	}

	proposal, err := s.getProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(proposal).Update("resolution_ref", docRef).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	proposal.ResolutionRef = docRef
	return proposal, nil
}

// CheckSellAuthorized reports whether the asset's indexed proposal is a
// PASSED SELL. It never fails; unknown assets are simply not authorized.
func (s *governanceService) CheckSellAuthorized(assetID uint) bool {
	var auth models.SaleAuthorization
	if err := s.db.Where("asset_id = ?", assetID).First(&auth).Error; err != nil {
		return false
	}
	proposal, err := s.getProposal(auth.ProposalID)
	if err != nil {
		return false
	}
	return proposal.Status == models.ProposalPassed && proposal.Type == models.ProposalSell
}

// GetAuthorizedSalePrice returns the approved sale price for an asset from
// its authorizing proposal.
func (s *governanceService) GetAuthorizedSalePrice(assetID uint) (int64, error) {
	var auth models.SaleAuthorization
	if err := s.db.Where("asset_id = ?", assetID).First(&auth).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.WithMessage(apperrors.ErrNotFound, "no authorized sale for this asset")
		}
		return 0, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	proposal, err := s.getProposal(auth.ProposalID)
	if err != nil {
		return 0, err
	}
	return proposal.ProposedValue, nil
}

// GetProposal returns the full proposal record.
func (s *governanceService) GetProposal(proposalID uint) (*models.Proposal, error) {
	return s.getProposal(proposalID)
}

// GetVote returns one voter's vote on a proposal.
func (s *governanceService) GetVote(proposalID uint, voter string) (*models.Vote, error) {
	var vote models.Vote
	if err := s.db.Where("proposal_id = ? AND voter = ?", proposalID, voter).First(&vote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "vote not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &vote, nil
}

// ListProposals returns a paginated list of an asset's proposals, newest
// first.
func (s *governanceService) ListProposals(assetID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Proposal], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Proposal{}).Where("asset_id = ?", assetID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	var proposals []models.Proposal
	if err := s.db.Where("asset_id = ?", assetID).Order("id DESC").
		Scopes(pagination.Paginate(page)).Find(&proposals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	result := pagination.NewPageResponse(proposals, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func (s *governanceService) getProposal(proposalID uint) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := s.db.First(&proposal, proposalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "proposal not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &proposal, nil
}
