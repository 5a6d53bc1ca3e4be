package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"propstake/internal/models"
	"propstake/internal/roles"

	"gorm.io/gorm"
)

// Platform identities used in test wiring.
const (
	CoordinatorAddr      = "coordinator"
	TokenLedgerAddr      = "module:token-ledger"
	SettlementEngineAddr = "module:settlement-engine"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// NewAddress returns a unique address with the given prefix.
func NewAddress(prefix string) string {
	return fmt.Sprintf("addr:%s:%d", prefix, nextID())
}

// NewAuthorizer returns a grant table with the coordinator and module
// identities granted their roles.
func NewAuthorizer() *roles.StaticAuthorizer {
	auth := roles.NewStaticAuthorizer()
	auth.Grant(CoordinatorAddr, roles.Coordinator)
	auth.Grant(TokenLedgerAddr, roles.TokenLedger)
	auth.Grant(SettlementEngineAddr, roles.SettlementEngine)
	return auth
}

// CreateTestListing creates a listing in the given status with standard
// terms: 10000 units at 1000 each, 100 minimum and 5000 maximum per holder.
func CreateTestListing(t *testing.T, db *gorm.DB, owner string, status models.ListingStatus) *models.Listing {
	t.Helper()

	listing := &models.Listing{
		Owner:       owner,
		Name:        fmt.Sprintf("Test Property %d", nextID()),
		LocationRef: fmt.Sprintf("doc:location:%d", nextID()),
		Valuation:   10_000_000,
		TotalUnits:  10_000,
		UnitPrice:   1_000,
		MinUnits:    100,
		MaxUnits:    5_000,
		Status:      status,
	}
	if err := db.Create(listing).Error; err != nil {
		t.Fatalf("failed to create test listing: %v", err)
	}
	return listing
}

// CreateActiveListing creates an ACTIVE listing with standard terms.
func CreateActiveListing(t *testing.T, db *gorm.DB, owner string) *models.Listing {
	t.Helper()
	return CreateTestListing(t, db, owner, models.ListingActive)
}

// CreateTestEntity creates an entity record for the asset in the given status.
func CreateTestEntity(t *testing.T, db *gorm.DB, assetID uint, status models.EntityStatus) *models.Entity {
	t.Helper()

	n := nextID()
	entity := &models.Entity{
		AssetID: assetID,
		LegalID: fmt.Sprintf("LLC-%d", n),
		TaxID:   fmt.Sprintf("TAX-%d", n),
		DeedRef: "doc:deed",
		Status:  status,
	}
	if err := db.Create(entity).Error; err != nil {
		t.Fatalf("failed to create test entity: %v", err)
	}
	return entity
}

// CreateTestToken creates a token record with the full supply unsold.
func CreateTestToken(t *testing.T, db *gorm.DB, assetID uint, totalSupply int64) *models.Token {
	t.Helper()

	token := &models.Token{
		AssetID:          assetID,
		Symbol:           fmt.Sprintf("PROP%d", nextID()),
		Name:             "Test Property Units",
		TotalSupply:      totalSupply,
		RemainingSupply:  totalSupply,
		InsuranceRateBps: 15,
	}
	if err := db.Create(token).Error; err != nil {
		t.Fatalf("failed to create test token: %v", err)
	}
	return token
}

// CreateTestHolding creates a holding with the given unit balance.
func CreateTestHolding(t *testing.T, db *gorm.DB, assetID uint, holder string, units int64) *models.Holding {
	t.Helper()

	holding := &models.Holding{
		AssetID:   assetID,
		Holder:    holder,
		UnitsHeld: units,
	}
	if err := db.Create(holding).Error; err != nil {
		t.Fatalf("failed to create test holding: %v", err)
	}
	return holding
}

// CreateTestProposal creates a proposal in the given status over a
// 10000-unit snapshot with a one-day voting window.
func CreateTestProposal(t *testing.T, db *gorm.DB, assetID uint, proposalType models.ProposalType, status models.ProposalStatus) *models.Proposal {
	t.Helper()

	now := time.Now()
	proposal := &models.Proposal{
		AssetID:            assetID,
		Proposer:           NewAddress("proposer"),
		Type:               proposalType,
		SnapshotAt:         now,
		VotingDeadline:     now.Add(24 * time.Hour),
		TotalUnitsSnapshot: 10_000,
		QuorumThreshold:    51,
		Status:             status,
	}
	if err := db.Create(proposal).Error; err != nil {
		t.Fatalf("failed to create test proposal: %v", err)
	}
	return proposal
}

// CreateSaleAuthorization records a passed SELL proposal for the asset and
// returns the proposal.
func CreateSaleAuthorization(t *testing.T, db *gorm.DB, assetID uint, approvedPrice int64) *models.Proposal {
	t.Helper()

	proposal := CreateTestProposal(t, db, assetID, models.ProposalSell, models.ProposalPassed)
	if err := db.Model(proposal).Updates(map[string]interface{}{
		"proposed_value":    approvedPrice,
		"authorized_action": "SELL",
	}).Error; err != nil {
		t.Fatalf("failed to set proposal value: %v", err)
	}
	proposal.ProposedValue = approvedPrice

	auth := &models.SaleAuthorization{AssetID: assetID, ProposalID: proposal.ID}
	if err := db.Create(auth).Error; err != nil {
		t.Fatalf("failed to create sale authorization: %v", err)
	}
	return proposal
}
