package services

import (
	"errors"
	"testing"

	apperrors "propstake/internal/errors"
	"propstake/internal/roles"
	"propstake/internal/testutil"
	"propstake/internal/treasury"

	"gorm.io/gorm"
)

// testEnv wires the full service stack against one test database.
type testEnv struct {
	db       *gorm.DB
	auth     *roles.StaticAuthorizer
	treasury *treasury.Memory

	entities   EntityServicer
	listings   ListingServicer
	ownership  OwnershipServicer
	income     IncomeServicer
	governance GovernanceServicer
	settlement SettlementServicer
	audit      AuditServicer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	auth := testutil.NewAuthorizer()
	tre := treasury.NewMemory()
	audit := NewAuditService(db)

	entities := NewEntityService(db, auth, audit)
	listings := NewListingService(db, entities, auth, tre, audit)
	ownership := NewOwnershipService(db, listings, auth, tre, audit, testutil.TokenLedgerAddr)
	income := NewIncomeService(db, listings, auth, tre)
	governance := NewGovernanceService(db, auth)
	settlement := NewSettlementService(db, governance, auth, tre, audit)

	return &testEnv{
		db:         db,
		auth:       auth,
		treasury:   tre,
		entities:   entities,
		listings:   listings,
		ownership:  ownership,
		income:     income,
		governance: governance,
		settlement: settlement,
		audit:      audit,
	}
}

// buyUnits opts the holder in if needed and purchases quantity units paying
// quantity x unit price from the standard fixture terms.
func (e *testEnv) buyUnits(t *testing.T, assetID uint, holder string, quantity int64) {
	t.Helper()

	if _, err := e.ownership.OptIn(holder, assetID); err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) || appErr.Code != "ALREADY_EXISTS" {
			t.Fatalf("opt in failed: %v", err)
		}
	}
	payment := quantity * 1_000
	e.treasury.Credit(holder, payment)
	if _, err := e.ownership.Buy(holder, assetID, quantity, payment); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
}
