package integration

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"propstake/internal/logger"
	"propstake/internal/models"
	"propstake/internal/oracle"
	"propstake/internal/roles"
	"propstake/internal/services"
	"propstake/internal/testutil"
	"propstake/internal/treasury"
	"propstake/internal/workflow"
)

// testApp holds the full ledger stack for integration tests.
type testApp struct {
	DB       *gorm.DB
	Treasury *treasury.Memory
	Verifier *oracle.StaticVerifier

	Entities    services.EntityServicer
	Listings    services.ListingServicer
	Ownership   services.OwnershipServicer
	Income      services.IncomeServicer
	Governance  services.GovernanceServicer
	Settlement  services.SettlementServicer
	Coordinator *workflow.Coordinator
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	logger.Init("test")
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.Entity{},
		&models.Listing{},
		&models.Token{},
		&models.Holding{},
		&models.IncomeRecord{},
		&models.Claim{},
		&models.Proposal{},
		&models.Vote{},
		&models.SaleAuthorization{},
		&models.Settlement{},
		&models.WorkflowStep{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates the full ledger stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	auth := roles.NewStaticAuthorizer()
	auth.Grant(testutil.CoordinatorAddr, roles.Coordinator)
	auth.Grant(testutil.TokenLedgerAddr, roles.TokenLedger)
	auth.Grant(testutil.SettlementEngineAddr, roles.SettlementEngine)

	tre := treasury.NewMemory()
	verifier := oracle.NewStaticVerifier()
	audit := services.NewAuditService(db)

	entities := services.NewEntityService(db, auth, audit)
	listings := services.NewListingService(db, entities, auth, tre, audit)
	ownership := services.NewOwnershipService(db, listings, auth, tre, audit, testutil.TokenLedgerAddr)
	income := services.NewIncomeService(db, listings, auth, tre)
	governance := services.NewGovernanceService(db, auth)
	settlement := services.NewSettlementService(db, governance, auth, tre, audit)

	coordinator := workflow.NewCoordinator(db, testutil.CoordinatorAddr, verifier,
		entities, listings, ownership, governance, settlement, audit)

	return &testApp{
		DB:          db,
		Treasury:    tre,
		Verifier:    verifier,
		Entities:    entities,
		Listings:    listings,
		Ownership:   ownership,
		Income:      income,
		Governance:  governance,
		Settlement:  settlement,
		Coordinator: coordinator,
	}
}

// buyUnits opts a holder in and purchases units at the standard unit price.
func (app *testApp) buyUnits(t *testing.T, assetID uint, holder string, quantity int64) {
	t.Helper()

	if _, err := app.Ownership.OptIn(holder, assetID); err != nil {
		t.Fatalf("opt in failed: %v", err)
	}
	payment := quantity * 1_000
	app.Treasury.Credit(holder, payment)
	if _, err := app.Ownership.Buy(holder, assetID, quantity, payment); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
}
