package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/config"
	"github.com/pavitra93/go-rental-marketplace/shared/events"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	managerID      = "manager-1"
	otherManagerID = "manager-2"
	tenantID       = "tenant-1"
	secondTenantID = "tenant-2"
	strangerID     = "tenant-3"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	events   *recorder
	apps     *ApplicationManager
	leases   *LeaseManager
	payments *PaymentLedger

	property      models.Property
	otherProperty models.Property
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	rec := &recorder{}

	f := &fixture{
		db:       db,
		events:   rec,
		apps:     NewApplicationManager(db, rec),
		leases:   NewLeaseManager(db, rec),
		payments: NewPaymentLedger(db, rec),
	}

	for _, id := range []string{managerID, otherManagerID} {
		require.NoError(t, db.Create(&models.Manager{CognitoID: id, Name: id, Email: id + "@example.com"}).Error)
	}
	for _, id := range []string{tenantID, secondTenantID, strangerID} {
		require.NoError(t, db.Create(&models.Tenant{CognitoID: id, Name: id, Email: id + "@example.com"}).Error)
	}

	f.property = f.createProperty(t, managerID, "Harbour View")
	f.otherProperty = f.createProperty(t, otherManagerID, "Hill Cottage")
	return f
}

func (f *fixture) createProperty(t *testing.T, owner, name string) models.Property {
	t.Helper()
	p := models.Property{
		ManagerCognitoID: owner,
		Name:             name,
		PricePerMonth:    decimal.NewFromInt(1500),
		SecurityDeposit:  decimal.NewFromInt(1500),
		ApplicationFee:   decimal.NewFromInt(50),
		Beds:             2,
		Baths:            1,
		SquareFeet:       800,
		PropertyType:     models.PropertyTypeApartment,
		Location:         models.Location{Address: "1 Main St", City: "Seattle", Country: "US", Latitude: 47.6, Longitude: -122.3},
	}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func contact(name string) ApplicationContact {
	return ApplicationContact{Name: name, Email: name + "@example.com", PhoneNumber: "555-0100"}
}

func day(value string) time.Time {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return d
}

func terms(start, end string) LeaseTerms {
	return LeaseTerms{
		StartDate:     day(start),
		EndDate:       day(end),
		Rent:          decimal.NewFromInt(1500),
		Deposit:       decimal.NewFromInt(1500),
		PaymentDueDay: 1,
	}
}

func (f *fixture) approved(t *testing.T, tenant string, property models.Property) *models.Application {
	t.Helper()
	ctx := context.Background()
	app, err := f.apps.Submit(ctx, tenant, property.ID, contact(tenant))
	require.NoError(t, err)
	app, err = f.apps.Decide(ctx, property.ManagerCognitoID, app.ID, models.ApplicationStatusApproved)
	require.NoError(t, err)
	return app
}

func (f *fixture) activeLease(t *testing.T, tenant, start, end string) *models.Lease {
	t.Helper()
	ctx := context.Background()
	app := f.approved(t, tenant, f.property)
	lease, err := f.leases.Create(ctx, managerID, app.ID, terms(start, end))
	require.NoError(t, err)
	lease, err = f.leases.Transition(ctx, managerID, lease.ID, models.LeaseStatusActive)
	require.NoError(t, err)
	return lease
}

func kindOf(err error) apperrors.Kind {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
