package search

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/config"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func seedListings(t *testing.T) (*gorm.DB, map[string]models.Property) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, config.Migrate(db))

	listings := map[string]models.Property{
		"studio": {Name: "studio", PricePerMonth: decimal.NewFromInt(900), Beds: 1, Baths: 1, SquareFeet: 400,
			PropertyType: models.PropertyTypeApartment, Amenities: datatypes.JSONSlice[string]{"WiFi"},
			Location: models.Location{City: "Seattle"}},
		"villa": {Name: "villa", PricePerMonth: decimal.NewFromInt(4200), Beds: 4, Baths: 3, SquareFeet: 2600,
			PropertyType: models.PropertyTypeVilla, Amenities: datatypes.JSONSlice[string]{"Pool", "WiFi"},
			IsPetsAllowed: true, Location: models.Location{City: "Austin"}},
		"cottage": {Name: "cottage", PricePerMonth: decimal.NewFromInt(1800), Beds: 2, Baths: 1.5, SquareFeet: 1100,
			PropertyType: models.PropertyTypeCottage, IsPetsAllowed: true, Location: models.Location{City: "seattle"}},
	}
	for name, p := range listings {
		p.ManagerCognitoID = "manager-1"
		require.NoError(t, db.Create(&p).Error)
		listings[name] = p
	}
	return db, listings
}

func names(t *testing.T, db *gorm.DB, f PropertyFilter) []string {
	t.Helper()
	var found []models.Property
	require.NoError(t, db.Model(&models.Property{}).Scopes(f.Scope()).Order("name").Find(&found).Error)
	out := []string{}
	for _, p := range found {
		out = append(out, p.Name)
	}
	return out
}

func TestPropertyFilterScope(t *testing.T) {
	db, listings := seedListings(t)
	minPrice := decimal.NewFromInt(1000)
	maxPrice := decimal.NewFromInt(2000)
	beds := 2
	pets := true

	assert.Equal(t, []string{"cottage", "studio", "villa"}, names(t, db, PropertyFilter{}))
	assert.Equal(t, []string{"cottage"}, names(t, db, PropertyFilter{PriceMin: &minPrice, PriceMax: &maxPrice}))
	assert.Equal(t, []string{"cottage", "villa"}, names(t, db, PropertyFilter{Beds: &beds}))
	assert.Equal(t, []string{"villa"}, names(t, db, PropertyFilter{PropertyType: models.PropertyTypeVilla}))
	assert.Equal(t, []string{"cottage", "villa"}, names(t, db, PropertyFilter{PetsAllowed: &pets}))
	assert.Equal(t, []string{"studio", "villa"}, names(t, db, PropertyFilter{Amenities: []string{"WiFi"}}))
	assert.Equal(t, []string{"villa"}, names(t, db, PropertyFilter{Amenities: []string{"WiFi", "Pool"}}))
	assert.Equal(t, []string{"cottage", "studio"}, names(t, db, PropertyFilter{City: "Seattle"}))
	assert.Equal(t, []string{"studio"}, names(t, db, PropertyFilter{IDs: []uuid.UUID{listings["studio"].ID}}))
}

func TestAvailableOnExcludesActiveLeases(t *testing.T) {
	db, listings := seedListings(t)
	lease := models.Lease{
		PropertyID:      listings["studio"].ID,
		TenantCognitoID: "tenant-1",
		StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Rent:            decimal.NewFromInt(900),
		Deposit:         decimal.Zero,
		PaymentDueDay:   1,
		Status:          models.LeaseStatusActive,
	}
	require.NoError(t, db.Create(&lease).Error)

	during := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	after := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, []string{"cottage", "villa"}, names(t, db, PropertyFilter{AvailableOn: &during}))
	assert.Equal(t, []string{"cottage", "studio", "villa"}, names(t, db, PropertyFilter{AvailableOn: &after}))
}

func TestParsePropertyFilter(t *testing.T) {
	f, err := ParsePropertyFilter(queryContext("price_min=100&price_max=2000&beds=2&baths=1.5&property_type=Villa&amenities=Pool,WiFi&available_on=2024-06-01&pets_allowed=true"))
	require.NoError(t, err)
	assert.True(t, f.PriceMin.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 2, *f.Beds)
	assert.Equal(t, 1.5, *f.Baths)
	assert.Equal(t, models.PropertyTypeVilla, f.PropertyType)
	assert.Equal(t, []string{"Pool", "WiFi"}, f.Amenities)
	assert.True(t, *f.PetsAllowed)
	assert.Equal(t, 2024, f.AvailableOn.Year())

	f, err = ParsePropertyFilter(queryContext("property_type=any"))
	require.NoError(t, err)
	assert.Empty(t, f.PropertyType)

	for _, raw := range []string{
		"price_min=abc",
		"price_min=500&price_max=100",
		"beds=-1",
		"property_type=Castle",
		"available_on=06/01/2024",
		"ids=not-a-uuid",
		"pets_allowed=maybe",
	} {
		_, err := ParsePropertyFilter(queryContext(raw))
		assert.ErrorIs(t, err, apperrors.ErrValidationFailed, raw)
	}
}
