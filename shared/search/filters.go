package search

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PropertyFilter holds the listing search criteria. Nil fields are not applied.
type PropertyFilter struct {
	PriceMin      *decimal.Decimal
	PriceMax      *decimal.Decimal
	Beds          *int
	Baths         *float64
	PropertyType  models.PropertyType
	SquareFeetMin *int
	SquareFeetMax *int
	Amenities     []string
	PetsAllowed   *bool
	AvailableOn   *time.Time
	City          string
	IDs           []uuid.UUID
}

// ParsePropertyFilter reads the filter from the query string
func ParsePropertyFilter(c *gin.Context) (PropertyFilter, error) {
	var f PropertyFilter
	var err error

	if f.PriceMin, err = decimalParam(c, "price_min"); err != nil {
		return f, err
	}
	if f.PriceMax, err = decimalParam(c, "price_max"); err != nil {
		return f, err
	}
	if f.Beds, err = intParam(c, "beds"); err != nil {
		return f, err
	}
	if f.SquareFeetMin, err = intParam(c, "square_feet_min"); err != nil {
		return f, err
	}
	if f.SquareFeetMax, err = intParam(c, "square_feet_max"); err != nil {
		return f, err
	}

	if v := c.Query("baths"); v != "" {
		baths, perr := strconv.ParseFloat(v, 64)
		if perr != nil || baths < 0 {
			return f, apperrors.ValidationFailed("baths must be a non-negative number")
		}
		f.Baths = &baths
	}

	if v := c.Query("property_type"); v != "" && !strings.EqualFold(v, "any") {
		pt, perr := models.ParsePropertyType(v)
		if perr != nil {
			return f, apperrors.ValidationFailed("%v", perr)
		}
		f.PropertyType = pt
	}

	if v := c.Query("pets_allowed"); v != "" {
		pets, perr := strconv.ParseBool(v)
		if perr != nil {
			return f, apperrors.ValidationFailed("pets_allowed must be true or false")
		}
		f.PetsAllowed = &pets
	}

	if v := c.Query("available_on"); v != "" {
		d, perr := time.Parse("2006-01-02", v)
		if perr != nil {
			return f, apperrors.ValidationFailed("available_on must be a YYYY-MM-DD date")
		}
		f.AvailableOn = &d
	}

	f.Amenities = listParam(c, "amenities")
	f.City = strings.TrimSpace(c.Query("city"))

	for _, raw := range listParam(c, "ids") {
		id, perr := uuid.Parse(raw)
		if perr != nil {
			return f, apperrors.ValidationFailed("invalid property id %q", raw)
		}
		f.IDs = append(f.IDs, id)
	}

	if f.PriceMin != nil && f.PriceMax != nil && f.PriceMin.GreaterThan(*f.PriceMax) {
		return f, apperrors.ValidationFailed("price_min cannot exceed price_max")
	}
	return f, nil
}

// Scope applies the filter to a properties query
func (f PropertyFilter) Scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.PriceMin != nil {
			db = db.Where("properties.price_per_month >= ?", *f.PriceMin)
		}
		if f.PriceMax != nil {
			db = db.Where("properties.price_per_month <= ?", *f.PriceMax)
		}
		if f.Beds != nil {
			db = db.Where("properties.beds >= ?", *f.Beds)
		}
		if f.Baths != nil {
			db = db.Where("properties.baths >= ?", *f.Baths)
		}
		if f.PropertyType != "" {
			db = db.Where("properties.property_type = ?", f.PropertyType)
		}
		if f.SquareFeetMin != nil {
			db = db.Where("properties.square_feet >= ?", *f.SquareFeetMin)
		}
		if f.SquareFeetMax != nil {
			db = db.Where("properties.square_feet <= ?", *f.SquareFeetMax)
		}
		if f.PetsAllowed != nil {
			db = db.Where("properties.is_pets_allowed = ?", *f.PetsAllowed)
		}
		if f.City != "" {
			db = db.Where("LOWER(properties.city) = ?", strings.ToLower(f.City))
		}
		for _, amenity := range f.Amenities {
			db = db.Where(datatypes.JSONArrayQuery("amenities").Contains(amenity))
		}
		if f.AvailableOn != nil {
			// no ACTIVE lease covers the day
			db = db.Where(`NOT EXISTS (SELECT 1 FROM leases WHERE leases.property_id = properties.id
				AND leases.status = ? AND leases.start_date <= ? AND leases.end_date >= ?)`,
				models.LeaseStatusActive, *f.AvailableOn, *f.AvailableOn)
		}
		if len(f.IDs) > 0 {
			db = db.Where("properties.id IN ?", f.IDs)
		}
		return db
	}
}

func decimalParam(c *gin.Context, key string) (*decimal.Decimal, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return nil, apperrors.ValidationFailed("%s must be a non-negative amount", key)
	}
	return &d, nil
}

func intParam(c *gin.Context, key string) (*int, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, apperrors.ValidationFailed("%s must be a non-negative integer", key)
	}
	return &n, nil
}

func listParam(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
