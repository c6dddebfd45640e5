package search

import (
	"context"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"gorm.io/gorm"
)

const (
	DefaultRadiusKm = 10.0
	MaxRadiusKm     = 200.0
)

// Point is a WGS84 coordinate
type Point struct {
	Latitude  float64
	Longitude float64
}

// NearbyQuery asks for properties within RadiusKm of Center
type NearbyQuery struct {
	Center   Point
	RadiusKm float64
}

// NearbyProperty is a listing with its distance from the query point
type NearbyProperty struct {
	models.Property
	DistanceMeters float64 `json:"distance_meters"`
}

const pointExpr = "ST_SetSRID(ST_MakePoint(properties.longitude, properties.latitude), 4326)::geography"
const originExpr = "ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography"

// nearbySQL relies on the GiST index created by config.Migrate on the point expression
const nearbySQL = `SELECT properties.*, ST_Distance(` + pointExpr + `, ` + originExpr + `) AS distance_meters
FROM properties
WHERE ST_DWithin(` + pointExpr + `, ` + originExpr + `, ?)
ORDER BY distance_meters ASC
LIMIT ? OFFSET ?`

const nearbyCountSQL = `SELECT COUNT(*) FROM properties WHERE ST_DWithin(` + pointExpr + `, ` + originExpr + `, ?)`

// ParseNearbyQuery reads lat, lng and radius_km
func ParseNearbyQuery(c *gin.Context) (NearbyQuery, error) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		return NearbyQuery{}, apperrors.ValidationFailed("lat and lng are required numbers")
	}

	radius := DefaultRadiusKm
	if v := c.Query("radius_km"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 || math.IsNaN(r) {
			return NearbyQuery{}, apperrors.ValidationFailed("radius_km must be a positive number")
		}
		radius = math.Min(r, MaxRadiusKm)
	}

	q := NearbyQuery{Center: Point{Latitude: lat, Longitude: lng}, RadiusKm: radius}
	if err := q.Validate(); err != nil {
		return NearbyQuery{}, err
	}
	return q, nil
}

// Validate checks the coordinate ranges
func (q NearbyQuery) Validate() error {
	loc := models.Location{Latitude: q.Center.Latitude, Longitude: q.Center.Longitude}
	if !loc.ValidCoordinates() {
		return apperrors.ValidationFailed("coordinates out of range")
	}
	if q.RadiusKm <= 0 {
		return apperrors.ValidationFailed("radius_km must be a positive number")
	}
	return nil
}

// Nearby returns listings within the radius ordered by distance. Distances are computed by PostGIS.
func Nearby(ctx context.Context, db *gorm.DB, q NearbyQuery, page utils.Pagination) ([]NearbyProperty, int64, error) {
	lng, lat := q.Center.Longitude, q.Center.Latitude
	meters := q.RadiusKm * 1000

	var total int64
	if err := db.WithContext(ctx).Raw(nearbyCountSQL, lng, lat, meters).Scan(&total).Error; err != nil {
		return nil, 0, apperrors.Internal(err, "nearby search failed")
	}

	results := []NearbyProperty{}
	if total == 0 {
		return results, 0, nil
	}

	err := db.WithContext(ctx).
		Raw(nearbySQL, lng, lat, lng, lat, meters, page.Limit, page.Offset()).
		Scan(&results).Error
	if err != nil {
		return nil, 0, apperrors.Internal(err, "nearby search failed")
	}
	return results, total, nil
}
