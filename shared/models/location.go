package models

// Location is the postal address and WGS84 coordinates of a property.
// Distance queries build a geography point from Latitude/Longitude in PostGIS.
type Location struct {
	Address    string  `json:"address" gorm:"not null"`
	City       string  `json:"city" gorm:"not null;index"`
	State      string  `json:"state"`
	Country    string  `json:"country" gorm:"not null"`
	PostalCode string  `json:"postal_code"`
	Latitude   float64 `json:"latitude" gorm:"not null"`
	Longitude  float64 `json:"longitude" gorm:"not null"`
}

// ValidCoordinates reports whether the point lies on the globe
func (l Location) ValidCoordinates() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}
