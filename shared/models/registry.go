package models

// All returns every persisted model in dependency order
func All() []interface{} {
	return []interface{}{
		&Manager{},
		&Tenant{},
		&Property{},
		&Favorite{},
		&Application{},
		&Lease{},
		&Payment{},
		&FailedDelivery{},
	}
}
