package models

// All returns every persisted model, in dependency order, for AutoMigrate in tests and dev.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
	}
}
