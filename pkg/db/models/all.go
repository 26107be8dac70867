package models

// All lists every persisted model in dependency order, for gorm AutoMigrate
// on sqlite (tests and local runs).
func All() []any {
	return []any{
		&Brand{},
		&Category{},
		&Tag{},
		&Product{},
		&User{},
		&Address{},
		&CartItem{},
		&Voucher{},
		&Delivery{},
		&Order{},
		&OrderLine{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
