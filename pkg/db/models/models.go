package models

// All lists every persisted model, in dependency order. Used for sqlite
// auto-migration in local runs and tests; Postgres uses the SQL migrations.
func All() []any {
	return []any{
		&Shop{},
		&BillingPlan{},
		&Subscription{},
		&Order{},
		&Payment{},
		&Debt{},
	}
}
