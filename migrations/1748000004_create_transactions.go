package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("transactions")

		collection.Fields.Add(
			&core.TextField{Name: "user_id", Required: true, Max: 100},
			&core.TextField{Name: "provider_payment_id", Required: true, Max: 100},
			&core.NumberField{Name: "amount", Required: true},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{"pending", "paid", "failed"}},
			&core.DateField{Name: "paid_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		// one ledger row per provider payment
		collection.AddIndex("idx_transactions_provider_payment_id", true, "provider_payment_id", "")
		collection.AddIndex("idx_transactions_user", false, "user_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("transactions")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
