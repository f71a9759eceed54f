package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("wallets")

		collection.Fields.Add(
			&core.TextField{Name: "user_id", Required: true, Max: 100},
			&core.NumberField{Name: "balance"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_wallets_user", true, "user_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("wallets")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
