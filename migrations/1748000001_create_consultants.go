package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("consultants")

		collection.Fields.Add(
			&core.TextField{Name: "name", Required: true, Max: 200},
			&core.SelectField{Name: "kind", Required: true, MaxSelect: 1, Values: []string{"human", "automated"}},
			&core.BoolField{Name: "is_online"},
			&core.BoolField{Name: "accepts_video"},
			&core.BoolField{Name: "accepts_chat"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("consultants")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
