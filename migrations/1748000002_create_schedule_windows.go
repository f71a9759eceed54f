package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		consultants, err := app.FindCollectionByNameOrId("consultants")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("schedule_windows")

		collection.Fields.Add(
			&core.RelationField{Name: "consultant", Required: true, MaxSelect: 1, CollectionId: consultants.Id, CascadeDelete: true},
			&core.NumberField{Name: "day_of_week", Required: true, OnlyInt: true},
			&core.TextField{Name: "start_time", Required: true, Max: 5},
			&core.TextField{Name: "end_time", Required: true, Max: 5},
			&core.BoolField{Name: "active"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_schedule_windows_consultant", false, "consultant", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("schedule_windows")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
