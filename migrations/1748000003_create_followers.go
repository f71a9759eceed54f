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

		collection := core.NewBaseCollection("followers")

		collection.Fields.Add(
			&core.RelationField{Name: "consultant", Required: true, MaxSelect: 1, CollectionId: consultants.Id, CascadeDelete: true},
			&core.TextField{Name: "user_id", Required: true, Max: 100},
			&core.TextField{Name: "destination", Max: 200},
			&core.BoolField{Name: "notify_online"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_followers_consultant_user", true, "consultant, user_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("followers")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
