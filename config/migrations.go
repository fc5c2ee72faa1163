package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kendall-kelly/servicepro-api/models"
	"gorm.io/gorm"
)

// Migrate brings the schema up to date
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20250301_create_users_customers_jobs",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.User{}, &models.Customer{}, &models.Job{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("jobs", "customers", "users")
			},
		},
		{
			ID: "20250412_add_job_billing_and_pickup_columns",
			Migrate: func(tx *gorm.DB) error {
				// Billing and pickup fields arrived after the first release; AutoMigrate
				// only adds the missing columns.
				return tx.AutoMigrate(&models.Job{})
			},
			Rollback: func(tx *gorm.DB) error {
				for _, column := range []string{
					"PartsCost", "LaborCost", "OtherCharges", "TotalCharge",
					"PaymentStatus", "PaymentMethod", "CustomerNotifiedDate",
					"CustomerPickedUp", "PickupDate", "DeliveryTimestamp",
				} {
					if err := tx.Migrator().DropColumn(&models.Job{}, column); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			ID: "20250520_add_user_external_id",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.User{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropColumn(&models.User{}, "ExternalID")
			},
		},
	})

	return m.Migrate()
}
