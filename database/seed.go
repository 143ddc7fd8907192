package database

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/mozoqr/models"
	"github.com/yeremiapane/mozoqr/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	DemoSlug          = "demo"
	DemoTableNumber   = 5
	DemoStaffEmail    = "staff@demo.mozoqr.app"
	DemoStaffPassword = "demo1234"
)

// DemoData is what Seed leaves in the database.
type DemoData struct {
	Restaurant  models.Restaurant
	Table       models.Table
	Available   models.Product
	Unavailable models.Product
	Staff       models.User
}

// Seed creates the demo restaurant. Running it twice is harmless.
func Seed(db *gorm.DB) (*DemoData, error) {
	var out DemoData
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(models.Restaurant{Slug: DemoSlug}).
			Attrs(models.Restaurant{Name: "Demo Resto", Plan: "pro"}).
			FirstOrCreate(&out.Restaurant).Error; err != nil {
			return fmt.Errorf("seed restaurant: %w", err)
		}
		rid := out.Restaurant.ID

		if err := tx.Where(models.Table{RestaurantID: rid, Number: DemoTableNumber}).
			FirstOrCreate(&out.Table).Error; err != nil {
			return fmt.Errorf("seed table: %w", err)
		}

		var category models.Category
		if err := tx.Where(models.Category{RestaurantID: rid, Name: "Principales"}).
			FirstOrCreate(&category).Error; err != nil {
			return fmt.Errorf("seed category: %w", err)
		}

		if err := tx.Where(models.Product{RestaurantID: rid, Name: "Milanesa"}).
			Attrs(models.Product{CategoryID: &category.ID, Price: decimal.NewFromInt(1000), Available: true}).
			FirstOrCreate(&out.Available).Error; err != nil {
			return fmt.Errorf("seed product: %w", err)
		}
		if err := tx.Where(models.Product{RestaurantID: rid, Name: "Flan"}).
			Attrs(models.Product{CategoryID: &category.ID, Price: decimal.NewFromInt(500)}).
			FirstOrCreate(&out.Unavailable).Error; err != nil {
			return fmt.Errorf("seed product: %w", err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(DemoStaffPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if err := tx.Where(models.User{Email: DemoStaffEmail}).
			Attrs(models.User{RestaurantID: rid, Name: "Demo Staff", Password: string(hash), Role: models.RoleStaff}).
			FirstOrCreate(&out.Staff).Error; err != nil {
			return fmt.Errorf("seed staff: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.Printf("Demo restaurant %q seeded (id=%d)", DemoSlug, out.Restaurant.ID)
	return &out, nil
}
