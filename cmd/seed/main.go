package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/cafeline/api/internal/config"
	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/enum"
	"github.com/cafeline/api/internal/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// CLI flags
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin name")
	cafeName := flag.String("cafe", "", "Cafe name")
	flag.Parse()

	log := logger.New("info", true)

	// Fall back to environment variables, then defaults
	*email = firstNonEmpty(*email, os.Getenv("SEED_EMAIL"), "admin@cafeline.local")
	*name = firstNonEmpty(*name, os.Getenv("SEED_NAME"), "Cafe Admin")
	*cafeName = firstNonEmpty(*cafeName, os.Getenv("SEED_CAFE"), "Kopi Senja")
	*password = firstNonEmpty(*password, os.Getenv("SEED_PASSWORD"))
	if *password == "" {
		*password = "password123"
		log.Warn("using default password 'password123', change it immediately in production")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	ctx := context.Background()
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.WithError(err).Fatal("migrate")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect to database")
	}
	defer pool.Close()

	if err := seed(ctx, pool, log, *cafeName, *email, *password, *name); err != nil {
		log.WithError(err).Fatal("seed failed")
	}
	log.Info("seed completed successfully")
}

// seed creates a café with its admin, menu, tables and stock in one
// transaction. It does nothing when the admin already exists.
func seed(ctx context.Context, pool *pgxpool.Pool, log logrus.FieldLogger, cafeName, email, password, name string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	q := database.New(tx)
	existing, err := q.GetUserByEmail(ctx, email)
	if err == nil {
		log.WithField("user_id", existing.ID).Infof("user %s already exists, skipping", email)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check user: %w", err)
	}

	cafe, err := q.CreateCafe(ctx, database.CreateCafeParams{
		Name:               cafeName,
		SubscriptionActive: true,
		SubscriptionPlan:   enum.SubscriptionPlanPro,
	})
	if err != nil {
		return fmt.Errorf("insert cafe: %w", err)
	}
	cafeID := pgtype.UUID{Bytes: cafe.ID, Valid: true}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	admin, err := q.CreateUser(ctx, database.CreateUserParams{
		CafeID:       cafeID,
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
		Role:         enum.RoleAdmin,
		Status:       enum.UserStatusActive,
	})
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}

	menu := []database.CreateProductParams{
		{
			CafeID: cafe.ID, Name: "Latte", BasePrice: decimal.RequireFromString("4.00"), Station: enum.StationBar,
			Variants: []database.ProductVariant{{ID: uuid.New(), Name: "Large", PriceDelta: decimal.RequireFromString("0.50")}},
			Customizations: []database.ProductCustomization{{Name: "Milk", Options: []database.ProductCustomizationOption{
				{Name: "Whole", PriceDelta: decimal.Zero},
				{Name: "Oat", PriceDelta: decimal.RequireFromString("0.60")},
			}}},
		},
		{CafeID: cafe.ID, Name: "Espresso", BasePrice: decimal.RequireFromString("2.80"), Station: enum.StationBar},
		{CafeID: cafe.ID, Name: "Carrot Cake", BasePrice: decimal.RequireFromString("6.50"), Station: enum.StationPastry},
		{CafeID: cafe.ID, Name: "Chicken Sandwich", BasePrice: decimal.RequireFromString("8.00"), Station: enum.StationKitchen},
	}
	for _, p := range menu {
		if _, err := q.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("insert product %s: %w", p.Name, err)
		}
	}

	for i := 1; i <= 6; i++ {
		_, err := q.CreateTable(ctx, database.CreateTableParams{
			CafeID: cafe.ID, Name: fmt.Sprintf("T%d", i), Section: "main", Capacity: 4, Shape: "square",
		})
		if err != nil {
			return fmt.Errorf("insert table T%d: %w", i, err)
		}
	}

	stock := []database.CreateInventoryItemParams{
		{CafeID: cafe.ID, Name: "Whole milk", Category: "dairy", Unit: "l", CurrentStock: decimal.NewFromInt(20), MinimumStock: decimal.NewFromInt(5), Cost: decimal.RequireFromString("1.20")},
		{CafeID: cafe.ID, Name: "Coffee beans", Category: "coffee", Unit: "kg", CurrentStock: decimal.NewFromInt(8), MinimumStock: decimal.NewFromInt(2), Cost: decimal.RequireFromString("18.00")},
	}
	for _, it := range stock {
		if _, err := q.CreateInventoryItem(ctx, it); err != nil {
			return fmt.Errorf("insert inventory item %s: %w", it.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.WithFields(logrus.Fields{"cafe_id": cafe.ID, "admin_id": admin.ID}).Info("created cafe and admin")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
