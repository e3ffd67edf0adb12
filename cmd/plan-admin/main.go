package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"studyhall-platform/config"
	"studyhall-platform/internal/database"
	"studyhall-platform/internal/vault"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("========================================")
	fmt.Println(" Plan Administration Tool")
	fmt.Println("========================================")
	fmt.Println()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\nOptions:")
		fmt.Println("  1. Create plan")
		fmt.Println("  2. List plans")
		fmt.Println("  3. Toggle plan active")
		fmt.Println("  4. Store signing secrets in Vault")
		fmt.Println("  5. Exit")
		fmt.Print("\nSelect option: ")

		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		switch input {
		case "1":
			createPlan(reader, repo)
		case "2":
			listPlans(repo)
		case "3":
			togglePlan(reader, repo)
		case "4":
			storeSecrets(reader, cfg)
		case "5":
			fmt.Println("Goodbye!")
			os.Exit(0)
		default:
			fmt.Println("Invalid option")
		}
	}
}

func createPlan(reader *bufio.Reader, repo *database.Repository) {
	fmt.Println("\n--- Create Plan ---")

	name := prompt(reader, "Name (machine id, e.g. monthly): ")
	if name == "" {
		fmt.Println("Name is required")
		return
	}

	existing, err := repo.GetPlanByName(context.Background(), name)
	if err != nil {
		fmt.Printf("Lookup failed: %v\n", err)
		return
	}
	if existing != nil {
		fmt.Printf("Plan '%s' already exists\n", name)
		return
	}

	displayName := prompt(reader, "Display name: ")
	description := prompt(reader, "Description: ")

	price, err := strconv.ParseFloat(prompt(reader, "Price: "), 64)
	if err != nil || price < 0 {
		fmt.Println("Invalid price")
		return
	}

	currency := prompt(reader, "Currency (default USD): ")
	if currency == "" {
		currency = "USD"
	}

	durationDays, err := strconv.Atoi(prompt(reader, "Duration in days: "))
	if err != nil || durationDays <= 0 {
		fmt.Println("Invalid duration")
		return
	}

	plan := &database.SubscriptionPlan{
		ID:           uuid.New().String(),
		Name:         name,
		DisplayName:  displayName,
		Description:  description,
		Price:        price,
		Currency:     currency,
		DurationDays: durationDays,
		IsActive:     true,
	}

	if err := repo.CreatePlan(context.Background(), plan); err != nil {
		fmt.Printf("Failed to create plan: %v\n", err)
		return
	}

	fmt.Println("\n========================================")
	fmt.Printf("  Plan ID:   %s\n", plan.ID)
	fmt.Printf("  Name:      %s\n", plan.Name)
	fmt.Printf("  Price:     %.2f %s\n", plan.Price, plan.Currency)
	fmt.Printf("  Duration:  %d days\n", plan.DurationDays)
	fmt.Println("========================================")
}

func listPlans(repo *database.Repository) {
	plans, err := repo.ListPlans(context.Background(), false)
	if err != nil {
		fmt.Printf("Failed to list plans: %v\n", err)
		return
	}

	if len(plans) == 0 {
		fmt.Println("\nNo plans in the catalog")
		return
	}

	fmt.Println("\n--- Plans ---")
	for _, plan := range plans {
		status := "inactive"
		if plan.IsActive {
			status = "active"
		}
		fmt.Printf("  %-12s %-20s %8.2f %s  %4d days  [%s]\n",
			plan.Name, plan.DisplayName, plan.Price, plan.Currency, plan.DurationDays, status)
		fmt.Printf("               id: %s\n", plan.ID)
	}
}

func togglePlan(reader *bufio.Reader, repo *database.Repository) {
	fmt.Println("\n--- Toggle Plan ---")

	name := prompt(reader, "Plan name: ")
	plan, err := repo.GetPlanByName(context.Background(), name)
	if err != nil {
		fmt.Printf("Lookup failed: %v\n", err)
		return
	}
	if plan == nil {
		fmt.Printf("Plan '%s' not found\n", name)
		return
	}

	newState := !plan.IsActive
	if err := repo.SetPlanActive(context.Background(), plan.ID, newState); err != nil {
		fmt.Printf("Failed to update plan: %v\n", err)
		return
	}

	fmt.Printf("Plan '%s' is now active=%v\n", plan.Name, newState)
}

func storeSecrets(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Store Signing Secrets in Vault ---")

	if !cfg.VaultConfig.Enabled {
		fmt.Println("Vault is not enabled in the configuration")
		return
	}

	client, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		fmt.Printf("Failed to connect to vault: %v\n", err)
		return
	}

	secrets := vault.SigningSecrets{
		JWTSecret:        prompt(reader, "JWT secret (blank to keep): "),
		CheckpointSecret: prompt(reader, "Checkpoint secret (blank to keep): "),
		ProviderSecret:   prompt(reader, "Provider webhook secret (blank to keep): "),
		InternalSecret:   prompt(reader, "Internal webhook secret (blank to keep): "),
	}

	// Blank fields keep whatever is already stored
	current, err := client.LoadSigningSecrets(context.Background(), vault.SigningSecrets{})
	if err == nil {
		if secrets.JWTSecret == "" {
			secrets.JWTSecret = current.JWTSecret
		}
		if secrets.CheckpointSecret == "" {
			secrets.CheckpointSecret = current.CheckpointSecret
		}
		if secrets.ProviderSecret == "" {
			secrets.ProviderSecret = current.ProviderSecret
		}
		if secrets.InternalSecret == "" {
			secrets.InternalSecret = current.InternalSecret
		}
	}

	if err := client.StoreSigningSecrets(context.Background(), secrets); err != nil {
		fmt.Printf("Failed to store secrets: %v\n", err)
		return
	}

	fmt.Println("Signing secrets stored")
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
