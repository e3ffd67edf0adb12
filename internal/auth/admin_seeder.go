package auth

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"

	"studyhall-platform/internal/database"
)

// AdminBcryptCost is the bcrypt cost for the seeded admin password
const AdminBcryptCost = 12

// SeedAdminUser ensures an admin user exists with the given credentials.
// It creates the admin if missing, and repairs the password or role if they
// drifted. A blank email or password skips seeding entirely.
func SeedAdminUser(ctx context.Context, db *database.DB, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	repo := database.NewRepository(db)

	user, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), AdminBcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	if user == nil {
		log.Printf("Admin user not found. Creating admin user: %s", email)

		adminUser := &database.User{
			Email:               email,
			PasswordHash:        string(hashedPassword),
			Name:                "Administrator",
			Role:                database.RoleAdmin,
			OnboardingCompleted: true,
		}

		if err := repo.CreateUser(ctx, adminUser); err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Printf("Admin user created successfully with ID: %s", adminUser.ID)
		return nil
	}

	// User exists. Repair the password if it no longer verifies.
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Printf("Admin user exists but password needs updating: %s", email)

		if err := repo.UpdateUserPassword(ctx, user.ID, string(hashedPassword)); err != nil {
			return fmt.Errorf("failed to update admin password: %w", err)
		}
	}

	if user.Role != database.RoleAdmin {
		log.Printf("Promoting existing user to admin: %s", email)

		if err := repo.SetUserRole(ctx, user.ID, database.RoleAdmin); err != nil {
			return fmt.Errorf("failed to update admin role: %w", err)
		}
	}

	return nil
}
