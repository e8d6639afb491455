package local

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/pkg/utils"
)

// DefaultPassword is the password of the seeded accounts
const DefaultPassword = "123"

// DefaultUsers are created on an empty store. Logins are the display names.
var DefaultUsers = []entity.User{
	{Name: "Administrador", Login: "Administrador", Role: entity.RoleIssuer},
	{Name: "João da Silva", Login: "João da Silva", Role: entity.RoleRepresentative},
	{Name: "B/M Tio Gracy", Login: "B/M Tio Gracy", Role: entity.RoleCarrier, Vessel: "B/M Tio Gracy"},
}

// SeedUsers creates the default accounts when the users table is empty.
// It returns the number of accounts created.
func (g *Gateway) SeedUsers(ctx context.Context) (int, error) {
	n, err := g.repos.Users.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	hash, err := utils.HashPassword(DefaultPassword)
	if err != nil {
		return 0, fmt.Errorf("hash default password: %w", err)
	}

	created := 0
	err = g.txm.WithTransaction(ctx, func(ctx context.Context) error {
		for _, def := range DefaultUsers {
			u := def
			u.PasswordHash = hash
			if err := g.repos.Users.Create(ctx, &u); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	g.logger.Info("Seeded default users", zap.Int("count", created))
	return created, nil
}
