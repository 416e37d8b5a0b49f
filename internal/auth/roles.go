// Package auth resolves user roles for the engine's permission checks.
// The engine is not the owner of identity data; roles come from the
// Casdoor deployment the platform authenticates against.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
)

// RoleResolver maps a user id to their platform role.
type RoleResolver interface {
	Resolve(ctx context.Context, userID string) (models.UserRole, error)
}

// CasdoorResolver resolves roles from Casdoor user records.
type CasdoorResolver struct {
	client *casdoorsdk.Client
}

type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

func NewCasdoorResolver(cfg CasdoorConfig) *CasdoorResolver {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.OrganizationName,
		cfg.ApplicationName,
	)
	return &CasdoorResolver{client: client}
}

func (r *CasdoorResolver) Resolve(ctx context.Context, userID string) (models.UserRole, error) {
	user, err := r.client.GetUser(userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve role for user %s: %w", userID, err)
	}
	if user == nil {
		return "", fmt.Errorf("user %s not found", userID)
	}

	if user.IsAdmin {
		return models.RoleAdmin, nil
	}
	for _, role := range user.Roles {
		switch strings.ToLower(role.Name) {
		case "teacher":
			return models.RoleTeacher, nil
		case "proctor":
			return models.RoleProctor, nil
		}
	}
	return models.RoleStudent, nil
}

// StaticResolver serves fixed role assignments; used in tests and in
// deployments without Casdoor.
type StaticResolver struct {
	Roles   map[string]models.UserRole
	Default models.UserRole
}

func (r *StaticResolver) Resolve(_ context.Context, userID string) (models.UserRole, error) {
	if role, ok := r.Roles[userID]; ok {
		return role, nil
	}
	if r.Default != "" {
		return r.Default, nil
	}
	return models.RoleStudent, nil
}
