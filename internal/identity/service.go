package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// StaffUser represents a user with an elevated role assignment.
type StaffUser struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle,omitempty"`
	Role   Role   `json:"role"`
	Note   string `json:"note,omitempty"`
}

// Config represents the role assignments loaded from JSON.
type Config struct {
	Users []StaffUser `json:"users"`
}

// Validate checks that the config is valid.
func (c *Config) Validate() error {
	for _, user := range c.Users {
		if user.UserID == "" {
			return &ConfigError{Field: "users", Message: "user entry is missing user_id"}
		}
		if !user.Role.Valid() {
			return &ConfigError{
				Field:   "users",
				Message: "user " + user.UserID + " references unknown role: " + string(user.Role),
			}
		}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "identity config error in " + e.Field + ": " + e.Message
}

// UserInfo is the public display data for a user, resolved via the Directory.
type UserInfo struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Directory resolves user IDs to display data. Implementations must be safe
// for concurrent use. Lookup returns an error when the user does not exist.
type Directory interface {
	Lookup(ctx context.Context, userID string) (UserInfo, error)
}

// Service resolves caller roles from a JSON config file.
// Users without an assignment default to RoleUser.
type Service struct {
	mu         sync.RWMutex
	config     *Config
	configPath string

	// Quick lookup map built from config
	userRoles map[string]Role
}

// NewService creates a new identity service.
// If configPath is empty, every caller resolves to RoleUser.
func NewService(configPath string) (*Service, error) {
	s := &Service{
		configPath: configPath,
		userRoles:  make(map[string]Role),
	}

	if configPath == "" {
		log.Info().Msg("identity: no roles config path provided, all callers default to user role")
		return s, nil
	}

	if err := s.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load identity config: %w", err)
	}

	return s, nil
}

// loadConfig reads and parses the config file.
func (s *Service) loadConfig() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", s.configPath).Msg("identity: roles config file not found, all callers default to user role")
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = &config
	s.rebuildLookupMap()

	log.Info().
		Int("users", len(config.Users)).
		Str("path", s.configPath).
		Msg("identity: roles config loaded")

	return nil
}

// rebuildLookupMap rebuilds the quick lookup map from config.
// Caller must hold the write lock.
func (s *Service) rebuildLookupMap() {
	s.userRoles = make(map[string]Role)

	if s.config == nil {
		return
	}

	for _, user := range s.config.Users {
		s.userRoles[user.UserID] = user.Role
	}
}

// Reload reloads the configuration from disk.
func (s *Service) Reload() error {
	if s.configPath == "" {
		return nil
	}
	return s.loadConfig()
}

// RoleFor returns the role for the given user ID.
// Users without an assignment get RoleUser.
func (s *Service) RoleFor(userID string) Role {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.userRoles[userID]
	if !ok {
		return RoleUser
	}
	return role
}

// IsModerator returns true if the given user has moderator privileges.
// This includes both moderators and admins.
func (s *Service) IsModerator(userID string) bool {
	return s.RoleFor(userID).AtLeast(RoleModerator)
}

// IsAdmin returns true if the given user has the admin role.
func (s *Service) IsAdmin(userID string) bool {
	return s.RoleFor(userID) == RoleAdmin
}

// ListStaff returns all configured staff users.
func (s *Service) ListStaff() []StaffUser {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil
	}

	result := make([]StaffUser, len(s.config.Users))
	copy(result, s.config.Users)
	return result
}
