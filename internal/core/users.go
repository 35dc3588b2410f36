package core

import (
	"bizdesk/pkg/domain"
	"context"
)

// FindUserByUsername returns the stored user, password hash included.
func (s *Service) FindUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	var (
		out   domain.User
		found bool
	)
	err := s.read(ctx, "find_user", map[string]any{"username": username}, func(v domain.TransactionView) error {
		out, found = v.FindUserByUsername(username)
		return nil
	})
	return out, found, err
}

// EnsureRoleUser returns the first user holding role, creating fallback when
// no such user exists.
func (s *Service) EnsureRoleUser(ctx context.Context, role domain.Role, fallback domain.User) (domain.User, error) {
	var out domain.User
	_, err := s.write(ctx, "ensure_user", map[string]any{"role": string(role)}, func(tx domain.Transaction) error {
		for _, u := range tx.ListUsers() {
			if u.Role == role {
				out = u
				return nil
			}
		}
		fallback.Role = role
		var err error
		out, err = tx.CreateUser(fallback)
		return err
	})
	return out, err
}

// GetUser returns a user without its password hash.
func (s *Service) GetUser(ctx context.Context, id int) (domain.User, error) {
	var out domain.User
	err := s.read(ctx, "get_user", idField(id), func(v domain.TransactionView) error {
		u, ok := v.FindUser(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityUser, ID: id}
		}
		out = u.Public()
		return nil
	})
	return out, err
}

// ListUsers returns every user without password hashes.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	err := s.read(ctx, "list_users", nil, func(v domain.TransactionView) error {
		users := v.ListUsers()
		out = make([]domain.User, 0, len(users))
		for _, u := range users {
			out = append(out, u.Public())
		}
		return nil
	})
	return out, err
}
