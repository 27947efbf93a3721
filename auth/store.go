package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/huandu/go-sqlbuilder"

	"github.com/opsml/registry/opsmlerr"
)

const tableUsers = "opsml_user"

// Store persists User records against any database/sql backend reachable
// through a go-sqlbuilder flavor, the same dialect-agnostic shape the
// catalog and telemetry stores use.
type Store struct {
	db     *sql.DB
	flavor sqlbuilder.Flavor
}

func NewStore(db *sql.DB, flavor sqlbuilder.Flavor) *Store {
	return &Store{db: db, flavor: flavor}
}

// Insert creates a new user row. Every failure of the insert, including a
// username that is already taken, is returned as opsmlerr.DatabaseErr; a
// taken username is not reported as a distinct code.
func (s *Store) Insert(ctx context.Context, u User) error {
	perms, err := json.Marshal(u.Permissions)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.InternalErr, err, "marshal permissions")
	}
	groupPerms, err := json.Marshal(u.GroupPermissions)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.InternalErr, err, "marshal group_permissions")
	}
	recoveryCodes, err := json.Marshal(u.HashedRecoveryCodes)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.InternalErr, err, "marshal recovery codes")
	}
	favoriteSpaces, err := json.Marshal(u.FavoriteSpaces)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.InternalErr, err, "marshal favorite_spaces")
	}

	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto(tableUsers)
	ib.Cols(
		"username", "email", "password_hash", "hashed_recovery_codes",
		"permissions", "group_permissions", "role", "favorite_spaces",
		"active", "authentication_type",
	)
	ib.Values(
		u.Username, u.Email, u.PasswordHash, string(recoveryCodes),
		string(perms), string(groupPerms), u.Role, string(favoriteSpaces),
		u.Active, u.AuthenticationType,
	)
	query, args := ib.BuildWithFlavor(s.flavor)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "insert user %s", u.Username)
	}
	return nil
}

// GetByUsername fetches a user by their unique username.
func (s *Store) GetByUsername(ctx context.Context, username string) (User, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(
		"id", "created_at", "updated_at", "active", "username", "email",
		"password_hash", "hashed_recovery_codes", "permissions",
		"group_permissions", "role", "favorite_spaces", "authentication_type",
		"refresh_token",
	)
	sb.From(tableUsers)
	sb.Where(sb.Equal("username", username))
	query, args := sb.BuildWithFlavor(s.flavor)

	row := s.db.QueryRowContext(ctx, query, args...)
	return scanUser(row)
}

func scanUser(row *sql.Row) (User, error) {
	var (
		u                        User
		perms, groupPerms        []byte
		recoveryCodes, favSpaces []byte
	)
	err := row.Scan(
		&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Active, &u.Username, &u.Email,
		&u.PasswordHash, &recoveryCodes, &perms, &groupPerms, &u.Role,
		&favSpaces, &u.AuthenticationType, &u.RefreshToken,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, opsmlerr.New(opsmlerr.NotFound, "user not found")
	}
	if err != nil {
		return User{}, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "scan user row")
	}
	if err := json.Unmarshal(perms, &u.Permissions); err != nil {
		return User{}, opsmlerr.Wrap(opsmlerr.InternalErr, err, "unmarshal permissions")
	}
	if err := json.Unmarshal(groupPerms, &u.GroupPermissions); err != nil {
		return User{}, opsmlerr.Wrap(opsmlerr.InternalErr, err, "unmarshal group_permissions")
	}
	if err := json.Unmarshal(recoveryCodes, &u.HashedRecoveryCodes); err != nil {
		return User{}, opsmlerr.Wrap(opsmlerr.InternalErr, err, "unmarshal recovery codes")
	}
	if err := json.Unmarshal(favSpaces, &u.FavoriteSpaces); err != nil {
		return User{}, opsmlerr.Wrap(opsmlerr.InternalErr, err, "unmarshal favorite_spaces")
	}
	return u, nil
}

// UpdateRefreshToken stores the current refresh token for a user, or
// clears it when token is empty (logout).
func (s *Store) UpdateRefreshToken(ctx context.Context, username, token string) error {
	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update(tableUsers)
	ub.Set(ub.Assign("refresh_token", token))
	ub.Where(ub.Equal("username", username))
	query, args := ub.BuildWithFlavor(s.flavor)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "update refresh token for %s", username)
	}
	return nil
}
