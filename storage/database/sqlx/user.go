package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/shop"
	"github.com/trezcool/darasa/core/user"
)

const userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (row userRow) toUser() user.User {
	active := row.IsActive
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username,
		Email:        row.Email,
		IsActive:     &active,
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	excluded := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded = append(excluded, usr.ID)
	}

	check := func(column, value string, dupErr error) error {
		if value == "" {
			return nil
		}
		var exists bool
		q := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM "user" WHERE %s = $1 AND NOT (id = ANY($2)))`, column)
		if err := repo.db.GetContext(ctx, &exists, q, value, pq.Array(excluded)); err != nil {
			return errors.Wrapf(err, "checking %s uniqueness", column)
		}
		if exists {
			return dupErr
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	active := usr.IsActive != nil && *usr.IsActive
	q := `INSERT INTO "user" (id, name, username, email, is_active, roles, password_hash, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.db.ExecContext(ctx, q,
		usr.ID, usr.Name, usr.Username, usr.Email, active, pq.Array(usr.Roles), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

var userOrderFields = map[string]bool{"name": true, "username": true, "created_at": true}

func orderBy(ordering []core.DBOrdering, allowed map[string]bool, fallback string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := `SELECT ` + userColumns + ` FROM "user"`
	where := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			where = append(where, fmt.Sprintf("(name ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)", p))
		}
		if len(filter.Roles) > 0 {
			// role filters match by prefix: "teacher:" matches any teacher role
			roleClauses := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				p := arg(role + "%")
				roleClauses = append(roleClauses, fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(roles) r WHERE r LIKE %s)", p))
			}
			where = append(where, "("+strings.Join(roleClauses, " OR ")+")")
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = "+arg(*filter.IsActive))
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, "created_at >= "+arg(filter.CreatedFrom))
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, "created_at <= "+arg(filter.CreatedTo))
		}
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += orderBy(ordering, userOrderFields, "created_at ASC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo *userRepository) getUser(ctx context.Context, where string, args ...interface{}) (user.User, error) {
	var row userRow
	q := `SELECT ` + userColumns + ` FROM "user" WHERE ` + where
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, "id = $1", id)
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, "username = $1", username)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "email = $1", email)
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, "username = $1 OR email = $1", username)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	// only save set fields
	set := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if usr.Name != "" {
		set = append(set, "name = "+arg(usr.Name))
	}
	if usr.Username != "" {
		set = append(set, "username = "+arg(usr.Username))
	}
	if usr.Email != "" {
		set = append(set, "email = "+arg(usr.Email))
	}
	if usr.Roles != nil {
		set = append(set, "roles = "+arg(pq.Array(usr.Roles)))
	}
	if usr.PasswordHash != nil {
		set = append(set, "password_hash = "+arg(usr.PasswordHash))
	}
	if isActive != nil {
		set = append(set, "is_active = "+arg(*isActive))
	}
	set = append(set, "updated_at = "+arg(usr.UpdatedAt))

	var row userRow
	q := `UPDATE "user" SET ` + strings.Join(set, ", ") + ` WHERE id = ` + arg(usr.ID) + ` RETURNING ` + userColumns
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, usr user.User) (user.User, error) {
	var row userRow
	q := `UPDATE "user" SET last_login = $1 WHERE id = $2 RETURNING ` + userColumns
	if err := repo.db.GetContext(ctx, &row, q, usr.LastLogin, usr.ID); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "setting last login")
	}
	return row.toUser(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting users")
}

func (repo *userRepository) GetProfile(ctx context.Context, id string) (user.Profile, error) {
	usr, err := repo.GetUserByID(ctx, id)
	if err != nil {
		return user.Profile{}, err
	}

	profile := user.Profile{User: usr}
	q := `SELECT COALESCE(SUM(amount), 0) FROM coin_transaction WHERE user_id = $1`
	if err = repo.db.GetContext(ctx, &profile.Balance, q, id); err != nil {
		return user.Profile{}, errors.Wrap(err, "summing balance")
	}

	type cosmetic struct {
		Kind  string `db:"kind"`
		Title string `db:"title"`
	}
	var equipped []cosmetic
	q = `SELECT i.kind, i.title
	     FROM inventory_item inv
	     JOIN shop_item i ON i.id = inv.item_id
	     WHERE inv.user_id = $1 AND inv.equipped
	     ORDER BY i.title`
	if err = repo.db.SelectContext(ctx, &equipped, q, id); err != nil {
		return user.Profile{}, errors.Wrap(err, "querying equipped items")
	}
	for _, c := range equipped {
		switch c.Kind {
		case shop.KindTitle:
			profile.EquippedTitle = c.Title
		case shop.KindBadge:
			profile.EquippedBadges = append(profile.EquippedBadges, c.Title)
		}
	}
	return profile, nil
}
