package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

const userColumns = `id, email, password_hash, name, COALESCE(birth_date, ''), COALESCE(birth_time, ''), COALESCE(city, ''), COALESCE(gender, ''),
coins, total_coins_earned, total_coins_spent, last_daily_bonus, COALESCE(last_bonus_day, ''),
notify_fortune_ready, notify_daily_bonus, notify_admin_messages, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var lastBonus sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.BirthDate, &u.BirthTime, &u.City, &u.Gender,
		&u.Coins, &u.TotalCoinsEarned, &u.TotalCoinsSpent, &lastBonus, &u.LastBonusDay,
		&u.Settings.FortuneReady, &u.Settings.DailyBonus, &u.Settings.AdminMessages, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastBonus.Valid {
		t := lastBonus.Time
		u.LastDailyBonus = &t
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email))
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// Create inserts the user together with its starting grant. The balance and the
// signup ledger entry are written in one transaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User, grant int) (*models.User, error) {
	existing, err := r.FindByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	now := time.Now().UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const query = `
INSERT INTO users (email, password_hash, name, birth_date, birth_time, city, gender, coins, total_coins_earned, total_coins_spent,
    notify_fortune_ready, notify_daily_bonus, notify_admin_messages, created_at, updated_at)
VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, 0, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, query, strings.ToLower(user.Email), user.PasswordHash, user.Name, user.BirthDate, user.BirthTime, user.City, user.Gender,
		grant, grant, user.Settings.FortuneReady, user.Settings.DailyBonus, user.Settings.AdminMessages, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if grant > 0 {
		if err := insertTransaction(ctx, tx, id, models.TxSignupGrant, grant, fmt.Sprintf("signup:%d", id), now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit user tx: %w", err)
	}

	user.ID = id
	user.Email = strings.ToLower(user.Email)
	user.Coins = grant
	user.TotalCoinsEarned = grant
	user.TotalCoinsSpent = 0
	user.CreatedAt = now
	user.UpdatedAt = now
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	const query = `
UPDATE users SET name = ?, birth_date = NULLIF(?, ''), birth_time = NULLIF(?, ''), city = NULLIF(?, ''), gender = NULLIF(?, ''), updated_at = ?
WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, user.Name, user.BirthDate, user.BirthTime, user.City, user.Gender, time.Now().UTC(), user.ID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return expectAffected(res, ErrUserNotFound)
}

func (r *UserRepository) UpdateSettings(ctx context.Context, userID int64, settings models.NotificationSettings) error {
	const query = `
UPDATE users SET notify_fortune_ready = ?, notify_daily_bonus = ?, notify_admin_messages = ?, updated_at = ?
WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, settings.FortuneReady, settings.DailyBonus, settings.AdminMessages, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update notification settings: %w", err)
	}
	return expectAffected(res, ErrUserNotFound)
}

func (r *UserRepository) Balance(ctx context.Context, userID int64) (*models.Balance, error) {
	const query = `SELECT coins, total_coins_earned, total_coins_spent, last_daily_bonus FROM users WHERE id = ?`
	var b models.Balance
	var lastBonus sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&b.Coins, &b.TotalCoinsEarned, &b.TotalCoinsSpent, &lastBonus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("read balance: %w", err)
	}
	if lastBonus.Valid {
		t := lastBonus.Time
		b.LastDailyBonus = &t
	}
	return &b, nil
}

// List returns a page of users ordered by id, optionally filtered by a
// case-insensitive match on email or name.
func (r *UserRepository) List(ctx context.Context, search string, limit, offset int) ([]models.User, int, error) {
	where := ""
	var args []any
	if search = strings.TrimSpace(search); search != "" {
		where = ` WHERE LOWER(email) LIKE ? OR LOWER(name) LIKE ?`
		pattern := "%" + strings.ToLower(search) + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user list: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

func (r *UserRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectAffected(res, ErrUserNotFound)
}

// Totals sums user count and lifetime coin flows for the admin dashboard.
func (r *UserRepository) Totals(ctx context.Context) (users, earned, spent int, err error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(total_coins_earned), 0), COALESCE(SUM(total_coins_spent), 0) FROM users`
	if err := r.db.QueryRowContext(ctx, query).Scan(&users, &earned, &spent); err != nil {
		return 0, 0, 0, fmt.Errorf("user totals: %w", err)
	}
	return users, earned, spent, nil
}

func expectAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
