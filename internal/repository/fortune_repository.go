package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
)

var ErrFortuneNotFound = errors.New("fortune not found")

const fortuneColumns = `id, user_id, fortune_type, teller_id, teller_name, cost, fortune_text,
COALESCE(image_urls, ''), COALESCE(metadata, ''), reservation_id, created_at`

type FortuneRepository struct {
	db *sql.DB
}

func NewFortuneRepository(db *sql.DB) *FortuneRepository {
	return &FortuneRepository{db: db}
}

func (r *FortuneRepository) Create(ctx context.Context, f *models.Fortune) error {
	images, err := encodeJSON(f.ImageURLs, len(f.ImageURLs) == 0)
	if err != nil {
		return fmt.Errorf("encode image urls: %w", err)
	}
	metadata, err := encodeJSON(f.Metadata, len(f.Metadata) == 0)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO fortunes (user_id, fortune_type, teller_id, teller_name, cost, fortune_text, image_urls, metadata, reservation_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, f.UserID, f.Type, f.TellerID, f.TellerName, f.Cost, f.Text, images, metadata, f.ReservationID, f.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert fortune: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return nil
}

func (r *FortuneRepository) GetByID(ctx context.Context, id int64) (*models.Fortune, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fortuneColumns+` FROM fortunes WHERE id = ?`, id)
	f, err := scanFortune(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan fortune: %w", err)
	}
	return f, nil
}

func (r *FortuneRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Fortune, error) {
	const query = `SELECT ` + fortuneColumns + ` FROM fortunes WHERE user_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list fortunes: %w", err)
	}
	return collectFortunes(rows)
}

// List pages over all fortunes; an empty fortuneType matches every type.
func (r *FortuneRepository) List(ctx context.Context, fortuneType models.FortuneType, limit, offset int) ([]models.Fortune, int, error) {
	where := ""
	var args []any
	if fortuneType != "" {
		where = ` WHERE fortune_type = ?`
		args = append(args, fortuneType)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fortunes`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count fortunes: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+fortuneColumns+` FROM fortunes`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list fortunes: %w", err)
	}
	fortunes, err := collectFortunes(rows)
	if err != nil {
		return nil, 0, err
	}
	return fortunes, total, nil
}

// DeleteForUser removes a fortune only if it belongs to userID.
func (r *FortuneRepository) DeleteForUser(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fortunes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete fortune: %w", err)
	}
	return expectAffected(res, ErrFortuneNotFound)
}

func (r *FortuneRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fortunes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete fortune: %w", err)
	}
	return expectAffected(res, ErrFortuneNotFound)
}

func (r *FortuneRepository) CountForUser(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fortunes WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count user fortunes: %w", err)
	}
	return n, nil
}

// CountSince counts fortunes created at or after since.
func (r *FortuneRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fortunes WHERE created_at >= ?`, since.UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count fortunes since: %w", err)
	}
	return n, nil
}

func (r *FortuneRepository) CountPerType(ctx context.Context) (map[models.FortuneType]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT fortune_type, COUNT(*) FROM fortunes GROUP BY fortune_type`)
	if err != nil {
		return nil, fmt.Errorf("count fortunes per type: %w", err)
	}
	defer rows.Close()

	out := make(map[models.FortuneType]int)
	for rows.Next() {
		var t models.FortuneType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scan fortune count: %w", err)
		}
		out[t] = n
	}
	return out, rows.Err()
}

func collectFortunes(rows *sql.Rows) ([]models.Fortune, error) {
	defer rows.Close()
	var out []models.Fortune
	for rows.Next() {
		f, err := scanFortune(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fortune: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func scanFortune(row rowScanner) (*models.Fortune, error) {
	var f models.Fortune
	var images, metadata string
	if err := row.Scan(&f.ID, &f.UserID, &f.Type, &f.TellerID, &f.TellerName, &f.Cost, &f.Text, &images, &metadata, &f.ReservationID, &f.CreatedAt); err != nil {
		return nil, err
	}
	if images != "" {
		if err := json.Unmarshal([]byte(images), &f.ImageURLs); err != nil {
			return nil, fmt.Errorf("decode image urls: %w", err)
		}
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &f.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &f, nil
}

func encodeJSON(v any, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
