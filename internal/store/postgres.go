package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openlearnhq/coursegate/internal/config"
	"github.com/openlearnhq/coursegate/pkg/logger"
	"github.com/openlearnhq/coursegate/pkg/prefixed_uuid"
)

// Postgres implements Store on top of a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

var _ Store = (*Postgres)(nil)

// NewPostgres opens a connection pool and verifies connectivity.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	p := &Postgres{
		pool: pool,
		log:  log.WithFields(logger.StringField("component", "store")),
	}

	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

// Pool exposes the underlying pool for the migration runner.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// Ping ensures the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

const userColumns = `id, chat_id, email, verified, banned, COALESCE(order_id, ''), created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ChatID, &u.Email, &u.Verified, &u.Banned, &u.OrderID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// GetUserByChatID returns the user owning the chat identity, or nil.
func (p *Postgres) GetUserByChatID(ctx context.Context, chatID int64) (*User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE chat_id = $1`
	return scanUser(p.pool.QueryRow(ctx, q, chatID))
}

// GetUserByEmail returns the user owning the email, or nil.
func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(p.pool.QueryRow(ctx, q, email))
}

// UpsertVerifiedUser creates the user for a new chat identity or updates the
// verification fields of an existing one.
func (p *Postgres) UpsertVerifiedUser(ctx context.Context, params UpsertUserParams) (*User, error) {
	q := `
INSERT INTO users (chat_id, email, verified, order_id, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (chat_id) DO UPDATE SET
    email = EXCLUDED.email,
    verified = EXCLUDED.verified,
    order_id = EXCLUDED.order_id,
    updated_at = NOW()
RETURNING ` + userColumns
	row := p.pool.QueryRow(ctx, q, params.ChatID, params.Email, params.Verified, params.OrderID)

	var u User
	if err := row.Scan(&u.ID, &u.ChatID, &u.Email, &u.Verified, &u.Banned, &u.OrderID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &u, nil
}

// GetCourse returns the course by id, or nil.
func (p *Postgres) GetCourse(ctx context.Context, id int64) (*Course, error) {
	q := `SELECT id, title, description, body, active, created_at FROM courses WHERE id = $1`
	var c Course
	err := p.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Title, &c.Description, &c.Body, &c.Active, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &c, nil
}

// ListActiveCourses returns all active courses ordered by id.
func (p *Postgres) ListActiveCourses(ctx context.Context) ([]Course, error) {
	q := `SELECT id, title, description, body, active, created_at FROM courses WHERE active ORDER BY id`
	rows, err := p.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Body, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// ListSubcontent returns a course's lessons in display order.
func (p *Postgres) ListSubcontent(ctx context.Context, courseID int64) ([]Subcontent, error) {
	q := `
SELECT id, course_id, title, body, COALESCE(external_url, ''), order_index
FROM course_subcontent WHERE course_id = $1 ORDER BY order_index, id`
	rows, err := p.pool.Query(ctx, q, courseID)
	if err != nil {
		return nil, fmt.Errorf("list subcontent: %w", err)
	}
	defer rows.Close()

	var entries []Subcontent
	for rows.Next() {
		var s Subcontent
		if err := rows.Scan(&s.ID, &s.CourseID, &s.Title, &s.Body, &s.ExternalURL, &s.OrderIndex); err != nil {
			return nil, fmt.Errorf("scan subcontent: %w", err)
		}
		entries = append(entries, s)
	}
	return entries, rows.Err()
}

// GetSubcontent returns the lesson by id, or nil.
func (p *Postgres) GetSubcontent(ctx context.Context, id int64) (*Subcontent, error) {
	q := `
SELECT id, course_id, title, body, COALESCE(external_url, ''), order_index
FROM course_subcontent WHERE id = $1`
	var s Subcontent
	err := p.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.CourseID, &s.Title, &s.Body, &s.ExternalURL, &s.OrderIndex)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subcontent: %w", err)
	}
	return &s, nil
}

// GetSetting returns the named setting, or nil.
func (p *Postgres) GetSetting(ctx context.Context, name string) (*Setting, error) {
	q := `SELECT name, data, updated_at FROM settings WHERE name = $1`
	var s Setting
	err := p.pool.QueryRow(ctx, q, name).Scan(&s.Name, &s.Data, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting: %w", err)
	}
	return &s, nil
}

// PutSetting writes the named setting, replacing any existing data.
func (p *Postgres) PutSetting(ctx context.Context, name string, data json.RawMessage) error {
	q := `
INSERT INTO settings (name, data, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
	if _, err := p.pool.Exec(ctx, q, name, data); err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}

// EnsureSetting creates the named setting only if absent.
func (p *Postgres) EnsureSetting(ctx context.Context, name string, data json.RawMessage) error {
	q := `INSERT INTO settings (name, data, updated_at) VALUES ($1, $2, NOW()) ON CONFLICT (name) DO NOTHING`
	if _, err := p.pool.Exec(ctx, q, name, data); err != nil {
		return fmt.Errorf("ensure setting: %w", err)
	}
	return nil
}

// InsertActivity appends an audit-trail entry.
func (p *Postgres) InsertActivity(ctx context.Context, entry ActivityEntry) error {
	q := `INSERT INTO activity_log (id, kind, description, actor_id) VALUES ($1, $2, $3, $4)`
	if _, err := p.pool.Exec(ctx, q, entry.ID.String(), entry.Kind, entry.Description, entry.ActorID); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListRecentActivity returns the newest entries first.
func (p *Postgres) ListRecentActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	q := `SELECT id, kind, description, actor_id, created_at FROM activity_log ORDER BY created_at DESC LIMIT $1`
	rows, err := p.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		var rawID string
		if err := rows.Scan(&rawID, &e.Kind, &e.Description, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if e.ID, err = prefixed_uuid.FromString(rawID); err != nil {
			return nil, fmt.Errorf("parse activity id: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
