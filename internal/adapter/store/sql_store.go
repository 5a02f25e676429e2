package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"review-responder/internal/domain/entity"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type Opts struct {
	Driver string
	DSN    string
}

type Option func(*Opts)

func WithDriver(driver string) Option { return func(o *Opts) { o.Driver = driver } }

func WithDSN(dsn string) Option { return func(o *Opts) { o.DSN = dsn } }

// SQLStore persists accounts, usage counters, generated responses and the
// audit trail. It serves Postgres in production and SQLite locally.
type SQLStore struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewSQLStore opens the database, verifies the connection and applies the
// embedded migrations.
func NewSQLStore(ctx context.Context, logger *zap.Logger, opts ...Option) (*SQLStore, error) {
	cfg := Opts{Driver: DriverPostgres}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, errors.New("database DSN not set")
	}

	var migrations string
	switch cfg.Driver {
	case DriverPostgres:
		migrations = postgresMigrations
	case DriverSQLite:
		migrations = sqliteMigrations
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		// One writer at a time; concurrent writers would hit SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
	}

	if _, err := db.ExecContext(ctx, migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("database ready", zap.String("driver", cfg.Driver))

	return NewSQLStoreFromDB(db, logger), nil
}

func NewSQLStoreFromDB(db *sqlx.DB, logger *zap.Logger) *SQLStore {
	return &SQLStore{db: db, logger: logger, now: time.Now}
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) CreateUser(ctx context.Context, u *entity.User) error {
	q := s.db.Rebind(`INSERT INTO users (id, email, password_hash, business_name, monthly_usage, usage_limit, trial_end_date, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q, u.ID, u.Email, u.PasswordHash, u.BusinessName, u.UsageLimit, u.TrialEndDate, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, entity.ErrConflict)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

type userRow struct {
	ID           string       `db:"id"`
	Email        string       `db:"email"`
	PasswordHash string       `db:"password_hash"`
	BusinessName string       `db:"business_name"`
	UsageLimit   int          `db:"usage_limit"`
	TrialEndDate sql.NullTime `db:"trial_end_date"`
	CreatedAt    time.Time    `db:"created_at"`
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*entity.User, error) {
	var row userRow
	q := s.db.Rebind(`SELECT id, email, password_hash, business_name, usage_limit, trial_end_date, created_at
		FROM users WHERE email = ?`)
	if err := s.db.GetContext(ctx, &row, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, entity.ErrResourceNotFound)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &entity.User{
		ID:           row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		BusinessName: row.BusinessName,
		UsageLimit:   row.UsageLimit,
		TrialEndDate: row.TrialEndDate.Time,
		CreatedAt:    row.CreatedAt,
	}, nil
}

type usageRow struct {
	MonthlyUsage          int          `db:"monthly_usage"`
	UsageLimit            int          `db:"usage_limit"`
	TrialEndDate          sql.NullTime `db:"trial_end_date"`
	HasActiveSubscription bool         `db:"has_active_subscription"`
}

// GetUsage reads the caller's counters together with whether any of their
// subscriptions is active and not past its period end.
func (s *SQLStore) GetUsage(ctx context.Context, userID string) (*entity.UsageState, error) {
	var row usageRow
	q := s.db.Rebind(`SELECT u.monthly_usage, u.usage_limit, u.trial_end_date,
		EXISTS (
			SELECT 1 FROM subscriptions s
			WHERE s.user_id = u.id AND s.status = 'active'
			  AND (s.current_period_end IS NULL OR s.current_period_end > ?)
		) AS has_active_subscription
		FROM users u WHERE u.id = ?`)
	if err := s.db.GetContext(ctx, &row, q, s.now().UTC(), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, entity.ErrResourceNotFound)
		}
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}

	state := &entity.UsageState{
		MonthlyUsage:          row.MonthlyUsage,
		UsageLimit:            row.UsageLimit,
		HasActiveSubscription: row.HasActiveSubscription,
	}
	if row.TrialEndDate.Valid {
		t := row.TrialEndDate.Time
		state.TrialEndDate = &t
	}
	return state, nil
}

func (s *SQLStore) IncrementUsage(ctx context.Context, userID string, n int) error {
	q := s.db.Rebind(`UPDATE users SET monthly_usage = monthly_usage + ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, n, userID)
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("user %s: %w", userID, entity.ErrResourceNotFound)
	}
	return nil
}

// ResetMonthlyUsage zeroes every non-zero counter and reports how many
// accounts were reset.
func (s *SQLStore) ResetMonthlyUsage(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET monthly_usage = 0 WHERE monthly_usage <> 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset usage: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) SaveGeneration(ctx context.Context, rec *entity.GenerationRecord) (int64, error) {
	payload, err := json.Marshal(rec.Result)
	if err != nil {
		return 0, fmt.Errorf("failed to encode generation: %w", err)
	}
	var sentiment string
	if rec.Result != nil {
		sentiment = string(rec.Result.Sentiment.Sentiment)
	}

	q := s.db.Rebind(`INSERT INTO generated_responses
		(user_id, original_text, business_name, business_type, tone, sentiment, result, status, auto_generated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err = s.db.QueryRowxContext(ctx, q,
		rec.UserID, rec.OriginalText, rec.BusinessName, string(rec.BusinessType), string(rec.Tone),
		sentiment, string(payload), rec.Status, rec.AutoGenerated, rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert generation: %w", err)
	}
	s.logger.Debug("generation saved", zap.Int64("id", id), zap.String("user_id", rec.UserID))
	return id, nil
}

type generationRow struct {
	ID            int64     `db:"id"`
	UserID        string    `db:"user_id"`
	OriginalText  string    `db:"original_text"`
	BusinessName  string    `db:"business_name"`
	BusinessType  string    `db:"business_type"`
	Tone          string    `db:"tone"`
	Result        []byte    `db:"result"`
	Status        string    `db:"status"`
	AutoGenerated bool      `db:"auto_generated"`
	CreatedAt     time.Time `db:"created_at"`
}

// ListGenerations returns the user's generations, newest first.
func (s *SQLStore) ListGenerations(ctx context.Context, userID string, limit, offset int) ([]entity.GenerationRecord, error) {
	var rows []generationRow
	q := s.db.Rebind(`SELECT id, user_id, original_text, business_name, business_type, tone, result, status, auto_generated, created_at
		FROM generated_responses WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &rows, q, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}

	out := make([]entity.GenerationRecord, 0, len(rows))
	for _, r := range rows {
		var result entity.GenerationResult
		if err := json.Unmarshal(r.Result, &result); err != nil {
			return nil, fmt.Errorf("failed to decode generation %d: %w", r.ID, err)
		}
		out = append(out, entity.GenerationRecord{
			ID:            r.ID,
			UserID:        r.UserID,
			OriginalText:  r.OriginalText,
			BusinessName:  r.BusinessName,
			BusinessType:  entity.BusinessType(r.BusinessType),
			Tone:          entity.Tone(r.Tone),
			Result:        &result,
			Status:        r.Status,
			AutoGenerated: r.AutoGenerated,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}

func (s *SQLStore) RecordAudit(ctx context.Context, evt entity.AuditEvent) error {
	meta := evt.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}
	q := s.db.Rebind(`INSERT INTO audit_logs (id, user_id, action, metadata, created_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, evt.ID, evt.UserID, evt.Action, string(payload), evt.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
