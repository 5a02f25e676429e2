package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"review-responder/internal/domain/entity"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewSQLStoreFromDB(sqlx.NewDb(db, "postgres"), zap.NewNop()), mock
}

func TestCreateUser(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	u := &entity.User{ID: "u-1", Email: "owner@example.com", PasswordHash: "hash", BusinessName: "Acme", UsageLimit: 50, TrialEndDate: now.Add(time.Hour), CreatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(u.ID, u.Email, u.PasswordHash, u.BusinessName, u.UsageLimit, u.TrialEndDate, u.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, s.CreateUser(context.Background(), u))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	err := s.CreateUser(context.Background(), u)
	assert.ErrorIs(t, err, entity.ErrConflict)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnError(errors.New("connection reset"))
	err = s.CreateUser(context.Background(), u)
	require.Error(t, err)
	assert.NotErrorIs(t, err, entity.ErrConflict)
}

func TestGetUserByEmail(t *testing.T) {
	s, mock := newMockStore(t)
	trialEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("owner@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "business_name", "usage_limit", "trial_end_date", "created_at"}).
			AddRow("u-1", "owner@example.com", "hash", "Acme", 50, trialEnd, created))

	u, err := s.GetUserByEmail(context.Background(), "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, trialEnd, u.TrialEndDate)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)
	_, err = s.GetUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, entity.ErrResourceNotFound)
}

func TestGetUsage(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	trialEnd := now.Add(-24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("AS has_active_subscription")).
		WithArgs(now, "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"monthly_usage", "usage_limit", "trial_end_date", "has_active_subscription"}).
			AddRow(12, 50, trialEnd, true))

	state, err := s.GetUsage(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 12, state.MonthlyUsage)
	assert.Equal(t, 50, state.UsageLimit)
	require.NotNil(t, state.TrialEndDate)
	assert.Equal(t, trialEnd, *state.TrialEndDate)
	assert.True(t, state.HasActiveSubscription)

	mock.ExpectQuery(regexp.QuoteMeta("AS has_active_subscription")).
		WithArgs(now, "u-2").
		WillReturnRows(sqlmock.NewRows([]string{"monthly_usage", "usage_limit", "trial_end_date", "has_active_subscription"}).
			AddRow(0, 50, nil, false))
	state, err = s.GetUsage(context.Background(), "u-2")
	require.NoError(t, err)
	assert.Nil(t, state.TrialEndDate)
	assert.False(t, state.InTrial(now))
}

func TestIncrementAndResetUsage(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET monthly_usage = monthly_usage + $1 WHERE id = $2")).
		WithArgs(3, "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.IncrementUsage(context.Background(), "u-1", 3))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET monthly_usage = monthly_usage + $1")).
		WithArgs(1, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.IncrementUsage(context.Background(), "ghost", 1), entity.ErrResourceNotFound)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET monthly_usage = 0")).
		WillReturnResult(sqlmock.NewResult(0, 7))
	n, err := s.ResetMonthlyUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func sampleRecord() *entity.GenerationRecord {
	generated := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return &entity.GenerationRecord{
		UserID:       "u-1",
		OriginalText: "Great pancakes, friendly staff!",
		BusinessName: "Tony's Diner",
		BusinessType: entity.BusinessRestaurant,
		Tone:         entity.ToneFriendly,
		Status:       entity.RecordStatusGenerated,
		CreatedAt:    generated,
		Result: &entity.GenerationResult{
			Candidates:   []entity.ResponseCandidate{{ID: 1, Text: "Thanks from Tony's Diner!", WordLength: 4}},
			Sentiment:    entity.SentimentResult{Sentiment: entity.SentimentPositive, Score: 0.9, Confidence: entity.ConfidenceHigh},
			BusinessType: entity.BusinessRestaurant,
			Tone:         entity.ToneFriendly,
			GeneratedAt:  generated,
		},
	}
}

func TestSaveGeneration(t *testing.T) {
	s, mock := newMockStore(t)
	rec := sampleRecord()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO generated_responses")).
		WithArgs("u-1", rec.OriginalText, "Tony's Diner", "restaurant", "friendly", "positive", sqlmock.AnyArg(), "generated", false, rec.CreatedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	id, err := s.SaveGeneration(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestListGenerations(t *testing.T) {
	s, mock := newMockStore(t)
	rec := sampleRecord()
	payload, err := json.Marshal(rec.Result)
	require.NoError(t, err)

	cols := []string{"id", "user_id", "original_text", "business_name", "business_type", "tone", "result", "status", "auto_generated", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM generated_responses WHERE user_id = $1")).
		WithArgs("u-1", 10, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(2, "u-1", rec.OriginalText, rec.BusinessName, "restaurant", "friendly", payload, "generated", true, rec.CreatedAt).
			AddRow(1, "u-1", rec.OriginalText, rec.BusinessName, "restaurant", "friendly", payload, "generated", false, rec.CreatedAt))

	recs, err := s.ListGenerations(context.Background(), "u-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[0].ID)
	assert.True(t, recs[0].AutoGenerated)
	assert.Equal(t, "Thanks from Tony's Diner!", recs[0].Result.Candidates[0].Text)
	assert.Equal(t, entity.SentimentPositive, recs[1].Result.Sentiment.Sentiment)
}

func TestRecordAudit(t *testing.T) {
	s, mock := newMockStore(t)
	evt := entity.AuditEvent{ID: "a-1", UserID: "u-1", Action: entity.AuditActionGenerate, CreatedAt: time.Now().UTC()}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs("a-1", "u-1", entity.AuditActionGenerate, "{}", evt.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, s.RecordAudit(context.Background(), evt))
}

func TestEnsureSQLiteDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ensureSQLiteDir("file:"+dir+"/nested/app.db?_busy_timeout=5000"))
	assert.DirExists(t, dir+"/nested")
	assert.NoError(t, ensureSQLiteDir(":memory:"))
}
