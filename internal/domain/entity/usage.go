package entity

import "time"

// UsageState is the metering snapshot of a caller.
type UsageState struct {
	MonthlyUsage          int        `json:"monthly_usage"`
	UsageLimit            int        `json:"usage_limit"`
	TrialEndDate          *time.Time `json:"trial_end_date,omitempty"`
	HasActiveSubscription bool       `json:"has_active_subscription"`
}

// InTrial reports whether now falls before the trial end.
func (u UsageState) InTrial(now time.Time) bool {
	return u.TrialEndDate != nil && now.Before(*u.TrialEndDate)
}

func (u UsageState) Remaining() int {
	if r := u.UsageLimit - u.MonthlyUsage; r > 0 {
		return r
	}
	return 0
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	BusinessName string    `json:"business_name"`
	UsageLimit   int       `json:"usage_limit"`
	TrialEndDate time.Time `json:"trial_end_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the verified caller behind a bearer credential.
type Identity struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AuditEvent struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Action    string         `json:"action"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

const (
	AuditActionGenerate       = "generate_responses"
	AuditActionGenerateSingle = "generate_single_response"
	AuditActionBatch          = "batch_generate"
)
