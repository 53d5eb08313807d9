package model

// Subscription states a unified user can be in.
const (
	SubscriptionActive  = "active"
	SubscriptionTrial   = "trial"
	SubscriptionExpired = "expired"
	SubscriptionUnknown = "unknown"
)

// Field names in the billing (RevenueCat) export.
const (
	BillingUserID     = "app_user_id"
	BillingEmail      = "email"
	BillingStatus     = "status"
	BillingTrialStart = "trial_start_at_DT"
	BillingLastSeen   = "last_seen_at_DT"
	BillingPlatform   = "last_seen_platform"
	BillingCountry    = "last_seen_ip_country"
	BillingProduct    = "latest_product"
	BillingTotalSpent = "total_spent"
)

// Field names in the engagement (OneSignal) export.
const (
	EngagementUserID     = "external_id"
	EngagementEmail      = "email"
	EngagementLastActive = "last_active"
	EngagementTags       = "tags"
)

// User is the merged, normalized view of one person across both exports.
//
// TrialStart and LastSeen are YYYY-MM-DD when their source value could be
// parsed; otherwise they carry the raw source text unchanged. Tags is
// never nil so it always serializes as a JSON object.
type User struct {
	UserID        string         `json:"user_id"`
	Email         string         `json:"email"`
	Subscription  string         `json:"subscription"`
	TrialStart    string         `json:"trial_start"`
	LastSeen      string         `json:"last_seen"`
	Tags          map[string]any `json:"tags"`
	Platform      string         `json:"platform"`
	Country       string         `json:"country"`
	LatestProduct string         `json:"latest_product"`
	TotalSpent    float64        `json:"total_spent"`
}
