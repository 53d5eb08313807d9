// Package service contains the merge and query logic for unified users.
//
// The service reads both exports through a repository.SourceRepository,
// joins them by user id and applies the query filters. It knows nothing
// about HTTP; the handler package translates query parameters into a
// Filter and the result into JSON.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rs/xid"

	"github.com/tinychef/UserData/internal/apperror"
	"github.com/tinychef/UserData/internal/metrics"
	"github.com/tinychef/UserData/internal/model"
	"github.com/tinychef/UserData/internal/normalize"
	"github.com/tinychef/UserData/internal/repository"
)

// Sources names the two exports the service joins.
type Sources struct {
	Billing    string // RevenueCat export
	Engagement string // OneSignal export
}

// UserService merges billing and engagement records into model.User values.
type UserService struct {
	repo    repository.SourceRepository
	sources Sources
	metrics *metrics.Registry
	logger  *slog.Logger
}

// NewUserService creates a UserService. m may be nil, in which case no
// metrics are recorded.
func NewUserService(repo repository.SourceRepository, sources Sources, m *metrics.Registry, logger *slog.Logger) *UserService {
	return &UserService{
		repo:    repo,
		sources: sources,
		metrics: m,
		logger:  logger,
	}
}

// userIndex keeps unified users keyed by id in first-insertion order.
// Putting an id that is already present replaces the stored user in place
// (overwrite-on-duplicate) without moving it.
type userIndex struct {
	order []string
	byID  map[string]*model.User
}

func newUserIndex(capacity int) *userIndex {
	return &userIndex{
		order: make([]string, 0, capacity),
		byID:  make(map[string]*model.User, capacity),
	}
}

func (x *userIndex) get(id string) (*model.User, bool) {
	u, ok := x.byID[id]
	return u, ok
}

func (x *userIndex) put(u *model.User) {
	if _, exists := x.byID[u.UserID]; !exists {
		x.order = append(x.order, u.UserID)
	}
	x.byID[u.UserID] = u
}

func (x *userIndex) values() []model.User {
	out := make([]model.User, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, *x.byID[id])
	}
	return out
}

// engagementIndex is the engagement lookup: id → last record seen for it,
// iterated in the order ids first appeared.
type engagementIndex struct {
	order []string
	byID  map[string]model.RawRecord
}

func buildEngagementIndex(records []model.RawRecord) *engagementIndex {
	idx := &engagementIndex{byID: make(map[string]model.RawRecord, len(records))}
	for _, rec := range records {
		id := rec.String(model.EngagementUserID)
		if id == "" {
			continue
		}
		if _, exists := idx.byID[id]; !exists {
			idx.order = append(idx.order, id)
		}
		idx.byID[id] = rec
	}
	return idx
}

// Merge loads both exports and full-outer-joins them by user id.
//
// Load failures are never returned: a missing or malformed export counts
// as having no records. Only context cancellation is reported.
//
// JOIN ORDER:
// Billing is the primary side. Its users come first, in the order their
// ids first appear in the export, and carry the billing-only fields
// (platform, country, product, total spent). Engagement then either
// enriches an existing user or appends a new one with status "unknown",
// since subscription state only exists in billing data.
//
// DUPLICATE IDS:
// Within one export the LAST record for an id wins, but the id keeps the
// position of its FIRST appearance. That is why both sides go through an
// ordered index instead of a plain map (which would lose the order) or a
// slice (which would keep both copies).
func (s *UserService) Merge(ctx context.Context) ([]model.User, error) {
	runID := xid.New().String()
	logger := s.logger.With(slog.String("merge_id", runID))

	// === 1. LOAD ===
	// Sequential: two small local files, and a cancelled ctx stops before
	// the second read.
	billing, err := s.loadOrEmpty(ctx, logger, s.sources.Billing)
	if err != nil {
		return nil, err
	}
	engagement, err := s.loadOrEmpty(ctx, logger, s.sources.Engagement)
	if err != nil {
		return nil, err
	}

	// === 2. ENGAGEMENT LOOKUP ===
	lookup := buildEngagementIndex(engagement)
	logger.Debug("engagement lookup built", slog.Int("ids", len(lookup.order)))

	// === 3. BILLING USERS ===
	users := newUserIndex(len(billing) + len(lookup.order))
	for _, rec := range billing {
		id := rec.String(model.BillingUserID)
		if id == "" {
			continue
		}
		users.put(billingUser(id, rec))
	}
	billingCount := len(users.order)

	// === 4. JOIN ENGAGEMENT ===
	var joined, engagementOnly int
	for _, id := range lookup.order {
		rec := lookup.byID[id]
		if u, ok := users.get(id); ok {
			mergeEngagement(u, rec)
			joined++
			continue
		}
		users.put(engagementUser(id, rec))
		engagementOnly++
	}

	result := users.values()

	logger.Info("merge completed",
		slog.Int("billing_users", billingCount),
		slog.Int("merged_with_billing", joined),
		slog.Int("engagement_only", engagementOnly),
		slog.Int("total_users", len(result)),
	)
	if s.metrics != nil {
		s.metrics.MergedUsers.WithLabelValues(metrics.OriginBoth).Add(float64(joined))
		s.metrics.MergedUsers.WithLabelValues(metrics.OriginBillingOnly).Add(float64(billingCount - joined))
		s.metrics.MergedUsers.WithLabelValues(metrics.OriginEngagementOnly).Add(float64(engagementOnly))
		s.metrics.LastMergeSize.Set(float64(len(result)))
	}

	return result, nil
}

// billingUser builds a unified user from a billing record alone.
func billingUser(id string, rec model.RawRecord) *model.User {
	return &model.User{
		UserID:        id,
		Email:         rec.String(model.BillingEmail),
		Subscription:  normalize.SubscriptionStatus(rec.String(model.BillingStatus)),
		TrialStart:    normalize.Date(rec[model.BillingTrialStart]),
		LastSeen:      normalize.Date(rec[model.BillingLastSeen]),
		Tags:          map[string]any{},
		Platform:      rec.String(model.BillingPlatform),
		Country:       rec.String(model.BillingCountry),
		LatestProduct: rec.String(model.BillingProduct),
		TotalSpent:    rec.Float(model.BillingTotalSpent),
	}
}

// engagementUser builds a unified user for an id the billing export does
// not know about.
func engagementUser(id string, rec model.RawRecord) *model.User {
	return &model.User{
		UserID:       id,
		Email:        rec.String(model.EngagementEmail),
		Subscription: model.SubscriptionUnknown,
		LastSeen:     normalize.Date(rec[model.EngagementLastActive]),
		Tags:         rec.Object(model.EngagementTags),
	}
}

// mergeEngagement folds an engagement record into a billing-backed user.
// Tags are replaced wholesale, the email is replaced when the record
// carries one, and last_seen moves forward when the engagement date sorts
// after the billing one.
func mergeEngagement(u *model.User, rec model.RawRecord) {
	u.Tags = rec.Object(model.EngagementTags)
	if email, ok := rec.StringOK(model.EngagementEmail); ok {
		u.Email = email
	}
	if seen := normalize.Date(rec[model.EngagementLastActive]); seen > u.LastSeen {
		u.LastSeen = seen
	}
}

// loadOrEmpty is the boundary between the explicit load result and the
// degrade-to-empty behaviour callers see. Every load error except context
// cancellation is logged, counted and turned into an empty record list.
func (s *UserService) loadOrEmpty(ctx context.Context, logger *slog.Logger, name string) ([]model.RawRecord, error) {
	records, err := s.repo.Load(ctx, name)
	if err == nil {
		s.recordLoad(name, metrics.LoadOK, len(records))
		return records, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	result := metrics.LoadError
	switch {
	case errors.Is(err, apperror.ErrSourceMissing):
		result = metrics.LoadMissing
	case errors.Is(err, apperror.ErrSourceMalformed):
		result = metrics.LoadMalformed
	}
	logger.Warn("source unavailable, treating as empty",
		slog.String("source", name),
		slog.String("reason", result),
		slog.String("error", err.Error()),
	)
	s.recordLoad(name, result, 0)
	return []model.RawRecord{}, nil
}

func (s *UserService) recordLoad(name, result string, n int) {
	if s.metrics == nil {
		return
	}
	s.metrics.SourceLoads.WithLabelValues(name, result).Inc()
	s.metrics.SourceRecords.WithLabelValues(name).Set(float64(n))
}
