package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tinychef/UserData/internal/apperror"
	"github.com/tinychef/UserData/internal/model"
	"github.com/tinychef/UserData/internal/normalize"
)

// tagSampleSize is how many users are dumped to the debug log when a tag
// filter matches nothing.
const tagSampleSize = 5

// Filter narrows a merged user list. Every field is optional; the zero
// Filter keeps everything.
type Filter struct {
	// StartDate and EndDate bound last_seen inclusively. The range only
	// applies when both are set.
	StartDate string
	EndDate   string

	// SubscriptionStatus keeps users whose status equals it, ignoring case.
	SubscriptionStatus string

	// Tag is the raw "key:value" tag filter.
	Tag string
}

// TagFilter is a parsed "key:value" tag filter.
type TagFilter struct {
	Key   string
	Value string
}

// ParseTagFilter splits raw on ':' and requires exactly two parts. The key
// or value may be empty ("plan:" matches an empty value).
func ParseTagFilter(raw string) (TagFilter, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return TagFilter{}, apperror.ValidationFailed("tag_filter",
			"tag filter must have the form key:value")
	}
	return TagFilter{Key: parts[0], Value: parts[1]}, nil
}

// Matches reports whether some tag key contains f.Key (case-insensitive)
// and that tag's value, rendered by normalize.TagText, equals f.Value
// (case-insensitive). A null tag therefore matches "key:none".
func (f TagFilter) Matches(tags map[string]any) bool {
	key := strings.ToLower(f.Key)
	for k, v := range tags {
		if strings.Contains(strings.ToLower(k), key) && strings.EqualFold(normalize.TagText(v), f.Value) {
			return true
		}
	}
	return false
}

// List merges both exports and applies f.
func (s *UserService) List(ctx context.Context, f Filter) ([]model.User, error) {
	users, err := s.Merge(ctx)
	if err != nil {
		return nil, err
	}
	return s.Apply(users, f), nil
}

// Apply runs the date range, subscription and tag filters, in that order,
// over users. A malformed tag filter is logged and skipped.
func (s *UserService) Apply(users []model.User, f Filter) []model.User {
	s.logger.Debug("applying filters",
		slog.String("start_date", f.StartDate),
		slog.String("end_date", f.EndDate),
		slog.String("subscription_status", f.SubscriptionStatus),
		slog.String("tag_filter", f.Tag),
		slog.Int("users", len(users)),
	)
	out := users

	if f.StartDate != "" && f.EndDate != "" {
		out = keep(out, func(u model.User) bool {
			if u.LastSeen == "" {
				return false
			}
			day := normalize.DateToken(u.LastSeen)
			return f.StartDate <= day && day <= f.EndDate
		})
		s.logger.Debug("date filter applied", slog.Int("users", len(out)))
	}

	if f.SubscriptionStatus != "" {
		out = keep(out, func(u model.User) bool {
			return strings.EqualFold(u.Subscription, f.SubscriptionStatus)
		})
		s.logger.Debug("subscription filter applied", slog.Int("users", len(out)))
	}

	if f.Tag != "" {
		tf, err := ParseTagFilter(f.Tag)
		if err != nil {
			s.rejectFilter("tag_filter", f.Tag, err)
		} else {
			out = keep(out, func(u model.User) bool { return tf.Matches(u.Tags) })
			s.logger.Debug("tag filter applied", slog.Int("users", len(out)))
			if len(out) == 0 {
				s.logTagSample(users, tf)
			}
		}
	}

	return out
}

func (s *UserService) rejectFilter(name, value string, err error) {
	msg := err.Error()
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	s.logger.Warn("ignoring malformed filter",
		slog.String("filter", name),
		slog.String("value", value),
		slog.String("error", msg),
	)
	if s.metrics != nil {
		s.metrics.FilterRejected.WithLabelValues(name).Inc()
	}
}

// logTagSample dumps the tags of the first few users so an empty tag
// filter result can be diagnosed from the logs.
func (s *UserService) logTagSample(users []model.User, tf TagFilter) {
	if !s.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	s.logger.Debug("tag filter matched no users",
		slog.String("key", tf.Key),
		slog.String("value", tf.Value),
	)
	for i, u := range users {
		if i == tagSampleSize {
			break
		}
		s.logger.Debug("sample user tags",
			slog.String("user_id", u.UserID),
			slog.String("email", u.Email),
			slog.Any("tags", u.Tags),
		)
	}
}

// keep returns the users for which pred holds, in order. The result is
// never nil.
func keep(users []model.User, pred func(model.User) bool) []model.User {
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if pred(u) {
			out = append(out, u)
		}
	}
	return out
}
