package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tinychef/UserData/internal/model"
	"github.com/tinychef/UserData/internal/service"
)

// Query parameters accepted by GET /api/users.
const (
	ParamStartDate          = "start_date"
	ParamEndDate            = "end_date"
	ParamSubscriptionStatus = "subscription_status"
	ParamTagFilter          = "tag_filter"
)

// UserLister produces the filtered, merged user list.
// *service.UserService satisfies it.
type UserLister interface {
	List(ctx context.Context, f service.Filter) ([]model.User, error)
}

// UserHandler serves the merged user listing.
type UserHandler struct {
	users  UserLister
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users UserLister, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// HandleList returns the merged users matching the query filters.
//
// HTTP: GET /api/users?start_date=&end_date=&subscription_status=&tag_filter=
//
// Every parameter is optional. Data problems (missing exports, a bad tag
// filter) shrink the result instead of failing the request.
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	f := FilterFromQuery(r)

	h.logger.Info("user list requested",
		slog.String(ParamStartDate, f.StartDate),
		slog.String(ParamEndDate, f.EndDate),
		slog.String(ParamSubscriptionStatus, f.SubscriptionStatus),
		slog.String(ParamTagFilter, f.Tag),
	)

	users, err := h.users.List(r.Context(), f)
	if err != nil {
		h.logger.Error("failed to list users", slog.String("error", err.Error()))
		writeError(w, h.logger, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}

	h.logger.Info("returning users", slog.Int("count", len(users)))
	writeJSON(w, h.logger, http.StatusOK, users)
}

// FilterFromQuery reads the listing filters from the request's query string.
func FilterFromQuery(r *http.Request) service.Filter {
	q := r.URL.Query()
	return service.Filter{
		StartDate:          q.Get(ParamStartDate),
		EndDate:            q.Get(ParamEndDate),
		SubscriptionStatus: q.Get(ParamSubscriptionStatus),
		Tag:                q.Get(ParamTagFilter),
	}
}
