package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tinychef/UserData/internal/apperror"
	"github.com/tinychef/UserData/internal/model"
)

// filterFixture is a small merged population covering every filter.
func filterFixture() []model.User {
	return []model.User{
		{UserID: "a", Subscription: "active", LastSeen: "2023-11-01", Tags: map[string]any{"plan": "pro"}},
		{UserID: "b", Subscription: "trial", LastSeen: "2023-11-15", Tags: map[string]any{"Plan_Tier": "PRO"}},
		{UserID: "c", Subscription: "expired", LastSeen: "2023-12-01", Tags: map[string]any{"plan": "free"}},
		{UserID: "d", Subscription: "unknown", LastSeen: "", Tags: map[string]any{"sessions": json.Number("3")}},
		{UserID: "e", Subscription: "trial", LastSeen: "2023-10-31", Tags: map[string]any{"beta": true}},
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{
			name:   "zero filter keeps everything",
			filter: Filter{},
			want:   []string{"a", "b", "c", "d", "e"},
		},
		{
			name:   "date range is inclusive and drops empty last_seen",
			filter: Filter{StartDate: "2023-11-01", EndDate: "2023-11-15"},
			want:   []string{"a", "b"},
		},
		{
			name:   "start date alone is ignored",
			filter: Filter{StartDate: "2023-11-01"},
			want:   []string{"a", "b", "c", "d", "e"},
		},
		{
			name:   "end date alone is ignored",
			filter: Filter{EndDate: "2023-11-01"},
			want:   []string{"a", "b", "c", "d", "e"},
		},
		{
			name:   "subscription matches exactly",
			filter: Filter{SubscriptionStatus: "trial"},
			want:   []string{"b", "e"},
		},
		{
			name:   "subscription ignores case",
			filter: Filter{SubscriptionStatus: "TRIAL"},
			want:   []string{"b", "e"},
		},
		{
			name:   "tag key is a case-insensitive substring, value case-insensitive",
			filter: Filter{Tag: "plan:pro"},
			want:   []string{"a", "b"},
		},
		{
			name:   "numeric tag value compares by its text",
			filter: Filter{Tag: "session:3"},
			want:   []string{"d"},
		},
		{
			name:   "boolean tag value compares by its text",
			filter: Filter{Tag: "beta:TRUE"},
			want:   []string{"e"},
		},
		{
			name:   "tag filter without separator is ignored",
			filter: Filter{Tag: "plan"},
			want:   []string{"a", "b", "c", "d", "e"},
		},
		{
			name:   "tag filter with extra separator is ignored",
			filter: Filter{Tag: "plan:pro:x"},
			want:   []string{"a", "b", "c", "d", "e"},
		},
		{
			name:   "tag filter with no matches",
			filter: Filter{Tag: "plan:enterprise"},
			want:   []string{},
		},
		{
			name:   "filters combine in order",
			filter: Filter{StartDate: "2023-11-01", EndDate: "2023-12-31", SubscriptionStatus: "trial", Tag: "plan:pro"},
			want:   []string{"b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t, nil, nil)

			got := svc.Apply(filterFixture(), tt.filter)
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApply_TagValueTextFollowsDashboardRules(t *testing.T) {
	users := []model.User{
		{UserID: "null", Tags: map[string]any{"flag": nil}},
		{UserID: "float", Tags: map[string]any{"ratio": json.Number("2.50")}},
		{UserID: "list", Tags: map[string]any{"segments": []any{"a", json.Number("1")}}},
	}

	tests := []struct {
		tag  string
		want []string
	}{
		{tag: "flag:None", want: []string{"null"}},
		{tag: "flag:none", want: []string{"null"}},
		{tag: "flag:null", want: []string{}},
		{tag: "ratio:2.5", want: []string{"float"}},
		{tag: "ratio:2.50", want: []string{}},
		{tag: "segments:['a', 1]", want: []string{"list"}},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			svc, _, _ := newTestService(t, nil, nil)

			got := svc.Apply(users, Filter{Tag: tt.tag})
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("Apply(%q) mismatch (-want +got):\n%s", tt.tag, diff)
			}
		})
	}
}

func TestApply_MalformedTagFilterIsCounted(t *testing.T) {
	svc, _, reg := newTestService(t, nil, nil)

	svc.Apply(filterFixture(), Filter{Tag: "nocolon"})

	if got := testutil.ToFloat64(reg.FilterRejected.WithLabelValues("tag_filter")); got != 1 {
		t.Errorf("rejected tag filters = %v, want 1", got)
	}
}

func TestApply_DateRangeUsesTokenBeforeWhitespace(t *testing.T) {
	svc, _, _ := newTestService(t, nil, nil)
	users := []model.User{{UserID: "raw", LastSeen: "2023-11-02 10:00", Tags: map[string]any{}}}

	got := svc.Apply(users, Filter{StartDate: "2023-11-01", EndDate: "2023-11-02"})
	if diff := cmp.Diff([]string{"raw"}, ids(got)); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTagFilter(t *testing.T) {
	tests := []struct {
		raw     string
		want    TagFilter
		wantErr bool
	}{
		{raw: "plan:pro", want: TagFilter{Key: "plan", Value: "pro"}},
		{raw: "plan:", want: TagFilter{Key: "plan", Value: ""}},
		{raw: ":pro", want: TagFilter{Key: "", Value: "pro"}},
		{raw: "plan", wantErr: true},
		{raw: "a:b:c", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTagFilter(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, apperror.ErrValidation) {
					t.Fatalf("ParseTagFilter(%q) error = %v, want ErrValidation", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTagFilter(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseTagFilter(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestList_MergesThenFilters(t *testing.T) {
	svc, _, _ := newTestService(t,
		[]model.RawRecord{
			{"app_user_id": "u1", "status": "active", "last_seen_at_DT": "11/20/2023"},
			{"app_user_id": "u3", "status": "Free_Trial", "last_seen_at_DT": "11/21/2023"},
		},
		[]model.RawRecord{
			{"external_id": "u1", "tags": map[string]any{"plan": "pro"}},
			{"external_id": "u2", "last_active": "11/22/2023 08:00", "tags": map[string]any{"plan": "free"}},
		},
	)

	got, err := svc.List(context.Background(), Filter{SubscriptionStatus: "trial"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff([]string{"u3"}, ids(got)); diff != "" {
		t.Errorf("List(trial) mismatch (-want +got):\n%s", diff)
	}

	got, err = svc.List(context.Background(), Filter{Tag: "plan:pro"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff([]string{"u1"}, ids(got)); diff != "" {
		t.Errorf("List(plan:pro) mismatch (-want +got):\n%s", diff)
	}
}
