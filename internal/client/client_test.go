package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"homehelper/internal/config"
	"homehelper/internal/failure"
	"homehelper/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithToken(func() string { return "tok" })}, opts...)
	return New(config.APIConfig{BaseURL: srv.URL + "/api/v1/", TimeoutSeconds: 5}, opts...)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestProviderBookings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/provider/bookings", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, err := uuid.Parse(r.Header.Get(HeaderRequestID))
		assert.NoError(t, err)

		writeJSON(w, http.StatusOK, `{"success":true,"data":{"bookings":[
			{"bookingId":"b1","status":"pending","customer":{"name":"Ayesha Khan"},"totalAmount":"1500"},
			{"status":"pending"},
			{"bookingId":"b2","status":"completed","hourlyRate":400,"durationHours":2}
		]}}`)
	})

	records, err := c.ProviderBookings(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "b1", records[0].ID)
	assert.Equal(t, "Ayesha Khan", records[0].CustomerName())
	assert.Equal(t, 1500.0, records[0].Amount())
	assert.Equal(t, models.RequestScheduled, records[0].RequestType)
	assert.Equal(t, 800.0, records[1].Amount())
}

func TestListShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "BareArray", body: `{"success":true,"data":[{"requestId":"r1"}]}`, want: 1},
		{name: "Requests", body: `{"success":true,"data":{"requests":[{"requestId":"r1"},{"requestId":"r2"}]}}`, want: 2},
		{name: "NullData", body: `{"success":true,"data":null}`, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/provider/instant-hiring/requests", r.URL.Path)
				writeJSON(w, http.StatusOK, tt.body)
			})
			records, err := c.InstantRequests(context.Background())
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
			for _, rec := range records {
				assert.Equal(t, models.RequestInstant, rec.RequestType)
			}
		})
	}
}

func TestCompletedQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "completed", r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, `{"success":true,"data":[]}`)
	})
	records, err := c.ProviderCompletedBookings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestActions(t *testing.T) {
	tests := []struct {
		name string
		path string
		call func(c *Client) error
	}{
		{"Accept", "/api/v1/provider/bookings/b1/accept", func(c *Client) error { return c.AcceptBooking(context.Background(), "b1") }},
		{"Complete", "/api/v1/provider/bookings/b1/complete", func(c *Client) error { return c.CompleteBooking(context.Background(), "b1") }},
		{"AcceptInstant", "/api/v1/provider/instant-hiring/requests/r1/accept", func(c *Client) error { return c.AcceptInstant(context.Background(), "r1") }},
		{"RejectInstant", "/api/v1/provider/instant-hiring/requests/r1/reject", func(c *Client) error { return c.RejectInstant(context.Background(), "r1") }},
		{"Cancel", "/api/v1/customer/booking/b9/cancel", func(c *Client) error { return c.CancelBooking(context.Background(), "b9") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, tt.path, r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				writeJSON(w, http.StatusOK, `{"success":true,"data":{}}`)
			})
			require.NoError(t, tt.call(c))
		})
	}
}

func TestRejectBookingBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Not available that day", body["rejectionReason"])
		writeJSON(w, http.StatusOK, `{"success":true}`)
	})
	require.NoError(t, c.RejectBooking(context.Background(), "b1", "Not available that day"))
}

func TestBackendFailures(t *testing.T) {
	t.Run("SuccessFalse", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":false,"message":"Booking already accepted"}`)
		})
		err := c.AcceptBooking(context.Background(), "b1")
		require.Error(t, err)
		assert.Equal(t, failure.KindBackend, failure.KindOf(err))
		assert.Equal(t, "Booking already accepted", failure.MessageOf(err))
	})

	t.Run("Non2xxWithMessage", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusConflict, `{"success":false,"message":"Request no longer available"}`)
		})
		err := c.AcceptInstant(context.Background(), "r1")
		assert.Equal(t, failure.KindBackend, failure.KindOf(err))
		assert.Equal(t, http.StatusConflict, failure.CodeOf(err))
		assert.Equal(t, "Request no longer available", failure.MessageOf(err))
	})

	t.Run("Non2xxWithoutBody", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := c.ProviderBookings(context.Background())
		assert.Equal(t, failure.KindBackend, failure.KindOf(err))
		assert.Equal(t, failure.MessageBackend, failure.MessageOf(err))
	})

	t.Run("MalformedEnvelope", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `<html>`)
		})
		_, err := c.CustomerBookings(context.Background())
		assert.Equal(t, failure.KindBackend, failure.KindOf(err))
	})
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(config.APIConfig{BaseURL: srv.URL})
	c.timeout = 50 * time.Millisecond

	_, err := c.ProviderBookings(context.Background())
	require.Error(t, err)
	assert.Equal(t, failure.KindTimeout, failure.KindOf(err))
	assert.Equal(t, failure.MessageTimeout, failure.MessageOf(err))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(config.APIConfig{BaseURL: url})
	_, err := c.ProviderBookings(context.Background())
	require.Error(t, err)
	assert.Equal(t, failure.KindNetwork, failure.KindOf(err))
	assert.Equal(t, failure.MessageNetwork, failure.MessageOf(err))
}

func TestNoTokenNoAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"success":true,"data":[]}`)
	}))
	defer srv.Close()

	c := New(config.APIConfig{BaseURL: srv.URL}, WithToken(func() string { return "" }))
	_, err := c.CustomerBookings(context.Background())
	require.NoError(t, err)
}

func TestSpendLeaderboardCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/v1/customer/insights/spend-leaderboard", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"success":true,"data":{
			"leaders":[{"userId":"u1","name":"A","totalSpend":9000},{"userId":"u2","name":"B","totalSpend":5000}],
			"viewer":{"lifetimeSpend":5000,"rank":2,"totalCustomers":40,"percentile":5,"nextTarget":4000}
		}}`)
	})
	c.UseRedisCache(rdb, time.Minute)

	ctx := context.Background()
	board, err := c.SpendLeaderboard(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, board.Leaders, 2)
	require.NotNil(t, board.Viewer)
	assert.Equal(t, 40, board.Viewer.TotalCustomers)

	again, err := c.SpendLeaderboard(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, board, again)
	assert.Equal(t, int32(1), hits.Load())
	assert.True(t, mr.Exists("leaderboard:u2"))

	insights, ok := again.Insights(1)
	require.True(t, ok)
	assert.Equal(t, 2, insights.Rank)
	assert.Len(t, insights.Board, 1)
}

func TestBookingListsNotCached(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, `{"success":true,"data":[{"bookingId":"b1"}]}`)
	})
	c.UseRedisCache(rdb, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := c.ProviderBookings(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), hits.Load())
	assert.Empty(t, mr.Keys())
}

func TestProviderReviews(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sub1", r.URL.Query().Get("subcategoryId"))
		switch r.URL.Path {
		case "/api/v1/providers/p1/reviews":
			writeJSON(w, http.StatusOK, `{"success":true,"data":{"reviews":[{"reviewId":"rv1","rating":5,"comment":"Great"}],"averageRating":4.5}}`)
		case "/api/v1/providers/p1/reviews/sentiment":
			writeJSON(w, http.StatusOK, `{"success":true,"data":{"positive":80,"neutral":15,"negative":5}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	got, err := c.ProviderReviews(context.Background(), "p1", "sub1")
	require.NoError(t, err)
	require.Len(t, got.Reviews, 1)
	assert.Equal(t, 4.5, got.AverageScore)
	assert.Equal(t, 80.0, got.Sentiment.Positive)
	assert.Equal(t, 5.0, got.Sentiment.Negative)
}

func TestRateLimitedClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"data":[]}`)
	}))
	defer srv.Close()

	c := New(config.APIConfig{BaseURL: srv.URL, RateLimit: config.APIRateLimitConfig{RPS: 1000, Burst: 1}})
	require.NotNil(t, c.limiter)
	for i := 0; i < 3; i++ {
		_, err := c.CustomerBookings(context.Background())
		require.NoError(t, err)
	}
}
