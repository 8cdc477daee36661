package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
	ImageURL string `json:"image_url,omitempty"`
}

// Session is the authenticated context a tracker is constructed with.
type Session struct {
	Token   string    `json:"token"`
	User    User      `json:"user"`
	SavedAt time.Time `json:"saved_at"`
}

// ExpiresAt reads the exp claim of the bearer token. The signature is not
// checked: the backend verifies the token, the client only needs the deadline.
func (s *Session) ExpiresAt() (time.Time, bool) {
	if s == nil || s.Token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Valid reports whether the session has a token that has not expired at now.
// Tokens without an exp claim are treated as valid.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	exp, ok := s.ExpiresAt()
	if !ok {
		return true
	}
	return now.Before(exp)
}

type LeaderboardEntry struct {
	UserID     string  `json:"userId"`
	Name       string  `json:"name"`
	TotalSpend float64 `json:"totalSpend"`
}

type SpendInsights struct {
	LifetimeSpend float64            `json:"lifetime_spend"`
	Rank          int                `json:"rank"`
	TotalUsers    int                `json:"total_users"`
	Percentile    int                `json:"percentile"`
	NextTarget    float64            `json:"next_target"`
	Board         []LeaderboardEntry `json:"board"`
}

// SentimentDistribution is computed by the backend and only displayed here.
type SentimentDistribution struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

type Review struct {
	ID           string    `json:"reviewId"`
	Rating       float64   `json:"rating"`
	Comment      string    `json:"comment"`
	CustomerName string    `json:"customerName"`
	Sentiment    string    `json:"sentiment,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ProviderReviews struct {
	Reviews      []Review              `json:"reviews"`
	AverageScore float64               `json:"averageRating"`
	Sentiment    SentimentDistribution `json:"sentimentDistribution"`
}

// LeaderboardViewer is the backend's own ranking of the current customer.
type LeaderboardViewer struct {
	LifetimeSpend  float64 `json:"lifetimeSpend"`
	Rank           int     `json:"rank"`
	TotalCustomers int     `json:"totalCustomers"`
	Percentile     int     `json:"percentile"`
	NextTarget     float64 `json:"nextTarget"`
}

type Leaderboard struct {
	Leaders []LeaderboardEntry `json:"leaders"`
	Viewer  *LeaderboardViewer `json:"viewer,omitempty"`
}

// Insights prefers the backend's viewer ranking and keeps the top of the board.
func (l *Leaderboard) Insights(size int) (SpendInsights, bool) {
	if l == nil || l.Viewer == nil {
		return SpendInsights{}, false
	}
	board := l.Leaders
	if size > 0 && len(board) > size {
		board = board[:size]
	}
	return SpendInsights{
		LifetimeSpend: l.Viewer.LifetimeSpend,
		Rank:          l.Viewer.Rank,
		TotalUsers:    l.Viewer.TotalCustomers,
		Percentile:    l.Viewer.Percentile,
		NextTarget:    l.Viewer.NextTarget,
		Board:         board,
	}, true
}
