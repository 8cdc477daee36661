package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"homehelper/internal/failure"
	"homehelper/internal/models"
)

// SpendLeaderboard fetches the customer spend leaderboard. The response
// depends on the caller, so the cache key is scoped by userID.
func (c *Client) SpendLeaderboard(ctx context.Context, userID string) (*models.Leaderboard, error) {
	cacheKey := fmt.Sprintf("leaderboard:%s", userID)
	var board models.Leaderboard

	if c.readCache(ctx, cacheKey, &board) {
		return &board, nil
	}

	data, err := c.doGet(ctx, "spend_leaderboard", "/customer/insights/spend-leaderboard")
	if err != nil {
		return nil, err
	}
	if err := c.decodeData(data, &board); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, board)
	return &board, nil
}

// ProviderReviews fetches reviews and the backend-computed sentiment
// distribution for a provider, optionally narrowed to one subcategory.
func (c *Client) ProviderReviews(ctx context.Context, providerID, subcategoryID string) (*models.ProviderReviews, error) {
	cacheKey := fmt.Sprintf("reviews:%s:%s", providerID, subcategoryID)
	var out models.ProviderReviews

	if c.readCache(ctx, cacheKey, &out) {
		return &out, nil
	}

	query := ""
	if subcategoryID != "" {
		query = "?subcategoryId=" + url.QueryEscape(subcategoryID)
	}
	base := fmt.Sprintf("/providers/%s/reviews", url.PathEscape(providerID))

	data, err := c.doGet(ctx, "provider_reviews", base+query)
	if err != nil {
		return nil, err
	}
	var reviews struct {
		Reviews       []models.Review `json:"reviews"`
		AverageRating float64         `json:"averageRating"`
	}
	if err := c.decodeData(data, &reviews); err != nil {
		return nil, err
	}
	out.Reviews = reviews.Reviews
	out.AverageScore = reviews.AverageRating

	data, err = c.doGet(ctx, "provider_sentiment", base+"/sentiment"+query)
	if err != nil {
		return nil, err
	}
	if err := c.decodeData(data, &out.Sentiment); err != nil {
		return nil, err
	}

	c.writeCache(ctx, cacheKey, out)
	return &out, nil
}

func (c *Client) decodeData(data json.RawMessage, out any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn().Err(err).Msg("unexpected payload")
		return failure.Backend(0, "")
	}
	return nil
}
