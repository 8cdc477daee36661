package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"homehelper/internal/failure"
	"homehelper/internal/models"
)

var listKeys = []string{"bookings", "requests"}

// ProviderBookings lists the provider's scheduled bookings.
func (c *Client) ProviderBookings(ctx context.Context) ([]models.BookingRecord, error) {
	return c.list(ctx, "provider_bookings", "/provider/bookings", models.RequestScheduled)
}

func (c *Client) ProviderCompletedBookings(ctx context.Context) ([]models.BookingRecord, error) {
	return c.list(ctx, "provider_completed_bookings", "/provider/bookings?status=completed", models.RequestScheduled)
}

// InstantRequests lists open instant-hiring requests addressed to the provider.
func (c *Client) InstantRequests(ctx context.Context) ([]models.BookingRecord, error) {
	return c.list(ctx, "instant_requests", "/provider/instant-hiring/requests", models.RequestInstant)
}

func (c *Client) CustomerBookings(ctx context.Context) ([]models.BookingRecord, error) {
	return c.list(ctx, "customer_bookings", "/customer/booking/requests", models.RequestScheduled)
}

func (c *Client) AcceptBooking(ctx context.Context, id string) error {
	_, err := c.doPost(ctx, "accept_booking", bookingPath(id, "accept"), nil)
	return err
}

type rejectBody struct {
	RejectionReason string `json:"rejectionReason"`
}

// RejectBooking sends the reason as given; callers validate it first.
func (c *Client) RejectBooking(ctx context.Context, id, reason string) error {
	_, err := c.doPost(ctx, "reject_booking", bookingPath(id, "reject"), rejectBody{RejectionReason: reason})
	return err
}

func (c *Client) CompleteBooking(ctx context.Context, id string) error {
	_, err := c.doPost(ctx, "complete_booking", bookingPath(id, "complete"), nil)
	return err
}

func (c *Client) AcceptInstant(ctx context.Context, id string) error {
	_, err := c.doPost(ctx, "accept_instant", instantPath(id, "accept"), nil)
	return err
}

func (c *Client) RejectInstant(ctx context.Context, id string) error {
	_, err := c.doPost(ctx, "reject_instant", instantPath(id, "reject"), nil)
	return err
}

func (c *Client) CancelBooking(ctx context.Context, id string) error {
	_, err := c.doPost(ctx, "cancel_booking", fmt.Sprintf("/customer/booking/%s/cancel", url.PathEscape(id)), nil)
	return err
}

func (c *Client) list(ctx context.Context, endpoint, path string, requestType models.RequestType) ([]models.BookingRecord, error) {
	data, err := c.doGet(ctx, endpoint, path)
	if err != nil {
		return nil, err
	}
	return c.decodeRecords(data, requestType)
}

func (c *Client) decodeRecords(data json.RawMessage, requestType models.RequestType) ([]models.BookingRecord, error) {
	raws, err := models.DecodeRawList(data, listKeys...)
	if err != nil {
		c.logger.Warn().Err(err).Msg("unexpected list payload")
		return nil, failure.Backend(0, "")
	}
	return models.NormalizeAll(raws, requestType), nil
}

func bookingPath(id, action string) string {
	return fmt.Sprintf("/provider/bookings/%s/%s", url.PathEscape(id), action)
}

func instantPath(id, action string) string {
	return fmt.Sprintf("/provider/instant-hiring/requests/%s/%s", url.PathEscape(id), action)
}
