package models

import "strings"

// Normalize converts one backend object into the canonical record. All alias
// resolution happens here.
func Normalize(raw RawRecord, requestType RequestType) BookingRecord {
	rec := BookingRecord{
		ID:                raw.String("bookingId", "requestId", "id", "_id"),
		RequestType:       requestType,
		Status:            normalizeStatus(raw.String("status")),
		RequestedDateTime: raw.Time("requestedDateTime", "scheduledAt", "requestedDate"),
		BookingExpiresAt:  raw.Time("bookingExpiresAt", "expiresAt"),
		ServiceName:       raw.String("service.subcategory.name", "subcategoryName", "serviceName", "service.name"),
		ServiceAddress:    raw.String("serviceAddress", "address"),
		PaymentStatus:     raw.String("paymentStatus"),
		Distance:          raw.String("distance"),
		CreatedAt:         raw.Time("createdAt"),
		StatusUpdatedAt:   raw.Time("statusUpdatedAt", "updatedAt"),
	}

	if t := raw.String("requestType", "type"); strings.EqualFold(t, string(RequestInstant)) {
		rec.RequestType = RequestInstant
	}
	if rec.RequestType == "" {
		rec.RequestType = RequestScheduled
	}

	if total, ok := raw.Float("totalAmount", "amount"); ok {
		total = sanitizeAmount(total)
		rec.TotalAmount = &total
	}
	if rate, ok := raw.Float("hourlyRate", "service.hourlyRate", "rate"); ok {
		rec.HourlyRate = sanitizeAmount(rate)
	}
	if hours, ok := raw.Float("durationHours", "hours", "duration"); ok {
		rec.DurationHours = sanitizeAmount(hours)
	}

	rec.Customer = normalizeParty(raw.Map("customer"), raw.String("customerName"), raw.String("customerId"))
	rec.Provider = normalizeParty(raw.Map("provider"), raw.String("providerName"), raw.String("providerId"))

	for _, p := range raw.Slice("payments") {
		amount, _ := p.Float("amount")
		rec.Payments = append(rec.Payments, Payment{
			Amount: sanitizeAmount(amount),
			Status: p.String("status", "paymentStatus"),
		})
	}

	return rec
}

// NormalizeAll normalizes a list, dropping objects without an id.
func NormalizeAll(raws []RawRecord, requestType RequestType) []BookingRecord {
	out := make([]BookingRecord, 0, len(raws))
	for _, raw := range raws {
		rec := Normalize(raw, requestType)
		if rec.ID == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func normalizeParty(obj RawRecord, flatName, flatID string) *Party {
	if obj == nil && flatName == "" && flatID == "" {
		return nil
	}
	p := &Party{
		ID:       obj.String("userId", "providerId", "customerId", "id"),
		Name:     obj.String("name", "fullName"),
		ImageURL: obj.String("imageUrl", "profileImageUrl", "photo", "profileImage"),
	}
	if p.Name == "" {
		p.Name = flatName
	}
	if p.ID == "" {
		p.ID = flatID
	}
	return p
}

func normalizeStatus(s string) Status {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StatusPending
	}
	if s == "canceled" {
		return StatusCancelled
	}
	return Status(s)
}
