package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrder_CanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{"pending to paid", OrderStatusPending, OrderStatusPaid, true},
		{"pending to failed", OrderStatusPending, OrderStatusFailed, true},
		{"pending to canceled", OrderStatusPending, OrderStatusCanceled, false},
		{"paid to canceled", OrderStatusPaid, OrderStatusCanceled, true},
		{"paid to failed", OrderStatusPaid, OrderStatusFailed, false},
		{"failed to paid is disallowed", OrderStatusFailed, OrderStatusPaid, false},
		{"failed to canceled", OrderStatusFailed, OrderStatusCanceled, false},
		{"canceled is terminal", OrderStatusCanceled, OrderStatusPaid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Status: tt.from}
			assert.Equal(t, tt.allowed, o.CanTransition(tt.to))
		})
	}
}

func TestOrder_IsTerminal(t *testing.T) {
	assert.False(t, (&Order{Status: OrderStatusPending}).IsTerminal())
	assert.False(t, (&Order{Status: OrderStatusPaid}).IsTerminal())
	assert.True(t, (&Order{Status: OrderStatusFailed}).IsTerminal())
	assert.True(t, (&Order{Status: OrderStatusCanceled}).IsTerminal())
}

func TestSubscription_IsActiveLineage(t *testing.T) {
	active := []SubscriptionStatus{SubscriptionStatusTrialing, SubscriptionStatusActive, SubscriptionStatusPastDue}
	for _, st := range active {
		assert.True(t, (&Subscription{Status: st}).IsActiveLineage(), string(st))
	}
	for _, st := range []SubscriptionStatus{SubscriptionStatusCanceled, SubscriptionStatusExpired} {
		assert.False(t, (&Subscription{Status: st}).IsActiveLineage(), string(st))
	}
}

func TestSubscription_ShouldKeep_GraceBoundary(t *testing.T) {
	periodEnd := time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
	grace := 72 * time.Hour

	sub := &Subscription{
		Status:           SubscriptionStatusTrialing,
		CurrentPeriodEnd: periodEnd,
	}

	// One second before the grace window lapses: keep.
	assert.True(t, sub.ShouldKeep(periodEnd.Add(grace).Add(-time.Second), grace))
	// One second after: revoke.
	assert.False(t, sub.ShouldKeep(periodEnd.Add(grace).Add(time.Second), grace))
	// Non-active-lineage rows are never kept regardless of the window.
	sub.Status = SubscriptionStatusCanceled
	assert.False(t, sub.ShouldKeep(periodEnd.Add(-24*time.Hour), grace))
}

func TestSubscription_RevokeReason(t *testing.T) {
	assert.Equal(t, "canceled", (&Subscription{Status: SubscriptionStatusCanceled}).RevokeReason())
	assert.Equal(t, "expired", (&Subscription{Status: SubscriptionStatusExpired}).RevokeReason())
	assert.Equal(t, "expired", (&Subscription{Status: SubscriptionStatusTrialing}).RevokeReason())
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("abc123")
	b := Fingerprint("abc123")
	c := Fingerprint("abc124")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // sha256 hex
}

func TestResultPayload_OrderNo_AliasPriority(t *testing.T) {
	p := ResultPayload{"MerchantOrderNo": "ORD-2", "MerOrderNo": "ORD-1"}
	got, ok := p.OrderNo()
	assert.True(t, ok)
	assert.Equal(t, "ORD-1", got, "primary alias wins")

	p = ResultPayload{"order_no": "ORD-3"}
	got, ok = p.OrderNo()
	assert.True(t, ok)
	assert.Equal(t, "ORD-3", got)

	_, ok = ResultPayload{"Unrelated": "x"}.OrderNo()
	assert.False(t, ok)

	// Empty values do not satisfy an alias.
	p = ResultPayload{"MerOrderNo": "", "OrderNo": "ORD-4"}
	got, ok = p.OrderNo()
	assert.True(t, ok)
	assert.Equal(t, "ORD-4", got)
}

func TestResultPayload_IsSuccess(t *testing.T) {
	tests := []struct {
		name    string
		payload ResultPayload
		success bool
	}{
		{"explicit status token", ResultPayload{"Status": "SUCCESS"}, true},
		{"status token case-insensitive", ResultPayload{"Status": "success"}, true},
		{"respond code 00", ResultPayload{"RespondCode": "00"}, true},
		{"both present", ResultPayload{"Status": "SUCCESS", "RespondCode": "00"}, true},
		{"failed status", ResultPayload{"Status": "FAILED"}, false},
		{"non-success code", ResultPayload{"RespondCode": "99"}, false},
		{"field present but empty", ResultPayload{"Status": ""}, false},
		{"no status fields at all", ResultPayload{"MerOrderNo": "ORD-1"}, false},
		{"failed status but success code", ResultPayload{"Status": "FAILED", "RespondCode": "00"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.success, tt.payload.IsSuccess())
		})
	}
}

func TestNotification_DefaultIdempotencyKey(t *testing.T) {
	n := &Notification{OrderNo: "ORD-1", UserID: "U123"}
	assert.Equal(t, "ORD-1", n.DefaultIdempotencyKey())

	n = &Notification{UserID: "U123"}
	assert.Equal(t, "U123", n.DefaultIdempotencyKey())
}
