package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := LoginRequest{
		Username: "  admin  ",
		Password: "  pass1234  ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "admin", req.Username)
	assert.Equal(t, "pass1234", req.Password)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := CreateOrderRequest{
		OrderNo: "ord<script>alert('x')</script>",
		UserID:  "user-1",
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.OrderNo, "&lt;script&gt;")
	assert.NotContains(t, req.OrderNo, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	date := "  2025-01-01  "
	req := CreateOrderRequest{
		OrderNo:         "ord-1",
		FirstChargeDate: &date,
	}
	SanitizeStruct(&req)

	assert.Equal(t, "2025-01-01", *req.FirstChargeDate)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := CreateOrderRequest{OrderNo: "ord-1"}
	SanitizeStruct(&req)
	assert.Nil(t, req.FirstChargeDate)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"ORD20250110-001",
		"user_42",
		"premium.annual",
		"simple123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"ord 001",     // space
		"ord<001>",    // angle brackets
		"ord;DROP",    // semicolon
		"",            // empty
		"hello world", // space
		"ord\n001",    // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

// --- DTO conversion tests ---

func TestCreateOrderRequest_ToServiceRequest(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("trial days resolve to dates", func(t *testing.T) {
		dto := CreateOrderRequest{
			OrderNo:   "ord-1",
			UserID:    "u1",
			Plan:      "premium",
			Period:    "month",
			Amount:    299,
			TrialDays: 10,
		}
		req, err := dto.ToServiceRequest(now)
		require.NoError(t, err)
		require.NotNil(t, req.TrialEnd)
		assert.Equal(t, now, *req.TrialStart)
		assert.Equal(t, now.AddDate(0, 0, 10), *req.TrialEnd)
	})

	t.Run("no trial leaves dates nil", func(t *testing.T) {
		dto := CreateOrderRequest{OrderNo: "ord-1", UserID: "u1", Plan: "premium", Period: "month", Amount: 299}
		req, err := dto.ToServiceRequest(now)
		require.NoError(t, err)
		assert.Nil(t, req.TrialStart)
		assert.Nil(t, req.TrialEnd)
	})

	t.Run("first charge date parsed", func(t *testing.T) {
		date := "2025-02-15"
		dto := CreateOrderRequest{OrderNo: "ord-1", UserID: "u1", Plan: "premium", Period: "month", Amount: 299, FirstChargeDate: &date}
		req, err := dto.ToServiceRequest(now)
		require.NoError(t, err)
		require.NotNil(t, req.FirstChargeDate)
		assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), *req.FirstChargeDate)
	})

	t.Run("bad first charge date rejected", func(t *testing.T) {
		date := "15/02/2025"
		dto := CreateOrderRequest{OrderNo: "ord-1", UserID: "u1", Plan: "premium", Period: "month", Amount: 299, FirstChargeDate: &date}
		_, err := dto.ToServiceRequest(now)
		assert.Error(t, err)
	})
}
