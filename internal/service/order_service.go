package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"subscription-engine/internal/core/domain"
	"subscription-engine/internal/core/ports"
	"subscription-engine/pkg/apperror"
)

// OrderServiceImpl registers subscription-creation orders ahead of the
// gateway redirect, and answers the status poll the result page uses.
type OrderServiceImpl struct {
	orders ports.OrderRepository
	log    zerolog.Logger
	now    func() time.Time
}

func NewOrderService(orders ports.OrderRepository, log zerolog.Logger) *OrderServiceImpl {
	return &OrderServiceImpl{
		orders: orders,
		log:    log.With().Str("component", "order_service").Logger(),
		now:    time.Now,
	}
}

func (s *OrderServiceImpl) CreateOrder(ctx context.Context, req ports.CreateOrderRequest) (*domain.Order, error) {
	existing, err := s.orders.GetByOrderNo(ctx, req.OrderNo)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if existing != nil {
		return nil, apperror.ErrDuplicateOrder()
	}

	now := s.now().UTC()
	order := &domain.Order{
		OrderNo:         req.OrderNo,
		UserID:          req.UserID,
		Plan:            req.Plan,
		Period:          req.Period,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          domain.OrderStatusPending,
		TrialStart:      req.TrialStart,
		TrialEnd:        req.TrialEnd,
		FirstChargeDate: req.FirstChargeDate,
		PeriodType:      req.PeriodType,
		PeriodPoint:     req.PeriodPoint,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if order.Currency == "" {
		order.Currency = "TWD"
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().Str("order_no", order.OrderNo).
		Str("user_id", order.UserID).
		Str("plan", order.Plan).
		Msg("order created")
	return order, nil
}

func (s *OrderServiceImpl) GetOrder(ctx context.Context, orderNo string) (*domain.Order, error) {
	order, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	return order, nil
}
