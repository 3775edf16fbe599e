package postgres

import (
	"github.com/lumacart/order-gateway/internal/domain"
)

// toDomainModel: maps db model to domain entity
func toDomainModel(m OrderModel) *domain.Order {
	return domain.Reconstitute(
		m.ID,
		m.OrderNo,
		m.ProductName,
		m.AmountCents,
		domain.OrderStatus(m.Status),
		m.RefundNo,
		m.TransactionID,
		m.RefundID,
		m.CreatedAt,
		m.UpdatedAt,
	)
}

// toDBModel: maps domain entity to db model
func toDBModel(o *domain.Order) *OrderModel {
	return &OrderModel{
		ID:            o.ID,
		OrderNo:       o.OrderNo,
		ProductName:   o.ProductName,
		AmountCents:   o.AmountCents,
		Status:        string(o.Status),
		RefundNo:      o.RefundNo,
		TransactionID: o.TransactionID,
		RefundID:      o.RefundID,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}
