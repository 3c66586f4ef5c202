package repository

import (
	"context"

	repo "templateshop/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders         repo.OrderRepository
	orderItems     repo.OrderItemRepository
	carts          repo.CartRepository
	cartItems      repo.CartItemRepository
	templates      repo.TemplateRepository
	paymentIntents repo.PaymentIntentRepository
	outbox         repo.OutboxRepository
	auditLogs      repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository                 { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository         { return r.orderItems }
func (r *txReposGorm) Carts() repo.CartRepository                   { return r.carts }
func (r *txReposGorm) CartItems() repo.CartItemRepository           { return r.cartItems }
func (r *txReposGorm) Templates() repo.TemplateRepository           { return r.templates }
func (r *txReposGorm) PaymentIntents() repo.PaymentIntentRepository { return r.paymentIntents }
func (r *txReposGorm) Outbox() repo.OutboxRepository                { return r.outbox }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository           { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		cart := NewCartGormRepository(tx)
		r := &txReposGorm{
			orders:         NewOrderGormRepository(tx),
			orderItems:     NewOrderItemGormRepository(tx),
			carts:          cart,
			cartItems:      cart,
			templates:      NewTemplateGormRepository(tx),
			paymentIntents: NewPaymentIntentGormRepository(tx),
			outbox:         NewOutboxGormRepository(tx),
			auditLogs:      NewAuditLogGormRepository(tx),
		}
		return fn(r)
	})
}
