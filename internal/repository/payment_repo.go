package repository

import (
	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository interface {
	LockByOrderTx(tx *gorm.DB, orderID uuid.UUID) (*model.Payment, error)
	UpdateTx(tx *gorm.DB, p *model.Payment) error
}

type paymentRepo struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository { return &paymentRepo{db: db} }

func (r *paymentRepo) LockByOrderTx(tx *gorm.DB, orderID uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "order_id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) UpdateTx(tx *gorm.DB, p *model.Payment) error {
	return tx.Model(p).Select("status", "transaction_id", "paid_at", "updated_at").Updates(p).Error
}
