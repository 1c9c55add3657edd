package service

import (
	"context"

	"stockledger/internal/apierror"
	"stockledger/internal/dto"
	"stockledger/internal/repository"

	"github.com/google/uuid"
)

// CartService manages the owner's cart. Stock is not reserved: availability
// is checked again when the cart is checked out.
type CartService interface {
	Get(ctx context.Context, owner uuid.UUID) (*dto.CartResponse, error)
	SetItem(ctx context.Context, owner, productID uuid.UUID, req dto.CartItemRequest) (*dto.CartResponse, error)
	RemoveItem(ctx context.Context, owner, productID uuid.UUID) (*dto.CartResponse, error)
	Clear(ctx context.Context, owner uuid.UUID) error
}

type cartService struct {
	store    CartStore
	products repository.ProductRepository
}

func NewCartService(store CartStore, products repository.ProductRepository) CartService {
	return &cartService{store: store, products: products}
}

func (s *cartService) Get(ctx context.Context, owner uuid.UUID) (*dto.CartResponse, error) {
	items, err := s.store.Items(ctx, owner)
	if err != nil {
		return nil, apierror.Persistence("read cart", err)
	}
	resp := &dto.CartResponse{Items: make([]dto.CartItemResponse, len(items))}
	for i, it := range items {
		resp.Items[i] = dto.CartItemResponse{ProductID: it.ProductID.String(), Quantity: it.Quantity}
	}
	return resp, nil
}

func (s *cartService) SetItem(ctx context.Context, owner, productID uuid.UUID, req dto.CartItemRequest) (*dto.CartResponse, error) {
	if req.Quantity < 1 {
		return nil, apierror.Invalid("quantity", "must be at least 1")
	}
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, lookupErr("product", productID, err)
	}
	if !p.Active {
		return nil, apierror.Invalid("product_id", "product is not available")
	}
	if err := s.store.SetItem(ctx, owner, productID, req.Quantity); err != nil {
		return nil, apierror.Persistence("write cart", err)
	}
	return s.Get(ctx, owner)
}

func (s *cartService) RemoveItem(ctx context.Context, owner, productID uuid.UUID) (*dto.CartResponse, error) {
	if err := s.store.RemoveItem(ctx, owner, productID); err != nil {
		return nil, apierror.Persistence("write cart", err)
	}
	return s.Get(ctx, owner)
}

func (s *cartService) Clear(ctx context.Context, owner uuid.UUID) error {
	if err := s.store.Clear(ctx, owner); err != nil {
		return apierror.Persistence("clear cart", err)
	}
	return nil
}
