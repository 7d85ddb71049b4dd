package store

import (
	"context"
	"errors"
	"time"

	"inbrentory/backend/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrDuplicateSale    = errors.New("sale already recorded for payment")
	ErrItemAlreadySold  = errors.New("item already linked to another sale")
	ErrCheckoutConflict = errors.New("sale already linked to another checkout")
)

type Repository interface {
	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	// LinkItemToSale attaches an item to a sale. Relinking to the same sale is a
	// no-op update; linking to a different sale returns ErrItemAlreadySold.
	LinkItemToSale(ctx context.Context, link domain.SaleLink) (*domain.InventoryItem, error)
	// DecrementItemQuantity lowers on-hand quantity, never below zero.
	DecrementItemQuantity(ctx context.Context, itemID string, qty int) (*domain.InventoryItem, error)

	// CreateSale returns ErrDuplicateSale when a sale with the same non-empty
	// payment id already exists. The check and insert are atomic.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	RecordDirectSale(ctx context.Context, sale domain.Sale, itemIDs []string) (*domain.Sale, []domain.InventoryItem, error)
	// AttachCheckoutID records the terminal checkout on a sale created without
	// one. A sale already carrying a different checkout id returns
	// ErrCheckoutConflict; the same id is a no-op.
	AttachCheckoutID(ctx context.Context, saleID string, checkoutID string) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error
	FindSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	FindSaleByPaymentID(ctx context.Context, paymentID string) (*domain.Sale, error)
	FindSaleByCheckoutID(ctx context.Context, checkoutID string) (*domain.Sale, error)
	// ListSoldItems returns linked items whose sale time falls in [from, to).
	ListSoldItems(ctx context.Context, from time.Time, to time.Time) ([]domain.SoldItem, error)

	CreateStaffUser(ctx context.Context, user domain.StaffUser) error
	ListStaffUsers(ctx context.Context) ([]domain.StaffUser, error)
}
