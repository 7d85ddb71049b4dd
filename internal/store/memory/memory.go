package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"inbrentory/backend/internal/domain"
	"inbrentory/backend/internal/store"
	"inbrentory/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	items           map[string]*domain.InventoryItem
	salesByID       map[string]*domain.Sale
	salesByPayment  map[string]string
	salesByCheckout map[string]string
	usersByUsername map[string]domain.StaffUser
}

func New() *Store {
	return &Store{
		items:           make(map[string]*domain.InventoryItem),
		salesByID:       make(map[string]*domain.Sale),
		salesByPayment:  make(map[string]string),
		salesByCheckout: make(map[string]string),
		usersByUsername: make(map[string]domain.StaffUser),
	}
}

// seedUsers builds the initial staff accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; if
// unset, dev defaults are used with a warning. The postgres store never seeds.
func seedUsers() map[string]domain.StaffUser {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.StaffUser{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.StaffUser{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	for _, item := range []domain.InventoryItem{
		{ID: "item-1", Name: "Gunne Sax Womens Black and Brown Skirt", CostBasisCents: 2000, ListPriceCents: 11000, Quantity: 1, ListedOnMarketplace: true},
		{ID: "item-2", Name: "Mens Multi Jumper", CostBasisCents: 700, ListPriceCents: 4000, Quantity: 1},
		{ID: "item-3", Name: "City Triangles Womens Burgundy and Red Dress", CostBasisCents: 700, ListPriceCents: 3800, Quantity: 1, ListedOnMarketplace: true},
		{ID: "item-4", Name: "Levis 501 Faded Denim", CostBasisCents: 1500, ListPriceCents: 6500, Quantity: 2},
	} {
		item.CreatedAt = now
		s.items[item.ID] = cloneItem(&item)
	}
	return s
}

func (s *Store) CreateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.Name == "" || item.ListPriceCents < 0 || item.Quantity < 0 {
		return nil, store.ErrInvalidRequest
	}
	if item.SoldOnMarketplace && item.SoldAt == nil {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = xid.New("item")
	}
	if _, exists := s.items[item.ID]; exists {
		return nil, store.ErrInvalidRequest
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.items[item.ID] = cloneItem(&item)
	return cloneItem(&item), nil
}

func (s *Store) GetInventoryItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneItem(item), nil
}

func (s *Store) LinkItemToSale(_ context.Context, link domain.SaleLink) (*domain.InventoryItem, error) {
	if link.ItemID == "" || link.SaleID == "" || link.SoldAt.IsZero() {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[link.ItemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if _, ok := s.salesByID[link.SaleID]; !ok {
		return nil, store.ErrNotFound
	}
	if item.SaleID != "" && item.SaleID != link.SaleID {
		return nil, store.ErrItemAlreadySold
	}

	applyLink(item, link)
	return cloneItem(item), nil
}

func (s *Store) DecrementItemQuantity(_ context.Context, itemID string, qty int) (*domain.InventoryItem, error) {
	if qty < 0 {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	item.Quantity = max(0, item.Quantity-qty)
	return cloneItem(item), nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertSaleLocked(sale)
}

func (s *Store) insertSaleLocked(sale domain.Sale) (*domain.Sale, error) {
	if sale.PaymentID != "" {
		if _, exists := s.salesByPayment[sale.PaymentID]; exists {
			return nil, store.ErrDuplicateSale
		}
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrInvalidRequest
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.PaymentStatus == "" {
		sale.PaymentStatus = domain.PaymentStatusCompleted
	}

	saved := sale
	s.salesByID[saved.ID] = &saved
	if saved.PaymentID != "" {
		s.salesByPayment[saved.PaymentID] = saved.ID
	}
	if saved.CheckoutID != "" {
		s.salesByCheckout[saved.CheckoutID] = saved.ID
	}
	out := saved
	return &out, nil
}

func (s *Store) RecordDirectSale(_ context.Context, sale domain.Sale, itemIDs []string) (*domain.Sale, []domain.InventoryItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			return nil, nil, store.ErrInvalidRequest
		}
		seen[id] = struct{}{}
		item, ok := s.items[id]
		if !ok {
			return nil, nil, store.ErrNotFound
		}
		if item.SaleID != "" {
			return nil, nil, store.ErrItemAlreadySold
		}
	}

	created, err := s.insertSaleLocked(sale)
	if err != nil {
		return nil, nil, err
	}

	items := make([]domain.InventoryItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		item := s.items[id]
		applyLink(item, domain.SaleLink{
			ItemID:         id,
			SaleID:         created.ID,
			SalePriceCents: item.EffectivePriceCents(),
			SoldAt:         created.CreatedAt,
		})
		item.Quantity = max(0, item.Quantity-1)
		items = append(items, *cloneItem(item))
	}
	return created, items, nil
}

func (s *Store) AttachCheckoutID(_ context.Context, saleID string, checkoutID string) (*domain.Sale, error) {
	if saleID == "" || checkoutID == "" {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.CheckoutID != "" && sale.CheckoutID != checkoutID {
		return nil, store.ErrCheckoutConflict
	}
	sale.CheckoutID = checkoutID
	s.salesByCheckout[checkoutID] = saleID
	out := *sale
	return &out, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return store.ErrNotFound
	}
	for _, item := range s.items {
		if item.SaleID != id {
			continue
		}
		item.SaleID = ""
		item.SalePriceCents = nil
		item.SoldAt = nil
		item.SoldOnMarketplace = false
	}
	delete(s.salesByID, id)
	if sale.PaymentID != "" {
		delete(s.salesByPayment, sale.PaymentID)
	}
	if sale.CheckoutID != "" {
		delete(s.salesByCheckout, sale.CheckoutID)
	}
	return nil
}

func (s *Store) FindSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *sale
	return &out, nil
}

func (s *Store) FindSaleByPaymentID(ctx context.Context, paymentID string) (*domain.Sale, error) {
	if paymentID == "" {
		return nil, store.ErrNotFound
	}
	s.mu.RLock()
	id, ok := s.salesByPayment[paymentID]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.FindSaleByID(ctx, id)
}

func (s *Store) FindSaleByCheckoutID(ctx context.Context, checkoutID string) (*domain.Sale, error) {
	if checkoutID == "" {
		return nil, store.ErrNotFound
	}
	s.mu.RLock()
	id, ok := s.salesByCheckout[checkoutID]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.FindSaleByID(ctx, id)
}

func (s *Store) ListSoldItems(_ context.Context, from time.Time, to time.Time) ([]domain.SoldItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SoldItem, 0, 32)
	for _, item := range s.items {
		if item.SaleID == "" {
			continue
		}
		sale, ok := s.salesByID[item.SaleID]
		if !ok {
			continue
		}
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		out = append(out, domain.SoldItem{Item: *cloneItem(item), Sale: *sale})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Sale.CreatedAt.Equal(out[j].Sale.CreatedAt) {
			return out[i].Sale.CreatedAt.Before(out[j].Sale.CreatedAt)
		}
		return out[i].Item.ID < out[j].Item.ID
	})
	return out, nil
}

func (s *Store) CreateStaffUser(_ context.Context, user domain.StaffUser) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidRequest
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListStaffUsers(_ context.Context) ([]domain.StaffUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.StaffUser, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func applyLink(item *domain.InventoryItem, link domain.SaleLink) {
	price := link.SalePriceCents
	soldAt := link.SoldAt.UTC()
	item.SaleID = link.SaleID
	item.SalePriceCents = &price
	item.SoldAt = &soldAt
	item.SoldOnMarketplace = link.SoldOnMarketplace
}

func cloneItem(src *domain.InventoryItem) *domain.InventoryItem {
	dst := *src
	if src.MarkdownPriceCents != nil {
		v := *src.MarkdownPriceCents
		dst.MarkdownPriceCents = &v
	}
	if src.SalePriceCents != nil {
		v := *src.SalePriceCents
		dst.SalePriceCents = &v
	}
	if src.SoldAt != nil {
		v := *src.SoldAt
		dst.SoldAt = &v
	}
	return &dst
}
