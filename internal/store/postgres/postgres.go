package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"inbrentory/backend/internal/domain"
	"inbrentory/backend/internal/store"
	"inbrentory/backend/internal/xid"
)

const itemColumns = `id, name, cost_basis_cents, list_price_cents, markdown_price_cents, sale_price_cents,
	quantity, listed_on_marketplace, sold_on_marketplace, sale_id, sold_at, created_at`

const saleColumns = `id, subtotal_cents, total_cents, discount_cents, external_payment_id, external_order_id,
	external_checkout_id, payment_status, receipt_url, created_at`

type Store struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.Name == "" || item.ListPriceCents < 0 || item.Quantity < 0 {
		return nil, store.ErrInvalidRequest
	}
	if item.SoldOnMarketplace && item.SoldAt == nil {
		return nil, store.ErrInvalidRequest
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (
			id, name, cost_basis_cents, list_price_cents, markdown_price_cents, sale_price_cents,
			quantity, listed_on_marketplace, sold_on_marketplace, sale_id, sold_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, item.ID, item.Name, item.CostBasisCents, item.ListPriceCents, nullInt64(item.MarkdownPriceCents), nullInt64(item.SalePriceCents),
		item.Quantity, item.ListedOnMarketplace, item.SoldOnMarketplace, nullString(item.SaleID), nullTime(item.SoldAt), item.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := item
	return &created, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *Store) LinkItemToSale(ctx context.Context, link domain.SaleLink) (*domain.InventoryItem, error) {
	if link.ItemID == "" || link.SaleID == "" || link.SoldAt.IsZero() {
		return nil, store.ErrInvalidRequest
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE inventory_items
		SET sale_id = $2, sale_price_cents = $3, sold_at = $4, sold_on_marketplace = $5
		WHERE id = $1 AND (sale_id IS NULL OR sale_id = $2)
		RETURNING `+itemColumns,
		link.ItemID, link.SaleID, link.SalePriceCents, link.SoldAt.UTC(), link.SoldOnMarketplace)
	item, err := scanItem(row)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	// No row updated: either the item is missing or it belongs to another sale.
	if _, getErr := s.GetInventoryItem(ctx, link.ItemID); getErr != nil {
		return nil, getErr
	}
	return nil, store.ErrItemAlreadySold
}

func (s *Store) DecrementItemQuantity(ctx context.Context, itemID string, qty int) (*domain.InventoryItem, error) {
	if qty < 0 {
		return nil, store.ErrInvalidRequest
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE inventory_items
		SET quantity = GREATEST(quantity - $2, 0)
		WHERE id = $1
		RETURNING `+itemColumns, itemID, qty)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	return insertSale(ctx, s.db, sale)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSale(ctx context.Context, db execer, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.PaymentStatus == "" {
		sale.PaymentStatus = domain.PaymentStatusCompleted
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, sale.ID, sale.SubtotalCents, sale.TotalCents, sale.DiscountCents, nullString(sale.PaymentID), nullString(sale.OrderID),
		nullString(sale.CheckoutID), sale.PaymentStatus, nullString(sale.ReceiptURL), sale.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			if sale.PaymentID != "" {
				return nil, store.ErrDuplicateSale
			}
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := sale
	created.CreatedAt = sale.CreatedAt.UTC()
	return &created, nil
}

func (s *Store) RecordDirectSale(ctx context.Context, sale domain.Sale, itemIDs []string) (*domain.Sale, []domain.InventoryItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil, store.ErrInvalidRequest
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	seen := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			return nil, nil, store.ErrInvalidRequest
		}
		seen[id] = struct{}{}

		var saleID sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT sale_id FROM inventory_items WHERE id = $1 FOR UPDATE`, id).Scan(&saleID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, store.ErrNotFound
			}
			return nil, nil, err
		}
		if saleID.Valid {
			return nil, nil, store.ErrItemAlreadySold
		}
	}

	created, err := insertSale(ctx, tx, sale)
	if err != nil {
		return nil, nil, err
	}

	items := make([]domain.InventoryItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		row := tx.QueryRowContext(ctx, `
			UPDATE inventory_items
			SET sale_id = $2,
				sale_price_cents = COALESCE(sale_price_cents, markdown_price_cents, list_price_cents),
				sold_at = $3,
				sold_on_marketplace = false,
				quantity = GREATEST(quantity - 1, 0)
			WHERE id = $1
			RETURNING `+itemColumns, id, created.ID, created.CreatedAt)
		item, err := scanItem(row)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, *item)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return created, items, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE inventory_items
		SET sale_id = NULL, sale_price_cents = NULL, sold_at = NULL, sold_on_marketplace = false
		WHERE sale_id = $1
	`, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) AttachCheckoutID(ctx context.Context, saleID string, checkoutID string) (*domain.Sale, error) {
	if saleID == "" || checkoutID == "" {
		return nil, store.ErrInvalidRequest
	}

	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		UPDATE sales SET external_checkout_id = $2
		WHERE id = $1 AND (external_checkout_id IS NULL OR external_checkout_id = '' OR external_checkout_id = $2)
		RETURNING `+saleColumns, saleID, checkoutID))
	if err == nil {
		return sale, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, err := s.FindSaleByID(ctx, saleID); err != nil {
		return nil, err
	}
	return nil, store.ErrCheckoutConflict
}

func (s *Store) FindSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	return s.findSale(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
}

func (s *Store) FindSaleByPaymentID(ctx context.Context, paymentID string) (*domain.Sale, error) {
	if paymentID == "" {
		return nil, store.ErrNotFound
	}
	return s.findSale(ctx, `SELECT `+saleColumns+` FROM sales WHERE external_payment_id = $1`, paymentID)
}

func (s *Store) FindSaleByCheckoutID(ctx context.Context, checkoutID string) (*domain.Sale, error) {
	if checkoutID == "" {
		return nil, store.ErrNotFound
	}
	return s.findSale(ctx, `
		SELECT `+saleColumns+` FROM sales
		WHERE external_checkout_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, checkoutID)
}

func (s *Store) findSale(ctx context.Context, query string, arg string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return sale, nil
}

func (s *Store) ListSoldItems(ctx context.Context, from time.Time, to time.Time) ([]domain.SoldItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.name, i.cost_basis_cents, i.list_price_cents, i.markdown_price_cents, i.sale_price_cents,
			i.quantity, i.listed_on_marketplace, i.sold_on_marketplace, i.sale_id, i.sold_at, i.created_at,
			s.id, s.subtotal_cents, s.total_cents, s.discount_cents, s.external_payment_id, s.external_order_id,
			s.external_checkout_id, s.payment_status, s.receipt_url, s.created_at
		FROM inventory_items i
		JOIN sales s ON s.id = i.sale_id
		WHERE s.created_at >= $1 AND s.created_at < $2
		ORDER BY s.created_at, i.id
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SoldItem, 0, 64)
	for rows.Next() {
		var (
			item                                 domain.InventoryItem
			sale                                 domain.Sale
			markdown, salePrice                  sql.NullInt64
			saleID                               sql.NullString
			soldAt                               sql.NullTime
			paymentID, orderID, checkoutID, rcpt sql.NullString
		)
		if err := rows.Scan(
			&item.ID, &item.Name, &item.CostBasisCents, &item.ListPriceCents, &markdown, &salePrice,
			&item.Quantity, &item.ListedOnMarketplace, &item.SoldOnMarketplace, &saleID, &soldAt, &item.CreatedAt,
			&sale.ID, &sale.SubtotalCents, &sale.TotalCents, &sale.DiscountCents, &paymentID, &orderID,
			&checkoutID, &sale.PaymentStatus, &rcpt, &sale.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.MarkdownPriceCents = int64Ptr(markdown)
		item.SalePriceCents = int64Ptr(salePrice)
		item.SaleID = saleID.String
		item.SoldAt = timePtr(soldAt)
		item.CreatedAt = item.CreatedAt.UTC()
		sale.PaymentID = paymentID.String
		sale.OrderID = orderID.String
		sale.CheckoutID = checkoutID.String
		sale.ReceiptURL = rcpt.String
		sale.CreatedAt = sale.CreatedAt.UTC()
		out = append(out, domain.SoldItem{Item: item, Sale: sale})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CreateStaffUser(ctx context.Context, user domain.StaffUser) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRequest
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staff_users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidRequest
		}
		return err
	}
	return nil
}

func (s *Store) ListStaffUsers(ctx context.Context) ([]domain.StaffUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM staff_users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.StaffUser, 0, 8)
	for rows.Next() {
		var u domain.StaffUser
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanItem(row rowScanner) (*domain.InventoryItem, error) {
	var (
		item                domain.InventoryItem
		markdown, salePrice sql.NullInt64
		saleID              sql.NullString
		soldAt              sql.NullTime
	)
	if err := row.Scan(
		&item.ID, &item.Name, &item.CostBasisCents, &item.ListPriceCents, &markdown, &salePrice,
		&item.Quantity, &item.ListedOnMarketplace, &item.SoldOnMarketplace, &saleID, &soldAt, &item.CreatedAt,
	); err != nil {
		return nil, err
	}
	item.MarkdownPriceCents = int64Ptr(markdown)
	item.SalePriceCents = int64Ptr(salePrice)
	item.SaleID = saleID.String
	item.SoldAt = timePtr(soldAt)
	item.CreatedAt = item.CreatedAt.UTC()
	return &item, nil
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var (
		sale                                 domain.Sale
		paymentID, orderID, checkoutID, rcpt sql.NullString
	)
	if err := row.Scan(
		&sale.ID, &sale.SubtotalCents, &sale.TotalCents, &sale.DiscountCents, &paymentID, &orderID,
		&checkoutID, &sale.PaymentStatus, &rcpt, &sale.CreatedAt,
	); err != nil {
		return nil, err
	}
	sale.PaymentID = paymentID.String
	sale.OrderID = orderID.String
	sale.CheckoutID = checkoutID.String
	sale.ReceiptURL = rcpt.String
	sale.CreatedAt = sale.CreatedAt.UTC()
	return &sale, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	out := v.Time.UTC()
	return &out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

var _ store.Repository = (*Store)(nil)
