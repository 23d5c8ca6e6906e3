package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/food-ordering/order/internal/dal/postgres"
	"github.com/corray333/food-ordering/order/internal/service/models/money"
	"github.com/corray333/food-ordering/order/internal/service/models/order"
	"github.com/corray333/food-ordering/order/internal/service/models/orderitem"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrVersionConflict is returned by Save when the stored order changed since it was read.
var ErrVersionConflict = errors.New("order was modified by another transaction")

// OrderRepository persists orders with their items and delivery address.
type OrderRepository struct {
	conn postgres.GenericConn
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(conn postgres.GenericConn) *OrderRepository {
	return &OrderRepository{
		conn: conn,
	}
}

// Save inserts an order that has never been stored and updates it otherwise.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) (*order.Order, error) {
	snap := o.Snapshot()
	if snap.Version == 0 {
		return r.insert(ctx, snap)
	}

	return r.update(ctx, snap)
}

func (r *OrderRepository) insert(ctx context.Context, snap order.Snapshot) (*order.Order, error) {
	now := time.Now().UTC()

	query, args, err := sq.Insert("orders").
		Columns(
			"id",
			"tracking_id",
			"customer_id",
			"restaurant_id",
			"price",
			"order_status",
			"failure_messages",
			"version",
			"created_at",
			"updated_at",
		).
		Values(
			snap.ID,
			snap.TrackingID,
			snap.CustomerID,
			snap.RestaurantID,
			sq.Expr("?::text::numeric", snap.Price.String()),
			string(snap.Status),
			failureMessages(snap.FailureMessages),
			1,
			now,
			now,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	items := sq.Insert("order_items").
		Columns("id", "order_id", "product_id", "price", "quantity", "sub_total").
		PlaceholderFormat(sq.Dollar)
	for _, item := range snap.Items {
		items = items.Values(
			item.ID,
			snap.ID,
			item.ProductID,
			sq.Expr("?::text::numeric", item.Price.String()),
			item.Quantity,
			sq.Expr("?::text::numeric", item.SubTotal.String()),
		)
	}

	query, args, err = items.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order items insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert order items: %w", err)
	}

	query, args, err = sq.Insert("order_address").
		Columns("id", "order_id", "street", "postal_code", "city").
		Values(
			uuid.New(),
			snap.ID,
			snap.DeliveryAddress.Street,
			snap.DeliveryAddress.PostalCode,
			snap.DeliveryAddress.City,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order address insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert order address: %w", err)
	}

	snap.Version = 1

	return order.Restore(snap), nil
}

func (r *OrderRepository) update(ctx context.Context, snap order.Snapshot) (*order.Order, error) {
	query, args, err := sq.Update("orders").
		Set("order_status", string(snap.Status)).
		Set("failure_messages", failureMessages(snap.FailureMessages)).
		Set("version", snap.Version+1).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": snap.ID, "version": snap.Version}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("failed to update order %s at version %d: %w", snap.ID, snap.Version, ErrVersionConflict)
	}

	snap.Version++

	return order.Restore(snap), nil
}

// FindByIDForUpdate loads an order and locks its row for the rest of the transaction.
func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, sq.Eq{"o.id": id}, true)
}

// FindByTrackingID loads an order by its tracking id.
func (r *OrderRepository) FindByTrackingID(ctx context.Context, trackingID uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, sq.Eq{"o.tracking_id": trackingID}, false)
}

func (r *OrderRepository) findOne(ctx context.Context, where sq.Eq, forUpdate bool) (*order.Order, error) {
	builder := sq.Select(
		"o.id",
		"o.tracking_id",
		"o.customer_id",
		"o.restaurant_id",
		"o.price::text",
		"o.order_status",
		"o.failure_messages",
		"o.version",
		"COALESCE(a.street, '')",
		"COALESCE(a.postal_code, '')",
		"COALESCE(a.city, '')",
	).
		From("orders o").
		LeftJoin("order_address a ON a.order_id = o.id").
		Where(where).
		PlaceholderFormat(sq.Dollar)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE OF o")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var (
		snap   order.Snapshot
		price  string
		status string
	)

	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&snap.ID,
		&snap.TrackingID,
		&snap.CustomerID,
		&snap.RestaurantID,
		&price,
		&status,
		&snap.FailureMessages,
		&snap.Version,
		&snap.DeliveryAddress.Street,
		&snap.DeliveryAddress.PostalCode,
		&snap.DeliveryAddress.City,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	if snap.Price, err = money.NewFromString(price); err != nil {
		return nil, err
	}
	if snap.Status, err = order.ParseStatus(status); err != nil {
		return nil, err
	}

	if snap.Items, err = r.findItems(ctx, snap.ID); err != nil {
		return nil, err
	}

	return order.Restore(snap), nil
}

func (r *OrderRepository) findItems(ctx context.Context, orderID uuid.UUID) ([]orderitem.OrderItem, error) {
	query, args, err := sq.Select("id", "product_id", "price::text", "quantity", "sub_total::text").
		From("order_items").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order items select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []orderitem.OrderItem
	for rows.Next() {
		var (
			item            orderitem.OrderItem
			price, subTotal string
		)
		if err := rows.Scan(&item.ID, &item.ProductID, &price, &item.Quantity, &subTotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if item.Price, err = money.NewFromString(price); err != nil {
			return nil, err
		}
		if item.SubTotal, err = money.NewFromString(subTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// failureMessages keeps the NOT NULL array column from receiving a nil slice.
func failureMessages(messages []string) []string {
	if messages == nil {
		return []string{}
	}

	return messages
}
