package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/food-ordering/order/internal/dal/postgres"
	"github.com/corray333/food-ordering/order/internal/service/models/money"
	"github.com/corray333/food-ordering/order/internal/service/models/restaurant"
	"github.com/jackc/pgx/v5"
)

// RestaurantRepository reads the local restaurant and product projection.
type RestaurantRepository struct {
	conn postgres.GenericConn
}

// NewRestaurantRepository creates a new restaurant repository.
func NewRestaurantRepository(conn postgres.GenericConn) *RestaurantRepository {
	return &RestaurantRepository{
		conn: conn,
	}
}

// FindRestaurantInformation loads the restaurant's active flag together with the
// probed products. Products the restaurant does not offer or has marked
// unavailable are left out.
func (r *RestaurantRepository) FindRestaurantInformation(
	ctx context.Context,
	probe restaurant.Probe,
) (*restaurant.Restaurant, error) {
	query, args, err := sq.Select("id", "active").
		From("restaurants").
		Where(sq.Eq{"id": probe.RestaurantID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var rest restaurant.Restaurant
	err = r.conn.QueryRow(ctx, query, args...).Scan(&rest.ID, &rest.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query restaurant: %w", err)
	}

	if len(probe.ProductIDs) == 0 {
		return &rest, nil
	}

	query, args, err = sq.Select("id", "name", "price::text").
		From("products").
		Where(sq.Eq{"restaurant_id": probe.RestaurantID, "id": probe.ProductIDs, "available": true}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build products select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			product restaurant.Product
			price   string
		)
		if err := rows.Scan(&product.ID, &product.Name, &price); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if product.Price, err = money.NewFromString(price); err != nil {
			return nil, err
		}
		rest.Products = append(rest.Products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return &rest, nil
}
