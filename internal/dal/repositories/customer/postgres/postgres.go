package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/food-ordering/order/internal/dal/postgres"
	"github.com/corray333/food-ordering/order/internal/service/models/customer"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CustomerRepository reads the local customer projection.
type CustomerRepository struct {
	conn postgres.GenericConn
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(conn postgres.GenericConn) *CustomerRepository {
	return &CustomerRepository{
		conn: conn,
	}
}

// FindCustomer returns the customer with the given id, or nil when there is none.
func (r *CustomerRepository) FindCustomer(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	query, args, err := sq.Select("id").
		From("customers").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var c customer.Customer
	err = r.conn.QueryRow(ctx, query, args...).Scan(&c.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query customer: %w", err)
	}

	return &c, nil
}
