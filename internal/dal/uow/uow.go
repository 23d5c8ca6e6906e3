package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/corray333/food-ordering/order/internal/dal/interfaces/icustomerrepo"
	"github.com/corray333/food-ordering/order/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/food-ordering/order/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/food-ordering/order/internal/dal/interfaces/irestaurantrepo"
	"github.com/corray333/food-ordering/order/internal/dal/postgres"
	customerrepo "github.com/corray333/food-ordering/order/internal/dal/repositories/customer/postgres"
	orderrepo "github.com/corray333/food-ordering/order/internal/dal/repositories/order/postgres"
	outboxrepo "github.com/corray333/food-ordering/order/internal/dal/repositories/outbox/postgres"
	restaurantrepo "github.com/corray333/food-ordering/order/internal/dal/repositories/restaurant/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UnitOfWork groups the repositories a use case touches behind one transaction.
// Before Begin the repositories run on the pool.
type UnitOfWork struct {
	pool           *pgxpool.Pool
	tx             pgx.Tx
	orderRepo      iorderrepo.IOrderRepository
	customerRepo   icustomerrepo.ICustomerRepository
	restaurantRepo irestaurantrepo.IRestaurantRepository
	outboxRepo     ioutboxrepo.IOutboxRepository
}

// NewUnitOfWork creates a unit of work over the client's pool.
func NewUnitOfWork(client *postgres.Client) *UnitOfWork {
	u := &UnitOfWork{
		pool: client.Pool(),
	}
	u.bind(client.Pool())

	return u
}

func (u *UnitOfWork) bind(conn postgres.GenericConn) {
	u.orderRepo = orderrepo.NewOrderRepository(conn)
	u.customerRepo = customerrepo.NewCustomerRepository(conn)
	u.restaurantRepo = restaurantrepo.NewRestaurantRepository(conn)
	u.outboxRepo = outboxrepo.NewOutboxRepository(conn)
}

func (u *UnitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *UnitOfWork) CustomerRepository() icustomerrepo.ICustomerRepository {
	return u.customerRepo
}

func (u *UnitOfWork) RestaurantRepository() irestaurantrepo.IRestaurantRepository {
	return u.restaurantRepo
}

func (u *UnitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

// Begin opens the transaction and rebinds every repository to it.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return errors.New("unit of work already started")
	}

	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.bind(tx)

	return nil
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Rollback aborts the transaction. It is a no-op once the transaction has been
// committed, so it can be deferred right after Begin.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}
