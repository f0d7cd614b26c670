package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/enrollhub/enrollment-hub/internal/application/command"
	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
	"github.com/enrollhub/enrollment-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// One unit of work equals one database transaction. Repositories handed out
// by the unit share that transaction, so a command handler's reads and writes
// commit or roll back together.
// ══════════════════════════════════════════════════════════════════════════════

// UnitOfWork implements command.UnitOfWork on a pgx transaction.
type UnitOfWork struct {
	tx          pgx.Tx
	students    *StudentRepository
	enrollments *EnrollmentRepository
	done        bool
}

// Students returns the student repository bound to this transaction.
func (u *UnitOfWork) Students() student.Repository {
	return u.students
}

// Enrollments returns the enrollment repository bound to this transaction.
func (u *UnitOfWork) Enrollments() enrollment.Repository {
	return u.enrollments
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true

	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to call after Commit; handlers defer
// it unconditionally.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true

	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return nil
}

// UnitOfWorkFactory implements command.UnitOfWorkFactory.
type UnitOfWorkFactory struct {
	conn *Connection
}

// NewUnitOfWorkFactory creates the factory.
func NewUnitOfWorkFactory(conn *Connection) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{conn: conn}
}

// Begin starts a new transaction-scoped unit of work.
func (f *UnitOfWorkFactory) Begin(ctx context.Context) (command.UnitOfWork, error) {
	tx, err := f.conn.BeginTx(ctx, DefaultTxOptions())
	if err != nil {
		return nil, err
	}

	return &UnitOfWork{
		tx:          tx,
		students:    NewStudentRepositoryWithQuerier(tx),
		enrollments: NewEnrollmentRepositoryWithQuerier(tx),
	}, nil
}
