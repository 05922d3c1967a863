package repositories

import "context"

// TxFn runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager wraps a function in a database transaction
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
