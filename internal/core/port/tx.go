package port

import "context"

// TxManager scopes a function to one storage transaction. Repository calls
// made with the context passed to fn join the transaction, so an entity
// mutation and its history event commit or roll back together.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
