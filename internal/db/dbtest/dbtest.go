// Package dbtest holds test doubles for the db package.
package dbtest

import (
	"context"

	"storefront-be/internal/db"
)

// Transactor runs fn directly with a nil querier. Repositories under test are
// mocks whose WithTx ignores the querier. Calls counts WithTx invocations.
type Transactor struct {
	Calls int
	Err   error
}

func (t *Transactor) WithTx(ctx context.Context, fn func(q db.DBTX) error) error {
	t.Calls++
	if t.Err != nil {
		return t.Err
	}
	return fn(nil)
}
