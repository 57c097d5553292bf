package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nenempneuscom-star/syscli-sub000/pkg/tenant"
)

type txKey struct{}

// WithTenantTx executes a function inside a transaction scoped to the tenant
// carried in the context.
//
// How it works:
//  1. Starts a transaction
//  2. Sets "SET LOCAL search_path TO <tenant_schema>, public"
//  3. Sets "SET LOCAL app.current_tenant = '<tenant-uuid>'" so RLS policies
//     on shared tables (USING tenant_id = current_setting(...)::uuid) apply
//  4. Stashes the transaction in the context; DB query methods dispatch
//     through it, so every repository call inside fn shares the transaction
//  5. Commits (SET LOCAL cleans itself up, safe with PgBouncer)
//
// SET LOCAL does not support bind parameters, hence fmt.Sprintf. Both values
// come from validated tenant context, never raw user input.
func (db *DB) WithTenantTx(ctx context.Context, fn func(context.Context) error) error {
	// Reentrant: calls made inside an open tenant transaction join it
	if getTx(ctx) != nil {
		return fn(ctx)
	}

	schema, err := tenant.TenantSchema(ctx)
	if err != nil {
		return err
	}
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s, public", pq.QuoteIdentifier(schema))); err != nil {
			return fmt.Errorf("failed to set search_path to %s: %w", schema, err)
		}

		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL app.current_tenant = '%s'", tenantID)); err != nil {
			return fmt.Errorf("failed to set app.current_tenant to %s: %w", tenantID, err)
		}

		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// getTx extracts the transaction from the context if present
func getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
