package slips

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestDuplicateOriginalMapping(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "uq_tax_slips_original"}
	require.True(t, isDuplicateOriginal(dup))
	require.True(t, isDuplicateOriginal(fmt.Errorf("insert slip: %w", dup)))

	other := &pgconn.PgError{Code: "23505", ConstraintName: "tax_slips_pkey"}
	require.False(t, isDuplicateOriginal(other))
	require.False(t, isDuplicateOriginal(fmt.Errorf("connection reset")))
	require.False(t, isDuplicateOriginal(nil))
}
