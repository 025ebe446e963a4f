package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 0, 41)
	assert.Equal(t, Pagination{Page: 1, PerPage: 20, Total: 41, TotalPages: 3}, p)
	assert.Equal(t, 0, p.Offset())

	p = NewPagination(3, 500, 250)
	assert.Equal(t, MaxPerPage, p.PerPage)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 200, p.Offset())
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithIdentity(context.Background(), Identity{UserID: 0})
	_, ok = IdentityFromContext(ctx)
	assert.False(t, ok, "anonymous identities do not count")

	ctx = ContextWithIdentity(context.Background(), Identity{UserID: 9, Scopes: []string{PermDocumentsView}})
	id, ok := IdentityFromContext(ctx)
	assert.True(t, ok)
	assert.True(t, id.HasScope(PermDocumentsView))
	assert.False(t, id.HasScope(PermPaymentsRecord))
	assert.True(t, Identity{Scopes: []string{"*"}}.HasScope(PermDocumentsCancel))
}

func TestBillingScopesCoverRoutes(t *testing.T) {
	id := Identity{UserID: 1, Scopes: BillingScopes()}
	for _, perm := range []string{PermDocumentsView, PermDocumentsEdit, PermDocumentsCancel, PermPaymentsRecord} {
		assert.True(t, id.HasScope(perm), perm)
	}
	assert.False(t, id.HasScope("users.manage"))
}
