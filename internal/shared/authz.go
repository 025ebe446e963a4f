package shared

import "slices"

// Billing permissions carried by the caller identity.
const (
	PermDocumentsView   = "documents.view"
	PermDocumentsEdit   = "documents.edit"
	PermDocumentsCancel = "documents.cancel"
	PermPaymentsRecord  = "payments.record"
)

// BillingScopes lists all permissions related to commercial documents.
func BillingScopes() []string {
	return []string{
		PermDocumentsView,
		PermDocumentsEdit,
		PermDocumentsCancel,
		PermPaymentsRecord,
	}
}

// HasScope reports whether the identity was granted perm. A wildcard "*"
// grants everything.
func (i Identity) HasScope(perm string) bool {
	return slices.Contains(i.Scopes, "*") || slices.Contains(i.Scopes, perm)
}
