package cert

import (
	"context"

	"github.com/jmerrifield20/certauth/pkg/api"
)

// CreateCRL stores a PEM-encoded CRL under name. Logins presenting a
// certificate whose serial it lists are rejected.
func CreateCRL(ctx context.Context, c api.Client, mount, name, crl string) error {
	return api.Exec(ctx, c, &CreateCRLRequest{Mount: mount, Name: name, CRL: crl})
}

// ReadCRL returns the serials held by name, or nil if no such CRL exists.
func ReadCRL(ctx context.Context, c api.Client, mount, name string) (*CRLResponse, error) {
	return api.ExecOptional[CRLResponse](ctx, c, &ReadCRLRequest{Mount: mount, Name: name})
}

// ListCRLs returns the CRL names on mount, or nil if there are none. As with
// ListRoles, a mount that is not enabled also lists as empty.
func ListCRLs(ctx context.Context, c api.Client, mount string) ([]string, error) {
	return api.ExecList(ctx, c, &ListCRLsRequest{Mount: mount})
}

// DeleteCRL removes name. Deleting a missing CRL is not an error.
func DeleteCRL(ctx context.Context, c api.Client, mount, name string) error {
	return api.Exec(ctx, c, &DeleteCRLRequest{Mount: mount, Name: name})
}
