package cert

import (
	"context"

	"github.com/jmerrifield20/certauth/pkg/api"
)

// CreateRole creates or replaces role. opts carries the certificate and any
// optional constraints; its Mount and Role fields are ignored.
func CreateRole(ctx context.Context, c api.Client, mount, role string, opts *CreateRoleRequest) error {
	req := CreateRoleRequest{}
	if opts != nil {
		req = *opts
	}
	req.Mount = mount
	req.Role = role
	return api.Exec(ctx, c, &req)
}

// ReadRole returns role, or nil if it does not exist.
func ReadRole(ctx context.Context, c api.Client, mount, role string) (*RoleResponse, error) {
	return api.ExecOptional[RoleResponse](ctx, c, &ReadRoleRequest{Mount: mount, Role: role})
}

// ListRoles returns the role names on mount. An empty mount yields a nil
// slice and a nil error. The service answers 404 for a mount that is not
// enabled too, so a mistyped mount also lists as empty.
func ListRoles(ctx context.Context, c api.Client, mount string) ([]string, error) {
	return api.ExecList(ctx, c, &ListRolesRequest{Mount: mount})
}

// DeleteRole removes role. Deleting a missing role is not an error.
func DeleteRole(ctx context.Context, c api.Client, mount, role string) error {
	return api.Exec(ctx, c, &DeleteRoleRequest{Mount: mount, Role: role})
}
