package cert

import (
	"context"

	"github.com/jmerrifield20/certauth/pkg/api"
)

// Configure sets method-wide options on mount. Fields left unset in opts are
// not sent; a nil opts sends an empty object.
func Configure(ctx context.Context, c api.Client, mount string, opts *ConfigureRequest) error {
	req := ConfigureRequest{}
	if opts != nil {
		req = *opts
	}
	req.Mount = mount
	return api.Exec(ctx, c, &req)
}

// ReadConfig returns the method configuration, or nil if the mount has none.
func ReadConfig(ctx context.Context, c api.Client, mount string) (*ConfigResponse, error) {
	return api.ExecOptional[ConfigResponse](ctx, c, &ReadConfigRequest{Mount: mount})
}

// Login authenticates with the client certificate c presents on its TLS
// connection. name selects a role; pass "" to let the service try all of
// them.
func Login(ctx context.Context, c api.Client, mount, name string) (*api.AuthInfo, error) {
	return api.Auth(ctx, c, &LoginRequest{Mount: mount, Name: name})
}
