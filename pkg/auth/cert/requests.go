package cert

import (
	"net/http"
	"net/url"

	"github.com/jmerrifield20/certauth/pkg/api"
)

// listQuery turns a GET into a LIST on the service.
func listQuery() url.Values {
	return url.Values{"list": []string{"true"}}
}

// CreateRoleRequest sets a CA certificate and its login constraints under a
// role name (POST /auth/{mount}/certs/{role}).
//
// Pass it to CreateRole to set optional fields; Mount and Role are always
// overwritten by CreateRole's arguments.
type CreateRoleRequest struct {
	Mount string `json:"-" validate:"required,mountpath"`
	Role  string `json:"-" validate:"required,segment"`

	// Certificate is the PEM-encoded CA certificate trusted by this role.
	Certificate string `json:"certificate"`

	AllowedNames               api.Optional[string]   `json:"allowed_names,omitzero"`
	AllowedCommonNames         api.Optional[[]string] `json:"allowed_common_names,omitzero"`
	AllowedDNSSANs             api.Optional[[]string] `json:"allowed_dns_sans,omitzero"`
	AllowedEmailSANs           api.Optional[[]string] `json:"allowed_email_sans,omitzero"`
	AllowedURISANs             api.Optional[[]string] `json:"allowed_uri_sans,omitzero"`
	AllowedOrganizationalUnits api.Optional[[]string] `json:"allowed_organizational_units,omitzero"`
	RequiredExtensions         api.Optional[[]string] `json:"required_extensions,omitzero"`
	AllowedMetadataExtensions  api.Optional[[]string] `json:"allowed_metadata_extensions,omitzero"`

	OCSPEnabled         api.Optional[bool]     `json:"ocsp_enabled,omitzero"`
	OCSPCACertificates  api.Optional[string]   `json:"ocsp_ca_certificates,omitzero"`
	OCSPServersOverride api.Optional[[]string] `json:"ocsp_servers_override,omitzero"`
	OCSPFailOpen        api.Optional[bool]     `json:"ocsp_fail_open,omitzero"`
	OCSPQueryAllServers api.Optional[bool]     `json:"ocsp_query_all_servers,omitzero"`

	DisplayName api.Optional[string]   `json:"display_name,omitzero"`
	Policies    api.Optional[[]string] `json:"policies,omitzero"`

	TokenTTL             api.Optional[string]   `json:"token_ttl,omitzero"`
	TokenMaxTTL          api.Optional[string]   `json:"token_max_ttl,omitzero"`
	TokenPolicies        api.Optional[[]string] `json:"token_policies,omitzero"`
	TokenBoundCIDRs      api.Optional[[]string] `json:"token_bound_cidrs,omitzero"`
	TokenExplicitMaxTTL  api.Optional[string]   `json:"token_explicit_max_ttl,omitzero"`
	TokenNoDefaultPolicy api.Optional[bool]     `json:"token_no_default_policy,omitzero"`
	TokenNumUses         api.Optional[int]      `json:"token_num_uses,omitzero"`
	TokenPeriod          api.Optional[string]   `json:"token_period,omitzero"`
	TokenType            api.Optional[string]   `json:"token_type,omitzero"`
}

func (r *CreateRoleRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/certs/{role}",
		Method:   http.MethodPost,
		Params:   map[string]string{"mount": r.Mount, "role": r.Role},
		Body:     r,
		Response: api.ResponseNone,
	}
}

// ReadRoleRequest fetches a role (GET /auth/{mount}/certs/{role}).
type ReadRoleRequest struct {
	Mount string `json:"-" validate:"required,mountpath"`
	Role  string `json:"-" validate:"required,segment"`
}

func (r *ReadRoleRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/certs/{role}",
		Method:   http.MethodGet,
		Params:   map[string]string{"mount": r.Mount, "role": r.Role},
		Response: api.ResponseOptional,
	}
}

// ListRolesRequest lists role names (LIST /auth/{mount}/certs).
type ListRolesRequest struct {
	Mount string `json:"-" validate:"required,mountpath"`
}

func (r *ListRolesRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/certs",
		Method:   http.MethodGet,
		Params:   map[string]string{"mount": r.Mount},
		Query:    listQuery(),
		Response: api.ResponseOptional,
	}
}

// DeleteRoleRequest removes a role (DELETE /auth/{mount}/certs/{role}).
type DeleteRoleRequest struct {
	Mount string `json:"-" validate:"required,mountpath"`
	Role  string `json:"-" validate:"required,segment"`
}

func (r *DeleteRoleRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/certs/{role}",
		Method:   http.MethodDelete,
		Params:   map[string]string{"mount": r.Mount, "role": r.Role},
		Response: api.ResponseNone,
	}
}

// CreateCRLRequest stores a named CRL (POST /auth/{mount}/crls/{name}).
type CreateCRLRequest struct {
	Mount string `json:"-" validate:"required,mountpath"`
	Name  string `json:"-" validate:"required,segment"`
	// CRL is the PEM-encoded revocation list.
	CRL string `json:"crl"`
}

func (r *CreateCRLRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/crls/{name}",
		Method:   http.MethodPost,
		Params:   map[string]string{"mount": r.Mount, "name": r.Name},
		Body:     r,
		Response: api.ResponseNone,
	}
}

// ReadCRLRequest fetches the serials of a named CRL (GET /auth/{mount}/crls/{name}).
type ReadCRLRequest struct {
	Mount string `json:"-" validate:"required,mountpath"`
	Name  string `json:"-" validate:"required,segment"`
}

func (r *ReadCRLRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/crls/{name}",
		Method:   http.MethodGet,
		Params:   map[string]string{"mount": r.Mount, "name": r.Name},
		Response: api.ResponseOptional,
	}
}

// ListCRLsRequest lists CRL names (LIST /auth/{mount}/crls).
type ListCRLsRequest struct {
	Mount string `json:"-" validate:"required,mountpath"`
}

func (r *ListCRLsRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/crls",
		Method:   http.MethodGet,
		Params:   map[string]string{"mount": r.Mount},
		Query:    listQuery(),
		Response: api.ResponseOptional,
	}
}

// DeleteCRLRequest removes a CRL (DELETE /auth/{mount}/crls/{name}).
type DeleteCRLRequest struct {
	Mount string `json:"-" validate:"required,mountpath"`
	Name  string `json:"-" validate:"required,segment"`
}

func (r *DeleteCRLRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/crls/{name}",
		Method:   http.MethodDelete,
		Params:   map[string]string{"mount": r.Mount, "name": r.Name},
		Response: api.ResponseNone,
	}
}

// ConfigureRequest sets method-wide options (POST /auth/{mount}/config).
type ConfigureRequest struct {
	Mount string `json:"-" validate:"required,mountpath"`

	DisableBinding              api.Optional[bool]   `json:"disable_binding,omitzero"`
	EnableIdentityAliasMetadata api.Optional[bool]   `json:"enable_identity_alias_metadata,omitzero"`
	OCSPCacheSize               api.Optional[uint32] `json:"ocsp_cache_size,omitzero"`
	RoleCacheSize               api.Optional[int]    `json:"role_cache_size,omitzero"`
}

func (r *ConfigureRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/config",
		Method:   http.MethodPost,
		Params:   map[string]string{"mount": r.Mount},
		Body:     r,
		Response: api.ResponseNone,
	}
}

// ReadConfigRequest fetches the method configuration (GET /auth/{mount}/config).
type ReadConfigRequest struct {
	Mount string `json:"-" validate:"required,mountpath"`
}

func (r *ReadConfigRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/config",
		Method:   http.MethodGet,
		Params:   map[string]string{"mount": r.Mount},
		Response: api.ResponseOptional,
	}
}

// LoginRequest authenticates with the client certificate presented on the
// TLS connection (POST /auth/{mount}/login). An empty Name lets the service
// try every role.
type LoginRequest struct {
	Mount string `json:"-" validate:"required,mountpath"`
	Name  string `json:"name,omitempty"`
}

func (r *LoginRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/login",
		Method:   http.MethodPost,
		Params:   map[string]string{"mount": r.Mount},
		Body:     r,
		Response: api.ResponseAuth,
	}
}
