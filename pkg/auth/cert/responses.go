package cert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Strings decodes a field the service reports either as a JSON array or as
// a comma-separated string. Older servers use the string form for
// policies, allowed_names and required_extensions.
type Strings []string

func (s *Strings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = nil
		return nil
	case len(b) > 0 && b[0] == '"':
		var joined string
		if err := json.Unmarshal(b, &joined); err != nil {
			return err
		}
		*s = splitList(joined)
		return nil
	case len(b) > 0 && b[0] == '[':
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	return fmt.Errorf("cert: cannot decode %s as a string list", b)
}

// String joins the list the way the service accepts it on input.
func (s Strings) String() string { return strings.Join(s, ",") }

func splitList(joined string) []string {
	var out []string
	for _, part := range strings.Split(joined, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RoleResponse is a role as returned by ReadRole.
type RoleResponse struct {
	Certificate        string  `json:"certificate"`
	DisplayName        string  `json:"display_name"`
	Policies           Strings `json:"policies"`
	AllowedNames       Strings `json:"allowed_names"`
	RequiredExtensions Strings `json:"required_extensions"`
	TTL                int     `json:"ttl"`
	MaxTTL             int     `json:"max_ttl"`
	Period             int     `json:"period"`

	AllowedCommonNames         Strings `json:"allowed_common_names"`
	AllowedDNSSANs             Strings `json:"allowed_dns_sans"`
	AllowedEmailSANs           Strings `json:"allowed_email_sans"`
	AllowedURISANs             Strings `json:"allowed_uri_sans"`
	AllowedOrganizationalUnits Strings `json:"allowed_organizational_units"`
	AllowedMetadataExtensions  Strings `json:"allowed_metadata_extensions"`

	OCSPEnabled         bool    `json:"ocsp_enabled"`
	OCSPCACertificates  string  `json:"ocsp_ca_certificates"`
	OCSPServersOverride Strings `json:"ocsp_servers_override"`
	OCSPFailOpen        bool    `json:"ocsp_fail_open"`
	OCSPQueryAllServers bool    `json:"ocsp_query_all_servers"`

	TokenTTL             int     `json:"token_ttl"`
	TokenMaxTTL          int     `json:"token_max_ttl"`
	TokenPolicies        Strings `json:"token_policies"`
	TokenBoundCIDRs      Strings `json:"token_bound_cidrs"`
	TokenExplicitMaxTTL  int     `json:"token_explicit_max_ttl"`
	TokenNoDefaultPolicy bool    `json:"token_no_default_policy"`
	TokenNumUses         int     `json:"token_num_uses"`
	TokenPeriod          int     `json:"token_period"`
	TokenType            string  `json:"token_type"`
}

// CRLResponse lists the serial numbers held by a CRL. Serials can exceed
// 64 bits, so they are kept as strings.
type CRLResponse struct {
	Serials map[string]struct{} `json:"serials"`
}

// Contains reports whether serial is revoked by this CRL.
func (c *CRLResponse) Contains(serial string) bool {
	_, ok := c.Serials[serial]
	return ok
}

// ConfigResponse is the method configuration returned by ReadConfig.
type ConfigResponse struct {
	DisableBinding              bool `json:"disable_binding"`
	EnableIdentityAliasMetadata bool `json:"enable_identity_alias_metadata"`
	OCSPCacheSize               int  `json:"ocsp_cache_size"`
	RoleCacheSize               int  `json:"role_cache_size"`
}
