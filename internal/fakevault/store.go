package fakevault

import (
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// role is a stored trusted-certificate entry.
type role struct {
	Certificate        string
	DisplayName        string
	Policies           []string
	AllowedNames       []string
	RequiredExtensions []string
	TokenTTL           int
	TokenMaxTTL        int
	TokenPeriod        int
	TokenType          string

	pool *x509.CertPool
}

type config struct {
	DisableBinding              bool `json:"disable_binding"`
	EnableIdentityAliasMetadata bool `json:"enable_identity_alias_metadata"`
	OCSPCacheSize               int  `json:"ocsp_cache_size"`
	RoleCacheSize               int  `json:"role_cache_size"`
}

func defaultConfig() config {
	return config{OCSPCacheSize: 100, RoleCacheSize: 200}
}

// mount is the state of one enabled cert auth method.
type mount struct {
	roles  map[string]*role
	crls   map[string]map[string]struct{}
	config config
}

// store holds every mount, guarded by mu.
type store struct {
	mu     sync.RWMutex
	mounts map[string]*mount
}

func newStore(mounts ...string) *store {
	s := &store{mounts: make(map[string]*mount)}
	for _, m := range mounts {
		s.mounts[m] = &mount{
			roles:  make(map[string]*role),
			crls:   make(map[string]map[string]struct{}),
			config: defaultConfig(),
		}
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stringList accepts a JSON array or a comma-separated string.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var joined string
	if err := json.Unmarshal(b, &joined); err == nil {
		*l = nil
		for _, part := range strings.Split(joined, ",") {
			if part = strings.TrimSpace(part); part != "" {
				*l = append(*l, part)
			}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("expected a list or a comma-separated string")
	}
	*l = list
	return nil
}

// duration accepts seconds as a number or a string ("90", "1h").
type duration int

func (d *duration) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*d = duration(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected a duration")
	}
	if n, err := strconv.Atoi(s); err == nil {
		*d = duration(n)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = duration(parsed / time.Second)
	return nil
}

// roleInput is the write payload for a role. Pointer fields distinguish
// "not sent" from a zero value, so an update only touches what was sent.
type roleInput struct {
	Certificate        *string     `json:"certificate"`
	DisplayName        *string     `json:"display_name"`
	Policies           *stringList `json:"policies"`
	TokenPolicies      *stringList `json:"token_policies"`
	AllowedNames       *stringList `json:"allowed_names"`
	RequiredExtensions *stringList `json:"required_extensions"`
	TokenTTL           *duration   `json:"token_ttl"`
	TokenMaxTTL        *duration   `json:"token_max_ttl"`
	TokenPeriod        *duration   `json:"token_period"`
	TokenType          *string     `json:"token_type"`
}

func (in *roleInput) apply(r *role) error {
	if in.Certificate != nil && *in.Certificate != "" {
		pool, err := parseCertificates(*in.Certificate)
		if err != nil {
			return err
		}
		r.Certificate, r.pool = *in.Certificate, pool
	}
	if r.Certificate == "" {
		return fmt.Errorf("missing certificate")
	}
	if in.DisplayName != nil {
		r.DisplayName = *in.DisplayName
	}
	if in.Policies != nil {
		r.Policies = *in.Policies
	}
	if in.TokenPolicies != nil {
		r.Policies = *in.TokenPolicies
	}
	if in.AllowedNames != nil {
		r.AllowedNames = *in.AllowedNames
	}
	if in.RequiredExtensions != nil {
		r.RequiredExtensions = *in.RequiredExtensions
	}
	if in.TokenTTL != nil {
		r.TokenTTL = int(*in.TokenTTL)
	}
	if in.TokenMaxTTL != nil {
		r.TokenMaxTTL = int(*in.TokenMaxTTL)
	}
	if in.TokenPeriod != nil {
		r.TokenPeriod = int(*in.TokenPeriod)
	}
	if in.TokenType != nil {
		r.TokenType = *in.TokenType
	}
	return nil
}

func (r *role) view() map[string]any {
	list := func(l []string) []string {
		if l == nil {
			return []string{}
		}
		return l
	}
	return map[string]any{
		"certificate":         r.Certificate,
		"display_name":        r.DisplayName,
		"policies":            list(r.Policies),
		"token_policies":      list(r.Policies),
		"allowed_names":       list(r.AllowedNames),
		"required_extensions": list(r.RequiredExtensions),
		"ttl":                 r.TokenTTL,
		"max_ttl":             r.TokenMaxTTL,
		"period":              r.TokenPeriod,
		"token_ttl":           r.TokenTTL,
		"token_max_ttl":       r.TokenMaxTTL,
		"token_period":        r.TokenPeriod,
		"token_type":          r.TokenType,
	}
}

func parseCertificates(certPEM string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(certPEM)) {
		return nil, fmt.Errorf("failed to parse certificate")
	}
	return pool, nil
}

// parseCRL returns the revoked serials in decimal form.
func parseCRL(crlPEM string) (map[string]struct{}, error) {
	der := []byte(crlPEM)
	if block, _ := pem.Decode(der); block != nil {
		der = block.Bytes
	}
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		return nil, fmt.Errorf("parse CRL: %w", err)
	}
	serials := make(map[string]struct{}, len(crl.RevokedCertificateEntries))
	for _, e := range crl.RevokedCertificateEntries {
		serials[serialKey(e.SerialNumber)] = struct{}{}
	}
	return serials, nil
}

func serialKey(n *big.Int) string { return n.String() }
