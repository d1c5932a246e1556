package fakevault

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const errInvalidCert = "invalid certificate or no client certificate supplied"

// Login handles POST /login. The client certificate from the TLS handshake
// must chain to a role's certificate, satisfy its allowed names and not be
// listed on any CRL of the mount.
func (s *Server) Login(c *gin.Context) {
	var in struct {
		Name string `json:"name"`
	}
	if err := bindOptional(c, &in); err != nil {
		writeErrors(c, http.StatusBadRequest, err.Error())
		return
	}
	if c.Request.TLS == nil || len(c.Request.TLS.PeerCertificates) == 0 {
		writeErrors(c, http.StatusBadRequest, "client certificate must be supplied")
		return
	}
	chain := c.Request.TLS.PeerCertificates
	leaf := chain[0]

	m := mountOf(c)
	s.store.mu.RLock()
	name, matched := m.match(in.Name, leaf, chain[1:])
	s.store.mu.RUnlock()
	if matched == nil {
		s.logger.Debug("fakevault login rejected",
			zap.String("role", in.Name),
			zap.String("common_name", leaf.Subject.CommonName),
		)
		writeErrors(c, http.StatusBadRequest, errInvalidCert)
		return
	}

	token := "hvs." + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.mu.Lock()
	s.tokens[token] = name
	s.mu.Unlock()

	policies := append([]string{"default"}, matched.Policies...)
	skid := sha256.Sum256(leaf.RawSubjectPublicKeyInfo)
	c.JSON(http.StatusOK, gin.H{
		"request_id": uuid.NewString(),
		"data":       nil,
		"auth": gin.H{
			"client_token":      token,
			"accessor":          uuid.NewString(),
			"policies":          policies,
			"token_policies":    policies,
			"identity_policies": nil,
			"metadata": gin.H{
				"cert_name":      name,
				"common_name":    leaf.Subject.CommonName,
				"serial_number":  leaf.SerialNumber.String(),
				"subject_key_id": hex.EncodeToString(skid[:8]),
			},
			"lease_duration": matched.TokenTTL,
			"renewable":      true,
			"entity_id":      uuid.NewString(),
			"token_type":     "service",
			"orphan":         true,
		},
	})
}

// match returns the first role, in name order, that trusts leaf. A non-empty
// name restricts the search to that role.
func (m *mount) match(name string, leaf *x509.Certificate, intermediates []*x509.Certificate) (string, *role) {
	if _, ok := m.revoked(leaf); ok {
		return "", nil
	}

	inter := x509.NewCertPool()
	for _, ic := range intermediates {
		inter.AddCert(ic)
	}

	names := sortedKeys(m.roles)
	if name != "" {
		names = []string{name}
	}
	for _, n := range names {
		r, ok := m.roles[n]
		if !ok || r.pool == nil {
			continue
		}
		_, err := leaf.Verify(x509.VerifyOptions{
			Roots:         r.pool,
			Intermediates: inter,
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		})
		if err != nil {
			continue
		}
		if !allowedName(r.AllowedNames, leaf) {
			continue
		}
		return n, r
	}
	return "", nil
}

// revoked returns the CRL that lists leaf, if any.
func (m *mount) revoked(leaf *x509.Certificate) (string, bool) {
	key := serialKey(leaf.SerialNumber)
	for crl, serials := range m.crls {
		if _, ok := serials[key]; ok {
			return crl, true
		}
	}
	return "", false
}

// allowedName matches the common name and the DNS and email SANs against
// glob patterns. An empty pattern list allows everything.
func allowedName(patterns []string, leaf *x509.Certificate) bool {
	if len(patterns) == 0 {
		return true
	}
	candidates := append([]string{leaf.Subject.CommonName}, leaf.DNSNames...)
	candidates = append(candidates, leaf.EmailAddresses...)
	for _, p := range patterns {
		for _, cand := range candidates {
			if ok, _ := path.Match(p, cand); ok {
				return true
			}
		}
	}
	return false
}
