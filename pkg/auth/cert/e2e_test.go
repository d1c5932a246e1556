package cert_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmerrifield20/certauth/internal/fakevault"
	"github.com/jmerrifield20/certauth/internal/testca"
	"github.com/jmerrifield20/certauth/pkg/api"
	"github.com/jmerrifield20/certauth/pkg/auth/cert"
	"github.com/jmerrifield20/certauth/pkg/client"
)

const rootToken = "root"

type env struct {
	server  *fakevault.Server
	ts      *httptest.Server
	ca      *testca.CA
	trusted *testca.Issued
	admin   *client.Client
}

// newEnv starts a TLS fake server signed by a fresh CA and returns an admin
// client authenticated with the root token.
func newEnv(t *testing.T) *env {
	t.Helper()
	ca := testca.MustNew("certauth test root")
	srvCert, err := ca.IssueServer()
	require.NoError(t, err)
	tlsCfg, err := ca.ServerTLSConfig(srvCert)
	require.NoError(t, err)

	server := fakevault.New(rootToken, nil, "cert")
	ts := server.StartTLS(tlsCfg)
	t.Cleanup(ts.Close)

	trusted, err := ca.IssueClient("web.example.com")
	require.NoError(t, err)

	admin, err := client.New(ts.URL, client.WithCACert(ca.CertPEM()), client.WithToken(rootToken))
	require.NoError(t, err)

	return &env{server: server, ts: ts, ca: ca, trusted: trusted, admin: admin}
}

// loginClient returns a client presenting leaf, with no token.
func (e *env) loginClient(t *testing.T, leaf *testca.Issued) *client.Client {
	t.Helper()
	c, err := client.New(e.ts.URL, client.WithMTLS(leaf.CertPEM, leaf.KeyPEM, e.ca.CertPEM()))
	require.NoError(t, err)
	return c
}

func TestEndToEnd_roles(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	roles, err := cert.ListRoles(ctx, e.admin, "cert")
	require.NoError(t, err)
	require.Empty(t, roles)

	err = cert.CreateRole(ctx, e.admin, "cert", "web", &cert.CreateRoleRequest{
		Certificate: e.ca.CertPEM(),
		DisplayName: api.Some("web"),
		Policies:    api.Some([]string{"web"}),
		TokenTTL:    api.Some("1h"),
	})
	require.NoError(t, err)

	role, err := cert.ReadRole(ctx, e.admin, "cert", "web")
	require.NoError(t, err)
	require.NotNil(t, role)
	require.Equal(t, e.ca.CertPEM(), role.Certificate)
	require.Equal(t, cert.Strings{"web"}, role.Policies)
	require.Equal(t, 3600, role.TokenTTL)

	roles, err = cert.ListRoles(ctx, e.admin, "cert")
	require.NoError(t, err)
	require.Equal(t, []string{"web"}, roles)

	require.NoError(t, cert.DeleteRole(ctx, e.admin, "cert", "web"))

	role, err = cert.ReadRole(ctx, e.admin, "cert", "web")
	require.NoError(t, err)
	require.Nil(t, role)
}

func TestEndToEnd_createRoleWithoutCertificateRejected(t *testing.T) {
	e := newEnv(t)
	err := cert.CreateRole(context.Background(), e.admin, "cert", "web", nil)
	require.Error(t, err)
	require.Equal(t, api.CodeStatus, api.CodeOf(err))
	require.Equal(t, 400, api.StatusCode(err))

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, []string{"missing certificate"}, apiErr.Messages)
}

func TestEndToEnd_wrongTokenIsStatusError(t *testing.T) {
	e := newEnv(t)
	c, err := client.New(e.ts.URL, client.WithCACert(e.ca.CertPEM()), client.WithToken("nope"))
	require.NoError(t, err)

	_, err = cert.ListRoles(context.Background(), c, "cert")
	require.Equal(t, api.CodeStatus, api.CodeOf(err))
	require.Equal(t, 403, api.StatusCode(err))
}

func TestEndToEnd_login(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, cert.CreateRole(ctx, e.admin, "cert", "web", &cert.CreateRoleRequest{
		Certificate:  e.ca.CertPEM(),
		AllowedNames: api.Some("*.example.com"),
		Policies:     api.Some([]string{"web"}),
	}))

	t.Run("trusted", func(t *testing.T) {
		c := e.loginClient(t, e.trusted)
		info, err := cert.Login(ctx, c, "cert", "web")
		require.NoError(t, err)
		require.NotEmpty(t, info.ClientToken)
		require.Contains(t, info.Policies, "web")
		require.Equal(t, "web", info.Metadata["cert_name"])

		role, ok := e.server.TokenRole(info.ClientToken)
		require.True(t, ok)
		require.Equal(t, "web", role)
	})

	t.Run("any role", func(t *testing.T) {
		info, err := cert.Login(ctx, e.loginClient(t, e.trusted), "cert", "")
		require.NoError(t, err)
		require.NotEmpty(t, info.ClientToken)
	})

	t.Run("untrusted CA", func(t *testing.T) {
		other := testca.MustNew("someone else")
		leaf, err := other.IssueClient("web.example.com")
		require.NoError(t, err)

		_, err = cert.Login(ctx, e.loginClient(t, leaf), "cert", "web")
		require.Error(t, err)
		require.Equal(t, api.CodeUnauthenticated, api.CodeOf(err))
	})

	t.Run("name not allowed", func(t *testing.T) {
		leaf, err := e.ca.IssueClient("db.internal")
		require.NoError(t, err)

		_, err = cert.Login(ctx, e.loginClient(t, leaf), "cert", "web")
		require.Equal(t, api.CodeUnauthenticated, api.CodeOf(err))
	})

	t.Run("no client certificate", func(t *testing.T) {
		_, err := cert.Login(ctx, e.admin, "cert", "web")
		require.Equal(t, api.CodeUnauthenticated, api.CodeOf(err))
	})
}

func TestEndToEnd_crls(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, cert.CreateRole(ctx, e.admin, "cert", "web", &cert.CreateRoleRequest{
		Certificate: e.ca.CertPEM(),
	}))

	revoked, err := e.ca.IssueClient("revoked.example.com")
	require.NoError(t, err)
	crlPEM, err := e.ca.RevocationList(revoked)
	require.NoError(t, err)

	crls, err := cert.ListCRLs(ctx, e.admin, "cert")
	require.NoError(t, err)
	require.Empty(t, crls)

	require.NoError(t, cert.CreateCRL(ctx, e.admin, "cert", "ops", crlPEM))

	crls, err = cert.ListCRLs(ctx, e.admin, "cert")
	require.NoError(t, err)
	require.Equal(t, []string{"ops"}, crls)

	crl, err := cert.ReadCRL(ctx, e.admin, "cert", "ops")
	require.NoError(t, err)
	require.NotNil(t, crl)
	require.True(t, crl.Contains(revoked.Serial()))
	require.False(t, crl.Contains(e.trusted.Serial()))

	_, err = cert.Login(ctx, e.loginClient(t, revoked), "cert", "web")
	require.Equal(t, api.CodeUnauthenticated, api.CodeOf(err))

	_, err = cert.Login(ctx, e.loginClient(t, e.trusted), "cert", "web")
	require.NoError(t, err)

	require.NoError(t, cert.DeleteCRL(ctx, e.admin, "cert", "ops"))
	crl, err = cert.ReadCRL(ctx, e.admin, "cert", "ops")
	require.NoError(t, err)
	require.Nil(t, crl)
}

func TestEndToEnd_config(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	cfg, err := cert.ReadConfig(ctx, e.admin, "cert")
	require.NoError(t, err)
	require.Equal(t, 100, cfg.OCSPCacheSize)
	require.Equal(t, 200, cfg.RoleCacheSize)

	require.NoError(t, cert.Configure(ctx, e.admin, "cert", &cert.ConfigureRequest{
		DisableBinding: api.Some(true),
		OCSPCacheSize:  api.Some[uint32](0),
	}))

	cfg, err = cert.ReadConfig(ctx, e.admin, "cert")
	require.NoError(t, err)
	require.True(t, cfg.DisableBinding)
	require.Equal(t, 0, cfg.OCSPCacheSize)
	require.Equal(t, 200, cfg.RoleCacheSize)
}

func TestEndToEnd_unknownMount(t *testing.T) {
	e := newEnv(t)
	roles, err := cert.ListRoles(context.Background(), e.admin, "missing")
	require.NoError(t, err)
	require.Empty(t, roles)
}
