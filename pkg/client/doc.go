// Package client sends requests built by package api to a server over
// HTTP(S).
//
// # Logging in with a client certificate
//
// The certificate is presented during the TLS handshake, so it is
// configured on the transport, not on the login call:
//
//	c, err := client.New("https://vault.example.com:8200",
//	    client.WithCertDir(os.ExpandEnv("$HOME/.certauth/certs")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	info, err := cert.Login(ctx, c, "cert", "web")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c.SetToken(info.ClientToken)
//
// WithCertDir expects cert.pem and key.pem, plus ca.pem when the server
// is not signed by a system root.
//
// # Managing roles
//
// Management calls need a token with the right policy:
//
//	c, _ := client.New(addr, client.WithToken(os.Getenv("VAULT_TOKEN")))
//	err := cert.CreateRole(ctx, c, "cert", "web", &cert.CreateRoleRequest{
//	    Certificate: caPEM,
//	    Policies:    api.Some([]string{"web"}),
//	})
//
// # Observability
//
// WithLogger logs every request at debug level with a request id, which
// is also sent as X-Request-Id. WithMetrics registers a request counter
// and a duration histogram on a Prometheus registerer.
package client
