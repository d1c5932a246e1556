package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jmerrifield20/certauth/internal/testca"
	"github.com/jmerrifield20/certauth/pkg/api"
	"github.com/jmerrifield20/certauth/pkg/client"
)

// ── Stub server ─────────────────────────────────────────────────────────

type seen struct {
	method, path, query string
	token, namespace    string
	requestID           string
	contentType         string
	body                string
}

// capture holds the last request a stub server received.
type capture struct {
	mu   sync.Mutex
	last seen
}

func (c *capture) get() seen {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func stubServer(t *testing.T, status int, reply string) (*httptest.Server, *capture) {
	t.Helper()
	got := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got.mu.Lock()
		defer got.mu.Unlock()
		got.last = seen{
			method:      r.Method,
			path:        r.URL.Path,
			query:       r.URL.RawQuery,
			token:       r.Header.Get("X-Vault-Token"),
			namespace:   r.Header.Get("X-Vault-Namespace"),
			requestID:   r.Header.Get("X-Request-Id"),
			contentType: r.Header.Get("Content-Type"),
			body:        string(b),
		}
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

// ── New ─────────────────────────────────────────────────────────────────

func TestNew_rejectsBadAddress(t *testing.T) {
	for _, addr := range []string{"vault:8200", "ftp://vault", "://"} {
		if _, err := client.New(addr); err == nil {
			t.Errorf("New(%q) succeeded, want error", addr)
		}
	}
}

func TestNew_trimsTrailingSlash(t *testing.T) {
	c := client.MustNew("https://vault.example.com:8200/")
	if got := c.Address(); got != "https://vault.example.com:8200" {
		t.Errorf("Address() = %q", got)
	}
}

func TestWithRateLimit_invalid(t *testing.T) {
	if _, err := client.New("http://localhost", client.WithRateLimit(0, 1)); err == nil {
		t.Error("expected error for zero rps")
	}
}

func TestWithMTLS_badPair(t *testing.T) {
	if _, err := client.New("https://localhost", client.WithMTLS("nope", "nope", "")); err == nil {
		t.Error("expected error for unparsable cert/key")
	}
}

// ── Send ────────────────────────────────────────────────────────────────

func TestSend_requestShape(t *testing.T) {
	srv, capt := stubServer(t, http.StatusNoContent, "")
	c := client.MustNew(srv.URL, client.WithToken("s.abc"), client.WithNamespace("/team-a/"))

	resp, err := c.Send(context.Background(), &api.HTTPRequest{
		Method: http.MethodPost,
		Path:   "/auth/cert/certs/web",
		Body:   []byte(`{"certificate":"PEM"}`),
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	got := capt.get()
	if got.method != http.MethodPost || got.path != "/v1/auth/cert/certs/web" {
		t.Errorf("got %s %s", got.method, got.path)
	}
	if got.token != "s.abc" {
		t.Errorf("X-Vault-Token = %q", got.token)
	}
	if got.namespace != "team-a" {
		t.Errorf("X-Vault-Namespace = %q", got.namespace)
	}
	if got.requestID == "" {
		t.Error("X-Request-Id not set")
	}
	if got.contentType != "application/json" || got.body != `{"certificate":"PEM"}` {
		t.Errorf("content-type %q body %q", got.contentType, got.body)
	}
}

func TestSend_queryAndNoBody(t *testing.T) {
	srv, capt := stubServer(t, http.StatusOK, `{"data":{"keys":["a"]}}`)
	c := client.MustNew(srv.URL)

	_, err := c.Send(context.Background(), &api.HTTPRequest{
		Method: http.MethodGet,
		Path:   "/auth/cert/certs",
		Query:  url.Values{"list": []string{"true"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := capt.get()
	if got.query != "list=true" {
		t.Errorf("query = %q", got.query)
	}
	if got.token != "" || got.contentType != "" {
		t.Errorf("unexpected headers: token %q content-type %q", got.token, got.contentType)
	}
}

func TestSend_statusIsNotAnError(t *testing.T) {
	srv, _ := stubServer(t, http.StatusInternalServerError, `{"errors":["boom"]}`)
	c := client.MustNew(srv.URL)

	resp, err := c.Send(context.Background(), &api.HTTPRequest{Method: http.MethodGet, Path: "/auth/cert/config"})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError || string(resp.Body) != `{"errors":["boom"]}` {
		t.Errorf("got %d %s", resp.StatusCode, resp.Body)
	}
}

func TestSend_transportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := client.MustNew(addr)
	_, err := c.Send(context.Background(), &api.HTTPRequest{Method: http.MethodGet, Path: "/auth/cert/config"})
	if err == nil {
		t.Fatal("expected error from closed server")
	}
}

func TestSend_contextCanceled(t *testing.T) {
	srv, _ := stubServer(t, http.StatusOK, `{}`)
	c := client.MustNew(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Send(ctx, &api.HTTPRequest{Method: http.MethodGet, Path: "/auth/cert/config"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSetToken(t *testing.T) {
	srv, capt := stubServer(t, http.StatusNoContent, "")
	c := client.MustNew(srv.URL, client.WithToken("old"))
	c.SetToken("new")

	if _, err := c.Send(context.Background(), &api.HTTPRequest{Method: http.MethodDelete, Path: "/auth/cert/certs/web"}); err != nil {
		t.Fatal(err)
	}
	got := capt.get()
	if got.token != "new" || c.Token() != "new" {
		t.Errorf("token = %q", got.token)
	}
}

func TestWithRateLimit_waits(t *testing.T) {
	srv, _ := stubServer(t, http.StatusNoContent, "")
	c := client.MustNew(srv.URL, client.WithRateLimit(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Send(context.Background(), &api.HTTPRequest{Method: http.MethodGet, Path: "/x"}); err != nil {
			t.Fatal(err)
		}
	}
	// burst 1 at 20/s: the 2nd and 3rd requests wait ~50ms each
	if took := time.Since(start); took < 80*time.Millisecond {
		t.Errorf("3 requests took %v, expected throttling", took)
	}
}

// ── Observability ───────────────────────────────────────────────────────

func TestWithMetrics(t *testing.T) {
	srv, _ := stubServer(t, http.StatusNotFound, `{"errors":[]}`)
	reg := prometheus.NewRegistry()
	c := client.MustNew(srv.URL, client.WithMetrics(reg))

	for i := 0; i < 2; i++ {
		if _, err := c.Send(context.Background(), &api.HTTPRequest{Method: http.MethodGet, Path: "/auth/cert/certs/web"}); err != nil {
			t.Fatal(err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var count float64
	for _, mf := range families {
		if mf.GetName() != "certauth_client_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["method"] == "GET" && labels["status"] == "404" {
				count = m.GetCounter().GetValue()
			}
		}
	}
	if count != 2 {
		t.Errorf("requests_total{GET,404} = %v, want 2", count)
	}
}

func TestWithLogger(t *testing.T) {
	srv, capt := stubServer(t, http.StatusNoContent, "")
	core, logs := observer.New(zap.DebugLevel)
	c := client.MustNew(srv.URL, client.WithLogger(zap.New(core)))

	if _, err := c.Send(context.Background(), &api.HTTPRequest{Method: http.MethodDelete, Path: "/auth/cert/certs/web"}); err != nil {
		t.Fatal(err)
	}
	entries := logs.FilterMessage("request sent").All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	got := capt.get()
	if id := entries[0].ContextMap()["request_id"]; id != got.requestID {
		t.Errorf("logged request_id %v, sent %q", id, got.requestID)
	}
	if c.Logger() == nil {
		t.Error("Logger() returned nil")
	}
}

// ── TLS ─────────────────────────────────────────────────────────────────

func tlsServer(t *testing.T, ca *testca.CA) *httptest.Server {
	t.Helper()
	srvCert, err := ca.IssueServer()
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := ca.ServerTLSConfig(srvCert)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.TLS.PeerCertificates) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		io.WriteString(w, r.TLS.PeerCertificates[0].Subject.CommonName)
	}))
	srv.TLS = cfg
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

func TestWithMTLS_presentsCertificate(t *testing.T) {
	ca := testca.MustNew("root")
	srv := tlsServer(t, ca)
	leaf, err := ca.IssueClient("web.example.com")
	if err != nil {
		t.Fatal(err)
	}

	c := client.MustNew(srv.URL, client.WithMTLS(leaf.CertPEM, leaf.KeyPEM, ca.CertPEM()))
	resp, err := c.Send(context.Background(), &api.HTTPRequest{Method: http.MethodGet, Path: "/whoami"})
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != "web.example.com" {
		t.Errorf("server saw %q", resp.Body)
	}
}

func TestWithCertDir(t *testing.T) {
	ca := testca.MustNew("root")
	srv := tlsServer(t, ca)
	leaf, _ := ca.IssueClient("dir.example.com")

	dir := t.TempDir()
	for name, content := range map[string]string{
		"cert.pem": leaf.CertPEM,
		"key.pem":  leaf.KeyPEM,
		"ca.pem":   ca.CertPEM(),
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	c, err := client.New(srv.URL, client.WithCertDir(dir))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	resp, err := c.Send(context.Background(), &api.HTTPRequest{Method: http.MethodGet, Path: "/whoami"})
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != "dir.example.com" {
		t.Errorf("server saw %q", resp.Body)
	}
}

func TestWithCertDir_missingFiles(t *testing.T) {
	if _, err := client.New("https://localhost", client.WithCertDir(t.TempDir())); err == nil {
		t.Error("expected error for empty cert dir")
	}
}

func TestUntrustedServerIsTransportError(t *testing.T) {
	srv := tlsServer(t, testca.MustNew("server root"))
	c := client.MustNew(srv.URL, client.WithCACert(testca.MustNew("other root").CertPEM()))

	if _, err := c.Send(context.Background(), &api.HTTPRequest{Method: http.MethodGet, Path: "/x"}); err == nil {
		t.Error("expected TLS verification error")
	}
}

func TestWithInsecureSkipVerify(t *testing.T) {
	ca := testca.MustNew("root")
	srv := tlsServer(t, ca)
	leaf, _ := ca.IssueClient("insecure")

	c := client.MustNew(srv.URL,
		client.WithInsecureSkipVerify(),
		client.WithMTLS(leaf.CertPEM, leaf.KeyPEM, ""),
	)
	resp, err := c.Send(context.Background(), &api.HTTPRequest{Method: http.MethodGet, Path: "/x"})
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != "insecure" {
		t.Errorf("server saw %q", resp.Body)
	}
}
