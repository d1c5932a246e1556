// Package fakevault serves the certificate auth HTTP surface from memory.
// It is used by end-to-end tests and by the CLI's local development mode.
package fakevault

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const methodList = "LIST"

// Server is an in-memory cert auth backend. The zero value is not usable;
// call New.
type Server struct {
	rootToken string
	store     *store
	logger    *zap.Logger
	engine    *gin.Engine

	// tokens maps every token issued by a login to its role; guarded by mu
	mu     sync.Mutex
	tokens map[string]string
}

// New returns a Server that accepts rootToken for management calls and has
// the cert method enabled at each of mounts. logger may be nil.
func New(rootToken string, logger *zap.Logger, mounts ...string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(mounts) == 0 {
		mounts = []string{"cert"}
	}
	s := &Server{
		rootToken: rootToken,
		store:     newStore(mounts...),
		logger:    logger,
		tokens:    make(map[string]string),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.Register(r.Group("/v1/auth/:mount", s.requireMount()))
	r.NoRoute(func(c *gin.Context) { writeErrors(c, http.StatusNotFound) })
	s.engine = r
	return s
}

// Register mounts the cert auth routes on rg, which must bind :mount.
func (s *Server) Register(rg *gin.RouterGroup) {
	rg.POST("/login", s.Login)

	mgmt := rg.Group("", s.requireToken())
	{
		mgmt.GET("/config", s.ReadConfig)
		mgmt.POST("/config", s.WriteConfig)

		mgmt.GET("/certs", s.ListRoles)
		mgmt.Handle(methodList, "/certs", s.ListRoles)
		mgmt.GET("/certs/:name", s.ReadRole)
		mgmt.POST("/certs/:name", s.WriteRole)
		mgmt.PUT("/certs/:name", s.WriteRole)
		mgmt.DELETE("/certs/:name", s.DeleteRole)

		mgmt.GET("/crls", s.ListCRLs)
		mgmt.Handle(methodList, "/crls", s.ListCRLs)
		mgmt.GET("/crls/:name", s.ReadCRL)
		mgmt.POST("/crls/:name", s.WriteCRL)
		mgmt.PUT("/crls/:name", s.WriteCRL)
		mgmt.DELETE("/crls/:name", s.DeleteCRL)
	}
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// StartTLS serves on a loopback listener with cfg, which should request
// client certificates for Login to see them.
func (s *Server) StartTLS(cfg *tls.Config) *httptest.Server {
	ts := httptest.NewUnstartedServer(s.engine)
	ts.TLS = cfg
	ts.StartTLS()
	return ts
}

// TokenRole returns the role a login token was issued for.
func (s *Server) TokenRole(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.tokens[token]
	return r, ok
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("fakevault request",
			zap.String("request_id", c.GetHeader("X-Request-Id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func (s *Server) requireMount() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.store.mu.RLock()
		m, ok := s.store.mounts[c.Param("mount")]
		s.store.mu.RUnlock()
		if !ok {
			writeErrors(c, http.StatusNotFound, "no handler for route \""+c.Request.URL.Path+"\"")
			c.Abort()
			return
		}
		c.Set("mount", m)
		c.Next()
	}
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rootToken != "" && c.GetHeader("X-Vault-Token") != s.rootToken {
			writeErrors(c, http.StatusForbidden, "permission denied")
			c.Abort()
			return
		}
		c.Next()
	}
}

func mountOf(c *gin.Context) *mount {
	return c.MustGet("mount").(*mount)
}

// isList reports whether a GET is a LIST in disguise.
func isList(c *gin.Context) bool {
	return c.Request.Method == methodList || c.Query("list") == "true"
}

func writeData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"request_id": uuid.NewString(),
		"data":       data,
		"auth":       nil,
		"warnings":   nil,
	})
}

func writeErrors(c *gin.Context, status int, msgs ...string) {
	if msgs == nil {
		msgs = []string{}
	}
	c.JSON(status, gin.H{"errors": msgs})
}
