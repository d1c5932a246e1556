package fakevault

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ReadConfig handles GET /config.
func (s *Server) ReadConfig(c *gin.Context) {
	m := mountOf(c)
	s.store.mu.RLock()
	cfg := m.config
	s.store.mu.RUnlock()
	writeData(c, cfg)
}

// WriteConfig handles POST /config. Only the fields sent are changed.
func (s *Server) WriteConfig(c *gin.Context) {
	m := mountOf(c)
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	cfg := m.config
	if err := bindOptional(c, &cfg); err != nil {
		writeErrors(c, http.StatusBadRequest, err.Error())
		return
	}
	m.config = cfg
	c.Status(http.StatusNoContent)
}

// ListRoles handles LIST /certs. An empty mount is a 404, as on a real
// server.
func (s *Server) ListRoles(c *gin.Context) {
	if !isList(c) {
		writeErrors(c, http.StatusMethodNotAllowed, "unsupported operation")
		return
	}
	m := mountOf(c)
	s.store.mu.RLock()
	keys := sortedKeys(m.roles)
	s.store.mu.RUnlock()
	if len(keys) == 0 {
		writeErrors(c, http.StatusNotFound)
		return
	}
	writeData(c, gin.H{"keys": keys})
}

// ReadRole handles GET /certs/:name.
func (s *Server) ReadRole(c *gin.Context) {
	m := mountOf(c)
	s.store.mu.RLock()
	r, ok := m.roles[c.Param("name")]
	var view map[string]any
	if ok {
		view = r.view()
	}
	s.store.mu.RUnlock()
	if !ok {
		writeErrors(c, http.StatusNotFound)
		return
	}
	writeData(c, view)
}

// WriteRole handles POST /certs/:name, creating or updating the role.
func (s *Server) WriteRole(c *gin.Context) {
	var in roleInput
	if err := bindOptional(c, &in); err != nil {
		writeErrors(c, http.StatusBadRequest, err.Error())
		return
	}

	m := mountOf(c)
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	name := c.Param("name")
	r := &role{}
	if existing, ok := m.roles[name]; ok {
		copied := *existing
		r = &copied
	}
	if err := in.apply(r); err != nil {
		writeErrors(c, http.StatusBadRequest, err.Error())
		return
	}
	m.roles[name] = r
	c.Status(http.StatusNoContent)
}

// DeleteRole handles DELETE /certs/:name. Deleting a missing role succeeds.
func (s *Server) DeleteRole(c *gin.Context) {
	m := mountOf(c)
	s.store.mu.Lock()
	delete(m.roles, c.Param("name"))
	s.store.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (s *Server) ListCRLs(c *gin.Context) {
	if !isList(c) {
		writeErrors(c, http.StatusMethodNotAllowed, "unsupported operation")
		return
	}
	m := mountOf(c)
	s.store.mu.RLock()
	keys := sortedKeys(m.crls)
	s.store.mu.RUnlock()
	if len(keys) == 0 {
		writeErrors(c, http.StatusNotFound)
		return
	}
	writeData(c, gin.H{"keys": keys})
}

func (s *Server) ReadCRL(c *gin.Context) {
	m := mountOf(c)
	s.store.mu.RLock()
	serials, ok := m.crls[c.Param("name")]
	s.store.mu.RUnlock()
	if !ok {
		writeErrors(c, http.StatusNotFound)
		return
	}
	writeData(c, gin.H{"serials": serials})
}

// WriteCRL handles POST /crls/:name with a PEM or DER CRL in "crl".
func (s *Server) WriteCRL(c *gin.Context) {
	var in struct {
		CRL string `json:"crl"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.CRL == "" {
		writeErrors(c, http.StatusBadRequest, "parsed CRL is nil")
		return
	}
	serials, err := parseCRL(in.CRL)
	if err != nil {
		writeErrors(c, http.StatusBadRequest, err.Error())
		return
	}

	m := mountOf(c)
	s.store.mu.Lock()
	m.crls[c.Param("name")] = serials
	s.store.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (s *Server) DeleteCRL(c *gin.Context) {
	m := mountOf(c)
	s.store.mu.Lock()
	delete(m.crls, c.Param("name"))
	s.store.mu.Unlock()
	c.Status(http.StatusNoContent)
}

// bindOptional decodes a JSON body into v, treating an empty body as {}.
func bindOptional(c *gin.Context, v any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(v)
}
