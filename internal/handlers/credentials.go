package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"feedflow/internal/secrets"
	"feedflow/internal/sources"
)

// CredentialHandler manages stored source logins. Passwords go in and
// never come back out; Status reports only whether a login exists.
type CredentialHandler struct {
	creds    *secrets.CredentialStore
	registry *sources.Registry
}

func NewCredentialHandler(creds *secrets.CredentialStore, registry *sources.Registry) *CredentialHandler {
	return &CredentialHandler{creds: creds, registry: registry}
}

// loginSource validates the path source and rejects sources that never
// authenticate.
func (h *CredentialHandler) loginSource(c *gin.Context) (string, bool) {
	id := c.Param("source")
	if _, ok := h.registry.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown source " + id})
		return "", false
	}
	if sources.Capabilities[id].Login == sources.LoginNone {
		abortWithError(c, &sources.UnsupportedError{SourceID: id, Op: "login"})
		return "", false
	}
	return id, true
}

type credentialRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *CredentialHandler) Save(c *gin.Context) {
	id, ok := h.loginSource(c)
	if !ok {
		return
	}
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.creds.SaveCredentials(id, req.Username, req.Password); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "saved"})
}

func (h *CredentialHandler) Status(c *gin.Context) {
	id, ok := h.loginSource(c)
	if !ok {
		return
	}
	username, _, configured := h.creds.Credentials(id)
	c.JSON(http.StatusOK, gin.H{"configured": configured, "username": username})
}

// Clear drops the stored login pair and any session cookies for the
// source.
func (h *CredentialHandler) Clear(c *gin.Context) {
	id, ok := h.loginSource(c)
	if !ok {
		return
	}
	if err := h.creds.ClearCredentials(id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
