package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hytun/internal/auth"
	"hytun/internal/config"
	"hytun/internal/paths"
	"hytun/internal/storage/models"
	"hytun/internal/storage/sqlite"
	pkgerrors "hytun/pkg/errors"
)

// ─── Auth ───────────────────────────────────────────────────────────────────

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response{Message: "username and password are required"})
		return
	}

	meta := auth.ClientMeta{
		RemoteAddr: c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}

	token, err := s.sessions.Login(req.Username, req.Password, meta)
	s.recordLogin(c, req.Username, err == nil)
	if err != nil {
		fail(c, err)
		return
	}

	ttl := int(s.settings.Get().SessionTTL().Seconds())
	c.SetCookie(sessionCookie, token, ttl, "/", "", false, true)
	okMsg(c, "login successful", gin.H{"token": token})
}

func (s *Server) handleLogout(c *gin.Context) {
	if token := extractToken(c); token != "" {
		if err := s.sessions.Revoke(token); err != nil {
			fail(c, err)
			return
		}
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	okMsg(c, "logged out", nil)
}

func (s *Server) handleSessionInfo(c *gin.Context) {
	session := currentSession(c)
	account, err := s.creds.Get(session.Username)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{
		"username":      session.Username,
		"role":          account.Role,
		"created_at":    session.CreatedAt,
		"expires_at":    session.ExpiresAt,
		"last_activity": session.LastActivity,
	})
}

type passwordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response{Message: "old and new password are required"})
		return
	}

	username := currentSession(c).Username
	if !s.creds.Verify(username, req.OldPassword) {
		fail(c, pkgerrors.ErrInvalidCredentials)
		return
	}
	if err := s.creds.SetPassword(username, req.NewPassword); err != nil {
		fail(c, err)
		return
	}

	// Old sessions die with the old password.
	if err := s.sessions.RevokeUser(username); err != nil {
		slog.Warn("failed to revoke sessions after password change", "username", username, "error", err)
	}
	okMsg(c, "password updated, please log in again", nil)
}

type renameRequest struct {
	NewUsername string `json:"new_username" binding:"required"`
	Password    string `json:"password" binding:"required"`
}

func (s *Server) handleRename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response{Message: "new username and password are required"})
		return
	}

	username := currentSession(c).Username
	if err := s.creds.Rename(username, req.NewUsername, req.Password); err != nil {
		fail(c, err)
		return
	}
	if err := s.sessions.RevokeUser(username); err != nil {
		slog.Warn("failed to revoke sessions after rename", "username", username, "error", err)
	}
	okMsg(c, "account renamed, please log in again", nil)
}

func (s *Server) handleListUsers(c *gin.Context) {
	ok(c, s.creds.List())
}

func (s *Server) recordLogin(c *gin.Context, username string, success bool) {
	if s.history == nil {
		return
	}
	ev := &sqlite.LoginEvent{
		Username:   username,
		Success:    success,
		RemoteAddr: c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		OccurredAt: time.Now(),
	}
	if err := s.history.RecordLogin(c.Request.Context(), ev); err != nil {
		slog.Warn("failed to record login event", "error", err)
	}
}

// ─── Nodes ──────────────────────────────────────────────────────────────────

func (s *Server) handleListNodes(c *gin.Context) {
	nodes, current := s.registry.List()
	ok(c, gin.H{
		"nodes":         sanitizeNodes(nodes),
		"current":       current,
		"subscriptions": s.registry.Subscriptions(),
	})
}

type addNodeRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`

	// Manual entry fields, used when URL is empty.
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	Auth         string   `json:"auth"`
	SNI          string   `json:"sni"`
	Insecure     bool     `json:"insecure"`
	ALPN         []string `json:"alpn"`
	Obfs         string   `json:"obfs"`
	ObfsPassword string   `json:"obfs_password"`
	Up           string   `json:"up"`
	Down         string   `json:"down"`
	MTU          int      `json:"mtu"`
	Group        string   `json:"group"`
}

func (s *Server) handleAddNode(c *gin.Context) {
	var req addNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response{Message: "invalid request body"})
		return
	}

	var (
		added *models.Node
		err   error
	)
	if req.URL != "" {
		added, err = s.registry.Add(req.URL)
		if err == nil && req.Name != "" {
			added, err = s.registry.Update(c.Request.Context(), added.ID, models.NodePatch{Name: &req.Name})
		}
	} else {
		added, err = s.registry.AddManual(&models.Node{
			Name:          req.Name,
			Server:        req.Server,
			Port:          req.Port,
			Secret:        req.Auth,
			SNI:           req.SNI,
			Insecure:      req.Insecure,
			ALPN:          req.ALPN,
			Obfs:          req.Obfs,
			ObfsPassword:  req.ObfsPassword,
			BandwidthUp:   req.Up,
			BandwidthDown: req.Down,
			MTU:           req.MTU,
			Group:         req.Group,
		})
	}
	if err != nil {
		fail(c, err)
		return
	}
	okMsg(c, "node added", sanitizeNode(added))
}

func (s *Server) handleUpdateNode(c *gin.Context) {
	var patch models.NodePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, response{Message: "invalid request body"})
		return
	}

	updated, err := s.registry.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	okMsg(c, "node updated", sanitizeNode(updated))
}

func (s *Server) handleDeleteNode(c *gin.Context) {
	if err := s.registry.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, "node deleted", nil)
}

func (s *Server) handleUseNode(c *gin.Context) {
	used, err := s.registry.Use(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	okMsg(c, "node activated", sanitizeNode(used))
}

// sanitizeNode strips the shared secret before a profile leaves the API.
func sanitizeNode(n *models.Node) *models.Node {
	if n == nil {
		return nil
	}
	clean := *n
	clean.Secret = ""
	clean.ObfsPassword = ""
	return &clean
}

func sanitizeNodes(nodes []*models.Node) []*models.Node {
	out := make([]*models.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, sanitizeNode(n))
	}
	return out
}

// ─── Service & status ───────────────────────────────────────────────────────

func (s *Server) handleServiceAction(c *gin.Context) {
	ctx := c.Request.Context()

	var err error
	switch action := c.Param("action"); action {
	case "start":
		err = s.svc.Start(ctx)
	case "stop":
		err = s.svc.Stop(ctx)
	case "restart":
		err = s.svc.Restart(ctx)
	default:
		c.JSON(http.StatusBadRequest, response{Message: "unknown action: " + action})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	okMsg(c, "service "+c.Param("action")+" completed", nil)
}

func (s *Server) handleStatus(c *gin.Context) {
	status := s.mon.Status()
	ok(c, gin.H{
		"service":      status,
		"current_node": sanitizeNode(s.registry.Current()),
		"sessions":     s.sessions.Count(),
	})
}

func (s *Server) handleLogs(c *gin.Context) {
	lines := 100
	if v := c.Query("lines"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 5000 {
			lines = n
		}
	}

	logs := gin.H{}
	if path, err := paths.HysteriaLog(); err == nil {
		if out, err := s.svc.TailLog(c.Request.Context(), path, lines); err == nil {
			logs["hysteria"] = out
		}
	}
	if path, err := paths.ManagerLog(); err == nil {
		if out, err := s.svc.TailLog(c.Request.Context(), path, lines); err == nil {
			logs["manager"] = out
		}
	}
	ok(c, logs)
}

func (s *Server) handleLoginAudit(c *gin.Context) {
	events, err := s.history.RecentLogins(c.Request.Context(), 200)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, events)
}

func (s *Server) handleStatusHistory(c *gin.Context) {
	samples, err := s.history.StatusHistory(c.Request.Context(), 500)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, samples)
}

// ─── Settings & subscriptions ───────────────────────────────────────────────

func (s *Server) handleGetSettings(c *gin.Context) {
	ok(c, s.settings.Get())
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var settings config.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, response{Message: "invalid request body"})
		return
	}
	if err := s.settings.Update(settings); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, "settings updated", s.settings.Get())
}

func (s *Server) handleListSubscriptions(c *gin.Context) {
	ok(c, s.registry.Subscriptions())
}

type subscriptionRequest struct {
	URL  string `json:"url" binding:"required"`
	Name string `json:"name"`
}

func (s *Server) handleImportSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response{Message: "subscription url is required"})
		return
	}

	result, err := s.subs.Import(c.Request.Context(), req.URL, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	okMsg(c, "subscription imported", result)
}

func (s *Server) handleRefreshSubscriptions(c *gin.Context) {
	ok(c, s.subs.RefreshAll(c.Request.Context()))
}
