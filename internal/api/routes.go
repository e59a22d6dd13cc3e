package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hollandm/glimpse/internal/blob"
	"github.com/hollandm/glimpse/internal/chat"
	"github.com/hollandm/glimpse/internal/command"
	"github.com/hollandm/glimpse/internal/models"
	"github.com/hollandm/glimpse/internal/pipeline"
	"github.com/hollandm/glimpse/internal/session"
)

// registerRoutes sets up all relay routes on the gin router.
func (s *Server) registerRoutes(router *gin.Engine) {
	api := router.Group("/api")

	api.GET("/health", s.handleHealth)

	api.POST("/register", s.handleRegister)
	api.POST("/pair", s.handlePair)
	api.GET("/sessions/:desktopId", s.handleGetSession)

	api.GET("/commands/:desktopId", s.handleDrain)
	api.POST("/commands", s.handleEnqueue)
	api.POST("/commands/:requestId/processed", s.handleMarkProcessed)

	api.POST("/uploads/screenshot", s.handleUploadScreenshot)
	api.POST("/uploads/video", s.handleUploadVideo)

	// Storage IDs are date-prefixed object keys with slashes.
	api.GET("/media/*storageId", s.handleMedia)

	api.POST("/chat", s.handleSendChat)
	api.GET("/chat/:sessionId", s.handleChatHistory)
	api.GET("/results/:requestId", s.handleResult)

	api.POST("/recordings/start", s.handleStartRecording)
	api.POST("/recordings/stop", s.handleStopRecording)
}

func (s *Server) handleHealth(c *gin.Context) {
	// Degradation is probed live, not remembered: a store that has
	// recovered reports healthy again.
	degraded := false
	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		degraded = true
	}

	s.mu.Lock()
	memSessions := len(s.mem)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"degraded":         degraded,
		"inMemorySessions": memSessions,
	})
}

// --- Sessions ---

type registerResponse struct {
	DesktopID   string `json:"desktopId"`
	SessionID   string `json:"sessionId"`
	PairingCode string `json:"pairingCode"`
	Degraded    bool   `json:"degraded,omitempty"`
}

func (s *Server) handleRegister(c *gin.Context) {
	sess, err := session.Register(s.db)
	if err != nil {
		// Registration must not block the desktop from reaching a
		// usable state; fall back to an in-memory session and say so.
		s.log.Error("register degraded", "err", err)
		code, codeErr := session.GenerateCode()
		if codeErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": codeErr.Error()})
			return
		}
		sess = &models.Session{
			ID:          uuid.NewString(),
			DesktopID:   uuid.NewString(),
			PairingCode: code,
			CreatedAt:   time.Now(),
		}
		s.mu.Lock()
		s.mem[sess.DesktopID] = sess
		s.mu.Unlock()

		c.JSON(http.StatusOK, registerResponse{
			DesktopID:   sess.DesktopID,
			SessionID:   sess.ID,
			PairingCode: sess.PairingCode,
			Degraded:    true,
		})
		return
	}

	c.JSON(http.StatusOK, registerResponse{
		DesktopID:   sess.DesktopID,
		SessionID:   sess.ID,
		PairingCode: sess.PairingCode,
	})
}

type pairRequest struct {
	PairingCode string `json:"pairingCode"`
}

func (s *Server) handlePair(c *gin.Context) {
	var req pairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if session.NormalizeCode(req.PairingCode) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pairingCode is required"})
		return
	}

	sess, err := session.Pair(s.db, req.PairingCode)
	if errors.Is(err, session.ErrNotFound) {
		// Degraded sessions are pairable in memory.
		if m := s.memPair(req.PairingCode); m != nil {
			c.JSON(http.StatusOK, gin.H{"sessionId": m.ID, "desktopId": m.DesktopID})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "no session holds that pairing code"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sess.ID, "desktopId": sess.DesktopID})
}

func (s *Server) handleGetSession(c *gin.Context) {
	desktopID := c.Param("desktopId")
	sess, err := session.ByDesktopID(s.db, desktopID)
	if errors.Is(err, session.ErrNotFound) {
		s.mu.Lock()
		m := s.mem[desktopID]
		s.mu.Unlock()
		if m != nil {
			c.JSON(http.StatusOK, gin.H{
				"sessionId":       m.ID,
				"mobileConnected": m.MobileConnected,
				"degraded":        true,
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown desktop"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sess.ID, "mobileConnected": sess.MobileConnected})
}

func (s *Server) memPair(code string) *models.Session {
	norm := session.NormalizeCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.mem {
		if m.PairingCode == norm {
			m.MobileConnected = true
			return m
		}
	}
	return nil
}

// --- Commands ---

type commandView struct {
	RequestID string    `json:"requestId"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) handleDrain(c *gin.Context) {
	cmds, err := command.Drain(s.db, c.Param("desktopId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]commandView, len(cmds))
	for i, cmd := range cmds {
		views[i] = commandView{
			RequestID: cmd.RequestID,
			Kind:      string(cmd.Kind),
			CreatedAt: cmd.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"commands": views})
}

type enqueueRequest struct {
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"`
}

func (s *Server) handleEnqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	s.enqueueForSession(c, req.SessionID, models.CommandKind(req.Kind))
}

// enqueueForSession resolves a session ID to its desktop and enqueues a
// command, writing the HTTP response.
func (s *Server) enqueueForSession(c *gin.Context, sessionID string, kind models.CommandKind) {
	if !command.ValidKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown command kind"})
		return
	}
	sess, err := session.ByID(s.db, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cmd, err := command.Enqueue(s.db, sess.DesktopID, kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued", "requestId": cmd.RequestID})
}

func (s *Server) handleMarkProcessed(c *gin.Context) {
	if err := command.MarkProcessed(s.db, c.Param("requestId")); err != nil {
		if errors.Is(err, command.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

// --- Uploads ---

func (s *Server) handleUploadScreenshot(c *gin.Context) {
	s.handleUpload(c, models.MediaScreenshot)
}

func (s *Server) handleUploadVideo(c *gin.Context) {
	s.handleUpload(c, models.MediaVideo)
}

// allowedMimeType gates uploads to the media family the endpoint expects.
func allowedMimeType(mediaType, mimeType string) bool {
	switch mediaType {
	case models.MediaScreenshot:
		return strings.HasPrefix(mimeType, "image/")
	case models.MediaVideo:
		return strings.HasPrefix(mimeType, "video/")
	}
	return false
}

func (s *Server) handleUpload(c *gin.Context, mediaType string) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size cap"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size cap"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "read upload: " + err.Error()})
		return
	}

	mimeType := c.PostForm("mimeType")
	if mimeType == "" {
		if mediaType == models.MediaVideo {
			mimeType = "video/webm"
		} else {
			mimeType = "image/png"
		}
	}
	if !allowedMimeType(mediaType, mimeType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported mime type " + strconv.Quote(mimeType)})
		return
	}

	var duration float64
	if mediaType == models.MediaVideo {
		if raw := c.PostForm("duration"); raw != "" {
			duration, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "duration must be a number"})
				return
			}
		}
	}

	res, err := s.pipeline.Process(c.Request.Context(), pipeline.Input{
		DesktopID: c.PostForm("desktopId"),
		RequestID: c.PostForm("requestId"),
		Data:      data,
		MimeType:  mimeType,
		Prompt:    c.PostForm("prompt"),
		MediaType: mediaType,
		Duration:  duration,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"previewDataUrl": res.PreviewDataURL,
		"analysis":       res.Analysis,
		"requestId":      res.RequestID,
		"messageId":      res.MessageID,
	}
	if res.StorageID != "" {
		resp["storageId"] = res.StorageID
	}
	if mediaType == models.MediaVideo {
		resp["duration"] = res.Duration
	}
	c.JSON(http.StatusOK, resp)
}

// handleMedia redirects to a short-lived download URL for a stored capture.
func (s *Server) handleMedia(c *gin.Context) {
	storageID := strings.TrimPrefix(c.Param("storageId"), "/")
	url, err := s.blobs.Resolve(c.Request.Context(), storageID)
	if errors.Is(err, blob.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown media"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Redirect(http.StatusFound, url)
}

// --- Chat ---

type sendChatRequest struct {
	SessionID         string `json:"sessionId"`
	Text              string `json:"text"`
	RequestScreenshot bool   `json:"requestScreenshot"`
}

func (s *Server) handleSendChat(c *gin.Context) {
	var req sendChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	sess, err := session.ByID(s.db, req.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	msg, err := chat.Append(s.db, sess.ID, models.RoleUser, req.Text, chat.AppendOpts{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"messageId": msg.ID, "status": "sent"}
	if req.RequestScreenshot {
		cmd, err := command.Enqueue(s.db, sess.DesktopID, models.KindScreenshot)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp["requestId"] = cmd.RequestID
	}
	c.JSON(http.StatusOK, resp)
}

type messageView struct {
	MessageID      string    `json:"messageId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	MediaType      string    `json:"mediaType,omitempty"`
	MediaStorageID string    `json:"mediaStorageId,omitempty"`
	MediaURL       string    `json:"mediaUrl,omitempty"`
	RequestID      string    `json:"requestId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func messageViewOf(m models.ChatMessage) messageView {
	v := messageView{
		MessageID:      m.ID,
		Role:           m.Role,
		Content:        m.Content,
		MediaType:      m.MediaType,
		MediaStorageID: m.MediaStorageID,
		MediaURL:       m.MediaURL,
		RequestID:      m.RequestID,
		CreatedAt:      m.CreatedAt,
	}
	if v.MediaURL == "" && m.MediaStorageID != "" {
		v.MediaURL = "/api/media/" + m.MediaStorageID
	}
	return v
}

func (s *Server) handleChatHistory(c *gin.Context) {
	msgs, err := chat.History(s.db, c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]messageView, len(msgs))
	for i, m := range msgs {
		views[i] = messageViewOf(m)
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

func (s *Server) handleResult(c *gin.Context) {
	msg, err := chat.ResultFor(s.db, c.Param("requestId"))
	if errors.Is(err, chat.ErrNoResult) {
		// Expected transient state while the pipeline runs.
		c.JSON(http.StatusNotFound, gin.H{"error": "no result yet"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, messageViewOf(*msg))
}

// --- Recordings ---

type recordingRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleStartRecording(c *gin.Context) {
	var req recordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	s.enqueueForSession(c, req.SessionID, models.KindStartRecording)
}

func (s *Server) handleStopRecording(c *gin.Context) {
	var req recordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	s.enqueueForSession(c, req.SessionID, models.KindStopRecording)
}

// --- Retention ---

func (s *Server) purgeProcessed(ttl time.Duration) {
	n, err := command.PurgeProcessed(s.db, ttl)
	if err != nil {
		s.log.Error("purge processed commands", "err", err)
		return
	}
	if n > 0 {
		s.log.Info("purged processed commands", "count", n)
	}
}
