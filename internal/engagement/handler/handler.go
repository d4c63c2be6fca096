package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/internal/engagement/sequences"
	"replyflow_backend/internal/engagement/service"
	"replyflow_backend/internal/engagement/threads"
	"replyflow_backend/internal/engagement/transport"
	"replyflow_backend/platform/httpkit"
	"replyflow_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc         *service.Service
	seqService  *sequences.Service
	threadStore *threads.Store
	val         *validator.Validator
}

func New(svc *service.Service, seqService *sequences.Service, threadStore *threads.Store, val *validator.Validator) *Handler {
	return &Handler{svc: svc, seqService: seqService, threadStore: threadStore, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/messages", h.SubmitMessage)
	rg.POST("/feedback", h.SubmitFeedback)
	rg.GET("/stats", h.Stats)
	rg.GET("/threads", h.ListThreads)
	rg.GET("/sequences/:id", h.GetSequence)
	rg.POST("/sequences/:id/pause", h.PauseSequence)
	rg.POST("/sequences/:id/resume", h.ResumeSequence)
	rg.POST("/sequences/:id/review", h.ReviewSequence)
}

// SubmitMessage feeds one message into the pipeline. Used by webhook
// integrations and manual testing next to the IMAP poller.
func (h *Handler) SubmitMessage(c *gin.Context) {
	var req transport.SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result := h.svc.ProcessMessage(c.Request.Context(), req.ToDomain())
	httpkit.JSON(c, http.StatusAccepted, result)
}

func (h *Handler) SubmitFeedback(c *gin.Context) {
	var req transport.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	newScore, err := h.svc.ApplyFeedback(c.Request.Context(), req.MessageID, domain.Classification(req.Classification))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FeedbackResponse{MessageID: req.MessageID, NewScore: newScore})
}

func (h *Handler) Stats(c *gin.Context) {
	httpkit.OK(c, transport.StatsResponse{
		Pipeline:  h.svc.Stats(),
		Threads:   h.threadStore.Statistics(),
		Sequences: h.seqService.Store().Statistics(time.Now()),
	})
}

func (h *Handler) ListThreads(c *gin.Context) {
	since := time.Now().AddDate(0, 0, -7)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "since must be RFC3339", nil)
			return
		}
		since = parsed
	}
	httpkit.OK(c, h.threadStore.ActiveSince(since))
}

func (h *Handler) GetSequence(c *gin.Context) {
	seq, ok := h.seqService.Store().Get(c.Param("id"))
	if !ok {
		httpkit.Error(c, http.StatusNotFound, "sequence not found", nil)
		return
	}
	httpkit.OK(c, seq)
}

func (h *Handler) PauseSequence(c *gin.Context) {
	var req transport.PauseSequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.seqService.Pause(c.Param("id"), req.Reason); httpkit.HandleError(c, err) {
		return
	}
	seq, _ := h.seqService.Store().Get(c.Param("id"))
	httpkit.OK(c, seq)
}

func (h *Handler) ResumeSequence(c *gin.Context) {
	if err := h.seqService.Resume(c.Param("id"), time.Now()); httpkit.HandleError(c, err) {
		return
	}
	seq, _ := h.seqService.Store().Get(c.Param("id"))
	httpkit.OK(c, seq)
}

func (h *Handler) ReviewSequence(c *gin.Context) {
	var req transport.ReviewSequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	action, err := h.seqService.ResolveReview(c.Request.Context(), c.Param("id"), req.Approve, time.Now())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, action)
}
