package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/malkrite/yakiwi/internal/assistant"
	"github.com/malkrite/yakiwi/internal/broadcast"
	"github.com/malkrite/yakiwi/internal/httperr"
	"github.com/malkrite/yakiwi/internal/llm"
	"github.com/malkrite/yakiwi/internal/logger"
	"github.com/malkrite/yakiwi/internal/nostr"
)

const (
	refusedAnswer   = "I am unable to answer this question based on the provided documentation. Please try rephrasing your question or ask about a different topic."
	refusedCitation = "No citation available."

	msgGenerationFailed    = "An unexpected error occurred. Please try again."
	msgServiceUnavailable  = "The assistant is temporarily unavailable. Please try again."
	msgSignerUnavailable   = "No Nostr signer is configured. Install or enable a signer to publish."
	msgSigningDeclined     = "Signing was declined."
	msgBroadcastAllFailed  = "Could not reach any relay."
	msgUnsupportedArtifact = "The widget kind is not supported."
	msgHostUnavailable     = "The host channel is not accepting messages."
)

// Handler exposes the session orchestrator over HTTP.
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(service *Service, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.WithComponent("http"),
	}
}

// RegisterRoutes registers the API routes on the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/v1")
	{
		v1.POST("/ask", h.Ask)
		v1.POST("/share", h.Share)
		v1.POST("/widgets/publish", h.PublishWidget)
		v1.GET("/docs/summary", h.DocsSummary)
		v1.POST("/host/messages", h.HostMessage)
		v1.POST("/session/start", h.StartSession)
	}
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

type artifactDTO struct {
	Name        string `json:"name" binding:"required"`
	SourceCode  string `json:"sourceCode" binding:"required"`
	Kind        int    `json:"kind" binding:"required"`
	Explanation string `json:"explanation"`
}

type responseDTO struct {
	Answer      string       `json:"answer"`
	CodeSnippet *string      `json:"codeSnippet"`
	Citation    *string      `json:"citation"`
	Artifact    *artifactDTO `json:"artifact"`
}

type shareRequest struct {
	Question string      `json:"question" binding:"required"`
	Response responseDTO `json:"response" binding:"required"`
}

type publishRequest struct {
	Artifact artifactDTO `json:"artifact" binding:"required"`
}

type broadcastResult struct {
	AckedBy   string `json:"ackedBy"`
	ElapsedMs int64  `json:"elapsedMs"`
}

type hostMessageRequest struct {
	Kind   string `json:"kind" binding:"required"`
	Text   string `json:"text"`
	Origin string `json:"origin"`
}

type sessionStartResult struct {
	Seeded   bool         `json:"seeded"`
	Question string       `json:"question,omitempty"`
	Response *responseDTO `json:"response,omitempty"`
}

// Ask handles POST /v1/ask.
func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithBadRequest(c, "Question cannot be empty.", nil)
		return
	}

	ctx := logger.WithRequestID(c.Request.Context(), logger.GenerateRequestID())

	resp, err := h.service.Ask(ctx, req.Question)
	if err != nil {
		if llm.KindOf(err) == llm.KindRefused {
			// A refusal gets an apologetic answer, not an error status,
			// so clients render it inline like any other response.
			c.JSON(http.StatusOK, refusedDTO())
			return
		}
		h.abortAskError(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, toResponseDTO(resp))
}

// HostMessage handles POST /v1/host/messages: the embedding host's ingress
// into the session bridge. Messages are queued, not acted on; the next
// session start drains them.
func (h *Handler) HostMessage(c *gin.Context) {
	var req hostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithBadRequest(c, "Invalid host message.", nil)
		return
	}

	var msg HostMessage
	switch HostMessageKind(req.Kind) {
	case HostSeedQuery:
		if req.Text == "" {
			httperr.AbortWithBadRequest(c, "A seed query needs text.", nil)
			return
		}
		msg = HostMessage{Kind: HostSeedQuery, Text: req.Text}
	case HostReplyDestination:
		if req.Origin == "" {
			httperr.AbortWithBadRequest(c, "A reply destination needs an origin.", nil)
			return
		}
		msg = HostMessage{Kind: HostReplyDestination, Origin: req.Origin}
	default:
		httperr.AbortWithBadRequest(c, "Unknown host message kind.", nil)
		return
	}

	if !h.service.DeliverHost(msg) {
		httperr.AbortWithUnavailable(c, msgHostUnavailable, nil)
		return
	}

	c.Status(http.StatusAccepted)
}

// StartSession handles POST /v1/session/start: it drains pending host
// messages and, when the host seeded a query, answers it immediately.
func (h *Handler) StartSession(c *gin.Context) {
	ctx := logger.WithRequestID(c.Request.Context(), logger.GenerateRequestID())

	seed, ok := h.service.ConsumeHost()
	if !ok {
		c.JSON(http.StatusOK, sessionStartResult{Seeded: false})
		return
	}

	resp, err := h.service.Ask(ctx, seed)
	if err != nil {
		if llm.KindOf(err) == llm.KindRefused {
			c.JSON(http.StatusOK, sessionStartResult{
				Seeded:   true,
				Question: seed,
				Response: refusedDTO(),
			})
			return
		}
		h.abortAskError(c, ctx, err)
		return
	}

	dto := toResponseDTO(resp)
	c.JSON(http.StatusOK, sessionStartResult{
		Seeded:   true,
		Question: seed,
		Response: &dto,
	})
}

// abortAskError maps non-refusal ask failures onto the error surface shared
// by direct questions and host-seeded ones.
func (h *Handler) abortAskError(c *gin.Context, ctx context.Context, err error) {
	var validation *ValidationError
	if errors.As(err, &validation) {
		httperr.AbortWithBadRequest(c, validation.Message, nil)
		return
	}

	switch llm.KindOf(err) {
	case llm.KindUnavailable:
		httperr.AbortWithUnavailable(c, msgServiceUnavailable, nil)
	case llm.KindMalformedOutput, llm.KindEmptyOutput:
		h.logger.LogError(ctx, err, "generation contract violation")
		httperr.AbortWithBadGateway(c, msgGenerationFailed, nil)
	default:
		h.logger.LogError(ctx, err, "ask failed")
		httperr.AbortWithInternal(c, msgGenerationFailed, nil)
	}
}

// Share handles POST /v1/share.
func (h *Handler) Share(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithBadRequest(c, "Invalid share request.", nil)
		return
	}

	ctx := logger.WithRequestID(c.Request.Context(), logger.GenerateRequestID())

	outcome, err := h.service.Share(ctx, req.Question, fromResponseDTO(&req.Response))
	if err != nil {
		h.abortPublishError(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, broadcastResult{
		AckedBy:   outcome.AckedBy,
		ElapsedMs: outcome.Elapsed.Milliseconds(),
	})
}

// PublishWidget handles POST /v1/widgets/publish.
func (h *Handler) PublishWidget(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithBadRequest(c, "Invalid publish request.", nil)
		return
	}

	ctx := logger.WithRequestID(c.Request.Context(), logger.GenerateRequestID())

	artifact := &assistant.WidgetArtifact{
		Name:        req.Artifact.Name,
		SourceCode:  req.Artifact.SourceCode,
		Kind:        req.Artifact.Kind,
		Explanation: req.Artifact.Explanation,
	}

	outcome, err := h.service.PublishWidget(ctx, artifact)
	if err != nil {
		h.abortPublishError(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, broadcastResult{
		AckedBy:   outcome.AckedBy,
		ElapsedMs: outcome.Elapsed.Milliseconds(),
	})
}

// DocsSummary handles GET /v1/docs/summary.
func (h *Handler) DocsSummary(c *gin.Context) {
	ctx := logger.WithRequestID(c.Request.Context(), logger.GenerateRequestID())

	summary, err := h.service.Summarize(ctx)
	if err != nil {
		switch llm.KindOf(err) {
		case llm.KindUnavailable:
			httperr.AbortWithUnavailable(c, msgServiceUnavailable, nil)
		default:
			h.logger.LogError(ctx, err, "summary failed")
			httperr.AbortWithBadGateway(c, msgGenerationFailed, nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// abortPublishError maps signing and broadcast failures onto the closed set
// of user-facing messages. Per-relay diagnostic detail stays in logs.
func (h *Handler) abortPublishError(c *gin.Context, ctx context.Context, err error) {
	switch {
	case errors.Is(err, nostr.ErrSignerUnavailable):
		httperr.AbortWithPreconditionFailed(c, msgSignerUnavailable, nil)
	case errors.Is(err, nostr.ErrSigningDeclined):
		httperr.AbortWithBadRequest(c, msgSigningDeclined, nil)
	case errors.Is(err, ErrUnsupportedWidgetKind):
		httperr.AbortWithBadRequest(c, msgUnsupportedArtifact, nil)
	default:
		var allFailed *broadcast.AllFailed
		if errors.As(err, &allFailed) {
			httperr.AbortWithBadGateway(c, msgBroadcastAllFailed, map[string]interface{}{
				"relays": len(allFailed.PerTarget),
			})
			return
		}
		h.logger.LogError(ctx, err, "publish failed")
		httperr.AbortWithInternal(c, msgGenerationFailed, nil)
	}
}

func toResponseDTO(resp *assistant.Response) responseDTO {
	dto := responseDTO{
		Answer:      resp.Answer,
		CodeSnippet: resp.CodeSnippet,
		Citation:    resp.Citation,
	}
	if resp.Artifact != nil {
		dto.Artifact = &artifactDTO{
			Name:        resp.Artifact.Name,
			SourceCode:  resp.Artifact.SourceCode,
			Kind:        resp.Artifact.Kind,
			Explanation: resp.Artifact.Explanation,
		}
	}
	return dto
}

func fromResponseDTO(dto *responseDTO) *assistant.Response {
	resp := &assistant.Response{
		Answer:      dto.Answer,
		CodeSnippet: dto.CodeSnippet,
		Citation:    dto.Citation,
	}
	if dto.Artifact != nil {
		resp.Artifact = &assistant.WidgetArtifact{
			Name:        dto.Artifact.Name,
			SourceCode:  dto.Artifact.SourceCode,
			Kind:        dto.Artifact.Kind,
			Explanation: dto.Artifact.Explanation,
		}
	}
	return resp
}

func refusedDTO() *responseDTO {
	return &responseDTO{
		Answer:   refusedAnswer,
		Citation: strPtr(refusedCitation),
	}
}

func strPtr(s string) *string {
	return &s
}
