package handler

import (
	"context"
	"net/http"
	"time"

	"stockledger/internal/apierror"
	"stockledger/internal/infra"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the service cannot work without.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// DeadLetterQueue is the parked-job backlog of one background queue.
type DeadLetterQueue interface {
	Depth(ctx context.Context, queue string) (int64, error)
	Redrive(ctx context.Context, queue string, limit int) (int, error)
}

// OpsHandler serves liveness and job-queue maintenance.
type OpsHandler struct {
	deps     map[string]Pinger
	mailerCB *infra.CircuitBreaker
	dead     DeadLetterQueue
	queues   []string
}

func NewOpsHandler(deps map[string]Pinger, mailerCB *infra.CircuitBreaker, dead DeadLetterQueue, queues ...string) *OpsHandler {
	return &OpsHandler{deps: deps, mailerCB: mailerCB, dead: dead, queues: queues}
}

// Health godoc
// @Summary Dependency status
// @Description 503 when a required dependency is unreachable. Mailer state and parked jobs are informational.
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *OpsHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	body := gin.H{}
	status := http.StatusOK
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			body[name] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "connected"
	}
	body["ok"] = status == http.StatusOK

	if h.mailerCB != nil {
		body["mailer"] = h.mailerCB.State().String()
	}
	if h.dead != nil && len(h.queues) > 0 {
		parked := gin.H{}
		for _, q := range h.queues {
			if n, err := h.dead.Depth(ctx, q); err == nil {
				parked[q] = n
			}
		}
		body["dead_letters"] = parked
	}
	c.JSON(status, body)
}

type redriveQuery struct {
	Queue string `form:"queue" validate:"required"`
	Limit int    `form:"limit" validate:"omitempty,min=1,max=1000"`
}

// Redrive godoc
// @Summary Move parked jobs back onto their queue
// @Tags ops
// @Produce json
// @Security BearerAuth
// @Param queue query string true "Queue name, e.g. jobs:email"
// @Param limit query int false "Max jobs to move (default 100)"
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} apierror.ValidationErrors
// @Router /v1/ops/dead-letters/redrive [post]
func (h *OpsHandler) Redrive(c *gin.Context) {
	var q redriveQuery
	if !bindQuery(c, &q) {
		return
	}
	if !h.knownQueue(q.Queue) {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"queue": "unknown queue"}))
		return
	}
	if q.Limit == 0 {
		q.Limit = 100
	}
	moved, err := h.dead.Redrive(c.Request.Context(), q.Queue, q.Limit)
	if err != nil {
		respondError(c, apierror.Persistence("redrive", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": q.Queue, "moved": moved})
}

func (h *OpsHandler) knownQueue(name string) bool {
	for _, q := range h.queues {
		if q == name {
			return true
		}
	}
	return false
}
