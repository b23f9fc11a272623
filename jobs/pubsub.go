package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mmdatafocus/franchise_analytics/analytics"
	"github.com/mmdatafocus/franchise_analytics/config"
	"github.com/mmdatafocus/franchise_analytics/models"
	"github.com/mmdatafocus/franchise_analytics/utils"
	"github.com/sirupsen/logrus"
)

// RunRequest asks for an on-demand run. An empty FranchiseId fans out over every franchise.
type RunRequest struct {
	Job           string     `json:"job" validate:"required,oneof=weekly_rollup monthly_rollup cash_flow_forecast"`
	FranchiseId   string     `json:"franchise_id,omitempty" validate:"omitempty,max=64"`
	Now           *time.Time `json:"now,omitempty"`
	CorrelationId string     `json:"correlation_id,omitempty"`
}

// PushEnvelope is the body Pub/Sub push subscriptions POST.
type PushEnvelope struct {
	Message struct {
		// byte slice unmarshalling handles base64 decoding.
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// Trigger is what an on-demand request can start.
type Trigger interface {
	Runner
	RunFranchise(ctx context.Context, job analytics.Job, franchiseID string, now time.Time) error
}

var validate = validator.New()

func (r RunRequest) Validate() error {
	return validate.Struct(r)
}

// PublishRunRequest validates req and publishes it to topic.
func PublishRunRequest(ctx context.Context, topic string, req RunRequest) (string, error) {
	if req.CorrelationId == "" {
		req.CorrelationId = uuid.NewString()
	}
	if err := req.Validate(); err != nil {
		return "", err
	}
	return config.PublishJSON(ctx, topic, req)
}

// Execute runs req against t. now is used unless the request pins its own instant.
func Execute(ctx context.Context, t Trigger, req RunRequest, now time.Time) error {
	if err := req.Validate(); err != nil {
		return err
	}
	job, err := analytics.ParseJob(req.Job)
	if err != nil {
		return err
	}
	if req.Now != nil {
		now = req.Now.UTC()
	}
	if req.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, req.CorrelationId)
	}

	if strings.TrimSpace(req.FranchiseId) == "" {
		_, err := t.RunAll(ctx, job, now, models.RunTriggerOnDemand)
		return err
	}
	return t.RunFranchise(ctx, job, req.FranchiseId, now)
}

// PushHandler handles Pub/Sub push deliveries. It always acks with 204: malformed or invalid
// messages are dropped, and failed runs are visible in the run log instead of being retried.
func PushHandler(t Trigger, clock analytics.Clock) gin.HandlerFunc {
	if clock == nil {
		clock = analytics.SystemClock{}
	}
	return func(c *gin.Context) {
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "jobs", "PushHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}

		var envelope PushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			config.LogError(logger, "jobs", "PushHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}

		var req RunRequest
		if err := json.Unmarshal(envelope.Message.Data, &req); err != nil {
			config.LogError(logger, "jobs", "PushHandler", "Unmarshal run request", string(envelope.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}
		if req.CorrelationId == "" {
			req.CorrelationId = envelope.Message.ID
		}

		err = Execute(c.Request.Context(), t, req, clock.Now())
		switch {
		case err == nil:
			logger.WithFields(logrus.Fields{
				"job":            req.Job,
				"franchise_id":   req.FranchiseId,
				"message_id":     envelope.Message.ID,
				"correlation_id": req.CorrelationId,
			}).Info("on-demand analytics run finished")
		case errors.Is(err, analytics.ErrRunInProgress):
			logger.WithFields(logrus.Fields{
				"job":          req.Job,
				"franchise_id": req.FranchiseId,
				"message_id":   envelope.Message.ID,
			}).Warn("analytics run already in progress; dropping request")
		default:
			config.LogError(logger, "jobs", "PushHandler", "run "+req.Job, req, err)
		}
		c.Status(http.StatusNoContent)
	}
}
