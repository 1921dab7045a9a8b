package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

type messageEnqueuer interface {
	EnqueueMessage(ctx context.Context, jobID string, req MessageRequest, opts ...PublishOption) error
}

// Handler lets operators simulate turns over HTTP without a messaging channel.
type Handler struct {
	enqueuer messageEnqueuer
	jobs     JobRecorder
	logger   *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(enqueuer messageEnqueuer, jobs JobRecorder, logger *logging.Logger) *Handler {
	if enqueuer == nil {
		panic("conversation: enqueuer cannot be nil")
	}
	if jobs == nil {
		panic("conversation: job store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		enqueuer: enqueuer,
		jobs:     jobs,
		logger:   logger,
	}
}

type acceptedResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// Message handles POST /conversations/messages. The turn runs asynchronously;
// poll the returned job id for the reply.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "user_id and message are required", http.StatusBadRequest)
		return
	}
	if req.Channel == ChannelUnknown {
		req.Channel = ChannelAPI
	}

	jobID := uuid.NewString()
	job := &JobRecord{
		JobID:          jobID,
		RequestType:    jobTypeMessage,
		UserID:         req.UserID,
		MessageRequest: &req,
	}
	if err := h.jobs.PutPending(r.Context(), job); err != nil {
		h.logger.Error("failed to record conversation job", "error", err, "job_id", jobID)
		http.Error(w, "Failed to accept message", http.StatusInternalServerError)
		return
	}
	if err := h.enqueuer.EnqueueMessage(r.Context(), jobID, req); err != nil {
		h.logger.Error("failed to enqueue conversation job", "error", err, "job_id", jobID)
		http.Error(w, "Failed to accept message", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, acceptedResponse{JobID: jobID, Status: JobStatusPending})
}

// JobStatus handles GET /conversations/jobs/{jobID}.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		http.Error(w, "job id required", http.StatusBadRequest)
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load conversation job", "error", err, "job_id", jobID)
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, job)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
