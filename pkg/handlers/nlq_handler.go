package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitebase/intelligence-engine/pkg/apperrors"
	"github.com/bitebase/intelligence-engine/pkg/auth"
	"github.com/bitebase/intelligence-engine/pkg/models"
	"github.com/bitebase/intelligence-engine/pkg/repositories"
	"github.com/bitebase/intelligence-engine/pkg/services"
)

// maxHistoryLimit caps how many history entries one request may page through.
const maxHistoryLimit = 200

// defaultHistoryLimit applies when the caller does not pass ?limit=.
const defaultHistoryLimit = 50

// ProcessQueryRequest is the POST body for /api/nlq/process and /validate.
type ProcessQueryRequest struct {
	Query        string `json:"query"`
	RestaurantID string `json:"restaurant_id"`

	// Locations are extra location names to resolve against, on top of the
	// restaurant's own. Optional.
	Locations []string `json:"locations,omitempty"`

	// TimeoutSeconds lowers the warehouse execution timeout for this
	// request. Values above the server ceiling are capped.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// FeedbackRequest is the POST body for /api/nlq/feedback.
type FeedbackRequest struct {
	QueryID      string  `json:"query_id"`
	Rating       int     `json:"rating"`
	FeedbackText *string `json:"feedback_text,omitempty"`
	WasHelpful   bool    `json:"was_helpful"`
}

// ListHistoryResponse wraps a page of history entries with the total count.
type ListHistoryResponse struct {
	Entries []*models.QueryHistoryEntry `json:"entries"`
	Total   int                         `json:"total"`
}

// SuggestionsResponse wraps the ranked query suggestions.
type SuggestionsResponse struct {
	Suggestions []models.QuerySuggestion `json:"suggestions"`
}

// NLQHandler exposes the natural-language query pipeline over HTTP.
type NLQHandler struct {
	queryService    services.QueryService
	feedbackService services.FeedbackService
	history         repositories.HistoryRepository
	logger          *zap.Logger
}

// NewNLQHandler creates a new NLQ handler.
func NewNLQHandler(
	queryService services.QueryService,
	feedbackService services.FeedbackService,
	history repositories.HistoryRepository,
	logger *zap.Logger,
) *NLQHandler {
	return &NLQHandler{
		queryService:    queryService,
		feedbackService: feedbackService,
		history:         history,
		logger:          logger,
	}
}

// RegisterRoutes registers the NLQ routes on the given mux. Every route
// requires a valid bearer token plus the permission matching the action.
func (h *NLQHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/nlq/process",
		authMiddleware.RequirePermission(auth.PermQueryRun)(h.Process))
	mux.HandleFunc("POST /api/nlq/validate",
		authMiddleware.RequirePermission(auth.PermQueryRun)(h.Validate))
	mux.HandleFunc("GET /api/nlq/suggestions",
		authMiddleware.RequirePermission(auth.PermQueryRun)(h.Suggestions))
	mux.HandleFunc("GET /api/nlq/history",
		authMiddleware.RequirePermission(auth.PermHistoryRead)(h.History))
	mux.HandleFunc("POST /api/nlq/feedback",
		authMiddleware.RequirePermission(auth.PermFeedbackSubmit)(h.Feedback))
	mux.HandleFunc("GET /api/nlq/metrics",
		authMiddleware.RequirePermission(auth.PermMetricsRead)(h.Metrics))
}

// Process handles POST /api/nlq/process: full pipeline plus warehouse
// execution. Pipeline-level failures come back as 200 with success=false
// inside the payload; only infrastructure problems produce 5xx.
func (h *NLQHandler) Process(w http.ResponseWriter, r *http.Request) {
	h.processQuery(w, r, true)
}

// Validate handles POST /api/nlq/validate: the pipeline without execution.
func (h *NLQHandler) Validate(w http.ResponseWriter, r *http.Request) {
	h.processQuery(w, r, false)
}

func (h *NLQHandler) processQuery(w http.ResponseWriter, r *http.Request, execute bool) {
	claims, err := auth.RequireClaimsFromContext(r.Context())
	if err != nil {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req ProcessQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if req.Query == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_query", "Query text is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	restaurantID, err := uuid.Parse(req.RestaurantID)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_restaurant_id", "Invalid restaurant ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if !claims.CanAccessRestaurant(restaurantID) {
		h.logger.Warn("Restaurant access denied",
			zap.String("user_id", claims.Subject),
			zap.String("restaurant_id", restaurantID.String()))
		if err := ErrorResponse(w, http.StatusForbidden, "restaurant_forbidden", "Restaurant not in token scope"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	serviceReq := &services.ProcessRequest{
		Query: req.Query,
		Context: models.QueryContext{
			UserID:       claims.Subject,
			RestaurantID: restaurantID,
			Locations:    req.Locations,
			Now:          time.Now(),
		},
		Execute:        execute,
		TimeoutSeconds: req.TimeoutSeconds,
	}

	result, err := h.queryService.Process(r.Context(), serviceReq)
	if err != nil {
		h.logger.Error("Query pipeline rejected request",
			zap.String("user_id", claims.Subject),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to process query"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	// The envelope is always successful here: pipeline outcomes, including
	// failed ones, are data for the frontend to render.
	response := ApiResponse{Success: true, Data: result}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Suggestions handles GET /api/nlq/suggestions?limit=
func (h *NLQHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "Limit must be a positive integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		limit = parsed
	}

	suggestions, err := h.queryService.Suggestions(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to load suggestions", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to load suggestions"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: SuggestionsResponse{Suggestions: suggestions}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// History handles GET /api/nlq/history?limit=&since=&success=
// Listings are always scoped to the caller's own queries.
func (h *NLQHandler) History(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.RequireClaimsFromContext(r.Context())
	if err != nil {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	filters := models.HistoryFilters{
		UserID: claims.Subject,
		Limit:  defaultHistoryLimit,
	}

	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "Limit must be a positive integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
		filters.Limit = limit
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_since", "Since must be an RFC 3339 timestamp"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		filters.Since = &since
	}
	if raw := q.Get("success"); raw != "" {
		success, err := strconv.ParseBool(raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_success", "Success must be true or false"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		filters.Success = &success
	}

	entries, total, err := h.history.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to list query history",
			zap.String("user_id", claims.Subject),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list query history"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: ListHistoryResponse{Entries: entries, Total: total}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Feedback handles POST /api/nlq/feedback. Validation happens synchronously;
// the pattern statistics update is applied out-of-band, so a 202 here means
// "accepted", not "applied".
func (h *NLQHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.RequireClaimsFromContext(r.Context())
	if err != nil {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	queryID, err := uuid.Parse(req.QueryID)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_query_id", "Invalid query ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	fb := &models.Feedback{
		QueryID:      queryID,
		Rating:       req.Rating,
		FeedbackText: req.FeedbackText,
		WasHelpful:   req.WasHelpful,
	}

	if err := h.feedbackService.Submit(r.Context(), claims.Subject, fb); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidFeedback):
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_feedback", "Rating must be between 1 and 5"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		case errors.Is(err, apperrors.ErrNotFound):
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Query not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		case errors.Is(err, apperrors.ErrStoreUnavailable):
			if err := ErrorResponse(w, http.StatusServiceUnavailable, "store_unavailable", "Feedback cannot be accepted right now"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		default:
			h.logger.Error("Failed to submit feedback",
				zap.String("query_id", queryID.String()),
				zap.Error(err))
			if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to submit feedback"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		}
		return
	}

	response := ApiResponse{Success: true}
	if err := WriteJSON(w, http.StatusAccepted, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Metrics handles GET /api/nlq/metrics: the domain metrics document
// (distinct from the Prometheus exposition on /metrics).
func (h *NLQHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	engineMetrics, err := h.queryService.Metrics(r.Context())
	if err != nil {
		h.logger.Error("Failed to aggregate engine metrics", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to load metrics"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: engineMetrics}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
