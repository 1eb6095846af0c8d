package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/comaslimpio/notification-api/internal/api/models"
	"github.com/comaslimpio/notification-api/internal/api/response"
	"github.com/comaslimpio/notification-api/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service}
}

// ListFeatureFlags handles GET /ops/flags - list all feature flags, sorted by key.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	all := h.service.GetAllFlags(r.Context())

	flags := make([]models.FeatureFlag, 0, len(all))
	for _, f := range all {
		flags = append(flags, toFeatureFlag(f))
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Key < flags[j].Key })

	response.JSON(w, r, http.StatusOK, models.FeatureFlagList{Flags: flags})
}

// GetFeatureFlag handles GET /ops/flags/{key}.
func (h *FeatureFlagsHandler) GetFeatureFlag(w http.ResponseWriter, r *http.Request) {
	flag := h.service.GetFlag(r.Context(), chi.URLParam(r, "key"))
	if flag == nil {
		response.NotFound(w, r, "flag not found")
		return
	}
	response.JSON(w, r, http.StatusOK, toFeatureFlag(flag))
}

// UpsertFeatureFlags handles PUT /ops/flags - create or update feature flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req models.FeatureFlagUpsertRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	var fieldErrors []models.FieldError
	for i, f := range req.Flags {
		if f.Key == "" {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   fmt.Sprintf("flags[%d].key", i),
				Message: "is required",
				Code:    "REQUIRED",
			})
		}
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid feature flags", fieldErrors)
		return
	}

	for _, f := range req.Flags {
		if err := h.service.SetFlag(r.Context(), &featureflags.Flag{Key: f.Key, Value: f.Value}); err != nil {
			response.InternalError(w, r, "failed to store feature flag")
			return
		}
	}

	response.NoContent(w, r)
}

// InvalidateCache handles POST /ops/flags/invalidate - drop cached flag values.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}

func toFeatureFlag(f *featureflags.Flag) models.FeatureFlag {
	out := models.FeatureFlag{Key: f.Key, Value: f.Value}
	if !f.UpdatedAt.IsZero() {
		ts := models.Timestamp(f.UpdatedAt)
		out.UpdatedAt = &ts
	}
	return out
}
