package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campusalert/internal/services"
	appErrors "github.com/charlesng35/campusalert/pkg/errors"
	"github.com/charlesng35/campusalert/pkg/response"
)

// ProfileHandler reads and replaces user profiles.
type ProfileHandler struct {
	profiles  *services.ProfileService
	relevance *services.RelevanceService
}

// NewProfileHandler constructs a profile handler. The relevance service backs
// the per-user warning listing.
func NewProfileHandler(profiles *services.ProfileService, relevance *services.RelevanceService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, relevance: relevance}
}

// Get handles GET /api/users/:id/profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err, "failed to load profile")
		return
	}
	response.Success(c, http.StatusOK, services.ProfileFromDomain(profile))
}

// Put handles PUT /api/users/:id/profile.
func (h *ProfileHandler) Put(c *gin.Context) {
	var input services.Profile
	if !bindJSON(c, &input) {
		return
	}

	profile, err := h.profiles.Upsert(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		if verr := validationError(err); verr != nil {
			response.Error(c, verr)
			return
		}
		response.Error(c, appErrors.Wrap(err, "failed to save profile"))
		return
	}
	response.Success(c, http.StatusOK, services.ProfileFromDomain(profile))
}

type rankedDTO struct {
	Warning warningDTO `json:"warning"`
	Score   int        `json:"score"`
}

// Warnings handles GET /api/users/:id/warnings, listing recent warnings by
// relevance to the user.
func (h *ProfileHandler) Warnings(c *gin.Context) {
	if h.relevance == nil {
		response.Error(c, appErrors.ErrUnavailable)
		return
	}

	ranked, err := h.relevance.ForUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err, "failed to rank warnings")
		return
	}

	out := make([]rankedDTO, 0, len(ranked))
	for i := range ranked {
		out = append(out, rankedDTO{Warning: mapWarning(&ranked[i].Warning), Score: ranked[i].Score})
	}
	response.SuccessWithMeta(c, http.StatusOK, out, &response.Meta{Total: len(out)})
}

func (h *ProfileHandler) renderError(c *gin.Context, err error, message string) {
	if errors.Is(err, services.ErrProfileNotFound) {
		response.Error(c, appErrors.NewNotFound("profile"))
		return
	}
	response.Error(c, appErrors.Wrap(err, message))
}
