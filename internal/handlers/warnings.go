package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campusalert/internal/dispatch"
	"github.com/charlesng35/campusalert/internal/models"
	"github.com/charlesng35/campusalert/internal/services"
	"github.com/charlesng35/campusalert/internal/warnings"
	appErrors "github.com/charlesng35/campusalert/pkg/errors"
	"github.com/charlesng35/campusalert/pkg/response"
)

// WarningHandler accepts warning submissions and serves stored warnings.
type WarningHandler struct {
	svc *services.WarningService
}

// NewWarningHandler constructs a warning handler.
func NewWarningHandler(svc *services.WarningService) *WarningHandler {
	return &WarningHandler{svc: svc}
}

type warningDTO struct {
	ID                 string     `json:"id"`
	Category           string     `json:"category"`
	Title              string     `json:"title"`
	IncidentAt         *time.Time `json:"incident_at,omitempty"`
	RawTimestamp       string     `json:"raw_timestamp,omitempty"`
	Location           *locDTO    `json:"location,omitempty"`
	PeopleDescription  string     `json:"people_description,omitempty"`
	WarningDescription string     `json:"warning_description,omitempty"`
	DispatchAction     string     `json:"dispatch_action,omitempty"`
	DispatchState      string     `json:"dispatch_state,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

type locDTO struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

type dispatchDTO struct {
	Action    dispatch.Action   `json:"action"`
	State     dispatch.State    `json:"state"`
	Priority  dispatch.Priority `json:"priority"`
	SendError string            `json:"send_error,omitempty"`
}

type submitResponse struct {
	Warning  warningDTO  `json:"warning"`
	Dispatch dispatchDTO `json:"dispatch"`
}

func mapWarning(row *models.Warning) warningDTO {
	domain := row.Domain()
	dto := warningDTO{
		ID:                 row.ID,
		Category:           string(domain.Category),
		Title:              domain.Category.Title(),
		IncidentAt:         row.IncidentAt,
		RawTimestamp:       row.RawTimestamp,
		PeopleDescription:  row.PeopleDescription,
		WarningDescription: row.WarningDescription,
		DispatchAction:     row.DispatchAction,
		DispatchState:      row.DispatchState,
		CreatedAt:          row.CreatedAt,
	}
	if domain.Location != nil {
		dto.Location = &locDTO{Lat: domain.Location.Lat, Long: domain.Location.Long}
	}
	return dto
}

// Create handles POST /api/warnings.
func (h *WarningHandler) Create(c *gin.Context) {
	var sub warnings.Submission
	if !bindJSON(c, &sub) {
		return
	}

	row, outcome, err := h.svc.Submit(c.Request.Context(), sub)
	if err != nil {
		if verr := validationError(err); verr != nil {
			response.Error(c, verr)
			return
		}
		if errors.Is(err, services.ErrWarningExists) {
			response.Error(c, appErrors.ErrConflict.WithInternal(err))
			return
		}
		response.Error(c, appErrors.Wrap(err, "failed to submit warning"))
		return
	}

	result := submitResponse{
		Warning: mapWarning(row),
		Dispatch: dispatchDTO{
			Action:   outcome.Action,
			State:    outcome.Notification.State,
			Priority: outcome.Notification.Priority,
		},
	}
	if outcome.SendErr != nil {
		result.Dispatch.SendError = outcome.SendErr.Error()
	}
	response.Success(c, http.StatusCreated, result)
}

// Get handles GET /api/warnings/:id.
func (h *WarningHandler) Get(c *gin.Context) {
	row, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrWarningNotFound) {
			response.Error(c, appErrors.NewNotFound("warning"))
			return
		}
		response.Error(c, appErrors.Wrap(err, "failed to load warning"))
		return
	}
	response.Success(c, http.StatusOK, mapWarning(row))
}
