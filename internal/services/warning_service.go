package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/campusalert/internal/dispatch"
	"github.com/charlesng35/campusalert/internal/models"
	"github.com/charlesng35/campusalert/internal/warnings"
	"github.com/charlesng35/campusalert/pkg/logger"
	"github.com/charlesng35/campusalert/pkg/validator"
)

var (
	// ErrWarningNotFound indicates the requested warning does not exist.
	ErrWarningNotFound = errors.New("warning service: warning not found")
	// ErrWarningExists indicates a client supplied an ID that is already stored.
	ErrWarningExists = errors.New("warning service: warning already exists")
)

// Dispatcher accepts warnings for notification. *dispatch.Engine satisfies it.
type Dispatcher interface {
	Submit(ctx context.Context, w warnings.Warning) (dispatch.Outcome, error)
}

// WarningService stores submitted warnings and hands them to the dispatch engine.
type WarningService struct {
	db         *gorm.DB
	dispatcher Dispatcher
	log        *zap.Logger
}

// NewWarningService constructs a warning service. A nil logger uses the
// global "warnings" module logger.
func NewWarningService(db *gorm.DB, dispatcher Dispatcher, log *zap.Logger) (*WarningService, error) {
	if db == nil {
		return nil, errors.New("warning service: db is required")
	}
	if dispatcher == nil {
		return nil, errors.New("warning service: dispatcher is required")
	}
	if log == nil {
		log = logger.WithModule("warnings")
	}
	return &WarningService{db: db, dispatcher: dispatcher, log: log}, nil
}

// Submit validates and persists a submission, then dispatches it. Malformed
// timestamps and categories are stored as submitted and dispatched as
// degraded warnings; only structural validation failures are rejected.
func (s *WarningService) Submit(ctx context.Context, sub warnings.Submission) (*models.Warning, dispatch.Outcome, error) {
	ctx = ensuredContext(ctx)
	if err := validator.ValidateStruct(sub); err != nil {
		return nil, dispatch.Outcome{}, err
	}

	w := sub.ToWarning()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}

	row := models.NewWarning(w, strings.TrimSpace(sub.IncidentTimestamp))
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, dispatch.Outcome{}, ErrWarningExists
		}
		return nil, dispatch.Outcome{}, fmt.Errorf("warning service: create: %w", err)
	}

	// The row is stored; a client disconnect must not leave it undispatched.
	ctx = context.WithoutCancel(ctx)

	outcome, err := s.dispatcher.Submit(ctx, w)
	if err != nil {
		return row, dispatch.Outcome{}, fmt.Errorf("warning service: dispatch: %w", err)
	}
	if outcome.SendErr != nil {
		s.log.Warn("instant delivery failed, warning queued",
			zap.String("warning_id", w.ID),
			zap.Error(outcome.SendErr))
	}

	row.DispatchAction = string(outcome.Action)
	row.DispatchState = string(outcome.Notification.State)
	if err := s.db.WithContext(ctx).Model(row).Updates(map[string]any{
		"dispatch_action": row.DispatchAction,
		"dispatch_state":  row.DispatchState,
	}).Error; err != nil {
		// The warning is already dispatched; a stale outcome column is not fatal.
		s.log.Error("record dispatch outcome", zap.String("warning_id", w.ID), zap.Error(err))
	}

	return row, outcome, nil
}

// Get returns the warning with the given ID.
func (s *WarningService) Get(ctx context.Context, id string) (*models.Warning, error) {
	ctx = ensuredContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrWarningNotFound
	}

	var row models.Warning
	err := s.db.WithContext(ctx).Take(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWarningNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("warning service: get: %w", err)
	}
	return &row, nil
}

// ListSince returns warnings whose incident happened at or after since,
// newest first. Warnings without a usable incident time are included when
// they were submitted at or after since.
func (s *WarningService) ListSince(ctx context.Context, since time.Time) ([]models.Warning, error) {
	ctx = ensuredContext(ctx)
	since = since.UTC()

	var rows []models.Warning
	err := s.db.WithContext(ctx).
		Where("incident_at >= ? OR (incident_at IS NULL AND created_at >= ?)", since, since).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("warning service: list: %w", err)
	}
	return rows, nil
}
