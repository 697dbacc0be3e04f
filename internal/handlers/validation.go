package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/campusalert/pkg/errors"
	"github.com/charlesng35/campusalert/pkg/response"
	appValidator "github.com/charlesng35/campusalert/pkg/validator"
)

// bindJSON binds the JSON payload into dest. When the body is not valid JSON
// an error response is written and false is returned.
func bindJSON[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	return true
}

// validationError converts validator failures into a BAD_REQUEST carrying
// the per-field failures as details. It returns nil for other errors.
func validationError(err error) *appErrors.AppError {
	var ve appValidator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	return appErrors.NewBadRequest(formatValidationError(ve)).WithDetails(ve)
}

func formatValidationError(ve appValidator.ValidationErrors) string {
	if len(ve) == 0 {
		return "invalid request payload"
	}

	messages := make([]string, 0, len(ve))
	for _, failure := range ve {
		field := prettifyFieldName(failure.Field)
		switch failure.Tag {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s long", field, failure.Param))
		case "gte":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", field, failure.Param))
		case "lte":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", field, failure.Param))
		case "gender":
			messages = append(messages, fmt.Sprintf("%s must be MALE, FEMALE or UNKNOWN", field))
		default:
			if failure.Param != "" {
				messages = append(messages, fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param))
			} else {
				messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, failure.Tag))
			}
		}
	}
	return strings.Join(messages, "; ")
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(name)
}
