package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainerrors "github.com/yacqub6996/Apex-v2-sub000/internal/domain/errors"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
)

// getUserID extracts and validates user ID from context
func getUserID(c *gin.Context) (uuid.UUID, error) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, fmt.Errorf("user ID not found in context")
	}

	switch v := userIDVal.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	default:
		return uuid.Nil, fmt.Errorf("invalid user ID type in context")
	}
}

// respondError sends a standardized error response
func respondError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// respondUnauthorized sends an unauthorized error
func respondUnauthorized(c *gin.Context, message string) {
	respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

// respondBadRequest sends a bad request error
func respondBadRequest(c *gin.Context, message string, details ...map[string]interface{}) {
	var det map[string]interface{}
	if len(details) > 0 {
		det = details[0]
	}
	respondError(c, http.StatusBadRequest, "INVALID_REQUEST", message, det)
}

// respondInternalError sends an internal server error
func respondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}

// respondNotFound sends a not found error
func respondNotFound(c *gin.Context, message string) {
	respondError(c, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// respondSuccess sends a success response with data
func respondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// respondCreated sends a created response with data
func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// respondDomainError maps a domain error onto the right HTTP status
func respondDomainError(c *gin.Context, err error) {
	de, ok := domainerrors.AsDomainError(err)
	if !ok {
		if domainerrors.IsNotFound(err) {
			respondNotFound(c, err.Error())
			return
		}
		respondInternalError(c, "an unexpected error occurred")
		return
	}

	status := http.StatusInternalServerError
	switch {
	case domainerrors.IsValidation(err), domainerrors.IsInsufficientFunds(err):
		status = http.StatusBadRequest
	case domainerrors.IsNotFound(err):
		status = http.StatusNotFound
	case domainerrors.IsStateConflict(err), domainerrors.IsCapacityExceeded(err):
		status = http.StatusConflict
	case domainerrors.ErrPolicyAckRequired == de.Err:
		status = http.StatusPreconditionFailed
	case domainerrors.ErrThrottled == de.Err:
		status = http.StatusTooManyRequests
	case domainerrors.ErrLockTimeout == de.Err:
		status = http.StatusServiceUnavailable
	case domainerrors.ErrUnauthorized == de.Err:
		status = http.StatusUnauthorized
	}
	respondError(c, status, de.Code, de.Message, de.Details)
}

// parseUUIDParam parses a path parameter to uuid.UUID
func parseUUIDParam(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		respondBadRequest(c, fmt.Sprintf("invalid %s", param))
		return uuid.Nil, false
	}
	return id, true
}

// parseIntParam parses a query parameter to int with a default value
func parseIntParam(c *gin.Context, param string, defaultVal int) int {
	if val := c.Query(param); val != "" {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
			return i
		}
	}
	return defaultVal
}
