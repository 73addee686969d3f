package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"bidding-gateway/internal/biddingerrors"
	model "bidding-gateway/internal/models"
	"bidding-gateway/utils"

	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin context key holding the authenticated models.Identity
const IdentityKey = "identity"

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w: %w", biddingerrors.ErrInvalidRequest, err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// IdentityFromContext returns the identity set by the auth middleware
func IdentityFromContext(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return model.Identity{}, false
	}
	identity, ok := v.(model.Identity)
	return identity, ok
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrBidNotFound):
		return http.StatusNotFound, "bid not found"
	case errors.Is(err, biddingerrors.ErrInvalidBid), errors.Is(err, biddingerrors.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrUnauthenticated), errors.Is(err, biddingerrors.ErrInvalidToken):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, biddingerrors.ErrNotBidOwner), errors.Is(err, biddingerrors.ErrAccessDenied):
		return http.StatusForbidden, "access denied"
	case errors.Is(err, biddingerrors.ErrRateLimited):
		return http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, biddingerrors.ErrBelowMinimum):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrPriceConflict), errors.Is(err, biddingerrors.ErrCannotCancel):
		return http.StatusConflict, "bid state changed"
	case errors.Is(err, biddingerrors.ErrInfrastructure), errors.Is(err, biddingerrors.ErrQueueClosed):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	case biddingerrors.IsValidation(err):
		return http.StatusUnprocessableEntity, "bid rejected"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusOK, "no bids found for auction"
	case errors.Is(err, biddingerrors.ErrUserNoBids):
		return http.StatusOK, "no bids found for user"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
