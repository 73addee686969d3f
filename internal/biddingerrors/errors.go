package biddingerrors

import (
	"errors"
	"fmt"
)

// Repository-level errors
var (
	ErrBidNotFound        = errors.New("bid not found")
	ErrNoBids             = errors.New("no bids found for auction")
	ErrUserNoBids         = errors.New("user has not placed any bids")
	ErrInvalidTransition  = errors.New("invalid bid status transition")
	ErrAutoBidNotFound    = errors.New("auto-bid rule not found")
	ErrDuplicateBid       = errors.New("bid already exists")
	ErrAuctionNotFound    = errors.New("auction not found")
	ErrPriceConflict      = errors.New("auction price changed concurrently")
	ErrInfrastructure     = errors.New("infrastructure failure")
	ErrQueueClosed        = errors.New("work queue closed")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrPublishUnavailable = errors.New("fan-out transport unavailable")
)

// business logic errors
var (
	ErrInvalidBid              = errors.New("invalid bid")
	ErrAuctionNotActive        = errors.New("auction is not active")
	ErrAuctionEnded            = errors.New("auction has ended")
	ErrSelfBid                 = errors.New("seller cannot bid on own auction")
	ErrBelowMinimum            = errors.New("bid amount below minimum")
	ErrAboveCeiling            = errors.New("bid amount above ceiling")
	ErrSubmissionLimitExceeded = errors.New("per-auction bid limit exceeded")
	ErrSuspiciousPattern       = errors.New("suspicious bidding pattern")
	ErrCannotCancel            = errors.New("bid can only be cancelled while pending")
	ErrNotBidOwner             = errors.New("bid belongs to another bidder")
)

// gateway errors
var (
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrAccessDenied    = errors.New("access denied")
	ErrNotInAuction    = errors.New("connection has not joined this auction")
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrConnClosed      = errors.New("connection closed")
)

// Reason is the machine-readable code sent to clients on failure
type Reason string

const (
	ReasonAuctionNotFound         Reason = "AUCTION_NOT_FOUND"
	ReasonAuctionNotActive        Reason = "AUCTION_NOT_ACTIVE"
	ReasonAuctionEnded            Reason = "AUCTION_ENDED"
	ReasonSelfBid                 Reason = "SELF_BID"
	ReasonBelowMinimum            Reason = "BELOW_MINIMUM"
	ReasonAboveCeiling            Reason = "ABOVE_CEILING"
	ReasonSubmissionLimitExceeded Reason = "SUBMISSION_LIMIT_EXCEEDED"
	ReasonSuspiciousPattern       Reason = "SUSPICIOUS_PATTERN"
	ReasonPriceConflict           Reason = "PRICE_CONFLICT"
	ReasonInfrastructure          Reason = "INFRASTRUCTURE_FAILURE"
	ReasonRateLimited             Reason = "RATE_LIMITED"
	ReasonAccessDenied            Reason = "ACCESS_DENIED"
	ReasonNotInAuction            Reason = "NOT_IN_AUCTION"
	ReasonUnauthenticated         Reason = "UNAUTHENTICATED"
	ReasonInvalidRequest          Reason = "INVALID_REQUEST"
	ReasonCannotCancel            Reason = "CANNOT_CANCEL"
	ReasonBidNotFound             Reason = "BID_NOT_FOUND"
	ReasonInternal                Reason = "INTERNAL"
)

var reasonBySentinel = []struct {
	err    error
	reason Reason
}{
	{ErrAuctionNotFound, ReasonAuctionNotFound},
	{ErrAuctionNotActive, ReasonAuctionNotActive},
	{ErrAuctionEnded, ReasonAuctionEnded},
	{ErrSelfBid, ReasonSelfBid},
	{ErrBelowMinimum, ReasonBelowMinimum},
	{ErrAboveCeiling, ReasonAboveCeiling},
	{ErrSubmissionLimitExceeded, ReasonSubmissionLimitExceeded},
	{ErrSuspiciousPattern, ReasonSuspiciousPattern},
	{ErrPriceConflict, ReasonPriceConflict},
	{ErrInfrastructure, ReasonInfrastructure},
	{ErrRateLimited, ReasonRateLimited},
	{ErrAccessDenied, ReasonAccessDenied},
	{ErrNotInAuction, ReasonNotInAuction},
	{ErrUnauthenticated, ReasonUnauthenticated},
	{ErrInvalidToken, ReasonUnauthenticated},
	{ErrInvalidBid, ReasonInvalidRequest},
	{ErrInvalidRequest, ReasonInvalidRequest},
	{ErrCannotCancel, ReasonCannotCancel},
	{ErrNotBidOwner, ReasonCannotCancel},
	{ErrBidNotFound, ReasonBidNotFound},
}

// ReasonOf maps an error to its client-facing reason code
func ReasonOf(err error) Reason {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	for _, rs := range reasonBySentinel {
		if errors.Is(err, rs.err) {
			return rs.reason
		}
	}
	return ReasonInternal
}

// ValidationError is a business-rule rejection of a bid
type ValidationError struct {
	Reason Reason
	Detail string
	err    error
}

// NewValidationError builds a ValidationError that unwraps to the given sentinel
func NewValidationError(sentinel error, detail string) *ValidationError {
	return &ValidationError{
		Reason: ReasonOf(sentinel),
		Detail: detail,
		err:    sentinel,
	}
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %s", e.err.Error(), e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// IsValidation reports whether err is a business-rule rejection (including price conflicts)
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) || errors.Is(err, ErrPriceConflict) || errors.Is(err, ErrAuctionNotFound)
}
