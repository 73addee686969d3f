package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bidding-gateway/internal/biddingerrors"
	model "bidding-gateway/internal/models"
	"bidding-gateway/services/bidding/helpers"
	"bidding-gateway/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -destination=mock_bidding_service.go -package=handler bidding-gateway/services/bidding/handler BiddingServiceInterface

type BiddingServiceInterface interface {
	SubmitBid(ctx context.Context, sub model.BidSubmission) (model.Bid, error)
	CancelBid(ctx context.Context, bidID, bidderID string) (model.Bid, error)
	GetBidsForAuction(auctionID string) ([]model.Bid, error)
	GetWinningBid(auctionID string) (model.Bid, error)
	GetBidsByUser(userID string) ([]model.Bid, error)
}

type BiddingHandler struct {
	service    BiddingServiceInterface
	instanceID string
}

func NewBiddingHandler(service BiddingServiceInterface, instanceID string) *BiddingHandler {
	return &BiddingHandler{service: service, instanceID: instanceID}
}

// PlaceBidHandler handles POST /bids. The bid is queued; its outcome is pushed to connected
// clients and can be polled through the bid listings.
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	identity, ok := helpers.IdentityFromContext(c)
	if !ok || identity.Anonymous {
		utils.JSONError(c, http.StatusUnauthorized, biddingerrors.ErrUnauthenticated, "authentication required")
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}
	if !req.Amount.IsPositive() {
		helpers.HandleBindError(c, "PlaceBidHandler", errors.New("amount must be positive"))
		return
	}

	bid, err := h.service.SubmitBid(c.Request.Context(), model.BidSubmission{
		AuctionID:   req.AuctionID,
		BidderID:    identity.UserID,
		Amount:      req.Amount,
		SubmittedAt: time.Now().UTC(),
		Origin:      model.OriginManual,
		InstanceID:  h.instanceID,
	})
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("PlaceBidHandler: failed to submit bid", map[string]any{
			"handler":    "PlaceBidHandler",
			"auction_id": req.AuctionID,
			"user_id":    identity.UserID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusAccepted, helpers.NewBidResponse(bid), "bid accepted for processing")
	helpers.LogSuccess("PlaceBidHandler", "bid accepted for processing", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"user_id":    identity.UserID,
		"amount":     bid.Amount.String(),
	})
}

// CancelBidHandler handles POST /bids/:bid_id/cancel
func (h *BiddingHandler) CancelBidHandler(c *gin.Context) {
	identity, ok := helpers.IdentityFromContext(c)
	if !ok || identity.Anonymous {
		utils.JSONError(c, http.StatusUnauthorized, biddingerrors.ErrUnauthenticated, "authentication required")
		return
	}

	bidID := c.Param("bid_id")
	bid, err := h.service.CancelBid(c.Request.Context(), bidID, identity.UserID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("CancelBidHandler: failed to cancel bid", map[string]any{
			"bid_id":  bidID,
			"user_id": identity.UserID,
			"error":   err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "bid cancelled")
	helpers.LogSuccess("CancelBidHandler", "bid cancelled", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"user_id":    identity.UserID,
	})
}

// GetBidsByAuctionHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBidsForAuction(auctionID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsByAuctionHandler: error retrieving bids", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByAuctionHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// GetWinningBidHandler handles GET /auctions/:auction_id/winning
func (h *BiddingHandler) GetWinningBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bid, err := h.service.GetWinningBid(auctionID)
	if err != nil {
		// no accepted bid yet -> 404
		if errors.Is(err, biddingerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no winning bid found")
			utils.Info("GetWinningBidHandler: no winning bid found", map[string]any{"auction_id": auctionID})
			return
		}
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetWinningBidHandler: winning bid error", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "winning bid retrieved successfully")
	helpers.LogSuccess("GetWinningBidHandler", "winning bid retrieved successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"user_id":    bid.BidderID,
		"amount":     bid.Amount.String(),
	})
}

// GetBidsByUserHandler handles GET /users/:user_id/bids
func (h *BiddingHandler) GetBidsByUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	bids, err := h.service.GetBidsByUser(userID)
	if err != nil && !errors.Is(err, biddingerrors.ErrUserNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsByUserHandler: error retrieving bids", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByUserHandler", "bids retrieved successfully", map[string]any{
		"user_id":    userID,
		"bids_count": len(bids),
	})
}
