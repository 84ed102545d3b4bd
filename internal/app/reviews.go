package app

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"booking-service/internal/domain"
)

// ReviewWindow is how long a user must wait between reviews.
const ReviewWindow = 24 * time.Hour

type reviewReq struct {
	Rating  float64 `json:"rating"`
	Comment string  `json:"comment"`
}

// GET /reviews
func (a *App) ListReviewsHandler(c *gin.Context) {
	reviews, err := a.Store.ListReviews(c.Request.Context())
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// POST /reviews
func (a *App) CreateReviewHandler(c *gin.Context) {
	var req reviewReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Rating != math.Trunc(req.Rating) {
		a.badRequest(c, "Rating must be an integer between 1 and 5.")
		return
	}
	comment := domain.Sanitize(req.Comment)
	if err := domain.ValidateReview(int(req.Rating), comment); err != nil {
		a.respond(c, err)
		return
	}

	r := domain.Review{UserID: caller(c).ID, Rating: int(req.Rating), Comment: comment}
	if err := a.Store.CreateReview(c.Request.Context(), &r, ReviewWindow); err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": r.ID, "rating": r.Rating, "comment": r.Comment})
}
