package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huntparty/huntparty-backend/internal/service"
	"github.com/huntparty/huntparty-backend/internal/store"
)

// respondServiceError 서비스/스토어 오류를 HTTP 응답으로 매핑.
// ErrLockBusy는 재시도 가능으로 표시한다.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrLockBusy):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, gin.H{
			"error":     "Party is busy, try again",
			"retryable": true,
		})

	case errors.Is(err, store.ErrPartyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Party not found"})

	case errors.Is(err, store.ErrEntrantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not in queue"})

	case errors.Is(err, service.ErrNoOpenParty):
		c.JSON(http.StatusNotFound, gin.H{"error": "No open party available"})

	case errors.Is(err, store.ErrPartyFull):
		c.JSON(http.StatusConflict, gin.H{"error": "Party is full"})

	case errors.Is(err, store.ErrUserAlreadyInParty):
		c.JSON(http.StatusConflict, gin.H{"error": "Already in a party"})

	case errors.Is(err, store.ErrNotLeader):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the party leader can do this"})

	case errors.Is(err, store.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this party"})

	case errors.Is(err, service.ErrMissingUser),
		errors.Is(err, service.ErrMissingLocation),
		errors.Is(err, service.ErrMissingJob):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
