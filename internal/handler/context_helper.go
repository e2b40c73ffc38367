package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-builder-api/internal/middleware"
	"github.com/noah-isme/class-builder-api/internal/models"
	"github.com/noah-isme/class-builder-api/internal/service"
	appErrors "github.com/noah-isme/class-builder-api/pkg/errors"
	"github.com/noah-isme/class-builder-api/pkg/response"
)

// claimsFromContext returns the caller's claims, nil on public routes.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, _ := c.Value(middleware.ContextUserKey).(*models.JWTClaims)
	return claims
}

// requireClaims writes 401 and returns false when no claims are attached.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

// actorContext tags the request context with the caller id so saved
// generations record who made them.
func actorContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if claims := claimsFromContext(c); claims != nil {
		ctx = service.WithActor(ctx, claims.UserID)
	}
	return ctx
}
