package middleware

import (
	"net/http"
	"time"

	"chatpdf-backend/internal/auth"
	"chatpdf-backend/internal/config"
	"chatpdf-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type AuthMiddleware struct {
	config *config.Config
	rdb    *redis.Client
}

func NewAuthMiddleware(cfg *config.Config, rdb *redis.Client) *AuthMiddleware {
	return &AuthMiddleware{
		config: cfg,
		rdb:    rdb,
	}
}

// RequireAuth authenticates the request from the Authorization header or
// the access_token cookie. An expired access token is transparently
// refreshed when a valid refresh token cookie is present.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		var tokenString string
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			tokenString = utils.ExtractTokenFromHeader(authHeader)
		}
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}

		claims, err := auth.ValidateAccessToken(tokenString, a.rdb)
		if err != nil {
			claims = a.tryRefresh(c)
			if claims == nil {
				utils.RespondWithError(c, http.StatusUnauthorized, "session_expired",
					"Your session has expired. Please log in again.", nil)
				c.Abort()
				return
			}
		}

		c.Set("user_id", claims.UserID)
		c.Next()
	})
}

// tryRefresh rotates the refresh token and sets fresh cookies. Returns
// nil when no usable refresh token exists.
func (a *AuthMiddleware) tryRefresh(c *gin.Context) *auth.Claims {
	refreshToken, err := c.Cookie("refresh_token")
	if err != nil || refreshToken == "" {
		return nil
	}

	refreshClaims, err := auth.ValidateRefreshToken(refreshToken, a.rdb)
	if err != nil {
		return nil
	}

	// Rotate: old refresh token is dead either way
	_ = auth.RevokeToken(refreshClaims.ID, true, a.rdb)

	tokenPair, err := auth.IssueTokenPair(refreshClaims.UserID, a.rdb)
	if err != nil {
		return nil
	}

	SetAuthCookies(c, tokenPair, a.config.GinMode == "release")

	freshClaims, err := auth.ValidateAccessToken(tokenPair.AccessToken, a.rdb)
	if err != nil {
		return nil
	}
	return freshClaims
}

// SetAuthCookies writes the token pair as httpOnly cookies.
func SetAuthCookies(c *gin.Context, pair *auth.TokenPair, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", pair.AccessToken,
		int(time.Until(pair.AccessExp).Seconds()), "/", "", secure, true)
	c.SetCookie("refresh_token", pair.RefreshToken,
		int(time.Until(pair.RefreshExp).Seconds()), "/", "", secure, true)
}

// GetUserID retrieves the authenticated user id from context
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}
