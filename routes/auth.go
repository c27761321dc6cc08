package routes

import (
	"context"
	"net/http"
	"time"

	"chatpdf-backend/internal/auth"
	"chatpdf-backend/internal/config"
	"chatpdf-backend/middleware"
	"chatpdf-backend/models"
	"chatpdf-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func SetupAuthRoutes(router *gin.Engine, cfg *config.Config, mongoClient *mongo.Client, rdb *redis.Client) {
	authGroup := router.Group("/auth")

	db := mongoClient.Database(cfg.DBName)
	usersCollection := db.Collection("users")

	secureCookies := cfg.GinMode == "release"

	authGroup.POST("/register", func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		var existingUser models.User
		if err := usersCollection.FindOne(context.Background(), bson.M{"username": req.Username}).Decode(&existingUser); err == nil {
			utils.RespondWithError(c, http.StatusConflict, "username_exists", "Username already exists", nil)
			return
		}

		hashedPassword, err := utils.HashPassword(req.Password, cfg.BcryptCost)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to process password", nil)
			return
		}

		user := models.User{
			Username:     req.Username,
			PasswordHash: hashedPassword,
			CreatedAt:    time.Now(),
		}

		result, err := usersCollection.InsertOne(context.Background(), user)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create user", nil)
			return
		}

		userID := result.InsertedID.(primitive.ObjectID).Hex()
		pair, err := auth.IssueTokenPair(userID, rdb)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}

		middleware.SetAuthCookies(c, pair, secureCookies)
		c.JSON(http.StatusCreated, models.TokenPairResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			AccessExp:    pair.AccessExp,
			RefreshExp:   pair.RefreshExp,
			User:         models.UserInfo{ID: userID, Username: req.Username},
		})
	})

	authGroup.POST("/login", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if err := usersCollection.FindOne(context.Background(), bson.M{"username": req.Username}).Decode(&user); err != nil {
			utils.RespondWithError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password", nil)
			return
		}

		if !utils.CheckPassword(req.Password, user.PasswordHash) {
			utils.RespondWithError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password", nil)
			return
		}

		pair, err := auth.IssueTokenPair(user.ID.Hex(), rdb)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}

		middleware.SetAuthCookies(c, pair, secureCookies)
		c.JSON(http.StatusOK, models.TokenPairResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			AccessExp:    pair.AccessExp,
			RefreshExp:   pair.RefreshExp,
			User:         models.UserInfo{ID: user.ID.Hex(), Username: user.Username},
		})
	})

	authGroup.POST("/refresh", func(c *gin.Context) {
		refreshToken := refreshTokenFromRequest(c)
		if refreshToken == "" {
			utils.RespondWithUnauthorized(c, "Refresh token required")
			return
		}

		claims, err := auth.ValidateRefreshToken(refreshToken, rdb)
		if err != nil {
			utils.RespondWithError(c, http.StatusUnauthorized, "refresh_token_expired",
				"Your session has expired. Please log in again.", nil)
			return
		}

		// Rotate the refresh token on every use
		_ = auth.RevokeToken(claims.ID, true, rdb)

		pair, err := auth.IssueTokenPair(claims.UserID, rdb)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}

		middleware.SetAuthCookies(c, pair, secureCookies)
		c.JSON(http.StatusOK, gin.H{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"access_exp":    pair.AccessExp,
			"refresh_exp":   pair.RefreshExp,
		})
	})

	authGroup.POST("/logout", func(c *gin.Context) {
		if tokenString := accessTokenFromRequest(c); tokenString != "" {
			if claims, err := auth.ValidateAccessToken(tokenString, rdb); err == nil {
				_ = auth.RevokeToken(claims.ID, false, rdb)
			}
		}
		if refreshToken := refreshTokenFromRequest(c); refreshToken != "" {
			if claims, err := auth.ValidateRefreshToken(refreshToken, rdb); err == nil {
				_ = auth.RevokeToken(claims.ID, true, rdb)
			}
		}

		c.SetCookie("access_token", "", -1, "/", "", secureCookies, true)
		c.SetCookie("refresh_token", "", -1, "/", "", secureCookies, true)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	})
}

func accessTokenFromRequest(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		if token := utils.ExtractTokenFromHeader(authHeader); token != "" {
			return token
		}
	}
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie
	}
	return ""
}

func refreshTokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie("refresh_token"); err == nil && cookie != "" {
		return cookie
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&body); err == nil {
		return body.RefreshToken
	}
	return ""
}
