package controllers

import (
	"errors"
	"net/http"
	"time"

	"stayhub-backend/models"
	"stayhub-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthController struct {
	DB        *gorm.DB
	JWTSecret string
}

func NewAuthController(db *gorm.DB, secret string) *AuthController {
	return &AuthController{DB: db, JWTSecret: secret}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies staff credentials and issues an HS256 access token whose
// subject becomes the actor stamped on calendar and room writes.
func (ctrl *AuthController) Login(c *gin.Context) {
	var payload LoginRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "error.invalidPayload", "message": "username and password are required"}})
		return
	}

	var admin models.Admin
	err := ctrl.DB.Where("username = ?", payload.Username).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "error.invalidCredentials", "message": "invalid username or password"}})
			return
		}
		respondServiceError(c, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(payload.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "error.invalidCredentials", "message": "invalid username or password"}})
		return
	}

	ttl := 24 * time.Hour
	if raw := utils.EnvOrDefault("JWT_TTL", ""); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			ttl = parsed
		}
	}

	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  admin.Username,
		"name": admin.FullName,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(ctrl.JWTSecret))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"token":      signed,
			"expires_in": int(ttl / time.Second),
			"full_name":  admin.FullName,
		},
	})
}
