package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mozoqr/models"
	"github.com/yeremiapane/mozoqr/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserController struct {
	DB       *gorm.DB
	Secret   []byte
	TokenTTL time.Duration
}

func NewUserController(db *gorm.DB, secret []byte, ttl time.Duration) *UserController {
	return &UserController{DB: db, Secret: secret, TokenTTL: ttl}
}

var errBadCredentials = errors.New("invalid email or password")

// Login -> staff signs in and receives a token scoped to their restaurant
func (uc *UserController) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errors.New("email and password are required"))
		return
	}

	var user models.User
	err := uc.DB.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusUnauthorized, errBadCredentials)
		return
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errBadCredentials)
		return
	}

	token, err := utils.GenerateToken(uc.Secret, uc.TokenTTL, user.ID, user.RestaurantID, user.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.Printf("User %s logged in (role=%s)", user.Email, user.Role)
	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
		"token":         token,
		"user_id":       user.ID,
		"restaurant_id": user.RestaurantID,
		"role":          user.Role,
	})
}
