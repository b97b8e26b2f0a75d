package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"raceday-api/services"
	"raceday-api/utils"
)

type AuthController struct {
	auth *services.AuthService
}

func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{auth: auth}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "username and password are required")
		return
	}

	res, err := ac.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
