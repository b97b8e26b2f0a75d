package controllers

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"raceday-api/services"
	"raceday-api/utils"
)

type RegistrationController struct {
	registrations *services.RegistrationService
}

func NewRegistrationController(registrations *services.RegistrationService) *RegistrationController {
	return &RegistrationController{registrations: registrations}
}

// CreateRegistrationRequest mirrors the public sign-up form. EventID and
// BirthYear are decoded loosely so that non-integer values get a precise
// error message.
type CreateRegistrationRequest struct {
	EventID   any     `json:"eventId"`
	Name      string  `json:"name"`
	Surname   string  `json:"surname"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone"`
	Gender    *string `json:"gender"`
	BirthYear any     `json:"birth_year"`
	Club      *string `json:"club"`
	Country   *string `json:"country"`
	City      *string `json:"city"`
}

func (rc *RegistrationController) CreateRegistration(c *gin.Context) {
	var req CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid JSON")
		return
	}

	eventID, ok := asInteger(req.EventID)
	if !ok || eventID <= 0 || eventID > math.MaxUint32 {
		utils.SendError(c, http.StatusBadRequest, "eventId is required and must be integer")
		return
	}

	var birthYear *int
	if req.BirthYear != nil {
		year, ok := asInteger(req.BirthYear)
		if !ok || year < math.MinInt32 || year > math.MaxInt32 {
			utils.SendError(c, http.StatusBadRequest, "birth_year must be integer")
			return
		}
		y := int(year)
		birthYear = &y
	}

	dto, err := rc.registrations.Register(c.Request.Context(), services.RegistrationInput{
		EventID:   uint(eventID),
		Name:      req.Name,
		Surname:   req.Surname,
		Email:     req.Email,
		Phone:     req.Phone,
		Gender:    req.Gender,
		BirthYear: birthYear,
		Club:      req.Club,
		Country:   req.Country,
		City:      req.City,
	})
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"registration": dto})
}

func (rc *RegistrationController) GetEventRegistrations(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	regs, err := rc.registrations.ListByEvent(c.Request.Context(), id)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": regs})
}

// asInteger accepts JSON numbers without a fractional part.
func asInteger(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
