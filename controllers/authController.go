package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gulfstream-dynamics/crm_backend/models"
	"github.com/gulfstream-dynamics/crm_backend/utils"
)

// SignIn exchanges staff credentials for a JWT.
func SignIn(c *gin.Context) {
	var input models.SignInInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	user, token, err := models.SignIn(c.Request.Context(), &input)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	respondOK(c, gin.H{"user": user, "token": token})
}

type registerCompanyInput struct {
	Company models.NewCompany `json:"company" binding:"required"`
	Owner   models.NewUser    `json:"owner" binding:"required"`
}

// RegisterCompany creates a tenant along with its owner account.
func RegisterCompany(c *gin.Context) {
	var input registerCompanyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	ctx := c.Request.Context()
	company, err := models.CreateCompany(ctx, &input.Company)
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	input.Owner.Role = models.UserRoleOwner
	ctx = utils.SetCompanyIdInContext(ctx, company.ID)
	owner, err := models.CreateUser(ctx, &input.Owner)
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	respondCreated(c, gin.H{"company": company, "owner": owner})
}

// CreateUser adds a staff account to the caller's company.
func CreateUser(c *gin.Context) {
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	user, err := models.CreateUser(c.Request.Context(), &input)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	respondCreated(c, user)
}
