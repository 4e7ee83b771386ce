package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gulfstream-dynamics/crm_backend/models"
)

func CreateClient(c *gin.Context) {
	var input models.NewClient
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	client, err := models.CreateClient(c.Request.Context(), &input)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	respondCreated(c, client)
}

func GetClients(c *gin.Context) {
	clients, err := models.GetClients(c.Request.Context())
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	respondOK(c, clients)
}

func GetClient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	client, err := models.GetClient(c.Request.Context(), id)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	respondOK(c, client)
}
