package handlers

import (
	"net/http"

	"github.com/tfdash/tfdash-backend/pkg/api/dtos"
	"github.com/tfdash/tfdash-backend/pkg/services"

	"github.com/gin-gonic/gin"
)

type TemplateHandler struct {
	TemplateService *services.TemplateService
}

func NewTemplateHandler(templateService *services.TemplateService) *TemplateHandler {
	return &TemplateHandler{TemplateService: templateService}
}

// Register godoc
// @Summary  Register a template from HCL source
// @Tags     templates
// @Accept   json
// @Produce  json
// @Param    request body dtos.RegisterTemplateRequest true "template"
// @Success  200 {object} dtos.TemplateResponse
// @Router   /templates [post]
func (h *TemplateHandler) Register(c *gin.Context) {
	var request dtos.RegisterTemplateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := request.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	template, err := h.TemplateService.Register(
		request.Name,
		request.Version,
		request.Description,
		request.Source,
		userID(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos.TemplateResponse{Template: template})
}

// GetAll godoc
// @Summary  List templates
// @Tags     templates
// @Produce  json
// @Success  200 {object} dtos.TemplateListResponse
// @Router   /templates [get]
func (h *TemplateHandler) GetAll(c *gin.Context) {
	result, err := h.TemplateService.GetAllTemplates()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos.TemplateListResponse{Templates: result})
}

// GetByID godoc
// @Summary  Get one template
// @Tags     templates
// @Produce  json
// @Param    id path string true "template id"
// @Success  200 {object} dtos.TemplateResponse
// @Router   /templates/{id} [get]
func (h *TemplateHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	template, err := h.TemplateService.GetTemplate(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos.TemplateResponse{Template: template})
}
