package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avahealth/scheduling-api/internal/handler"
	"github.com/avahealth/scheduling-api/internal/model"
	"github.com/avahealth/scheduling-api/internal/service/auth"
	"github.com/avahealth/scheduling-api/pkg/errors"
)

type Handler struct {
	service *auth.Service
}

func NewHandler(service *auth.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/auth/login", h.Login)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("email and password are required"))
		return
	}

	resp, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		// failed logins are 401, not the taxonomy's 403
		if errors.IsKind(err, errors.KindAuthorization) {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid credentials"))
			return
		}
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}
