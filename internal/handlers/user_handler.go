package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iamCapel/mopc-reportes/internal/middleware"
	"github.com/iamCapel/mopc-reportes/internal/models"
	"github.com/iamCapel/mopc-reportes/internal/services"
)

// UserHandler serves authentication and user administration.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Login maneja POST /api/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		badRequest(c, err)
		return
	}
	respond(c, http.StatusOK, h.users.Login(c.Request.Context(), creds))
}

// Logout maneja POST /api/auth/logout
func (h *UserHandler) Logout(c *gin.Context) {
	respond(c, http.StatusOK, h.users.Logout(c.Request.Context(), middleware.BearerToken(c)))
}

// Me maneja GET /api/auth/me
func (h *UserHandler) Me(c *gin.Context) {
	me := actor(c)
	respond(c, http.StatusOK, h.users.GetUser(c.Request.Context(), me, me.ID))
}

// Register maneja POST /api/auth/register. Self-registered accounts are
// always Técnico and wait for an administrator's verification.
func (h *UserHandler) Register(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.Role = models.RoleTecnico
	respond(c, http.StatusCreated, h.users.CreateUser(c.Request.Context(), req))
}

// CreateUser maneja POST /api/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	respond(c, http.StatusCreated, h.users.CreateUser(c.Request.Context(), req))
}

// ListUsers maneja GET /api/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	respond(c, http.StatusOK, h.users.ListUsers(c.Request.Context(), actor(c)))
}

// GetUser maneja GET /api/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	respond(c, http.StatusOK, h.users.GetUser(c.Request.Context(), actor(c), c.Param("id")))
}

// UpdateUser maneja PATCH /api/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var patch models.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	respond(c, http.StatusOK, h.users.UpdateUser(c.Request.Context(), actor(c), c.Param("id"), patch))
}

// VerifyUser maneja POST /api/users/:id/verify
func (h *UserHandler) VerifyUser(c *gin.Context) {
	respond(c, http.StatusOK, h.users.VerifyUser(c.Request.Context(), actor(c), c.Param("id")))
}

// DeleteUser maneja DELETE /api/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	respond(c, http.StatusOK, h.users.DeleteUser(c.Request.Context(), actor(c), c.Param("id")))
}

type noteRequest struct {
	Type models.NoteType `json:"type" binding:"required"`
	Text string          `json:"text" binding:"required"`
}

// AddNote maneja POST /api/users/:id/notes
func (h *UserHandler) AddNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	respond(c, http.StatusCreated, h.users.AddNote(c.Request.Context(), actor(c), c.Param("id"), req.Type, req.Text))
}

// UpdateLocation maneja PUT /api/users/me/location
func (h *UserHandler) UpdateLocation(c *gin.Context) {
	var loc models.Location
	if err := c.ShouldBindJSON(&loc); err != nil {
		badRequest(c, err)
		return
	}
	respond(c, http.StatusOK, h.users.UpdateLocation(c.Request.Context(), actor(c), loc))
}

// RegisterPublic mounts the routes that need no session.
func (h *UserHandler) RegisterPublic(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.Login)
	rg.POST("/auth/register", h.Register)
}

// RegisterAuthenticated mounts the routes behind RequireAuth.
func (h *UserHandler) RegisterAuthenticated(rg *gin.RouterGroup) {
	rg.POST("/auth/logout", h.Logout)
	rg.GET("/auth/me", h.Me)

	users := rg.Group("/users")
	{
		users.GET("", h.ListUsers)
		users.POST("", middleware.RequireRole(models.RoleAdministrador), h.CreateUser)
		users.PUT("/me/location", h.UpdateLocation)
		users.GET("/:id", h.GetUser)
		users.PATCH("/:id", h.UpdateUser)
		users.DELETE("/:id", h.DeleteUser)
		users.POST("/:id/verify", h.VerifyUser)
		users.POST("/:id/notes", h.AddNote)
	}
}
