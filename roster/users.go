package roster

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stageworks/roster_backend/middlewares"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/utils"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type roleRequest struct {
	Role models.UserRole `json:"role"`
}

func registerUserRoutes(rg *gin.RouterGroup) {
	admin := middlewares.RequireRole(models.UserRoleAdmin)
	viewer := middlewares.RequireRole(models.UserRoleViewer)

	rg.POST("/login", loginHandler())
	rg.POST("/logout", viewer, logoutHandler())
	rg.GET("/me", viewer, meHandler())
	rg.GET("/users", admin, listUsersHandler())
	rg.POST("/users", admin, createUserHandler())
	rg.PUT("/users/:id/role", admin, updateRoleHandler())
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, models.ErrInvalidCredentials) || errors.Is(err, models.ErrUserDisabled) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			respondError(c, "loginHandler", err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := models.Logout(c.Request.Context()); err != nil {
			respondError(c, "logoutHandler", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, _ := utils.GetUsernameFromContext(c.Request.Context())
		user, err := models.GetUserByUsername(c.Request.Context(), username)
		if err != nil {
			respondError(c, "meHandler", err)
			return
		}
		user.PrepareGive()
		c.JSON(http.StatusOK, user)
	}
}

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := models.GetAllUsers(c.Request.Context())
		if err != nil {
			respondError(c, "listUsersHandler", err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			if errors.Is(err, models.ErrInvalidUserRole) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createUserHandler", err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func updateRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if self, ok := utils.GetUserIdFromContext(c.Request.Context()); ok && self == id {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot change your own role"})
			return
		}
		var req roleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrInvalidUserRole.Error()})
			return
		}
		user, err := models.UpdateUserRole(c.Request.Context(), id, req.Role)
		if err != nil {
			respondError(c, "updateRoleHandler", err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
