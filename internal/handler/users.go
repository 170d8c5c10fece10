package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"programhub/internal/apperr"
	"programhub/internal/auth"
	"programhub/internal/user"
)

type registerRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}
	var caller *auth.Principal
	if p, ok := auth.PrincipalFrom(c); ok {
		caller = &p
	}
	u, err := h.users.Register(c.Request.Context(), caller, user.RegisterInput{Name: req.Name, Email: req.Email, Role: req.Role})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, u, "User registered successfully. Login credentials have been emailed.")
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	s, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, s, "User logged in successfully.")
}

func (h *Handler) me(c *gin.Context) {
	u, err := h.users.Me(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, u, "Current user data fetched successfully")
}

func (h *Handler) updateAccount(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	u, err := h.users.UpdateAccount(c.Request.Context(), actor(c), req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, u, "Account details updated successfully")
}

func (h *Handler) changePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"oldPassword" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.users.ChangePassword(c.Request.Context(), actor(c), req.OldPassword, req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{}, "Password changed successfully. Please log in again.")
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), c.Query("role"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, users, "Users fetched successfully.")
}

func (h *Handler) listUsersByRole(c *gin.Context) {
	role := c.Query("role")
	users, err := h.users.ListByRole(c.Request.Context(), role)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, users, fmt.Sprintf("User list for role '%s' fetched successfully.", role))
}

func (h *Handler) onboardedUsers(c *gin.Context) {
	page, err := h.users.Onboarded(c.Request.Context(), actor(c), c.Query("role"), queryInt(c, "page", 1), queryInt(c, "limit", 20))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, page, "Onboarded users fetched successfully.")
}

func (h *Handler) archivedUsers(c *gin.Context) {
	users, err := h.users.Archived(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, users, "Archived users fetched successfully.")
}

func (h *Handler) getUser(c *gin.Context) {
	d, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, d, "User details fetched successfully.")
}

func (h *Handler) updateUserStatus(c *gin.Context) {
	var req struct {
		IsActive *bool `json:"isActive"`
	}
	if !bind(c, &req) {
		return
	}
	if req.IsActive == nil {
		fail(c, apperr.Validation("'isActive' must be a boolean.",
			apperr.FieldError{Field: "isActive", Message: "is required"}))
		return
	}
	u, err := h.users.UpdateStatus(c.Request.Context(), actor(c), c.Param("id"), *req.IsActive)
	if err != nil {
		fail(c, err)
		return
	}
	msg := "User has been deactivated."
	if *req.IsActive {
		msg = "User has been reactivated."
	}
	respond(c, http.StatusOK, u, msg)
}
