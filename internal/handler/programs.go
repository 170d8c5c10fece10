package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"programhub/internal/apperr"
	"programhub/internal/program"
)

type programRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	StartDate   string `json:"startDate" binding:"required"`
	EndDate     string `json:"endDate" binding:"required"`
}

func (h *Handler) createProgram(c *gin.Context) {
	var req programRequest
	if !bind(c, &req) {
		return
	}
	start, err1 := parseDate(req.StartDate)
	end, err2 := parseDate(req.EndDate)
	if err1 != nil || err2 != nil {
		fail(c, apperr.BadRequest("startDate and endDate must be dates (YYYY-MM-DD)."))
		return
	}
	p, err := h.programs.Create(c.Request.Context(), actor(c), program.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		fail(c, err)
		return
	}
	msg := "Program created as a draft."
	if p.Status == program.StatusPendingApproval {
		msg = "Program created and submitted for approval."
	}
	respond(c, http.StatusCreated, p, msg)
}

func (h *Handler) listPrograms(c *gin.Context) {
	programs, err := h.programs.List(c.Request.Context(), actor(c), c.Query("includeInactive") == "true")
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, programs, "Programs fetched successfully.")
}

func (h *Handler) getProgram(c *gin.Context) {
	p, err := h.programs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, p, "Program details fetched successfully.")
}

type updateProgramRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
}

func (h *Handler) updateProgram(c *gin.Context) {
	var req updateProgramRequest
	if !bind(c, &req) {
		return
	}
	start, err1 := datePtr(req.StartDate)
	end, err2 := datePtr(req.EndDate)
	if err1 != nil || err2 != nil {
		fail(c, apperr.BadRequest("startDate and endDate must be dates (YYYY-MM-DD)."))
		return
	}
	changes := program.Changes{Name: req.Name, Description: req.Description, StartDate: start, EndDate: end}
	p, err := h.programs.Update(c.Request.Context(), actor(c), c.Param("id"), changes)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, p, "Program updated successfully.")
}

func datePtr(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := parseDate(*raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *Handler) deactivateProgram(c *gin.Context) {
	if err := h.programs.Deactivate(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{}, "Program has been deactivated.")
}

func (h *Handler) requestProgramApproval(c *gin.Context) {
	p, err := h.programs.RequestApproval(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, p, "Program submitted for approval.")
}

func (h *Handler) approveProgram(c *gin.Context) {
	p, err := h.programs.Approve(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, p, "Program approved and is now Active.")
}

func (h *Handler) rejectProgram(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !bind(c, &req) {
		return
	}
	p, err := h.programs.Reject(c.Request.Context(), actor(c), c.Param("id"), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, p, "Program has been rejected.")
}

func (h *Handler) enrollTrainee(c *gin.Context) {
	var req struct {
		TraineeID string `json:"traineeId" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	p, err := h.programs.EnrollTrainee(c.Request.Context(), actor(c), c.Param("id"), req.TraineeID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, p, "Trainee enrolled successfully.")
}

func (h *Handler) enrollFacilitator(c *gin.Context) {
	var req struct {
		FacilitatorID string `json:"facilitatorId" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	p, err := h.programs.EnrollFacilitator(c.Request.Context(), actor(c), c.Param("id"), req.FacilitatorID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, p, "Facilitator enrolled successfully.")
}

func (h *Handler) manageManagers(c *gin.Context) {
	var req struct {
		ManagerID string `json:"managerId" binding:"required"`
		Action    string `json:"action" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	action := program.ManagerAction(strings.ToLower(req.Action))
	p, err := h.programs.ManageManagers(c.Request.Context(), actor(c), c.Param("id"), req.ManagerID, action)
	if err != nil {
		fail(c, err)
		return
	}
	verb := "added"
	if action == program.ManagerRemove {
		verb = "removed"
	}
	respond(c, http.StatusOK, p, fmt.Sprintf("Program Manager %s.", verb))
}

func (h *Handler) programStats(c *gin.Context) {
	from, ok := optionalDate(c, "startDate")
	if !ok {
		return
	}
	to, ok := optionalDate(c, "endDate")
	if !ok {
		return
	}
	s, err := h.programs.Stats(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, s, "Program statistics fetched successfully.")
}

func (h *Handler) programPDF(c *gin.Context) {
	id := c.Param("id")
	doc, err := h.reports.ProgramPDF(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=program-report-%s.pdf", id))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (h *Handler) programMembers(c *gin.Context) {
	members, err := h.programs.Members(c.Request.Context(), actor(c), c.Param("programId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, members, "Users in program fetched successfully.")
}

func (h *Handler) updateMember(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	m, err := h.programs.UpdateMemberName(c.Request.Context(), actor(c), c.Param("userId"), req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, m, "User details updated successfully.")
}

func (h *Handler) removeMember(c *gin.Context) {
	p, err := h.programs.RemoveMember(c.Request.Context(), actor(c), c.Param("programId"), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, p, "User removed from program successfully.")
}

func (h *Handler) createDepartment(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		ProgramID   string `json:"programId" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	d, err := h.programs.CreateDepartment(c.Request.Context(), actor(c), program.DepartmentInput{
		ProgramID:   req.ProgramID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, d, "Department created successfully.")
}

func (h *Handler) listDepartments(c *gin.Context) {
	ds, err := h.programs.ListDepartments(c.Request.Context(), c.Param("programId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, ds, "Departments fetched successfully.")
}
