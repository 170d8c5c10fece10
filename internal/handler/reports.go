package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"programhub/internal/attendance"
	"programhub/internal/audit"
)

func (h *Handler) issueCertificate(c *gin.Context) {
	var req struct {
		ProgramID string `json:"programId" binding:"required"`
		TraineeID string `json:"traineeId" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	cert, err := h.certificates.Issue(c.Request.Context(), actor(c), req.ProgramID, req.TraineeID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, cert, "Certificate issued successfully.")
}

func (h *Handler) myCertificates(c *gin.Context) {
	certs, err := h.certificates.Mine(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, certs, "Your certificates fetched successfully.")
}

func (h *Handler) traineeMonthly(c *gin.Context) {
	m, err := h.reports.TraineeMonthly(c.Request.Context(), c.Param("traineeId"), queryInt(c, "month", 0), queryInt(c, "year", 0))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, m, "Trainee monthly attendance report generated.")
}

func (h *Handler) masterLog(c *gin.Context) {
	from, ok := optionalDate(c, "startDate")
	if !ok {
		return
	}
	to, ok := optionalDate(c, "endDate")
	if !ok {
		return
	}
	if to != nil && len(c.Query("endDate")) == len(attendance.DayLayout) {
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &end
	}
	page, err := h.reports.MasterLog(c.Request.Context(), audit.Filter{
		Action: audit.Action(c.Query("action")),
		UserID: c.Query("userId"),
		From:   from,
		To:     to,
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, page, "Master log fetched successfully.")
}

func (h *Handler) dashboard(c *gin.Context) {
	d, err := h.reports.Dashboard(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, d, "Dashboard statistics fetched successfully.")
}
