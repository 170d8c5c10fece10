package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"programhub/internal/attendance"
)

type markRequest struct {
	ProgramID string              `json:"programId" binding:"required"`
	Method    string              `json:"method" binding:"required"`
	Data      attendance.Evidence `json:"data"`
}

func (h *Handler) markAttendance(c *gin.Context) {
	var req markRequest
	if !bind(c, &req) {
		return
	}
	rec, created, err := h.attendance.Mark(c.Request.Context(), attendance.MarkInput{
		UserID:    actor(c).ID,
		ProgramID: req.ProgramID,
		Method:    attendance.Method(req.Method),
		Data:      req.Data,
	})
	if err != nil {
		fail(c, err)
		return
	}
	if created {
		respond(c, http.StatusCreated, rec, "Check-in successful.")
		return
	}
	respond(c, http.StatusOK, rec, "Check-out successful.")
}

func (h *Handler) sessionCode(c *gin.Context) {
	tok, err := h.attendance.SessionCode(c.Request.Context(), c.Param("programId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"qrCodeImage": tok.DataURL(),
		"expiresAt":   tok.ExpiresAt,
	}, "QR Code generated for session.")
}

func (h *Handler) excuseAbsence(c *gin.Context) {
	var req struct {
		ProgramID string `json:"programId"`
		TraineeID string `json:"traineeId"`
		Date      string `json:"date"`
		Reason    string `json:"reason"`
	}
	if !bind(c, &req) {
		return
	}
	rec, err := h.attendance.Excuse(c.Request.Context(), attendance.ExcuseInput{
		ProgramID: req.ProgramID,
		TraineeID: req.TraineeID,
		Date:      strings.TrimSpace(req.Date),
		Reason:    req.Reason,
		MarkedBy:  actor(c).ID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, rec, "Absence marked as excused.")
}

func (h *Handler) attendanceReport(c *gin.Context) {
	rep, err := h.attendance.Report(c.Request.Context(), attendance.ReportQuery{
		ProgramID: c.Param("programId"),
		From:      c.Query("startDate"),
		To:        c.Query("endDate"),
		TraineeID: c.Query("traineeId"),
		Requester: actor(c),
		Page:      queryInt(c, "page", 1),
		Limit:     queryInt(c, "limit", 20),
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, rep, "Attendance report fetched successfully.")
}
