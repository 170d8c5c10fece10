package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"programhub/internal/course"
)

func (h *Handler) createCourse(c *gin.Context) {
	doc, err := h.formFile(c, "courseDocument")
	if err != nil {
		fail(c, err)
		return
	}
	cr, err := h.courses.CreateCourse(c.Request.Context(), actor(c), course.CreateCourseInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		ProgramID:   c.PostForm("programId"),
		Document:    doc,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, cr, "Course created and pending approval.")
}

func (h *Handler) approveCourse(c *gin.Context) {
	cr, err := h.courses.ApproveCourse(c.Request.Context(), actor(c), c.Param("courseId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, cr, "Course has been approved.")
}

func (h *Handler) requestCourseApproval(c *gin.Context) {
	cr, err := h.courses.RequestCourseApproval(c.Request.Context(), actor(c), c.Param("courseId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, cr, "Course submitted for approval.")
}

func (h *Handler) listCourses(c *gin.Context) {
	list, err := h.courses.ListForProgram(c.Request.Context(), c.Param("programId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, list, "Courses fetched successfully.")
}

func (h *Handler) createQuiz(c *gin.Context) {
	var req struct {
		Title     string            `json:"title" binding:"required"`
		CourseID  string            `json:"courseId" binding:"required"`
		Questions []course.Question `json:"questions"`
	}
	if !bind(c, &req) {
		return
	}
	q, err := h.courses.CreateQuiz(c.Request.Context(), actor(c), course.CreateQuizInput{
		Title:     req.Title,
		CourseID:  req.CourseID,
		Questions: req.Questions,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, q, "Quiz created successfully.")
}

func (h *Handler) quizForAttempt(c *gin.Context) {
	q, err := h.courses.QuizForAttempt(c.Request.Context(), c.Param("quizId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, q, "Quiz fetched.")
}

func (h *Handler) submitAttempt(c *gin.Context) {
	var req struct {
		Answers []int `json:"answers" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	a, err := h.courses.SubmitAttempt(c.Request.Context(), actor(c), c.Param("quizId"), req.Answers)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, a, "Quiz submitted successfully. Your score has been recorded.")
}

func (h *Handler) createSubmission(c *gin.Context) {
	file, err := h.formFile(c, "projectFile")
	if err != nil {
		fail(c, err)
		return
	}
	s, err := h.courses.CreateSubmission(c.Request.Context(), actor(c), course.CreateSubmissionInput{
		CourseID: c.PostForm("courseId"),
		File:     file,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, s, "Project submitted successfully.")
}

func (h *Handler) listSubmissions(c *gin.Context) {
	list, err := h.courses.ListSubmissions(c.Request.Context(), actor(c), c.Param("courseId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, list, "Submissions fetched successfully.")
}

func (h *Handler) reviewSubmission(c *gin.Context) {
	var req struct {
		Status   string `json:"status" binding:"required"`
		Feedback string `json:"feedback"`
		Grade    string `json:"grade"`
	}
	if !bind(c, &req) {
		return
	}
	s, err := h.courses.Review(c.Request.Context(), actor(c), c.Param("id"), course.ReviewInput{
		Status:   course.SubmissionStatus(req.Status),
		Feedback: req.Feedback,
		Grade:    req.Grade,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, s, "Submission reviewed successfully.")
}
