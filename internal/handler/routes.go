package handler

import (
	"github.com/gin-gonic/gin"

	"programhub/internal/auth"
)

const (
	superAdmin  = auth.RoleSuperAdmin
	manager     = auth.RoleProgramManager
	facilitator = auth.RoleFacilitator
	trainee     = auth.RoleTrainee
)

// Register mounts every /api/v1 route on r. extra runs after authentication
// on protected routes and before the handlers on public ones.
func (h *Handler) Register(r gin.IRouter, extra ...gin.HandlerFunc) {
	api := r.Group("/api/v1")

	authenticate := auth.Authenticate(h.cfg.JWTSigningKey, h.cfg.JWTIssuer, h.users.IsActive)
	identify := auth.OptionalAuthenticate(h.cfg.JWTSigningKey, h.cfg.JWTIssuer, h.users.IsActive)
	public := api.Group("", extra...)
	private := api.Group("", append([]gin.HandlerFunc{authenticate}, extra...)...)
	role := auth.RequireRole

	public.POST("/auth/register", identify, h.register)
	public.POST("/auth/login", h.login)

	users := private.Group("/users")
	users.GET("/me", h.me)
	users.PATCH("/update-account", h.updateAccount)
	users.POST("/change-password", h.changePassword)
	manage := users.Group("/manage")
	manage.GET("", role(superAdmin), h.listUsers)
	manage.GET("/list-by-role", role(superAdmin), h.listUsersByRole)
	manage.GET("/onboarded", role(superAdmin, manager), h.onboardedUsers)
	manage.GET("/archived", role(superAdmin), h.archivedUsers)
	manage.GET("/:id", role(superAdmin), h.getUser)
	manage.PATCH("/:id/status", role(superAdmin), h.updateUserStatus)

	programs := private.Group("/programs")
	programs.POST("", role(manager, superAdmin), h.createProgram)
	programs.GET("", h.listPrograms)
	programs.GET("/:id", h.getProgram)
	programs.PUT("/:id", role(superAdmin, manager), h.updateProgram)
	programs.DELETE("/:id", role(superAdmin), h.deactivateProgram)
	programs.PATCH("/:id/request-approval", role(manager), h.requestProgramApproval)
	programs.PATCH("/:id/approve", role(superAdmin), h.approveProgram)
	programs.PATCH("/:id/reject", role(superAdmin), h.rejectProgram)
	programs.POST("/:id/enroll-trainee", role(manager), h.enrollTrainee)
	programs.POST("/:id/enroll-facilitator", role(manager), h.enrollFacilitator)
	programs.PATCH("/:id/manage-managers", role(superAdmin), h.manageManagers)
	programs.GET("/:id/report/pdf", role(superAdmin, manager), h.programPDF)
	programs.GET("/:id/stats", role(superAdmin, manager, facilitator), h.programStats)

	members := private.Group("/program-users", role(manager))
	members.GET("/program/:programId", h.programMembers)
	members.PATCH("/:userId", h.updateMember)
	members.PATCH("/program/:programId/remove/:userId", h.removeMember)

	departments := private.Group("/departments")
	departments.POST("", role(manager), h.createDepartment)
	departments.GET("/program/:programId", h.listDepartments)

	att := private.Group("/attendance")
	att.POST("/mark", role(trainee, facilitator), h.markAttendance)
	att.GET("/qr-code/program/:programId", role(facilitator, manager), h.sessionCode)
	att.POST("/excuse", role(manager, facilitator), h.excuseAbsence)
	att.GET("/report/program/:programId", role(superAdmin, manager, facilitator, trainee), h.attendanceReport)

	courses := private.Group("/courses")
	courses.POST("", role(facilitator), h.createCourse)
	courses.PATCH("/:courseId/approve", role(manager), h.approveCourse)
	courses.PATCH("/:courseId/request-approval", role(facilitator), h.requestCourseApproval)
	courses.GET("/program/:programId", h.listCourses)

	quizzes := private.Group("/quizzes")
	quizzes.POST("", role(facilitator), h.createQuiz)
	quizzes.GET("/:quizId/attempt", role(trainee), h.quizForAttempt)
	quizzes.POST("/:quizId/attempt", role(trainee), h.submitAttempt)

	submissions := private.Group("/submissions")
	submissions.POST("", role(trainee), h.createSubmission)
	submissions.GET("/course/:courseId", role(facilitator), h.listSubmissions)
	submissions.PATCH("/:id/review", role(facilitator), h.reviewSubmission)

	certs := private.Group("/certificates")
	certs.POST("/issue", role(manager), h.issueCertificate)
	certs.GET("/my-certificates", role(trainee), h.myCertificates)

	reports := private.Group("/reports", role(superAdmin, manager))
	reports.GET("/trainee/:traineeId/attendance", h.traineeMonthly)
	reports.GET("/master-log", role(superAdmin), h.masterLog)

	private.GET("/dashboard/stats", role(superAdmin, manager), h.dashboard)
}
