package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campuskit/institute-api/internal/middleware"
	"github.com/campuskit/institute-api/internal/service"
)

// Handlers bundles everything route registration needs.
type Handlers struct {
	Auth      *AuthHandler
	Courses   *CourseHandler
	Students  *StudentHandler
	Subjects  *SubjectHandler
	Grades    *GradeHandler
	Dashboard *DashboardHandler
	Metrics   *MetricsHandler
}

// RegisterRoutes wires all endpoints under the API prefix. Auth and health
// endpoints stay public; everything else sits behind admin or student tokens.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, authService *service.AuthService) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/institute/register", h.Auth.RegisterInstitute)
		auth.POST("/institute/login", h.Auth.LoginInstitute)
		auth.POST("/student/register", h.Auth.RegisterStudent)
		auth.POST("/student/login", h.Auth.LoginStudent)
	}

	admin := api.Group("", middleware.AdminAuth(authService))
	{
		courses := admin.Group("/courses")
		{
			courses.GET("", h.Courses.List)
			courses.POST("", h.Courses.Create)
			courses.POST("/bulk", h.Courses.BulkUpdate)
			courses.POST("/validate-assignment", h.Courses.ValidateAssignment)
			courses.GET("/semester-assignments", h.Courses.SemesterAssignments)
			courses.POST("/sync-enrollments", h.Courses.SyncEnrollments)
			courses.GET("/:id", h.Courses.Get)
			courses.PUT("/:id", h.Courses.Update)
			courses.DELETE("/:id", h.Courses.Delete)
			courses.GET("/:id/subjects", h.Subjects.List)
			courses.POST("/:id/subjects", h.Subjects.Create)
		}

		subjects := admin.Group("/subjects")
		{
			subjects.PUT("/:id", h.Subjects.Update)
			subjects.DELETE("/:id", h.Subjects.Delete)
		}

		students := admin.Group("/students")
		{
			students.GET("", h.Students.List)
			students.POST("/bulk", h.Students.BulkUpdate)
			students.GET("/export", h.Students.Export)
			students.GET("/:id", h.Students.Get)
			students.POST("/:id/verify", h.Students.Verify)
			students.POST("/:id/unverify", h.Students.Unverify)
			students.GET("/:id/grades", h.Grades.ListForStudent)
		}

		admin.POST("/grades/upload", h.Grades.Upload)
		admin.GET("/dashboard/stats", h.Dashboard.Stats)
	}

	student := api.Group("/student", middleware.StudentAuth(authService))
	{
		student.GET("/profile", h.Students.MyProfile)
		student.GET("/grades", h.Grades.MyGrades)
	}
}
