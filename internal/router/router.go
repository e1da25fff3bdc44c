package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/handler"
	"github.com/noah-isme/school-admin-api/internal/middleware"
	"github.com/noah-isme/school-admin-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth           *handler.AuthHandler
	Users          *handler.UserHandler
	Roles          *handler.RoleHandler
	Periods        *handler.PeriodHandler
	Structure      *handler.StructureHandler
	Students       *handler.StudentHandler
	Guardians      *handler.GuardianHandler
	Teachers       *handler.TeacherHandler
	Enrollments    *handler.EnrollmentHandler
	Vacation       *handler.VacationHandler
	PreEnrollments *handler.PreEnrollmentHandler
	Activity       *handler.ActivityHandler
}

// Options carries the cross-cutting collaborators of the API group.
type Options struct {
	Prefix        string
	Authenticator middleware.Authenticator
	Cookies       middleware.Cookies
	Audit         middleware.AuditRecorder
	Logger        *zap.Logger
}

func perm(module, action string) string {
	return models.PermissionName(module, action)
}

// Register mounts the API routes on r.
func Register(r gin.IRouter, opts Options, h Handlers) {
	api := r.Group(opts.Prefix)
	can := func(module, action string) gin.HandlerFunc {
		return middleware.RequirePermission(opts.Audit, perm(module, action))
	}
	photo := middleware.Upload(middleware.ImageRule("photo", true))
	cv := middleware.Upload(middleware.CVRule("cv", true))
	documentUpload := middleware.Upload(middleware.DocumentRule(middleware.AnyField))
	formPayload := middleware.FormPayload()
	withDocuments := func(gate, next gin.HandlerFunc) []gin.HandlerFunc {
		return []gin.HandlerFunc{gate, documentUpload, formPayload, next}
	}

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.Auth(opts.Authenticator, opts.Cookies, opts.Logger))

	me := secured.Group("/auth")
	me.POST("/logout", h.Auth.Logout)
	me.POST("/logout-all", h.Auth.LogoutAll)
	me.GET("/me", h.Auth.Me)
	me.POST("/change-password", h.Auth.ChangePassword)
	me.GET("/sessions", h.Auth.Sessions)
	me.DELETE("/sessions/:id", h.Auth.RevokeSession)

	users := secured.Group("/users")
	users.GET("", can(models.ModuleUsers, models.ActionRead), h.Users.List)
	users.GET("/:id", can(models.ModuleUsers, models.ActionRead), h.Users.Get)
	users.POST("", can(models.ModuleUsers, models.ActionCreate), h.Users.Create)
	users.PUT("/:id", can(models.ModuleUsers, models.ActionUpdate), h.Users.Update)
	users.DELETE("/:id", can(models.ModuleUsers, models.ActionDelete), h.Users.Delete)
	users.PUT("/:id/roles", can(models.ModuleUsers, models.ActionAssignRoles), h.Users.AssignRoles)
	users.POST("/:id/unlock", can(models.ModuleUsers, models.ActionUnlock), h.Users.Unlock)
	users.POST("/:id/reset-password", can(models.ModuleUsers, models.ActionResetPassword), h.Users.ResetPassword)

	roles := secured.Group("/roles")
	roles.GET("", can(models.ModuleRoles, models.ActionRead), h.Roles.List)
	roles.GET("/:id", can(models.ModuleRoles, models.ActionRead), h.Roles.Get)
	roles.POST("", can(models.ModuleRoles, models.ActionCreate), h.Roles.Create)
	roles.PUT("/:id", can(models.ModuleRoles, models.ActionUpdate), h.Roles.Update)
	roles.DELETE("/:id", can(models.ModuleRoles, models.ActionDelete), h.Roles.Delete)
	roles.PUT("/:id/permissions", can(models.ModuleRoles, models.ActionUpdate), h.Roles.AssignPermissions)
	secured.GET("/permissions", can(models.ModuleRoles, models.ActionRead), h.Roles.Permissions)

	periods := secured.Group("/periods")
	periods.GET("", can(models.ModulePeriods, models.ActionRead), h.Periods.List)
	periods.GET("/active", h.Periods.Active)
	periods.GET("/:id", can(models.ModulePeriods, models.ActionRead), h.Periods.Get)
	periods.POST("", can(models.ModulePeriods, models.ActionCreate), h.Periods.Create)
	periods.PUT("/:id", can(models.ModulePeriods, models.ActionUpdate), h.Periods.Update)
	periods.POST("/:id/activate", can(models.ModulePeriods, models.ActionUpdate), h.Periods.Activate)
	periods.POST("/:id/close", can(models.ModulePeriods, models.ActionUpdate), h.Periods.Close)
	periods.DELETE("/:id", can(models.ModulePeriods, models.ActionDelete), h.Periods.Delete)

	registerStructure(secured, can, h.Structure)

	students := secured.Group("/students")
	students.GET("", can(models.ModuleStudents, models.ActionRead), h.Students.List)
	students.GET("/:id", can(models.ModuleStudents, models.ActionRead), h.Students.Get)
	students.POST("", can(models.ModuleStudents, models.ActionCreate), h.Students.Create)
	students.PUT("/:id", can(models.ModuleStudents, models.ActionUpdate), h.Students.Update)
	students.DELETE("/:id", can(models.ModuleStudents, models.ActionDelete), h.Students.Delete)
	students.POST("/:id/photo", can(models.ModuleStudents, models.ActionUpload), photo, h.Students.UploadPhoto)
	students.POST("/:id/guardians", can(models.ModuleStudents, models.ActionUpdate), h.Students.LinkGuardian)
	students.DELETE("/:id/guardians/:guardianId", can(models.ModuleStudents, models.ActionUpdate), h.Students.UnlinkGuardian)
	students.GET("/:id/enrollments", can(models.ModuleEnrollments, models.ActionRead), h.Students.Enrollments)

	guardians := secured.Group("/guardians")
	guardians.GET("", can(models.ModuleGuardians, models.ActionRead), h.Guardians.List)
	guardians.GET("/lookup", can(models.ModuleGuardians, models.ActionRead), h.Guardians.Lookup)
	guardians.GET("/:id", can(models.ModuleGuardians, models.ActionRead), h.Guardians.Get)
	guardians.POST("", can(models.ModuleGuardians, models.ActionCreate), h.Guardians.Create)
	guardians.PUT("/:id", can(models.ModuleGuardians, models.ActionUpdate), h.Guardians.Update)
	guardians.DELETE("/:id", can(models.ModuleGuardians, models.ActionDelete), h.Guardians.Delete)

	teachers := secured.Group("/teachers")
	teachers.GET("", can(models.ModuleTeachers, models.ActionRead), h.Teachers.List)
	teachers.GET("/:id", can(models.ModuleTeachers, models.ActionRead), h.Teachers.Get)
	teachers.POST("", can(models.ModuleTeachers, models.ActionCreate), h.Teachers.Create)
	teachers.PUT("/:id", can(models.ModuleTeachers, models.ActionUpdate), h.Teachers.Update)
	teachers.DELETE("/:id", can(models.ModuleTeachers, models.ActionDelete), h.Teachers.Delete)
	teachers.POST("/:id/photo", can(models.ModuleTeachers, models.ActionUpload), photo, h.Teachers.UploadPhoto)
	teachers.POST("/:id/cv", can(models.ModuleTeachers, models.ActionUpload), cv, h.Teachers.UploadCV)

	assignments := secured.Group("/teacher-assignments")
	assignments.GET("", can(models.ModuleTeachers, models.ActionRead), h.Teachers.ListAssignments)
	assignments.POST("", can(models.ModuleTeachers, models.ActionUpdate), h.Teachers.CreateAssignment)
	assignments.PUT("/:id", can(models.ModuleTeachers, models.ActionUpdate), h.Teachers.UpdateAssignment)
	assignments.DELETE("/:id", can(models.ModuleTeachers, models.ActionUpdate), h.Teachers.DeleteAssignment)

	enrollments := secured.Group("/enrollments")
	enrollments.GET("", can(models.ModuleEnrollments, models.ActionRead), h.Enrollments.List)
	enrollments.GET("/stats", can(models.ModuleEnrollments, models.ActionRead), h.Enrollments.Stats)
	enrollments.GET("/export", can(models.ModuleEnrollments, models.ActionExport), h.Enrollments.Export)
	enrollments.POST("", withDocuments(can(models.ModuleEnrollments, models.ActionCreate), h.Enrollments.Create)...)
	enrollments.POST("/auto", withDocuments(middleware.RequireRole(opts.Audit, models.RoleStudent), h.Enrollments.AutoEnroll)...)
	enrollments.GET("/:id", can(models.ModuleEnrollments, models.ActionRead), h.Enrollments.Get)
	enrollments.PUT("/:id", can(models.ModuleEnrollments, models.ActionUpdate), h.Enrollments.Update)
	enrollments.DELETE("/:id", can(models.ModuleEnrollments, models.ActionDelete), h.Enrollments.Delete)
	enrollments.PATCH("/:id/status", can(models.ModuleEnrollments, models.ActionChangeStatus), h.Enrollments.ChangeStatus)
	enrollments.POST("/:id/transfer", can(models.ModuleEnrollments, models.ActionTransfer), h.Enrollments.Transfer)
	enrollments.GET("/:id/certificate", can(models.ModuleEnrollments, models.ActionRead), h.Enrollments.Certificate)
	enrollments.POST("/:id/documents", withDocuments(can(models.ModuleEnrollments, models.ActionUpload), h.Enrollments.AddDocuments)...)
	enrollments.PATCH("/:id/documents/:documentId/verify", can(models.ModuleEnrollments, models.ActionVerifyDocs), h.Enrollments.VerifyDocument)
	enrollments.DELETE("/:id/documents/:documentId", can(models.ModuleEnrollments, models.ActionUpdate), h.Enrollments.DeleteDocument)

	registerVacation(secured, can, h.Vacation)

	pre := secured.Group("/pre-enrollments")
	pre.GET("", can(models.ModulePreEnrollments, models.ActionRead), h.PreEnrollments.List)
	pre.GET("/:id", can(models.ModulePreEnrollments, models.ActionRead), h.PreEnrollments.Get)
	pre.POST("", can(models.ModulePreEnrollments, models.ActionCreate), h.PreEnrollments.Create)
	pre.PUT("/:id", can(models.ModulePreEnrollments, models.ActionUpdate), h.PreEnrollments.Update)
	pre.PATCH("/:id/status", can(models.ModulePreEnrollments, models.ActionChangeStatus), h.PreEnrollments.Transition)
	pre.POST("/:id/documents", withDocuments(can(models.ModulePreEnrollments, models.ActionUpload), h.PreEnrollments.AddDocuments)...)
	pre.PATCH("/:id/documents/:documentId/review", can(models.ModulePreEnrollments, models.ActionReview), h.PreEnrollments.ReviewDocument)
	pre.POST("/:id/convert", can(models.ModulePreEnrollments, models.ActionConvert), h.PreEnrollments.Convert)
	secured.GET("/quotas", can(models.ModulePreEnrollments, models.ActionRead), h.PreEnrollments.ListQuotas)
	secured.PUT("/quotas", can(models.ModulePreEnrollments, models.ActionUpdate), h.PreEnrollments.SetQuota)

	logs := secured.Group("/activity-logs", can(models.ModuleAudit, models.ActionRead))
	logs.GET("", h.Activity.List)
	logs.GET("/:id", h.Activity.Get)
}

type permissionGate func(module, action string) gin.HandlerFunc

func registerStructure(r *gin.RouterGroup, can permissionGate, h *handler.StructureHandler) {
	read := can(models.ModuleStructure, models.ActionRead)
	create := can(models.ModuleStructure, models.ActionCreate)
	update := can(models.ModuleStructure, models.ActionUpdate)
	remove := can(models.ModuleStructure, models.ActionDelete)

	r.GET("/levels", read, h.ListLevels)
	r.POST("/levels", create, h.CreateLevel)
	r.PUT("/levels/:id", update, h.UpdateLevel)
	r.DELETE("/levels/:id", remove, h.DeleteLevel)

	r.GET("/grades", read, h.ListGrades)
	r.POST("/grades", create, h.CreateGrade)
	r.PUT("/grades/:id", update, h.UpdateGrade)
	r.DELETE("/grades/:id", remove, h.DeleteGrade)

	r.GET("/shifts", read, h.ListShifts)
	r.POST("/shifts", create, h.CreateShift)
	r.PUT("/shifts/:id", update, h.UpdateShift)
	r.DELETE("/shifts/:id", remove, h.DeleteShift)

	r.GET("/sections", read, h.ListSections)
	r.GET("/sections/:id", read, h.GetSection)
	r.POST("/sections", create, h.CreateSection)
	r.PUT("/sections/:id", update, h.UpdateSection)
	r.DELETE("/sections/:id", remove, h.DeleteSection)

	r.GET("/subjects", read, h.ListSubjects)
	r.POST("/subjects", create, h.CreateSubject)
	r.PUT("/subjects/:id", update, h.UpdateSubject)
	r.DELETE("/subjects/:id", remove, h.DeleteSubject)
}

func registerVacation(r *gin.RouterGroup, can permissionGate, h *handler.VacationHandler) {
	v := r.Group("/vacation")
	read := can(models.ModuleVacation, models.ActionRead)

	v.GET("/periods", read, h.ListPeriods)
	v.GET("/periods/:id", read, h.GetPeriod)
	v.POST("/periods", can(models.ModuleVacation, models.ActionCreate), h.CreatePeriod)
	v.PUT("/periods/:id", can(models.ModuleVacation, models.ActionUpdate), h.UpdatePeriod)
	v.DELETE("/periods/:id", can(models.ModuleVacation, models.ActionDelete), h.DeletePeriod)

	v.GET("/courses", read, h.ListCourses)
	v.GET("/courses/:id", read, h.GetCourse)
	v.GET("/courses/:id/enrollments", read, h.CourseRoster)
	v.POST("/courses", can(models.ModuleVacation, models.ActionCreate), h.CreateCourse)
	v.PUT("/courses/:id", can(models.ModuleVacation, models.ActionUpdate), h.UpdateCourse)
	v.DELETE("/courses/:id", can(models.ModuleVacation, models.ActionDelete), h.DeleteCourse)

	v.GET("/enrollments", read, h.ListEnrollments)
	v.GET("/enrollments/:id", read, h.GetEnrollment)
	v.POST("/enrollments", can(models.ModuleVacation, models.ActionCreate), h.Enroll)
	v.POST("/enrollments/:id/verify-payment", can(models.ModuleVacation, models.ActionVerifyPayment), h.VerifyPayment)
	v.DELETE("/enrollments/:id", can(models.ModuleVacation, models.ActionDelete), h.DeleteEnrollment)
	v.GET("/enrollments/:id/receipt", read, h.Receipt)
	v.GET("/receipts", read, h.CombinedReceipt)
}
