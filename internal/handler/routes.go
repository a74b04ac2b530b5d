package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workshop-orchestrator/internal/middleware"
	"github.com/noah-isme/workshop-orchestrator/internal/models"
)

// Routes bundles the API handlers mounted under the versioned prefix.
type Routes struct {
	Courses      *CourseHandler
	Integrations *IntegrationHandler
	Attendance   *AttendanceHandler
	Metrics      *MetricsHandler
}

// Register mounts the authenticated API on group. auth must populate the
// operator claims; reads are open to every role, writes need a coordinator.
func (r Routes) Register(group *gin.RouterGroup, auth gin.HandlerFunc) {
	group.GET("/export/:token", r.Attendance.Download)

	api := group.Group("")
	api.Use(auth)

	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator, models.RoleTrainer)
	coordinators := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator)

	api.GET("/courses", anyRole, r.Courses.List)
	api.GET("/courses/:id", anyRole, r.Courses.Get)
	api.GET("/courses/:id/equipe-techno", anyRole, r.Courses.EquipeTechno)
	api.GET("/sessions", anyRole, r.Courses.Sessions)
	api.PUT("/courses/:id/fields", coordinators, r.Courses.SetField)

	api.POST("/courses/:id/eventbrite", coordinators, r.Integrations.LinkEventbrite)
	api.POST("/courses/:id/zoom", coordinators, r.Integrations.LinkZoom)
	api.POST("/courses/:id/zoom/panelists", coordinators, r.Integrations.SyncPanelists)
	api.POST("/courses/:id/slack-channel", coordinators, r.Integrations.ProvisionChannel)
	api.DELETE("/courses/:id/slack-channel", coordinators, r.Integrations.ArchiveChannel)
	api.POST("/courses/:id/calendar-events", coordinators, r.Integrations.CreateCalendarEvents)
	api.DELETE("/courses/:id/calendar-events", coordinators, r.Integrations.DeleteCalendarEvents)
	api.POST("/courses/:id/certificates", coordinators, r.Integrations.GenerateCertificates)

	api.POST("/attendance/reconcile", anyRole, r.Attendance.Reconcile)
	api.POST("/attendance/audits", coordinators, r.Attendance.CreateAudit)
	api.GET("/attendance/audits", anyRole, r.Attendance.ListAudits)
	api.GET("/attendance/audits/:id", anyRole, r.Attendance.GetAudit)

	if r.Metrics != nil {
		api.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin), r.Metrics.Summary)
	}
}
