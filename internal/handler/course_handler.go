package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workshop-orchestrator/internal/dto"
	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/response"
)

type courseService interface {
	List(ctx context.Context, query dto.SessionQuery) ([]dto.CourseResponse, error)
	Get(ctx context.Context, courseID string) (*dto.CourseResponse, error)
	Sessions(ctx context.Context, query dto.SessionQuery) ([]*models.Session, error)
	EquipeTechno(ctx context.Context, courseID string) ([]string, error)
	SetField(ctx context.Context, courseID string, req dto.SetFieldRequest) (*dto.CourseResponse, error)
}

// CourseHandler exposes the workshop calendar.
type CourseHandler struct {
	courses courseService
}

// NewCourseHandler constructs a course handler.
func NewCourseHandler(courses courseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param date query string false "Only courses whose first session starts on this date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var query dto.SessionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	courses, err := h.courses.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, map[string]interface{}{"total": len(courses)})
}

// Get godoc
// @Summary Get a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Sessions godoc
// @Summary List sessions starting on a date
// @Tags Courses
// @Produce json
// @Param date query string false "Start date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *CourseHandler) Sessions(c *gin.Context) {
	var query dto.SessionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	sessions, err := h.courses.Sessions(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, map[string]interface{}{"total": len(sessions)})
}

// EquipeTechno godoc
// @Summary List the technical team of a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/equipe-techno [get]
func (h *CourseHandler) EquipeTechno(c *gin.Context) {
	members, err := h.courses.EquipeTechno(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// SetField godoc
// @Summary Write one calendar field
// @Description Updates every session of the course, or only the session starting at start_date.
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.SetFieldRequest true "Field update"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{id}/fields [put]
func (h *CourseHandler) SetField(c *gin.Context) {
	var req dto.SetFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid field payload"))
		return
	}
	course, err := h.courses.SetField(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}
