package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"todocal/internal/model"
	"todocal/internal/service"
)

// TodoHandler handles the owner-scoped todo endpoints.
type TodoHandler struct {
	todoService service.TodoService
}

// NewTodoHandler creates a new todo handler.
func NewTodoHandler(todoService service.TodoService) *TodoHandler {
	return &TodoHandler{todoService: todoService}
}

// CreateTodoRequest represents a todo creation request.
type CreateTodoRequest struct {
	Title         string           `json:"title" example:"Buy milk"`
	DueDate       *model.Date      `json:"due_date" swaggertype:"string" example:"2024-06-01"`
	DueTime       *model.TimeOfDay `json:"due_time" swaggertype:"string" example:"09:00"`
	ImageURL      *string          `json:"image_url"`
	NotifyEmail   bool             `json:"notify_email"`
	NotifyMinutes *int             `json:"notify_minutes" example:"30"`
}

// List godoc
// @Summary List todos
// @Description Newest first. Optionally restricted to one due date.
// @Tags todos
// @Produce json
// @Security BearerAuth
// @Param date query string false "Due date (YYYY-MM-DD)"
// @Success 200 {array} model.Todo
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /todos [get]
func (h *TodoHandler) List(c echo.Context) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	var dueDate *model.Date
	if raw := c.QueryParam("date"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return badRequest(err.Error())
		}
		dueDate = &d
	}

	todos, err := h.todoService.List(c.Request().Context(), claims.UserID, dueDate)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, todos)
}

// Calendar godoc
// @Summary Per-day todo counts for a month
// @Tags todos
// @Produce json
// @Security BearerAuth
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Success 200 {array} model.CalendarDay
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /todos/calendar [get]
func (h *TodoHandler) Calendar(c echo.Context) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	year, err := strconv.Atoi(c.QueryParam("year"))
	if err != nil {
		return badRequest("year is required")
	}
	month, err := strconv.Atoi(c.QueryParam("month"))
	if err != nil {
		return badRequest("month is required")
	}

	days, err := h.todoService.Calendar(c.Request().Context(), claims.UserID, year, month)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, days)
}

// Create godoc
// @Summary Create a todo
// @Tags todos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTodoRequest true "Todo"
// @Success 201 {object} model.Todo
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /todos [post]
func (h *TodoHandler) Create(c echo.Context) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	var req CreateTodoRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	todo, err := h.todoService.Create(c.Request().Context(), claims.UserID, model.NewTodo{
		Title:         req.Title,
		DueDate:       req.DueDate,
		DueTime:       req.DueTime,
		ImageURL:      req.ImageURL,
		NotifyEmail:   req.NotifyEmail,
		NotifyMinutes: req.NotifyMinutes,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, todo)
}

// Update godoc
// @Summary Partially update a todo
// @Description Only keys present in the body are applied. null clears due_time, image_url and notify_minutes.
// @Tags todos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Todo ID"
// @Param request body CreateTodoRequest true "Fields to change"
// @Success 200 {object} model.Todo
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /todos/{id} [patch]
func (h *TodoHandler) Update(c echo.Context) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var patch model.TodoPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest("invalid request body")
	}

	todo, err := h.todoService.Update(c.Request().Context(), claims.UserID, id, patch)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, todo)
}

// Delete godoc
// @Summary Delete a todo
// @Tags todos
// @Security BearerAuth
// @Param id path int true "Todo ID"
// @Success 204 "No Content"
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /todos/{id} [delete]
func (h *TodoHandler) Delete(c echo.Context) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.todoService.Delete(c.Request().Context(), claims.UserID, id); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}
