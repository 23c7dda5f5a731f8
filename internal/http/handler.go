package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	dto "taskpact.com/taskpact/internal/data_models"
	apperr "taskpact.com/taskpact/internal/errors"
	"taskpact.com/taskpact/internal/http/validators"
	"taskpact.com/taskpact/internal/realtime"
	"taskpact.com/taskpact/internal/services"
)

// userHeader carries the caller identity. Session issuance and verification
// live outside this service; the header is trusted as-is.
const userHeader = "X-User-ID"

type Handler struct {
	taskService *services.TaskService
	registry    *realtime.Registry
}

func NewHandler(taskService *services.TaskService, registry *realtime.Registry) *Handler {
	return &Handler{
		taskService: taskService,
		registry:    registry,
	}
}

func (h *Handler) CreateTask(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}

	var req dto.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateCreateTaskRequest(&req); err != nil {
		return err
	}

	task, err := h.taskService.CreateTask(
		c.Request().Context(), req.Title, actor, req.VerifierID, req.Deadline, req.PenaltyContent,
	)
	if err != nil {
		return domainError(err, "failed to create task")
	}

	return c.JSON(http.StatusCreated, task)
}

func (h *Handler) GetTask(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return domainError(apperr.ErrTaskIDRequired, "task id is required")
	}

	task, err := h.taskService.GetTask(c.Request().Context(), id)
	if err != nil {
		return domainError(err, "failed to load task")
	}

	return c.JSON(http.StatusOK, task)
}

func (h *Handler) ListTasks(c echo.Context) error {
	tasks, err := h.taskService.ListTasks(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list tasks")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"count": len(tasks),
		"tasks": tasks,
	})
}

func (h *Handler) SubmitProof(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}

	var req dto.SubmitProofRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	task, err := h.taskService.SubmitProof(c.Request().Context(), c.Param("id"), actor, req.ProofRef)
	if err != nil {
		return domainError(err, "failed to submit proof")
	}

	return c.JSON(http.StatusOK, task)
}

func (h *Handler) Approve(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.Approve(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return domainError(err, "failed to approve task")
	}

	return c.JSON(http.StatusOK, task)
}

func (h *Handler) Reject(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}

	var req dto.RejectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateRejectRequest(&req); err != nil {
		return err
	}

	task, err := h.taskService.Reject(c.Request().Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		return domainError(err, "failed to reject proof")
	}

	return c.JSON(http.StatusOK, task)
}

func (h *Handler) Pause(c echo.Context) error {
	if _, err := actorID(c); err != nil {
		return err
	}

	task, err := h.taskService.Pause(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domainError(err, "failed to pause task")
	}

	return c.JSON(http.StatusOK, task)
}

func (h *Handler) Reassign(c echo.Context) error {
	if _, err := actorID(c); err != nil {
		return err
	}

	var req dto.ReassignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateReassignRequest(&req); err != nil {
		return err
	}

	task, err := h.taskService.Reassign(c.Request().Context(), c.Param("id"), req.VerifierID)
	if err != nil {
		return domainError(err, "failed to reassign task")
	}

	return c.JSON(http.StatusOK, task)
}

func (h *Handler) GetPenalty(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}

	penalty, err := h.taskService.GetPenalty(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return domainError(err, "failed to load penalty")
	}

	return c.JSON(http.StatusOK, penalty)
}

// Logout tears down the caller's live connection, if any.
func (h *Handler) Logout(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}

	h.registry.Unregister(actor)
	return c.NoContent(http.StatusNoContent)
}

func actorID(c echo.Context) (string, error) {
	id := c.Request().Header.Get(userHeader)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "user identity header is required")
	}
	return id, nil
}

func domainError(err error, fallback string) error {
	var appErr *apperr.Exception
	if errors.As(err, &appErr) {
		return echo.NewHTTPError(appErr.StatusCode, appErr.Message)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, fallback)
}
