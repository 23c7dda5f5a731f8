package validators

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	dto "taskpact.com/taskpact/internal/data_models"
)

func ValidateCreateTaskRequest(r *dto.CreateTaskRequest) error {
	if r.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if r.VerifierID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "verifier_id is required")
	}
	if r.PenaltyContent == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "penalty_content is required")
	}
	if r.Deadline.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "deadline is required")
	}
	if !r.Deadline.After(time.Now().UTC()) {
		return echo.NewHTTPError(http.StatusBadRequest, "deadline must be in the future")
	}
	return nil
}

func ValidateRejectRequest(r *dto.RejectRequest) error {
	if r.Reason == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "a non-empty rejection reason is required")
	}
	return nil
}

func ValidateReassignRequest(r *dto.ReassignRequest) error {
	if r.VerifierID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "verifier_id is required")
	}
	return nil
}
