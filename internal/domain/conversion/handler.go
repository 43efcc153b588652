package conversion

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/budgets/:id/approve", h.Approve)
}

type approveRequest struct {
	ApprovedBy uuid.UUID `json:"approved_by"`
}

type approveResponse struct {
	Success     bool        `json:"success"`
	TreatmentID uuid.UUID   `json:"treatment_id"`
	Titles      interface{} `json:"titles,omitempty"`
	Message     string      `json:"message"`
}

// Approve converts a budget. 409 means the budget was already converted;
// the response carries the existing treatment id so clients can treat it as
// a soft success.
func (h *Handler) Approve(c echo.Context) error {
	budgetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid budget id")
	}

	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ApprovedBy == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "approved_by is required")
	}

	result, err := h.svc.Convert(c.Request().Context(), budgetID, req.ApprovedBy)
	if err != nil {
		var conflict *AlreadyConvertedError
		switch {
		case errors.As(err, &conflict):
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"error":        "budget already converted",
				"treatment_id": conflict.TreatmentID,
			})
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "budget not found")
		case errors.Is(err, ErrEmptyBudget), errors.Is(err, ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, approveResponse{
		Success:     true,
		TreatmentID: result.TreatmentID,
		Titles:      result.Titles,
		Message:     "budget converted",
	})
}
