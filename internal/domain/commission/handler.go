package commission

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/dentara/dentara/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/commission-rules", h.CreateRule)
	api.GET("/commission-rules", h.ListRules)
	api.GET("/commission-rules/:id", h.GetRule)
	api.PUT("/commission-rules/:id", h.UpdateRule)

	api.GET("/commission-provisions", h.ListProvisions)
	api.GET("/commission-provisions/:id", h.GetProvision)
	api.POST("/commission-provisions/:id/approve", h.ApproveProvision)
	api.POST("/commission-provisions/:id/pay", h.PayProvision)
}

func (h *Handler) CreateRule(c echo.Context) error {
	var r Rule
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateRule(c.Request().Context(), &r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetRule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.GetRule(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "rule not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) UpdateRule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var r Rule
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r.ID = id
	if err := h.svc.UpdateRule(c.Request().Context(), &r); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "rule not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListRules(c echo.Context) error {
	clinicID, err := uuid.Parse(c.QueryParam("clinic_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "clinic_id is required")
	}
	p := pagination.FromContext(c)
	rules, total, err := h.svc.ListRules(c.Request().Context(), clinicID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rules, total, p))
}

func (h *Handler) GetProvision(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetProvision(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "provision not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProvisions(c echo.Context) error {
	professionalID, err := uuid.Parse(c.QueryParam("professional_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "professional_id is required")
	}
	p := pagination.FromContext(c)
	provisions, total, err := h.svc.ListProvisions(c.Request().Context(),
		professionalID, c.QueryParam("competencia"), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(provisions, total, p))
}

func (h *Handler) ApproveProvision(c echo.Context) error {
	return h.advance(c, StatusApproved)
}

func (h *Handler) PayProvision(c echo.Context) error {
	return h.advance(c, StatusPaid)
}

func (h *Handler) advance(c echo.Context, target string) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Advance(c.Request().Context(), id, target); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "provision not found")
		}
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": target})
}
