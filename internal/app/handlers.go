package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clinic-scheduler/internal/scheduling"
)

// writeError maps service errors onto status codes. Only unexpected failures
// are logged.
func (a *App) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scheduling.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, scheduling.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, scheduling.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scheduling.ErrSerialization):
		a.Logger.Warn().Err(err).Str("path", c.FullPath()).Msg("transaction retries exhausted")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "concurrent update, please retry"})
	default:
		a.Logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/provider/availability
func (a *App) ListAvailabilityHandler(c *gin.Context) {
	windows, err := a.Service.ListWindows(c.Request.Context(), a.ProviderID)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if windows == nil {
		windows = []scheduling.AvailabilityWindow{}
	}
	c.JSON(http.StatusOK, windows)
}

// POST /api/provider/availability
func (a *App) CreateAvailabilityHandler(c *gin.Context) {
	var payload windowRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in, err := payload.input()
	if err != nil {
		a.writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	w, err := scheduling.RetryValue(ctx, a.Retrier, func() (scheduling.AvailabilityWindow, error) {
		return a.Service.CreateWindow(ctx, a.ProviderID, in)
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// PUT /api/provider/availability/:id
func (a *App) UpdateAvailabilityHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload windowRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in, err := payload.input()
	if err != nil {
		a.writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	w, err := scheduling.RetryValue(ctx, a.Retrier, func() (scheduling.AvailabilityWindow, error) {
		return a.Service.UpdateWindow(ctx, a.ProviderID, id, in)
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// DELETE /api/provider/availability/:id
func (a *App) DeleteAvailabilityHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	err := a.Retrier.Do(ctx, func() error {
		return a.Service.DeleteWindow(ctx, a.ProviderID, id)
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/provider/appointments?status=
func (a *App) ListAppointmentsHandler(c *gin.Context) {
	filter, err := scheduling.ParseStatusFilter(c.Query("status"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	appts, err := a.Service.ListAppointments(c.Request.Context(), a.ProviderID, filter)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if appts == nil {
		appts = []scheduling.Appointment{}
	}
	c.JSON(http.StatusOK, appts)
}

// PATCH /api/provider/appointments/:id
func (a *App) UpdateAppointmentStatusHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload statusRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := scheduling.ParseStatus(payload.Status)
	if err != nil {
		a.writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	appt, err := scheduling.RetryValue(ctx, a.Retrier, func() (scheduling.Appointment, error) {
		return a.Service.SetStatus(ctx, a.ProviderID, id, status)
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}
