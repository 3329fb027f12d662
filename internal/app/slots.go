package app

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"clinic-scheduler/internal/scheduling"
)

// GET /api/public/slots?from=&to=
func (a *App) GetSlotsHandler(c *gin.Context) {
	from, err := parseTimeField("from", c.Query("from"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	to, err := parseTimeField("to", c.Query("to"))
	if err != nil {
		a.writeError(c, err)
		return
	}

	seq, err := a.Service.FreeSlots(c.Request.Context(), a.ProviderID, from, to)
	if err != nil {
		a.writeError(c, err)
		return
	}
	slots := slices.Collect(seq)
	if slots == nil {
		slots = []scheduling.Slot{}
	}
	c.JSON(http.StatusOK, slots)
}

// POST /api/public/appointments
func (a *App) CreateAppointmentHandler(c *gin.Context) {
	var payload bookingRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := payload.request()
	if err != nil {
		a.writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	appt, err := scheduling.RetryValue(ctx, a.Retrier, func() (scheduling.Appointment, error) {
		return a.Service.Book(ctx, a.ProviderID, req)
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.Logger.Info().
		Str("appointment_id", appt.ID.String()).
		Time("start_at", appt.StartAt).
		Msg("appointment booked")
	c.JSON(http.StatusCreated, appt)
}
