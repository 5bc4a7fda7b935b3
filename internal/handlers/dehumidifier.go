package handlers

import (
	"errors"
	"net/http"

	"controlling_dehumidifier/internal/models"
	"controlling_dehumidifier/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK         = "ok"
	statusPoweredOn  = "powered_on"
	statusPoweredOff = "powered_off"
	statusModeSet    = "mode_set"
	statusFanSet     = "fan_speed_set"
	statusIngested   = "ingested"

	errPowerOn         = "failed to power on"
	errPowerOff        = "failed to power off"
	errSetMode         = "failed to set mode"
	errSetFan          = "failed to set fan speed"
	errIngest          = "failed to ingest state"
	errGetState        = "failed to load state"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, withUser(c, fields)...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// isClientError reports whether err came from validating the caller's input.
func isClientError(err error) bool {
	return errors.Is(err, models.ErrInvalidEnumValue) ||
		errors.Is(err, models.ErrOutOfRange) ||
		errors.Is(err, service.ErrPoweredOff) ||
		errors.Is(err, service.ErrSetpointRequired)
}

// commandError answers 400 with the validation message, or 500 otherwise.
func (h *Handler) commandError(c *gin.Context, userMsg, logKey string, err error, kv ...interface{}) {
	if isClientError(err) {
		if h.log != nil {
			h.log.Infow(logKey, withUser(c, append([]interface{}{"err", err}, kv...))...)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logAndJSONError(c, http.StatusInternalServerError, userMsg, logKey, err, kv...)
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(ctx)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

type modeRequest struct {
	Mode             string `json:"mode" binding:"required"`
	HumiditySetpoint *int   `json:"humidity_setpoint,omitempty"`
}

type fanRequest struct {
	FanSpeed string `json:"fan_speed" binding:"required"`
}

// SetModeRequest is an exported model for Swagger docs of the setMode payload.
type SetModeRequest struct {
	// Allowed: SETPOINT, CONTINUOUS, SMART, CLOTHES_DRYING
	Mode string `json:"mode" example:"SETPOINT"`
	// Target relative humidity 0..100, required when mode=SETPOINT
	HumiditySetpoint int `json:"humidity_setpoint,omitempty" example:"45"`
}

// SetFanSpeedRequest documents the setFanSpeed payload.
type SetFanSpeedRequest struct {
	// Allowed: LOW, MEDIUM, HIGH
	FanSpeed string `json:"fan_speed" example:"HIGH"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Power on
// @Tags         dehumidifier
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/dehumidifier/power/on [post]
// @Security     BearerAuth
func (h *Handler) powerOn(c *gin.Context) {
	if err := h.services.Control.PowerOn(c.Request.Context()); err != nil {
		h.commandError(c, errPowerOn, "dehumidifier_power_on_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusPoweredOn, gin.H{})
}

// @Summary      Power off
// @Tags         dehumidifier
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/dehumidifier/power/off [post]
// @Security     BearerAuth
func (h *Handler) powerOff(c *gin.Context) {
	if err := h.services.Control.PowerOff(c.Request.Context()); err != nil {
		h.commandError(c, errPowerOff, "dehumidifier_power_off_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusPoweredOff, gin.H{})
}

// @Summary      Set mode
// @Description  SETPOINT requires humidity_setpoint; other modes keep the stored one unless given
// @Tags         dehumidifier
// @Accept       json
// @Produce      json
// @Param        body  body   SetModeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/dehumidifier/mode [post]
// @Security     BearerAuth
func (h *Handler) setMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	mode, err := models.ModeFromString(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := service.ModeParams{Mode: mode, HumiditySetpoint: req.HumiditySetpoint}
	if err := h.services.Control.SetMode(c.Request.Context(), params); err != nil {
		h.commandError(c, errSetMode, "dehumidifier_set_mode_failed", err, "mode", req.Mode)
		return
	}
	h.respondWithStatusAndState(c, statusModeSet, gin.H{"mode": mode.String()})
}

// @Summary      Set fan speed
// @Tags         dehumidifier
// @Accept       json
// @Produce      json
// @Param        body  body   SetFanSpeedRequest  true  "Fan payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/dehumidifier/fan [post]
// @Security     BearerAuth
func (h *Handler) setFanSpeed(c *gin.Context) {
	var req fanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	fan, err := models.FanSpeedFromString(req.FanSpeed)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.services.Control.SetFanSpeed(c.Request.Context(), fan); err != nil {
		h.commandError(c, errSetFan, "dehumidifier_set_fan_failed", err, "fan_speed", req.FanSpeed)
		return
	}
	h.respondWithStatusAndState(c, statusFanSet, gin.H{"fan_speed": fan.String()})
}

// @Summary      Get dehumidifier state
// @Tags         dehumidifier
// @Produce      json
// @Success      200  {object}  models.DeviceSnapshot
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/dehumidifier/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "dehumidifier_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Push a device reading
// @Description  Mode and fan_speed are the raw wire integers (mode 1..4, fan 40/60/80)
// @Tags         dehumidifier
// @Accept       json
// @Produce      json
// @Param        body  body   models.RawDeviceState  true  "Device record"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/dehumidifier/ingest [post]
// @Security     BearerAuth
func (h *Handler) ingestState(c *gin.Context) {
	var raw models.RawDeviceState
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	st, err := raw.ToState()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.services.Ingestion.Ingest(c.Request.Context(), st, models.SourcePush)
	if err != nil {
		h.commandError(c, errIngest, "dehumidifier_ingest_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusIngested, "state": snap})
}
