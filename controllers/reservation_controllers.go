package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dinehub/pos-backend/services"
	"github.com/dinehub/pos-backend/utils"
)

type ReservationController struct {
	Planner *services.ReservationPlanner
}

func NewReservationController(planner *services.ReservationPlanner) *ReservationController {
	return &ReservationController{Planner: planner}
}

// FindAvailableTables answers "which tables are free at T for N people".
// Party sizes bigger than every table simply return an empty list; the
// front desk wait-lists those.
func (rc *ReservationController) FindAvailableTables(c *gin.Context) {
	var query struct {
		Time      time.Time `form:"time" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
		PartySize int       `form:"party_size" binding:"required,gt=0"`
		Duration  int       `form:"duration"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if query.Duration <= 0 {
		query.Duration = 90
	}

	tables, err := rc.Planner.FindAvailableTables(query.Time, query.PartySize,
		time.Duration(query.Duration)*time.Minute)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Available tables", tables)
}

// CreateReservation books a party in.
func (rc *ReservationController) CreateReservation(c *gin.Context) {
	var req services.ReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := rc.Planner.CreateReservation(req)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Reservation created", res)
}

// GetReservation shows one reservation by id.
func (rc *ReservationController) GetReservation(c *gin.Context) {
	id, err := paramID(c, "reservation_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	res, err := rc.Planner.GetReservation(id)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation detail", res)
}

// GetReservationByCode resolves the booking code customers carry.
func (rc *ReservationController) GetReservationByCode(c *gin.Context) {
	res, err := rc.Planner.GetByCode(c.Param("code"))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation detail", res)
}

// ListReservations filters by optional status and date range.
func (rc *ReservationController) ListReservations(c *gin.Context) {
	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		from = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		to = &t
	}

	list, err := rc.Planner.ListReservations(c.Query("status"), from, to)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of reservations", list)
}

// UpdateReservation edits booking details and/or the table set.
func (rc *ReservationController) UpdateReservation(c *gin.Context) {
	id, err := paramID(c, "reservation_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var upd services.ReservationUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := rc.Planner.UpdateReservation(id, upd, actorFromContext(c))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation updated", res)
}

// ConfirmReservation moves PENDING => CONFIRMED.
func (rc *ReservationController) ConfirmReservation(c *gin.Context) {
	rc.lifecycle(c, func(id uint, actor string) error {
		_, err := rc.Planner.Confirm(id, actor)
		return err
	}, "Reservation confirmed")
}

// CheckIn seats the party and occupies its tables.
func (rc *ReservationController) CheckIn(c *gin.Context) {
	rc.lifecycle(c, func(id uint, actor string) error {
		_, err := rc.Planner.CheckIn(id, actor)
		return err
	}, "Reservation checked in")
}

// CompleteReservation closes the visit and frees the tables.
func (rc *ReservationController) CompleteReservation(c *gin.Context) {
	rc.lifecycle(c, func(id uint, actor string) error {
		_, err := rc.Planner.Complete(id, actor)
		return err
	}, "Reservation completed")
}

// CancelReservation aborts a booking with a reason.
func (rc *ReservationController) CancelReservation(c *gin.Context) {
	id, err := paramID(c, "reservation_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	// Reason is optional; ignore a missing body.
	_ = c.ShouldBindJSON(&body)

	res, err := rc.Planner.Cancel(id, actorFromContext(c), body.Reason)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation cancelled", res)
}

// MarkNoShow expires a booking whose party never arrived.
func (rc *ReservationController) MarkNoShow(c *gin.Context) {
	rc.lifecycle(c, func(id uint, actor string) error {
		_, err := rc.Planner.MarkNoShow(id, actor)
		return err
	}, "Reservation marked no-show")
}

// GetReservationHistory shows the append-only status trail.
func (rc *ReservationController) GetReservationHistory(c *gin.Context) {
	id, err := paramID(c, "reservation_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	log, err := rc.Planner.History(id)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation status history", log)
}

// RunPromotionSweep and RunNoShowSweep expose the sweeps to an external
// scheduler (cron, task queue). Both are idempotent.
func (rc *ReservationController) RunPromotionSweep(c *gin.Context) {
	n := rc.Planner.PromoteUpcoming(time.Now())
	utils.RespondJSON(c, http.StatusOK, "Promotion sweep finished", gin.H{"promoted": n})
}

func (rc *ReservationController) RunNoShowSweep(c *gin.Context) {
	n := rc.Planner.ExpireNoShows(time.Now())
	utils.RespondJSON(c, http.StatusOK, "No-show sweep finished", gin.H{"expired": n})
}

// GetDueReminders hands the notifier the bookings to remind. The notifier
// calls MarkReminderSent per booking after a successful send.
func (rc *ReservationController) GetDueReminders(c *gin.Context) {
	due, err := rc.Planner.DueReminders(time.Now())
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservations due for a reminder", due)
}

func (rc *ReservationController) MarkReminderSent(c *gin.Context) {
	id, err := paramID(c, "reservation_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := rc.Planner.MarkReminderSent(id); err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reminder marked as sent", nil)
}

func (rc *ReservationController) lifecycle(c *gin.Context, op func(uint, string) error, message string) {
	id, err := paramID(c, "reservation_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := op(id, actorFromContext(c)); err != nil {
		utils.RespondAppError(c, err)
		return
	}
	res, err := rc.Planner.GetReservation(id)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, message, res)
}
