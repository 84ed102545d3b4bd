package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"booking-service/internal/domain"
)

// CreateSlot validates s and stores it unless it overlaps an existing slot.
func (a *App) CreateSlot(ctx context.Context, s domain.Slot) (domain.Slot, error) {
	s = domain.NormalizeSlot(s)
	if err := a.checkSlot(ctx, s, 0); err != nil {
		return domain.Slot{}, err
	}
	if err := a.Store.CreateSlot(ctx, &s); err != nil {
		return domain.Slot{}, err
	}
	return s, nil
}

// UpdateSlot replaces the slot with id, checking overlaps against every other slot.
func (a *App) UpdateSlot(ctx context.Context, id int64, s domain.Slot) (domain.Slot, error) {
	s = domain.NormalizeSlot(s)
	s.ID = id
	if err := a.checkSlot(ctx, s, id); err != nil {
		return domain.Slot{}, err
	}
	if err := a.Store.UpdateSlot(ctx, &s); err != nil {
		return domain.Slot{}, err
	}
	return s, nil
}

// checkSlot gives an early answer; the store still enforces overlap on write.
func (a *App) checkSlot(ctx context.Context, s domain.Slot, excludeID int64) error {
	if err := domain.ValidateSlot(s); err != nil {
		return err
	}
	overlap, err := a.Store.HasOverlap(ctx, s.Date, s.StartTime, s.EndTime, excludeID)
	if err != nil {
		return err
	}
	if overlap {
		return domain.ErrSlotOverlap
	}
	return nil
}

func slotID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// GET /availability/open?date=YYYY-MM-DD
func (a *App) ListOpenSlotsHandler(c *gin.Context) {
	date := c.Query("date")
	if date != "" && !domain.IsDate(date) {
		a.badRequest(c, "Invalid date format (YYYY-MM-DD required).")
		return
	}
	slots, err := a.Store.ListOpenSlots(c.Request.Context(), date)
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

// GET /availability/all
func (a *App) ListAllSlotsHandler(c *gin.Context) {
	slots, err := a.Store.ListSlots(c.Request.Context(), "", "")
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

// GET /availability/range?from=YYYY-MM-DD&to=YYYY-MM-DD
func (a *App) ListSlotRangeHandler(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if !domain.IsDate(from) || !domain.IsDate(to) {
		a.badRequest(c, "from and to are required in YYYY-MM-DD format")
		return
	}
	slots, err := a.Store.ListSlots(c.Request.Context(), from, to)
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

// GET /availability/check?date=&start_time=&end_time=&exclude_id=
func (a *App) CheckOverlapHandler(c *gin.Context) {
	s := domain.NormalizeSlot(domain.Slot{
		Date:      c.Query("date"),
		StartTime: c.Query("start_time"),
		EndTime:   c.Query("end_time"),
	})
	if err := domain.ValidateSlot(s); err != nil {
		a.respond(c, err)
		return
	}
	var exclude int64
	if raw := c.Query("exclude_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			a.badRequest(c, "Invalid slot ID.")
			return
		}
		exclude = id
	}
	overlap, err := a.Store.HasOverlap(c.Request.Context(), s.Date, s.StartTime, s.EndTime, exclude)
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overlap": overlap})
}

// POST /availability
func (a *App) CreateSlotHandler(c *gin.Context) {
	var payload domain.Slot
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.badRequest(c, "Invalid slot payload.")
		return
	}
	s, err := a.CreateSlot(c.Request.Context(), payload)
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// PUT /availability/:id
func (a *App) UpdateSlotHandler(c *gin.Context) {
	id, ok := slotID(c)
	if !ok {
		a.badRequest(c, "Invalid slot ID.")
		return
	}
	var payload domain.Slot
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.badRequest(c, "Invalid slot payload.")
		return
	}
	s, err := a.UpdateSlot(c.Request.Context(), id, payload)
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// DELETE /availability/:id
func (a *App) DeleteSlotHandler(c *gin.Context) {
	id, ok := slotID(c)
	if !ok {
		a.badRequest(c, "Invalid slot ID.")
		return
	}
	if err := a.Store.DeleteSlot(c.Request.Context(), id); err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": 1})
}

type toggleReq struct {
	IsOpen *bool `json:"is_open"`
}

// PATCH /availability/:id
func (a *App) ToggleSlotHandler(c *gin.Context) {
	id, ok := slotID(c)
	if !ok {
		a.badRequest(c, "Invalid slot ID.")
		return
	}
	var req toggleReq
	if err := c.ShouldBindJSON(&req); err != nil || req.IsOpen == nil {
		a.badRequest(c, "is_open is required.")
		return
	}
	n, err := a.Store.SetSlotOpen(c.Request.Context(), id, *req.IsOpen)
	if err != nil {
		a.respond(c, err)
		return
	}
	if n == 0 {
		a.respond(c, domain.ErrSlotNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// POST /availability/generate
func (a *App) GenerateSlotsHandler(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, "Invalid generate payload.")
		return
	}
	res, err := a.Generate(c.Request.Context(), req)
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type bulkReq struct {
	Slots []domain.Slot `json:"slots"`
}

// POST /availability/bulk
func (a *App) BulkSlotsHandler(c *gin.Context) {
	var req bulkReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Slots == nil {
		a.badRequest(c, "Slots array required")
		return
	}
	slots := make([]domain.Slot, len(req.Slots))
	for i, s := range req.Slots {
		s = domain.NormalizeSlot(s)
		if err := domain.ValidateSlot(s); err != nil {
			var de *domain.Error
			if !errors.As(err, &de) {
				a.respond(c, err)
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": de.Message, "slot": s})
			return
		}
		slots[i] = s
	}
	inserted, err := a.Store.InsertSlots(c.Request.Context(), slots)
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Availability updated", "inserted": inserted, "requested": len(slots)})
}
