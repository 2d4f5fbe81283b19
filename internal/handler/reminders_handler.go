package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"reminderd/internal/dto"
	"reminderd/internal/model"
	"reminderd/internal/service"
)

type ReminderHandler struct {
	svc *service.ReminderService
}

func NewReminderHandler(svc *service.ReminderService) *ReminderHandler {
	return &ReminderHandler{svc: svc}
}

func (h *ReminderHandler) CreateReminder(c *ginext.Context) {
	var body dto.CreateReminderRequest
	if err := c.BindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": fmt.Sprintf("invalid body: %s", err.Error())})
		return
	}

	rem, err := h.svc.Create(context.Background(), service.CreateInput{
		OwnerID:   body.OwnerID,
		Title:     body.Title,
		Message:   body.Message,
		In:        body.In,
		At:        body.At,
		Every:     body.Every,
		ExpiresAt: body.ExpiresAt,
	})
	if err != nil {
		if validationError(err) {
			c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, ginext.H{"error": fmt.Sprintf("couldn't create reminder: %s", err.Error())})
		return
	}

	c.JSON(http.StatusCreated, dto.FromModel(rem))
}

func (h *ReminderHandler) GetReminder(c *ginext.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": fmt.Sprintf("invalid UUID format: %s", err.Error())})
		return
	}

	rem, err := h.svc.Get(context.Background(), id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, ginext.H{"error": "reminder not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, ginext.H{"error": fmt.Sprintf("couldn't get reminder: %s", err.Error())})
		return
	}

	c.JSON(http.StatusOK, dto.FromModel(rem))
}

func (h *ReminderHandler) ListReminders(c *ginext.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": "owner_id is required"})
		return
	}

	rems, err := h.svc.ListByOwner(context.Background(), ownerID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, ginext.H{"error": fmt.Sprintf("couldn't list reminders: %s", err.Error())})
		return
	}

	c.JSON(http.StatusOK, dto.FromModels(rems))
}

func (h *ReminderHandler) CancelReminder(c *ginext.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": fmt.Sprintf("invalid UUID format: %s", err.Error())})
		return
	}

	ownerID := c.Query("owner_id")
	if ownerID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": "owner_id is required"})
		return
	}

	cancelled, err := h.svc.Cancel(context.Background(), ownerID, id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, ginext.H{"error": fmt.Sprintf("couldn't cancel reminder: %s", err.Error())})
		return
	}
	if !cancelled {
		c.AbortWithStatusJSON(http.StatusNotFound, ginext.H{"error": "reminder not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

func validationError(err error) bool {
	switch {
	case errors.Is(err, model.ErrBadSchedule),
		errors.Is(err, model.ErrDueInPast),
		errors.Is(err, model.ErrEmptyMessage),
		errors.Is(err, model.ErrMessageTooLong),
		errors.Is(err, model.ErrInvalidRecurrence),
		errors.Is(err, model.ErrExpiryBeforeDue):
		return true
	}
	return false
}
