package service

import (
	"slices"

	appErrors "github.com/unclebandit/bulksms-campaigns/internal/errors"
	"github.com/unclebandit/bulksms-campaigns/internal/model"
)

// SendableStatuses are the statuses a campaign may be claimed for sending from.
var SendableStatuses = []model.CampaignStatus{model.StatusDraft, model.StatusScheduled}

var (
	notUpdatable = []model.CampaignStatus{model.StatusSending, model.StatusCompleted}
	notDeletable = []model.CampaignStatus{model.StatusSending}
)

func invalidState(c *model.Campaign, action string) error {
	return appErrors.NewInvalidState(c.ID, string(c.Status), action)
}

func CanSend(c *model.Campaign) error {
	if !slices.Contains(SendableStatuses, c.Status) {
		return invalidState(c, "send")
	}
	return nil
}

func CanUpdate(c *model.Campaign) error {
	if slices.Contains(notUpdatable, c.Status) {
		return invalidState(c, "update")
	}
	return nil
}

func CanDelete(c *model.Campaign) error {
	if slices.Contains(notDeletable, c.Status) {
		return invalidState(c, "delete")
	}
	return nil
}

func CanCancel(c *model.Campaign) error {
	if c.Status != model.StatusScheduled {
		return invalidState(c, "cancel")
	}
	return nil
}
