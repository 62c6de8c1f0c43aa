// internal/model/campaign.go
package model

import (
	"math"
	"time"
)

type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusScheduled CampaignStatus = "scheduled"
	StatusSending   CampaignStatus = "sending"
	StatusCompleted CampaignStatus = "completed"
	StatusFailed    CampaignStatus = "failed"
	StatusCancelled CampaignStatus = "cancelled"
)

// AllStatuses lists every campaign status in lifecycle order.
var AllStatuses = []CampaignStatus{
	StatusDraft, StatusScheduled, StatusSending, StatusCompleted, StatusFailed, StatusCancelled,
}

func (s CampaignStatus) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type Campaign struct {
	ID     string `db:"id" json:"id"`
	UserID string `db:"user_id" json:"userId"`

	Name             string   `db:"name" json:"name"`
	Message          string   `db:"message" json:"message"`
	RecipientNumbers []string `db:"recipient_numbers" json:"recipientNumbers,omitempty"`
	TotalRecipients  int      `db:"total_recipients" json:"totalRecipients"`

	TargetInventory   string   `db:"target_inventory" json:"targetInventory,omitempty"`
	AudienceType      string   `db:"audience_type" json:"audienceType,omitempty"`
	CampaignPurpose   string   `db:"campaign_purpose" json:"campaignPurpose,omitempty"`
	SelectedCountries []string `db:"selected_countries" json:"selectedCountries"`
	Tags              string   `db:"tags" json:"tags,omitempty"`
	IsFromCSV         bool     `db:"is_from_csv" json:"isFromCsv"`
	CSVFileName       string   `db:"csv_file_name" json:"csvFileName,omitempty"`
	ContactSourceInfo string   `db:"contact_source_info" json:"contactSourceInfo,omitempty"`

	Status            CampaignStatus `db:"status" json:"status"`
	IsScheduled       bool           `db:"is_scheduled" json:"isScheduled"`
	ScheduledDateTime *time.Time     `db:"scheduled_date_time" json:"scheduledDateTime"`
	StartedAt         *time.Time     `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt       *time.Time     `db:"completed_at" json:"completedAt,omitempty"`

	MessageStatuses []RecipientOutcome `db:"message_statuses" json:"messageStatuses,omitempty"`
	Counters

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Counters are derived from MessageStatuses and must be refreshed with
// RecomputeCounters whenever the outcomes change.
type Counters struct {
	SentCount      int `db:"sent_count" json:"sentCount"`
	DeliveredCount int `db:"delivered_count" json:"deliveredCount"`
	FailedCount    int `db:"failed_count" json:"failedCount"`
	PendingCount   int `db:"pending_count" json:"pendingCount"`
}

// RecomputeCounters derives the per-status counters from a list of outcomes.
// Delivered outcomes count as sent as well.
func RecomputeCounters(outcomes []RecipientOutcome) Counters {
	var c Counters
	for _, o := range outcomes {
		switch o.Status {
		case OutcomeSent:
			c.SentCount++
		case OutcomeDelivered:
			c.SentCount++
			c.DeliveredCount++
		case OutcomeFailed:
			c.FailedCount++
		case OutcomePending:
			c.PendingCount++
		}
	}
	return c
}

// SuccessRate is deliveredCount / totalRecipients * 100 rounded to 2 decimals.
func (c *Campaign) SuccessRate() float64 {
	if c.TotalRecipients == 0 {
		return 0
	}
	return Round2(float64(c.DeliveredCount) / float64(c.TotalRecipients) * 100)
}

// SetOutcomes replaces the outcome list and refreshes the counters.
func (c *Campaign) SetOutcomes(outcomes []RecipientOutcome) {
	c.MessageStatuses = outcomes
	c.Counters = RecomputeCounters(outcomes)
}

// ResetOutcomes marks every recipient pending again.
func (c *Campaign) ResetOutcomes() {
	c.TotalRecipients = len(c.RecipientNumbers)
	c.SetOutcomes(PendingOutcomes(c.RecipientNumbers))
}

// Summary returns a copy without the recipient list and outcomes, as used in listings.
func (c *Campaign) Summary() Campaign {
	cp := *c
	cp.RecipientNumbers = nil
	cp.MessageStatuses = nil
	return cp
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
