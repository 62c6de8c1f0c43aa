package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/unclebandit/bulksms-campaigns/internal/model"
)

// CampaignEventsTopic carries campaign lifecycle events.
const CampaignEventsTopic = "campaign_events"

type EventType string

const (
	EventSending   EventType = "campaign.sending"
	EventCompleted EventType = "campaign.completed"
	EventFailed    EventType = "campaign.failed"
)

type CampaignEvent struct {
	Type       EventType            `json:"type"`
	CampaignID string               `json:"campaignId"`
	UserID     string               `json:"userId"`
	Status     model.CampaignStatus `json:"status"`
	model.Counters
	At time.Time `json:"at"`
}

// DecodeEvent accepts the payload shapes produced by the in-memory queue
// (the struct itself) and by AMQP (raw JSON bytes).
func DecodeEvent(payload any) (CampaignEvent, error) {
	switch p := payload.(type) {
	case CampaignEvent:
		return p, nil
	case *CampaignEvent:
		return *p, nil
	case []byte:
		var ev CampaignEvent
		if err := json.Unmarshal(p, &ev); err != nil {
			return CampaignEvent{}, fmt.Errorf("decode campaign event: %w", err)
		}
		return ev, nil
	default:
		return CampaignEvent{}, fmt.Errorf("unexpected payload type %T", payload)
	}
}
