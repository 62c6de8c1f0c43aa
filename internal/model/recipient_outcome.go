// internal/model/recipient_outcome.go
package model

import "time"

type OutcomeStatus string

const (
	OutcomePending   OutcomeStatus = "pending"
	OutcomeSent      OutcomeStatus = "sent"
	OutcomeDelivered OutcomeStatus = "delivered"
	OutcomeFailed    OutcomeStatus = "failed"
)

// RecipientOutcome is the delivery result for one recipient of a campaign.
// It is owned by its campaign and identified by its position in the list.
type RecipientOutcome struct {
	PhoneNumber  string        `json:"phoneNumber"`
	Status       OutcomeStatus `json:"status"`
	SentAt       *time.Time    `json:"sentAt,omitempty"`
	DeliveredAt  *time.Time    `json:"deliveredAt,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

func PendingOutcomes(numbers []string) []RecipientOutcome {
	out := make([]RecipientOutcome, len(numbers))
	for i, n := range numbers {
		out[i] = RecipientOutcome{PhoneNumber: n, Status: OutcomePending}
	}
	return out
}
