package model

import "time"

// Analytics aggregates an owner's campaigns created within a period window.
type Analytics struct {
	Period             string                 `json:"period"`
	From               time.Time              `json:"from"`
	To                 time.Time              `json:"to"`
	TotalCampaigns     int                    `json:"totalCampaigns"`
	TotalRecipients    int                    `json:"totalRecipients"`
	TotalSent          int                    `json:"totalSent"`
	TotalDelivered     int                    `json:"totalDelivered"`
	TotalFailed        int                    `json:"totalFailed"`
	AverageSuccessRate float64                `json:"averageSuccessRate"`
	StatusBreakdown    map[CampaignStatus]int `json:"statusBreakdown"`
}
