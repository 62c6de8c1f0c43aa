// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/bulksms-campaigns/internal/logger"
	"github.com/unclebandit/bulksms-campaigns/internal/middleware"
	"github.com/unclebandit/bulksms-campaigns/internal/model"
	"github.com/unclebandit/bulksms-campaigns/internal/response"
	"github.com/unclebandit/bulksms-campaigns/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Logger          *zap.Logger
}

func NewCampaignController(svc *service.CampaignService, l *zap.Logger) *CampaignController {
	return &CampaignController{CampaignService: svc, Logger: logger.OrNop(l)}
}

// campaignView is a campaign as returned by the API, with its success rate.
type campaignView struct {
	model.Campaign
	SuccessRate float64 `json:"successRate"`
}

func view(c *model.Campaign) campaignView {
	return campaignView{Campaign: *c, SuccessRate: c.SuccessRate()}
}

func views(cs []model.Campaign) []campaignView {
	out := make([]campaignView, len(cs))
	for i := range cs {
		out[i] = view(&cs[i])
	}
	return out
}

// userID is only called behind middleware.Auth, which guarantees a value.
func userID(r *http.Request) string {
	id, _ := middleware.UserIDFromContext(r.Context())
	return id
}

func (c *CampaignController) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	if response.StatusFor(err) == http.StatusInternalServerError {
		logger.OrNop(c.Logger).Error(message,
			zap.String("path", r.URL.Path),
			zap.String("user_id", userID(r)),
			zap.Error(err))
	}
	response.FromError(w, message, err)
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CreateCampaignInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), userID(r), body)
	if err != nil {
		c.fail(w, r, "Failed to create campaign", err)
		return
	}

	response.Created(w, "Campaign created successfully", map[string]any{"campaign": view(campaign)})
}

// ListCampaigns returns a paginated list of campaigns
func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	list, err := c.CampaignService.ListCampaigns(r.Context(), userID(r), service.ListCampaignsQuery{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		c.fail(w, r, "Failed to retrieve campaigns", err)
		return
	}

	response.OK(w, "", map[string]any{
		"campaigns":  views(list.Campaigns),
		"pagination": list.Pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignService.GetCampaign(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		c.fail(w, r, "Failed to retrieve campaign", err)
		return
	}
	response.OK(w, "", map[string]any{"campaign": view(campaign)})
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.UpdateCampaignInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	campaign, err := c.CampaignService.UpdateCampaign(r.Context(), chi.URLParam(r, "id"), userID(r), body)
	if err != nil {
		c.fail(w, r, "Failed to update campaign", err)
		return
	}
	response.OK(w, "Campaign updated successfully", map[string]any{"campaign": view(campaign)})
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := c.CampaignService.DeleteCampaign(r.Context(), chi.URLParam(r, "id"), userID(r)); err != nil {
		c.fail(w, r, "Failed to delete campaign", err)
		return
	}
	response.OK(w, "Campaign deleted successfully", nil)
}

func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignService.SendCampaign(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		c.fail(w, r, "Failed to send campaign", err)
		return
	}
	response.OK(w, "Campaign sent successfully", map[string]any{"campaign": view(campaign)})
}

func (c *CampaignController) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignService.CancelCampaign(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		c.fail(w, r, "Failed to cancel campaign", err)
		return
	}
	response.OK(w, "Scheduled campaign cancelled successfully", map[string]any{"campaign": view(campaign)})
}

func (c *CampaignController) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := c.CampaignService.GetAnalytics(r.Context(), userID(r), r.URL.Query().Get("period"))
	if err != nil {
		c.fail(w, r, "Failed to retrieve analytics", err)
		return
	}
	response.OK(w, "", map[string]any{"period": analytics.Period, "analytics": analytics})
}

func (c *CampaignController) ListScheduledCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := c.CampaignService.ListScheduledCampaigns(r.Context(), userID(r))
	if err != nil {
		c.fail(w, r, "Failed to retrieve scheduled campaigns", err)
		return
	}
	response.OK(w, "", map[string]any{"scheduledCampaigns": views(campaigns)})
}
