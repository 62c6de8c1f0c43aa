package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/bulksms-campaigns/internal/controller"
	"github.com/unclebandit/bulksms-campaigns/internal/dispatcher"
	"github.com/unclebandit/bulksms-campaigns/internal/handler"
	"github.com/unclebandit/bulksms-campaigns/internal/middleware"
	"github.com/unclebandit/bulksms-campaigns/internal/model"
	"github.com/unclebandit/bulksms-campaigns/internal/repository"
	"github.com/unclebandit/bulksms-campaigns/internal/scheduler"
	"github.com/unclebandit/bulksms-campaigns/internal/service"
)

var secret = []byte("controller-test-secret")

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	t     *testing.T
	srv   *httptest.Server
	repo  *repository.MemoryCampaignRepository
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := repository.NewMemoryCampaignRepository()
	exec := service.NewExecutor(repo, dispatcher.NewSimulated(1, 0), nil, nil)
	svc := service.NewCampaignService(repo, exec, nil, nil)

	sched, err := scheduler.New(time.Hour, repo, exec, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sched.Stop() })

	router := controller.NewRouter(
		controller.NewCampaignController(svc, nil),
		handler.NewSystemHandler(sched),
		secret, nil,
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	token, err := middleware.IssueToken(secret, "user-1", time.Hour)
	require.NoError(t, err)
	return &testServer{t: t, srv: srv, repo: repo, token: token}
}

func (s *testServer) do(method, path string, body any) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

type campaignData struct {
	Campaign struct {
		ID              string                   `json:"id"`
		Status          model.CampaignStatus     `json:"status"`
		TotalRecipients int                      `json:"totalRecipients"`
		DeliveredCount  int                      `json:"deliveredCount"`
		SuccessRate     float64                  `json:"successRate"`
		MessageStatuses []model.RecipientOutcome `json:"messageStatuses"`
	} `json:"campaign"`
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func createBody() map[string]any {
	return map[string]any{
		"name":             "Flash sale",
		"message":          "Everything 30% off today",
		"recipientNumbers": []string{"+254700000001", "+254700000002", "+254700000003"},
		"audienceType":     "Students",
	}
}

func TestCampaignAPI_CreateGetSend(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(http.MethodPost, "/api/campaigns", createBody())
	require.Equal(t, http.StatusCreated, status, env.Message)
	assert.True(t, env.Success)
	created := decode[campaignData](t, env.Data)
	assert.Equal(t, model.StatusDraft, created.Campaign.Status)
	assert.Equal(t, 3, created.Campaign.TotalRecipients)
	id := created.Campaign.ID

	status, env = s.do(http.MethodGet, "/api/campaigns/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	got := decode[campaignData](t, env.Data)
	assert.Len(t, got.Campaign.MessageStatuses, 3)

	status, env = s.do(http.MethodPost, "/api/campaigns/"+id+"/send", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	sent := decode[campaignData](t, env.Data)
	assert.Equal(t, model.StatusCompleted, sent.Campaign.Status)
	assert.Equal(t, 3, sent.Campaign.DeliveredCount)
	assert.Equal(t, 100.0, sent.Campaign.SuccessRate)

	status, env = s.do(http.MethodPost, "/api/campaigns/"+id+"/send", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, env.Success)

	status, _ = s.do(http.MethodPut, "/api/campaigns/"+id, map[string]any{"name": "again"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestCampaignAPI_Validation(t *testing.T) {
	s := newTestServer(t)

	body := createBody()
	body["recipientNumbers"] = []string{}
	status, env := s.do(http.MethodPost, "/api/campaigns", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)

	status, _ = s.do(http.MethodGet, "/api/campaigns/analytics?period=century", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/campaigns", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCampaignAPI_NotFoundAcrossOwners(t *testing.T) {
	s := newTestServer(t)
	_, env := s.do(http.MethodPost, "/api/campaigns", createBody())
	id := decode[campaignData](t, env.Data).Campaign.ID

	other, err := middleware.IssueToken(secret, "user-2", time.Hour)
	require.NoError(t, err)
	s.token = other

	status, _ := s.do(http.MethodGet, "/api/campaigns/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(http.MethodDelete, "/api/campaigns/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCampaignAPI_ScheduleCancelAndList(t *testing.T) {
	s := newTestServer(t)

	body := createBody()
	body["isScheduled"] = true
	body["scheduledDateTime"] = time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	status, env := s.do(http.MethodPost, "/api/campaigns", body)
	require.Equal(t, http.StatusCreated, status, env.Message)
	id := decode[campaignData](t, env.Data).Campaign.ID

	status, env = s.do(http.MethodGet, "/api/campaigns/scheduled", nil)
	require.Equal(t, http.StatusOK, status)
	scheduled := decode[struct {
		ScheduledCampaigns []struct {
			ID string `json:"id"`
		} `json:"scheduledCampaigns"`
	}](t, env.Data)
	require.Len(t, scheduled.ScheduledCampaigns, 1)
	assert.Equal(t, id, scheduled.ScheduledCampaigns[0].ID)

	status, env = s.do(http.MethodPost, "/api/campaigns/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, model.StatusCancelled, decode[campaignData](t, env.Data).Campaign.Status)

	status, _ = s.do(http.MethodPost, "/api/campaigns/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, env = s.do(http.MethodGet, "/api/campaigns?status=cancelled&page=1&limit=5", nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[struct {
		Campaigns  []json.RawMessage  `json:"campaigns"`
		Pagination service.Pagination `json:"pagination"`
	}](t, env.Data)
	assert.Len(t, list.Campaigns, 1)
	assert.Equal(t, service.Pagination{Current: 1, Pages: 1, Total: 1}, list.Pagination)

	status, env = s.do(http.MethodDelete, "/api/campaigns/"+id, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Campaign deleted successfully", env.Message)
}

func TestCampaignAPI_DeleteWhileSending(t *testing.T) {
	s := newTestServer(t)
	_, env := s.do(http.MethodPost, "/api/campaigns", createBody())
	id := decode[campaignData](t, env.Data).Campaign.ID

	_, err := s.repo.TransitionStatus(context.Background(), id, service.SendableStatuses, model.StatusSending, time.Now())
	require.NoError(t, err)

	status, env := s.do(http.MethodDelete, "/api/campaigns/"+id, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, env.Message, "cannot delete")
}

func TestCampaignAPI_Analytics(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/api/campaigns", createBody())
	s.do(http.MethodPost, "/api/campaigns", createBody())

	status, env := s.do(http.MethodGet, "/api/campaigns/analytics", nil)
	require.Equal(t, http.StatusOK, status)
	data := decode[struct {
		Period    string          `json:"period"`
		Analytics model.Analytics `json:"analytics"`
	}](t, env.Data)
	assert.Equal(t, "today", data.Period)
	assert.Equal(t, 2, data.Analytics.TotalCampaigns)
	assert.Equal(t, 6, data.Analytics.TotalRecipients)
	assert.Equal(t, 2, data.Analytics.StatusBreakdown[model.StatusDraft])
}

func TestAPI_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	s.token = ""

	status, env := s.do(http.MethodGet, "/api/campaigns", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, _ = s.do(http.MethodPost, "/api/scheduler/start", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = s.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}

func TestAPI_SchedulerControl(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(http.MethodPost, "/api/scheduler/start", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Scheduler started", env.Message)

	status, env = s.do(http.MethodGet, "/api/scheduler/status", nil)
	require.Equal(t, http.StatusOK, status)
	st := decode[struct {
		Scheduler scheduler.Status `json:"scheduler"`
	}](t, env.Data)
	assert.True(t, st.Scheduler.Running)
	assert.Equal(t, "1h0m0s", st.Scheduler.Interval)

	_, env = s.do(http.MethodPost, "/api/scheduler/stop", nil)
	assert.Equal(t, "Scheduler stopped", env.Message)
}
