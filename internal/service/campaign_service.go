// internal/service/campaign_service.go
package service

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/bulksms-campaigns/internal/cache"
	appErrors "github.com/unclebandit/bulksms-campaigns/internal/errors"
	"github.com/unclebandit/bulksms-campaigns/internal/logger"
	"github.com/unclebandit/bulksms-campaigns/internal/model"
	"github.com/unclebandit/bulksms-campaigns/internal/repository"
)

var (
	TargetInventories = []string{"A", "B", "C", "D"}
	AudienceTypes     = []string{
		"General Public", "Business Professionals", "Students", "Senior Citizens",
		"Young Adults", "Families", "Tech Enthusiasts", "Healthcare Workers",
	}
	CampaignPurposes = []string{
		"Marketing", "Promotional", "Informational", "Emergency Alert",
		"Event Notification", "Survey", "Reminder", "Customer Service",
	}
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Executor     *Executor
	Cache        cache.AnalyticsCache
	WeekStart    time.Weekday
	Location     *time.Location
	Logger       *zap.Logger
	Now          func() time.Time
	NewID        func() string
}

func NewCampaignService(repo repository.CampaignRepositoryInterface, exec *Executor, c cache.AnalyticsCache, l *zap.Logger) *CampaignService {
	if c == nil {
		c = cache.Noop{}
	}
	return &CampaignService{
		CampaignRepo: repo,
		Executor:     exec,
		Cache:        c,
		WeekStart:    time.Sunday,
		Location:     time.Local,
		Logger:       logger.OrNop(l),
		Now:          time.Now,
		NewID:        func() string { return uuid.New().String() },
	}
}

// CreateCampaignInput carries the user-supplied fields of a new campaign.
type CreateCampaignInput struct {
	Name              string     `json:"name"`
	Message           string     `json:"message"`
	RecipientNumbers  []string   `json:"recipientNumbers"`
	TargetInventory   string     `json:"targetInventory"`
	AudienceType      string     `json:"audienceType"`
	CampaignPurpose   string     `json:"campaignPurpose"`
	SelectedCountries []string   `json:"selectedCountries"`
	Tags              string     `json:"tags"`
	IsFromCSV         bool       `json:"isFromCsv"`
	CSVFileName       string     `json:"csvFileName"`
	ContactSourceInfo string     `json:"contactSourceInfo"`
	IsScheduled       bool       `json:"isScheduled"`
	ScheduledDateTime *time.Time `json:"scheduledDateTime"`
}

// UpdateCampaignInput holds the mutable fields of a campaign. Nil fields are
// left unchanged.
type UpdateCampaignInput struct {
	Name              *string    `json:"name"`
	Message           *string    `json:"message"`
	RecipientNumbers  *[]string  `json:"recipientNumbers"`
	TargetInventory   *string    `json:"targetInventory"`
	AudienceType      *string    `json:"audienceType"`
	CampaignPurpose   *string    `json:"campaignPurpose"`
	SelectedCountries *[]string  `json:"selectedCountries"`
	Tags              *string    `json:"tags"`
	IsFromCSV         *bool      `json:"isFromCsv"`
	CSVFileName       *string    `json:"csvFileName"`
	ContactSourceInfo *string    `json:"contactSourceInfo"`
	IsScheduled       *bool      `json:"isScheduled"`
	ScheduledDateTime *time.Time `json:"scheduledDateTime"`
}

type ListCampaignsQuery struct {
	Status string
	Search string
	Page   int
	Limit  int
}

type Pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
}

type CampaignList struct {
	Campaigns  []model.Campaign `json:"campaigns"`
	Pagination Pagination       `json:"pagination"`
}

func (s *CampaignService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *CampaignService) log() *zap.Logger {
	return logger.OrNop(s.Logger)
}

func validateChoice(field, value string, allowed []string) error {
	if value == "" || slices.Contains(allowed, value) {
		return nil
	}
	return appErrors.NewValidation(field, "must be one of: "+strings.Join(allowed, ", "))
}

func validateClassification(inventory, audience, purpose string) error {
	return errors.Join(
		validateChoice("targetInventory", inventory, TargetInventories),
		validateChoice("audienceType", audience, AudienceTypes),
		validateChoice("campaignPurpose", purpose, CampaignPurposes),
	)
}

func cleanNumbers(numbers []string) []string {
	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (s *CampaignService) CreateCampaign(ctx context.Context, ownerID string, in CreateCampaignInput) (*model.Campaign, error) {
	name := strings.TrimSpace(in.Name)
	message := strings.TrimSpace(in.Message)
	numbers := cleanNumbers(in.RecipientNumbers)

	if name == "" || message == "" || len(numbers) == 0 {
		return nil, appErrors.NewValidation("", "campaign name, message, and recipient numbers are required")
	}
	if err := validateClassification(in.TargetInventory, in.AudienceType, in.CampaignPurpose); err != nil {
		return nil, err
	}
	if in.IsScheduled && in.ScheduledDateTime == nil {
		return nil, appErrors.NewValidation("scheduledDateTime", "required when isScheduled is true")
	}

	now := s.now()
	c := &model.Campaign{
		ID:                s.NewID(),
		UserID:            ownerID,
		Name:              name,
		Message:           message,
		RecipientNumbers:  numbers,
		TargetInventory:   in.TargetInventory,
		AudienceType:      in.AudienceType,
		CampaignPurpose:   in.CampaignPurpose,
		SelectedCountries: in.SelectedCountries,
		Tags:              in.Tags,
		IsFromCSV:         in.IsFromCSV,
		CSVFileName:       in.CSVFileName,
		ContactSourceInfo: in.ContactSourceInfo,
		Status:            model.StatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if c.SelectedCountries == nil {
		c.SelectedCountries = []string{}
	}
	if in.IsScheduled {
		at := *in.ScheduledDateTime
		c.IsScheduled = true
		c.ScheduledDateTime = &at
		c.Status = model.StatusScheduled
	}
	c.ResetOutcomes()

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.log().Info("campaign created",
		zap.String("campaign_id", c.ID),
		zap.String("user_id", ownerID),
		zap.String("status", string(c.Status)),
		zap.Int("recipients", c.TotalRecipients))
	s.invalidate(ctx, ownerID)
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, ownerID string, q ListCampaignsQuery) (*CampaignList, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filter := repository.ListFilter{
		Search: q.Search,
		Offset: (page - 1) * limit,
		Limit:  limit,
	}
	if q.Status != "" && q.Status != "all" {
		status := model.CampaignStatus(q.Status)
		if !status.Valid() {
			return nil, appErrors.NewValidation("status", "unknown campaign status "+q.Status)
		}
		filter.Status = status
	}

	ptrs, total, err := s.CampaignRepo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}

	campaigns := make([]model.Campaign, 0, len(ptrs))
	for _, c := range ptrs {
		campaigns = append(campaigns, c.Summary())
	}

	return &CampaignList{
		Campaigns: campaigns,
		Pagination: Pagination{
			Current: page,
			Pages:   int(math.Ceil(float64(total) / float64(limit))),
			Total:   total,
		},
	}, nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, id, ownerID string) (*model.Campaign, error) {
	return s.CampaignRepo.GetByIDAndOwner(ctx, id, ownerID)
}

// UpdateCampaign applies in to a draft, scheduled, cancelled or failed
// campaign. The write is conditional on the status read here, so a campaign
// claimed for sending in between yields InvalidState instead of being
// overwritten.
func (s *CampaignService) UpdateCampaign(ctx context.Context, id, ownerID string, in UpdateCampaignInput) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if err := CanUpdate(c); err != nil {
		return nil, err
	}
	expected := c.Status

	if err := s.applyUpdate(c, in); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()

	if err := s.CampaignRepo.Update(ctx, c, expected); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, s.conflict(ctx, id, ownerID, "update")
		}
		return nil, err
	}

	s.invalidate(ctx, ownerID)
	return c, nil
}

func (s *CampaignService) applyUpdate(c *model.Campaign, in UpdateCampaignInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return appErrors.NewValidation("name", "must not be empty")
		}
		c.Name = name
	}
	if in.Message != nil {
		message := strings.TrimSpace(*in.Message)
		if message == "" {
			return appErrors.NewValidation("message", "must not be empty")
		}
		c.Message = message
	}
	if in.RecipientNumbers != nil {
		numbers := cleanNumbers(*in.RecipientNumbers)
		if len(numbers) == 0 {
			return appErrors.NewValidation("recipientNumbers", "at least one recipient is required")
		}
		c.RecipientNumbers = numbers
		c.ResetOutcomes()
	}

	inventory, audience, purpose := c.TargetInventory, c.AudienceType, c.CampaignPurpose
	if in.TargetInventory != nil {
		inventory = *in.TargetInventory
	}
	if in.AudienceType != nil {
		audience = *in.AudienceType
	}
	if in.CampaignPurpose != nil {
		purpose = *in.CampaignPurpose
	}
	if err := validateClassification(inventory, audience, purpose); err != nil {
		return err
	}
	c.TargetInventory, c.AudienceType, c.CampaignPurpose = inventory, audience, purpose

	if in.SelectedCountries != nil {
		c.SelectedCountries = *in.SelectedCountries
	}
	if in.Tags != nil {
		c.Tags = *in.Tags
	}
	if in.IsFromCSV != nil {
		c.IsFromCSV = *in.IsFromCSV
	}
	if in.CSVFileName != nil {
		c.CSVFileName = *in.CSVFileName
	}
	if in.ContactSourceInfo != nil {
		c.ContactSourceInfo = *in.ContactSourceInfo
	}

	return s.applySchedule(c, in.IsScheduled, in.ScheduledDateTime)
}

// applySchedule handles the scheduling fields. Only draft and scheduled
// campaigns can have their schedule changed.
func (s *CampaignService) applySchedule(c *model.Campaign, isScheduled *bool, at *time.Time) error {
	if isScheduled == nil && at == nil {
		return nil
	}
	if c.Status != model.StatusDraft && c.Status != model.StatusScheduled {
		return invalidState(c, "reschedule")
	}

	want := c.IsScheduled
	if isScheduled != nil {
		want = *isScheduled
	}

	if !want {
		if c.Status == model.StatusScheduled {
			return invalidState(c, "unschedule")
		}
		if at != nil {
			return appErrors.NewValidation("scheduledDateTime", "requires isScheduled")
		}
		return nil
	}

	when := c.ScheduledDateTime
	if at != nil {
		t := *at
		when = &t
	}
	if when == nil {
		return appErrors.NewValidation("scheduledDateTime", "required when isScheduled is true")
	}
	if !when.After(s.now()) {
		return appErrors.NewValidation("scheduledDateTime", "must be in the future")
	}

	c.IsScheduled = true
	c.ScheduledDateTime = when
	c.Status = model.StatusScheduled
	return nil
}

func (s *CampaignService) DeleteCampaign(ctx context.Context, id, ownerID string) error {
	c, err := s.CampaignRepo.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if err := CanDelete(c); err != nil {
		return err
	}

	if err := s.CampaignRepo.Delete(ctx, id, ownerID); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return s.conflict(ctx, id, ownerID, "delete")
		}
		return err
	}

	s.log().Info("campaign deleted", zap.String("campaign_id", id), zap.String("user_id", ownerID))
	s.invalidate(ctx, ownerID)
	return nil
}

// SendCampaign runs the campaign synchronously and returns its final state.
// The run is detached from ctx cancellation so a dropped request cannot leave
// the campaign half-sent.
func (s *CampaignService) SendCampaign(ctx context.Context, id, ownerID string) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if err := CanSend(c); err != nil {
		return nil, err
	}

	out, err := s.Executor.Run(context.WithoutCancel(ctx), c)
	if errors.Is(err, ErrClaimLost) {
		return nil, s.conflict(ctx, id, ownerID, "send")
	}
	return out, err
}

func (s *CampaignService) CancelCampaign(ctx context.Context, id, ownerID string) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if err := CanCancel(c); err != nil {
		return nil, err
	}

	now := s.now()
	won, err := s.CampaignRepo.TransitionStatus(ctx, id,
		[]model.CampaignStatus{model.StatusScheduled}, model.StatusCancelled, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, s.conflict(ctx, id, ownerID, "cancel")
	}

	c.Status = model.StatusCancelled
	c.UpdatedAt = now
	s.log().Info("campaign cancelled", zap.String("campaign_id", id), zap.String("user_id", ownerID))
	s.invalidate(ctx, ownerID)
	return c, nil
}

// ListScheduledCampaigns returns the owner's upcoming scheduled campaigns,
// earliest first.
func (s *CampaignService) ListScheduledCampaigns(ctx context.Context, ownerID string) ([]model.Campaign, error) {
	ptrs, err := s.CampaignRepo.ListUpcoming(ctx, ownerID, s.now())
	if err != nil {
		return nil, err
	}
	out := make([]model.Campaign, 0, len(ptrs))
	for _, c := range ptrs {
		out = append(out, c.Summary())
	}
	return out, nil
}

// conflict re-reads the campaign after a lost conditional write and reports
// the status that won.
func (s *CampaignService) conflict(ctx context.Context, id, ownerID, action string) error {
	c, err := s.CampaignRepo.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}
	return invalidState(c, action)
}

func (s *CampaignService) invalidate(ctx context.Context, ownerID string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, ownerID); err != nil {
		s.log().Warn("failed to invalidate analytics cache", zap.String("user_id", ownerID), zap.Error(err))
	}
}
