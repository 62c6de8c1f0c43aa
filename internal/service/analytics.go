package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/bulksms-campaigns/internal/errors"
	"github.com/unclebandit/bulksms-campaigns/internal/model"
)

const (
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// PeriodWindow returns the [from, to) creation window for period relative to
// now, in loc. An empty period means today.
func PeriodWindow(period string, now time.Time, loc *time.Location, weekStart time.Weekday) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch period {
	case "", PeriodToday:
		return midnight, midnight.AddDate(0, 0, 1), nil
	case PeriodWeek:
		back := (int(now.Weekday()) - int(weekStart) + 7) % 7
		return midnight.AddDate(0, 0, -back), now, nil
	case PeriodMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return first, first.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Time{}, appErrors.NewValidation("period", "must be one of: today, week, month")
	}
}

// Aggregate summarises campaigns into analytics totals. The average success
// rate is the mean of the per-campaign rates.
func Aggregate(campaigns []*model.Campaign) model.Analytics {
	a := model.Analytics{StatusBreakdown: make(map[model.CampaignStatus]int, len(model.AllStatuses))}
	for _, st := range model.AllStatuses {
		a.StatusBreakdown[st] = 0
	}

	var rateSum float64
	for _, c := range campaigns {
		a.TotalCampaigns++
		a.TotalRecipients += c.TotalRecipients
		a.TotalSent += c.SentCount
		a.TotalDelivered += c.DeliveredCount
		a.TotalFailed += c.FailedCount
		a.StatusBreakdown[c.Status]++
		rateSum += c.SuccessRate()
	}
	if a.TotalCampaigns > 0 {
		a.AverageSuccessRate = model.Round2(rateSum / float64(a.TotalCampaigns))
	}
	return a
}

func (s *CampaignService) GetAnalytics(ctx context.Context, ownerID, period string) (*model.Analytics, error) {
	if period == "" {
		period = PeriodToday
	}
	from, to, err := PeriodWindow(period, s.now(), s.Location, s.WeekStart)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		cached, ok, err := s.Cache.Get(ctx, ownerID, period, from)
		if err != nil {
			s.log().Warn("analytics cache read failed", zap.String("user_id", ownerID), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	campaigns, err := s.CampaignRepo.ListCreatedBetween(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}

	a := Aggregate(campaigns)
	a.Period = period
	a.From = from
	a.To = to

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, ownerID, period, from, &a); err != nil {
			s.log().Warn("analytics cache write failed", zap.String("user_id", ownerID), zap.Error(err))
		}
	}
	return &a, nil
}
