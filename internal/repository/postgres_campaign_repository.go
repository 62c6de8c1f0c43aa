package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/bulksms-campaigns/internal/errors"
	"github.com/unclebandit/bulksms-campaigns/internal/model"
)

const campaignColumns = `id, user_id, name, message, recipient_numbers, total_recipients,
        target_inventory, audience_type, campaign_purpose, selected_countries, tags,
        is_from_csv, csv_file_name, contact_source_info,
        status, is_scheduled, scheduled_date_time, started_at, completed_at,
        message_statuses, sent_count, delivered_count, failed_count, pending_count,
        created_at, updated_at`

type CampaignRepository struct {
	DB *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var outcomes []byte
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Message, pq.Array(&c.RecipientNumbers), &c.TotalRecipients,
		&c.TargetInventory, &c.AudienceType, &c.CampaignPurpose, pq.Array(&c.SelectedCountries), &c.Tags,
		&c.IsFromCSV, &c.CSVFileName, &c.ContactSourceInfo,
		&c.Status, &c.IsScheduled, &c.ScheduledDateTime, &c.StartedAt, &c.CompletedAt,
		&outcomes, &c.SentCount, &c.DeliveredCount, &c.FailedCount, &c.PendingCount,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(outcomes) > 0 {
		if err := json.Unmarshal(outcomes, &c.MessageStatuses); err != nil {
			return nil, fmt.Errorf("decode message_statuses for %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

func (r *CampaignRepository) queryCampaigns(ctx context.Context, query string, args ...any) ([]*model.Campaign, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	outcomes, err := json.Marshal(c.MessageStatuses)
	if err != nil {
		return fmt.Errorf("encode message_statuses: %w", err)
	}

	query := `
        INSERT INTO campaigns (` + campaignColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
                $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
    `
	_, err = r.DB.ExecContext(ctx, query,
		c.ID, c.UserID, c.Name, c.Message, pq.Array(c.RecipientNumbers), c.TotalRecipients,
		c.TargetInventory, c.AudienceType, c.CampaignPurpose, pq.Array(c.SelectedCountries), c.Tags,
		c.IsFromCSV, c.CSVFileName, c.ContactSourceInfo,
		c.Status, c.IsScheduled, c.ScheduledDateTime, c.StartedAt, c.CompletedAt,
		outcomes, c.SentCount, c.DeliveredCount, c.FailedCount, c.PendingCount,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepository) GetByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1 AND user_id=$2`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepository) List(ctx context.Context, ownerID string, f ListFilter) ([]*model.Campaign, int, error) {
	where := ` WHERE user_id=$1`
	args := []any{ownerID}
	argPos := 2

	if f.Status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, f.Status)
		argPos++
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR message ILIKE $%d OR tags ILIKE $%d)", argPos, argPos, argPos)
		args = append(args, "%"+s+"%")
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, f.Limit, f.Offset)

	campaigns, err := r.queryCampaigns(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, total, nil
}

func (r *CampaignRepository) ListUpcoming(ctx context.Context, ownerID string, from time.Time) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns
        WHERE user_id=$1 AND status=$2 AND scheduled_date_time >= $3
        ORDER BY scheduled_date_time ASC`
	campaigns, err := r.queryCampaigns(ctx, query, ownerID, model.StatusScheduled, from)
	if err != nil {
		return nil, fmt.Errorf("list scheduled campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *CampaignRepository) ListCreatedBetween(ctx context.Context, ownerID string, from, to time.Time) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns
        WHERE user_id=$1 AND created_at >= $2 AND created_at < $3`
	campaigns, err := r.queryCampaigns(ctx, query, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list campaigns by period: %w", err)
	}
	return campaigns, nil
}

func (r *CampaignRepository) FindDue(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns
        WHERE status=$1 AND scheduled_date_time <= $2`
	campaigns, err := r.queryCampaigns(ctx, query, model.StatusScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("find due campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign, expected model.CampaignStatus) error {
	outcomes, err := json.Marshal(c.MessageStatuses)
	if err != nil {
		return fmt.Errorf("encode message_statuses: %w", err)
	}

	query := `
        UPDATE campaigns
        SET name=$1, message=$2, recipient_numbers=$3, total_recipients=$4,
            target_inventory=$5, audience_type=$6, campaign_purpose=$7, selected_countries=$8,
            tags=$9, is_from_csv=$10, csv_file_name=$11, contact_source_info=$12,
            status=$13, is_scheduled=$14, scheduled_date_time=$15, started_at=$16, completed_at=$17,
            message_statuses=$18, sent_count=$19, delivered_count=$20, failed_count=$21,
            pending_count=$22, updated_at=$23
        WHERE id=$24 AND status=$25
    `
	res, err := r.DB.ExecContext(ctx, query,
		c.Name, c.Message, pq.Array(c.RecipientNumbers), c.TotalRecipients,
		c.TargetInventory, c.AudienceType, c.CampaignPurpose, pq.Array(c.SelectedCountries),
		c.Tags, c.IsFromCSV, c.CSVFileName, c.ContactSourceInfo,
		c.Status, c.IsScheduled, c.ScheduledDateTime, c.StartedAt, c.CompletedAt,
		outcomes, c.SentCount, c.DeliveredCount, c.FailedCount,
		c.PendingCount, c.UpdatedAt,
		c.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if n == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *CampaignRepository) TransitionStatus(ctx context.Context, id string, from []model.CampaignStatus, to model.CampaignStatus, at time.Time) (bool, error) {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3 AND status = ANY($4)`
	if to == model.StatusSending {
		query = `UPDATE campaigns SET status=$1, updated_at=$2, started_at=$2 WHERE id=$3 AND status = ANY($4)`
	}

	res, err := r.DB.ExecContext(ctx, query, to, at, id, pq.Array(statusStrings(from)))
	if err != nil {
		return false, fmt.Errorf("transition campaign %s to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition campaign %s to %s: %w", id, to, err)
	}
	return n == 1, nil
}

func (r *CampaignRepository) MarkFailed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE campaigns SET status=$1, completed_at=$2, updated_at=$2 WHERE id=$3 AND status = ANY($4)`
	res, err := r.DB.ExecContext(ctx, query, model.StatusFailed, at, id, pq.Array(statusStrings(FailableStatuses)))
	if err != nil {
		return fmt.Errorf("mark campaign %s failed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark campaign %s failed: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("mark campaign %s failed: %w", id, ErrStatusConflict)
	}
	return nil
}

func (r *CampaignRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM campaigns WHERE id=$1 AND user_id=$2 AND status <> $3`,
		id, ownerID, model.StatusSending)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if n == 0 {
		// Either gone or sending; tell them apart for the caller.
		if _, err := r.GetByIDAndOwner(ctx, id, ownerID); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
