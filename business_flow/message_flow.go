package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/repository"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const exportSheetName = "messages"

// MessageFlow exposes a campaign's queue for inspection
type MessageFlow interface {
	ListMessages(ctx context.Context, req *dto.ListMessagesRequest) (*dto.ListMessagesResponse, error)
	ExportMessages(ctx context.Context, ownerID uuid.UUID, campaignUUID string) (*dto.ExportMessagesResponse, error)
}

// MessageFlowImpl implements MessageFlow
type MessageFlowImpl struct {
	campaignRepo repository.CampaignRepository
	queueRepo    repository.QueuedMessageRepository
}

// NewMessageFlow creates a new message flow
func NewMessageFlow(campaignRepo repository.CampaignRepository, queueRepo repository.QueuedMessageRepository) *MessageFlowImpl {
	return &MessageFlowImpl{campaignRepo: campaignRepo, queueRepo: queueRepo}
}

// ListMessages returns a page of the queue, optionally filtered by status
func (f *MessageFlowImpl) ListMessages(ctx context.Context, req *dto.ListMessagesRequest) (*dto.ListMessagesResponse, error) {
	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError(CodeValidation, "Invalid pagination", err)
	}

	var status *models.MessageStatus
	if req.Status != nil && *req.Status != "" {
		s := models.MessageStatus(*req.Status)
		if !s.Valid() {
			return nil, NewBusinessError(CodeValidation, "Invalid status filter", ErrInvalidMessageStatus)
		}
		status = &s
	}

	campaign, err := loadCampaignByRaw(ctx, f.campaignRepo, req.OwnerID, req.CampaignUUID)
	if err != nil {
		return nil, err
	}

	messages, err := f.queueRepo.ListByCampaign(ctx, campaign.ID, status, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, storeError("Failed to list messages", err)
	}

	items := make([]dto.QueuedMessageDTO, 0, len(messages))
	for _, m := range messages {
		items = append(items, ToQueuedMessageDTO(*m))
	}
	return &dto.ListMessagesResponse{Items: items, Page: page, PageSize: pageSize}, nil
}

// ExportMessages renders the whole queue of a campaign as an xlsx workbook
func (f *MessageFlowImpl) ExportMessages(ctx context.Context, ownerID uuid.UUID, campaignUUID string) (*dto.ExportMessagesResponse, error) {
	campaign, err := loadCampaignByRaw(ctx, f.campaignRepo, ownerID, campaignUUID)
	if err != nil {
		return nil, err
	}

	messages, err := f.queueRepo.ListByCampaign(ctx, campaign.ID, nil, 0, 0)
	if err != nil {
		return nil, storeError("Failed to list messages", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	xl.SetSheetName(xl.GetSheetName(0), exportSheetName)
	header := []string{"uuid", "target_username", "status", "scheduled_at", "sent_at", "attempt", "error_message", "message_content"}
	if err := xl.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	for i, m := range messages {
		username := ""
		if m.Target != nil {
			username = m.Target.Username
		}
		sentAt := ""
		if m.SentAt != nil {
			sentAt = m.SentAt.UTC().Format(time.RFC3339)
		}
		errMsg := ""
		if m.ErrorMessage != nil {
			errMsg = *m.ErrorMessage
		}
		record := []string{
			m.UUID.String(),
			username,
			m.Status.String(),
			m.ScheduledAt.UTC().Format(time.RFC3339),
			sentAt,
			strconv.Itoa(m.Attempt),
			errMsg,
			m.MessageContent,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(exportSheetName, cellRef, &record); err != nil {
			return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return &dto.ExportMessagesResponse{
		Filename: fmt.Sprintf("campaign_%s_messages.xlsx", campaign.UUID.String()),
		Content:  buf.Bytes(),
	}, nil
}
