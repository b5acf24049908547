package businessflow

import (
	"context"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/repository"
)

// AuditFlow exposes the caller's recorded actions
type AuditFlow interface {
	ListAuditLogs(ctx context.Context, req *dto.ListAuditLogsRequest) (*dto.ListAuditLogsResponse, error)
}

// AuditFlowImpl implements AuditFlow
type AuditFlowImpl struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditFlow creates a new audit flow
func NewAuditFlow(auditRepo repository.AuditLogRepository) *AuditFlowImpl {
	return &AuditFlowImpl{auditRepo: auditRepo}
}

// ListAuditLogs returns a page of the owner's actions, newest first
func (f *AuditFlowImpl) ListAuditLogs(ctx context.Context, req *dto.ListAuditLogsRequest) (*dto.ListAuditLogsResponse, error) {
	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError(CodeValidation, "Invalid pagination", err)
	}

	var logs []*models.AuditLog
	if req.FailedOnly {
		logs, err = f.auditRepo.ListFailedByOwner(ctx, req.OwnerID, pageSize, (page-1)*pageSize)
	} else {
		logs, err = f.auditRepo.ListByOwner(ctx, req.OwnerID, pageSize, (page-1)*pageSize)
	}
	if err != nil {
		return nil, storeError("Failed to list audit logs", err)
	}

	items := make([]dto.AuditLogDTO, 0, len(logs))
	for _, l := range logs {
		items = append(items, ToAuditLogDTO(*l))
	}
	return &dto.ListAuditLogsResponse{Items: items, Page: page, PageSize: pageSize}, nil
}
