package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/repository"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
)

// ActionKind names a trigger action
type ActionKind string

const (
	ActionStartCampaign ActionKind = "start_campaign"
	ActionPauseCampaign ActionKind = "pause_campaign"
	ActionProcessQueue  ActionKind = "process_queue"
	ActionGetStats      ActionKind = "get_stats"
)

// ParseAction resolves a raw action name
func ParseAction(raw string) (ActionKind, error) {
	switch kind := ActionKind(strings.TrimSpace(raw)); kind {
	case ActionStartCampaign, ActionPauseCampaign, ActionProcessQueue, ActionGetStats:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, raw)
	}
}

// Command is a fully validated trigger request
type Command interface {
	Kind() ActionKind
	Owner() uuid.UUID
}

type StartCampaignCommand struct {
	OwnerID      uuid.UUID
	CampaignUUID uuid.UUID
}

type PauseCampaignCommand struct {
	OwnerID      uuid.UUID
	CampaignUUID uuid.UUID
}

type ProcessQueueCommand struct {
	OwnerID uuid.UUID
}

type GetStatsCommand struct {
	OwnerID      uuid.UUID
	CampaignUUID uuid.UUID
}

func (StartCampaignCommand) Kind() ActionKind   { return ActionStartCampaign }
func (PauseCampaignCommand) Kind() ActionKind   { return ActionPauseCampaign }
func (ProcessQueueCommand) Kind() ActionKind    { return ActionProcessQueue }
func (GetStatsCommand) Kind() ActionKind        { return ActionGetStats }
func (c StartCampaignCommand) Owner() uuid.UUID { return c.OwnerID }
func (c PauseCampaignCommand) Owner() uuid.UUID { return c.OwnerID }
func (c ProcessQueueCommand) Owner() uuid.UUID  { return c.OwnerID }
func (c GetStatsCommand) Owner() uuid.UUID      { return c.OwnerID }

// NewCommand validates a trigger request into a typed command
func NewCommand(req *dto.ActionRequest) (Command, error) {
	kind, err := ParseAction(req.Action)
	if err != nil {
		return nil, err
	}

	ownerID := req.OwnerID
	if ownerID == uuid.Nil {
		raw := strings.TrimSpace(req.UserID)
		if raw == "" {
			return nil, ErrOwnerRequired
		}
		if ownerID, err = uuid.Parse(raw); err != nil {
			return nil, ErrInvalidOwnerID
		}
	}

	if kind == ActionProcessQueue {
		return ProcessQueueCommand{OwnerID: ownerID}, nil
	}

	if req.CampaignID == nil {
		return nil, ErrCampaignIDRequired
	}
	campaignUUID, err := ParseCampaignID(*req.CampaignID)
	if err != nil {
		return nil, err
	}

	switch kind {
	case ActionStartCampaign:
		return StartCampaignCommand{OwnerID: ownerID, CampaignUUID: campaignUUID}, nil
	case ActionPauseCampaign:
		return PauseCampaignCommand{OwnerID: ownerID, CampaignUUID: campaignUUID}, nil
	default:
		return GetStatsCommand{OwnerID: ownerID, CampaignUUID: campaignUUID}, nil
	}
}

// ActionFlow executes trigger actions and audits each one
type ActionFlow interface {
	Execute(ctx context.Context, req *dto.ActionRequest, metadata *ClientMetadata) (*dto.ActionResponse, error)
}

// ActionFlowImpl implements ActionFlow
type ActionFlowImpl struct {
	controller CampaignController
	processor  QueueProcessor
	stats      StatsAggregator
	audit      auditRecorder
}

// NewActionFlow creates a new action flow
func NewActionFlow(controller CampaignController, processor QueueProcessor, stats StatsAggregator, auditRepo repository.AuditLogRepository) *ActionFlowImpl {
	return &ActionFlowImpl{
		controller: controller,
		processor:  processor,
		stats:      stats,
		audit:      auditRecorder{repo: auditRepo},
	}
}

// Execute validates the request and routes it to the owning component
func (f *ActionFlowImpl) Execute(ctx context.Context, req *dto.ActionRequest, metadata *ClientMetadata) (*dto.ActionResponse, error) {
	cmd, err := NewCommand(req)
	if err != nil {
		bizErr := NewBusinessError(CodeInvalidAction, "Invalid action request", err)
		if req.OwnerID != uuid.Nil {
			_ = f.audit.record(ctx, req.OwnerID, models.AuditActionInvalid, nil, fmt.Sprintf("Rejected action %q", req.Action), bizErr, metadata)
		}
		return nil, bizErr
	}

	resp, campaignUUID, err := f.dispatch(ctx, cmd)

	description := fmt.Sprintf("Action %s executed", cmd.Kind())
	if resp != nil && resp.Message != "" {
		description = resp.Message
	}
	if err != nil {
		description = fmt.Sprintf("Action %s failed", cmd.Kind())
	}
	_ = f.audit.record(ctx, cmd.Owner(), string(cmd.Kind()), campaignUUID, description, err, metadata)

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (f *ActionFlowImpl) dispatch(ctx context.Context, cmd Command) (*dto.ActionResponse, *uuid.UUID, error) {
	resp := &dto.ActionResponse{Action: string(cmd.Kind())}

	switch c := cmd.(type) {
	case StartCampaignCommand:
		result, err := f.controller.Start(ctx, c.OwnerID, c.CampaignUUID)
		if err != nil {
			return nil, &c.CampaignUUID, err
		}
		resp.Message = result.Message()
		resp.Queued = utils.ToPtr(result.Queued)
		return resp, &c.CampaignUUID, nil

	case PauseCampaignCommand:
		result, err := f.controller.Pause(ctx, c.OwnerID, c.CampaignUUID)
		if err != nil {
			return nil, &c.CampaignUUID, err
		}
		resp.Message = fmt.Sprintf("Campaign paused, %d pending messages cancelled", result.Cancelled)
		resp.Cancelled = utils.ToPtr(result.Cancelled)
		return resp, &c.CampaignUUID, nil

	case ProcessQueueCommand:
		result, err := f.processor.ProcessOne(ctx, c.OwnerID)
		if err != nil {
			return nil, nil, err
		}
		resp.Process = ToProcessResultDTO(result)
		if result.Processed {
			resp.Message = fmt.Sprintf("Message %s", result.Outcome)
		} else {
			resp.Message = "No messages to process"
		}
		return resp, nil, nil

	case GetStatsCommand:
		stats, err := f.stats.GetStats(ctx, c.OwnerID, c.CampaignUUID)
		if err != nil {
			return nil, &c.CampaignUUID, err
		}
		statsDTO := ToStatsDTO(*stats)
		resp.Stats = &statsDTO
		return resp, &c.CampaignUUID, nil

	default:
		return nil, nil, NewBusinessError(CodeInvalidAction, "Invalid action request", ErrInvalidAction)
	}
}

// ToProcessResultDTO converts a processing result for responses
func ToProcessResultDTO(r *ProcessResult) *dto.ProcessResultDTO {
	out := &dto.ProcessResultDTO{Processed: r.Processed}
	if r.Processed {
		out.MessageID = r.MessageUUID.String()
		out.Outcome = r.Outcome.String()
		out.Error = r.Reason
	}
	return out
}
