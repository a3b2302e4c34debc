package temporal

import (
	"fmt"
	"strings"

	"go.temporal.io/sdk/workflow"
)

const (
	VendorUpdateWorkflowName = "VendorUpdateWorkflow"
	SLARefreshWorkflowName   = "SLARefreshWorkflow"
)

type VendorUpdateWorkflowInput struct {
	ObjectKey string
}

type VendorUpdateWorkflowResult struct {
	ObjectKey string
	CaseID    string
	Created   bool
}

// VendorUpdateWorkflow ingests one vendor result file from the inbox.
func VendorUpdateWorkflow(ctx workflow.Context, input VendorUpdateWorkflowInput) (VendorUpdateWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	var fetched FetchVendorUpdateOutput
	if err := workflow.ExecuteActivity(
		mustActivityContext(ctx, ActivityPolicyFetchVendorUpdate),
		(*Activities).FetchVendorUpdateActivity,
		FetchVendorUpdateInput{ObjectKey: input.ObjectKey},
	).Get(ctx, &fetched); err != nil {
		return VendorUpdateWorkflowResult{}, err
	}

	var ingested IngestVendorUpdateOutput
	if err := workflow.ExecuteActivity(
		mustActivityContext(ctx, ActivityPolicyIngestVendorUpdate),
		(*Activities).IngestVendorUpdateActivity,
		IngestVendorUpdateInput{ObjectKey: input.ObjectKey, Update: fetched.Update},
	).Get(ctx, &ingested); err != nil {
		return VendorUpdateWorkflowResult{}, err
	}

	logger.Info("vendor result applied", "object_key", input.ObjectKey, "case_id", ingested.CaseID)
	return VendorUpdateWorkflowResult{
		ObjectKey: input.ObjectKey,
		CaseID:    ingested.CaseID,
		Created:   ingested.Created,
	}, nil
}

// SLARefreshWorkflow runs one sweep. The worker schedules it on a cron schedule.
func SLARefreshWorkflow(ctx workflow.Context) (RefreshSLARiskOutput, error) {
	var out RefreshSLARiskOutput
	if err := workflow.ExecuteActivity(
		mustActivityContext(ctx, ActivityPolicyRefreshSLARisk),
		(*Activities).RefreshSLARiskActivity,
	).Get(ctx, &out); err != nil {
		return RefreshSLARiskOutput{}, err
	}
	workflow.GetLogger(ctx).Info("sla refresh complete", "changed", out.Changed, "at_risk", out.AtRisk)
	return out, nil
}

func VendorWorkflowID(prefix, objectKey string) string {
	return fmt.Sprintf("%s-vendor-%s", prefix, strings.Trim(objectKey, "/"))
}

func SLARefreshWorkflowID(prefix string) string {
	return prefix + "-sla-refresh"
}
