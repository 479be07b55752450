package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
)

// RuleAuditJob periodically audits the rule catalog. Conflicts are data
// problems owned by the CRUD side, so the job only reports them.
type RuleAuditJob struct {
	catalog rule.CatalogService
}

func NewRuleAuditJob(catalog rule.CatalogService) *RuleAuditJob {
	return &RuleAuditJob{catalog: catalog}
}

func (j *RuleAuditJob) RegisterJobs(scheduler *Scheduler, interval time.Duration) {
	scheduler.AddJob("audit_rule_catalog", interval, j.AuditRuleCatalog)
}

func (j *RuleAuditJob) AuditRuleCatalog(ctx context.Context) error {
	report, err := j.catalog.Conflicts(ctx)
	if err != nil {
		return fmt.Errorf("failed to audit rule catalog: %w", err)
	}

	if len(report.Conflicts) == 0 {
		slog.Debug("cron: rule catalog is consistent")
		return nil
	}

	for _, c := range report.Conflicts {
		attrs := []any{
			"type", c.Type,
			"rule_ids", c.RuleIDs,
			"message", c.Message,
		}
		if c.DepartmentID != nil {
			attrs = append(attrs, "department_id", *c.DepartmentID)
		}

		if c.Severity == rule.SeverityError {
			slog.Error("cron: rule catalog conflict", attrs...)
		} else {
			slog.Warn("cron: rule catalog conflict", attrs...)
		}
	}

	slog.Info("cron: rule catalog audit finished",
		"errors", report.Errors,
		"warnings", report.Warnings,
	)
	return nil
}
