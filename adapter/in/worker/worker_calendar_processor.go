package worker

import (
	"context"
	"fmt"

	"calndr/core/port/in"
	"calndr/core/port/out"
	"calndr/pkg/logger"
)

// CustodyProcessor handles C3 generation jobs.
type CustodyProcessor struct {
	templateService in.TemplateService
	templateRepo    out.ScheduleTemplateRepository
}

func NewCustodyProcessor(templateService in.TemplateService, templateRepo out.ScheduleTemplateRepository) *CustodyProcessor {
	return &CustodyProcessor{templateService: templateService, templateRepo: templateRepo}
}

func (p *CustodyProcessor) ProcessGenerate(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[CustodyGeneratePayload](msg)
	if err != nil {
		return fmt.Errorf("parse custody.generate payload: %w", err)
	}

	template, err := p.templateRepo.GetActive(ctx, payload.FamilyID)
	if err != nil {
		return fmt.Errorf("get active template for family %s: %w", payload.FamilyID, err)
	}
	if template == nil {
		logger.Info("[CustodyProcessor.ProcessGenerate] no active template for family=%s, skipping", payload.FamilyID)
		return nil
	}

	records, err := p.templateService.Generate(ctx, payload.FamilyID, template, payload.From, payload.To)
	if err != nil {
		return fmt.Errorf("generate custody for family %s: %w", payload.FamilyID, err)
	}

	logger.Info("[CustodyProcessor.ProcessGenerate] family=%s generated=%d", payload.FamilyID, len(records))
	return nil
}

// IntegrityProcessor handles C8 audit jobs.
type IntegrityProcessor struct {
	integrityService in.IntegrityService
}

func NewIntegrityProcessor(integrityService in.IntegrityService) *IntegrityProcessor {
	return &IntegrityProcessor{integrityService: integrityService}
}

func (p *IntegrityProcessor) ProcessAudit(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[IntegrityAuditPayload](msg)
	if err != nil {
		return fmt.Errorf("parse integrity.audit payload: %w", err)
	}

	suspect, err := p.integrityService.Audit(ctx, payload.FamilyID, payload.DryRun)
	if err != nil {
		return fmt.Errorf("audit family %s: %w", payload.FamilyID, err)
	}

	logger.Info("[IntegrityProcessor.ProcessAudit] family=%s dry_run=%v suspect=%d", payload.FamilyID, payload.DryRun, len(suspect))
	return nil
}
