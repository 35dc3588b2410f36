package core

import (
	"bizdesk/pkg/domain"
	"context"
	"fmt"
)

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewTaskProgressRule())
	engine.Register(NewMonetaryAmountRule())
	return engine
}

// NewTaskProgressRule warns when a written task reports progress outside 0-100.
func NewTaskProgressRule() domain.Rule {
	return taskProgressRule{}
}

type taskProgressRule struct{}

func (taskProgressRule) Name() string { return "task_progress_range" }

func (r taskProgressRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		task, ok := change.After.(domain.Task)
		if !ok {
			continue
		}
		if task.Progress < 0 || task.Progress > 100 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("task %d progress %g outside 0-100", task.ID, task.Progress),
				Entity:   domain.EntityTask,
				EntityID: task.ID,
			})
		}
	}
	return res, nil
}

// NewMonetaryAmountRule warns on negative prices and totals.
func NewMonetaryAmountRule() domain.Rule {
	return monetaryAmountRule{}
}

type monetaryAmountRule struct{}

func (monetaryAmountRule) Name() string { return "monetary_amount" }

func (r monetaryAmountRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	flag := func(entity domain.EntityType, id int, what string, amount float64) {
		if amount >= 0 {
			return
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("%s %d has negative %s %g", entity, id, what, amount),
			Entity:   entity,
			EntityID: id,
		})
	}
	items := func(entity domain.EntityType, id int, lines []domain.LineItem) {
		for _, line := range lines {
			flag(entity, id, "item price", line.Price)
		}
	}
	for _, change := range changes {
		switch after := change.After.(type) {
		case domain.Service:
			flag(domain.EntityService, after.ID, "price", after.Price)
		case domain.Quote:
			flag(domain.EntityQuote, after.ID, "total_amount", after.TotalAmount)
			items(domain.EntityQuote, after.ID, after.Items)
		case domain.Invoice:
			flag(domain.EntityInvoice, after.ID, "total_amount", after.TotalAmount)
			items(domain.EntityInvoice, after.ID, after.Items)
		}
	}
	return res, nil
}
