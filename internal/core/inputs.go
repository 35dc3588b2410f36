package core

import (
	"bizdesk/pkg/domain"
	"fmt"
)

// Request payloads. Pointer fields distinguish "absent" from "empty" so updates
// keep prior values for absent keys. Numeric fields stay untyped until they are
// coerced, which lets numeric strings through and reports bad values as
// domain.InputError.

// ClientInput carries client fields.
type ClientInput struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Company *string `json:"company"`
	Notes   *string `json:"notes"`
}

// ServiceInput carries catalogue service fields.
type ServiceInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       any     `json:"price"`
	Unit        *string `json:"unit"`
}

// LineItemInput carries a quote or invoice line. Missing name, price or unit
// are taken from the referenced service at write time.
type LineItemInput struct {
	ServiceID int     `json:"service_id"`
	Name      *string `json:"name"`
	Price     any     `json:"price"`
	Unit      *string `json:"unit"`
	Quantity  any     `json:"quantity"`
}

// QuoteInput carries quote fields.
type QuoteInput struct {
	ClientID    *int            `json:"client_id"`
	QuoteDate   *string         `json:"quote_date"`
	Status      *string         `json:"status"`
	TotalAmount any             `json:"total_amount"`
	Notes       *string         `json:"notes"`
	Items       []LineItemInput `json:"quote_items"`
}

// ProjectInput carries project fields.
type ProjectInput struct {
	ProjectName *string `json:"project_name"`
	ClientID    *int    `json:"client_id"`
	Description *string `json:"description"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Status      *string `json:"status"`
	Notes       *string `json:"notes"`
}

// InvoiceInput carries invoice fields.
type InvoiceInput struct {
	ClientID    *int            `json:"client_id"`
	QuoteID     *int            `json:"quote_id"`
	ProjectID   *int            `json:"project_id"`
	InvoiceDate *string         `json:"invoice_date"`
	DueDate     *string         `json:"due_date"`
	Status      *string         `json:"status"`
	TotalAmount any             `json:"total_amount"`
	Notes       *string         `json:"notes"`
	Items       []LineItemInput `json:"invoice_items"`
}

// TaskInput carries task fields.
type TaskInput struct {
	ProjectID *int    `json:"project_id"`
	Name      *string `json:"name"`
	Category  *string `json:"category"`
	DueDate   *string `json:"due_date"`
	Status    *string `json:"status"`
	Priority  *string `json:"priority"`
	Progress  any     `json:"progress"`
}

// BugInput carries bug fields.
type BugInput struct {
	ProjectID    *int    `json:"project_id"`
	Name         *string `json:"name"`
	Severity     *string `json:"severity"`
	Status       *string `json:"status"`
	ReportedDate *string `json:"reported_date"`
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDate(field string, dst *string, v *string) error {
	if v == nil {
		return nil
	}
	if err := domain.CheckDate(field, *v); err != nil {
		return err
	}
	*dst = *v
	return nil
}

func pickID(incoming *int, stored int) int {
	if incoming != nil {
		return *incoming
	}
	return stored
}

func (in ClientInput) apply(c *domain.Client) {
	setString(&c.Name, in.Name)
	setString(&c.Email, in.Email)
	setString(&c.Phone, in.Phone)
	setString(&c.Company, in.Company)
	setString(&c.Notes, in.Notes)
}

func (in ServiceInput) apply(s *domain.Service, create bool) error {
	setString(&s.Name, in.Name)
	setString(&s.Description, in.Description)
	setString(&s.Unit, in.Unit)
	if create || in.Price != nil {
		price, err := domain.Decimal("price", in.Price)
		if err != nil {
			return err
		}
		s.Price = price
	}
	return nil
}

func (in QuoteInput) apply(q *domain.Quote, r Resolver, create bool) error {
	if err := setDate("quote_date", &q.QuoteDate, in.QuoteDate); err != nil {
		return err
	}
	setString(&q.Status, in.Status)
	setString(&q.Notes, in.Notes)
	if create || in.TotalAmount != nil {
		total, err := domain.Decimal("total_amount", in.TotalAmount)
		if err != nil {
			return err
		}
		q.TotalAmount = total
	}
	if create || in.Items != nil {
		items, err := freezeItems(r, "quote_items", in.Items)
		if err != nil {
			return err
		}
		q.Items = items
	}
	return nil
}

func (in ProjectInput) apply(p *domain.Project) error {
	setString(&p.ProjectName, in.ProjectName)
	setString(&p.Description, in.Description)
	setString(&p.Status, in.Status)
	setString(&p.Notes, in.Notes)
	if err := setDate("start_date", &p.StartDate, in.StartDate); err != nil {
		return err
	}
	return setDate("end_date", &p.EndDate, in.EndDate)
}

func (in InvoiceInput) apply(i *domain.Invoice, r Resolver, create bool) error {
	if err := setDate("invoice_date", &i.InvoiceDate, in.InvoiceDate); err != nil {
		return err
	}
	if err := setDate("due_date", &i.DueDate, in.DueDate); err != nil {
		return err
	}
	setString(&i.Status, in.Status)
	setString(&i.Notes, in.Notes)
	if in.QuoteID != nil {
		i.QuoteID = domain.IntRef(*in.QuoteID)
	}
	if in.ProjectID != nil {
		i.ProjectID = domain.IntRef(*in.ProjectID)
	}
	if create || in.TotalAmount != nil {
		total, err := domain.Decimal("total_amount", in.TotalAmount)
		if err != nil {
			return err
		}
		i.TotalAmount = total
	}
	if create || in.Items != nil {
		items, err := freezeItems(r, "invoice_items", in.Items)
		if err != nil {
			return err
		}
		i.Items = items
	}
	return nil
}

func (in TaskInput) apply(t *domain.Task) error {
	setString(&t.Name, in.Name)
	setString(&t.Category, in.Category)
	setString(&t.Status, in.Status)
	setString(&t.Priority, in.Priority)
	if err := setDate("due_date", &t.DueDate, in.DueDate); err != nil {
		return err
	}
	progress, err := domain.OptionalDecimal("progress", in.Progress, t.Progress)
	if err != nil {
		return err
	}
	t.Progress = progress
	return nil
}

func (in BugInput) apply(b *domain.Bug) error {
	setString(&b.Name, in.Name)
	setString(&b.Severity, in.Severity)
	setString(&b.Status, in.Status)
	return setDate("reported_date", &b.ReportedDate, in.ReportedDate)
}

// freezeItems copies line items into their stored form. Values the caller
// omits are filled from the service as it is right now; later service edits
// never reach the stored item.
func freezeItems(r Resolver, field string, in []LineItemInput) ([]domain.LineItem, error) {
	out := make([]domain.LineItem, 0, len(in))
	for idx, item := range in {
		line := domain.LineItem{ServiceID: item.ServiceID, Quantity: 1}
		svc, known := r.Service(item.ServiceID)
		if known {
			line.Name, line.Price, line.Unit = svc.Name, svc.Price, svc.Unit
		}
		setString(&line.Name, item.Name)
		setString(&line.Unit, item.Unit)
		prefix := fmt.Sprintf("%s[%d]", field, idx)
		if item.Price != nil || !known {
			price, err := domain.Decimal(prefix+".price", item.Price)
			if err != nil {
				return nil, err
			}
			line.Price = price
		}
		quantity, err := domain.OptionalDecimal(prefix+".quantity", item.Quantity, 1)
		if err != nil {
			return nil, err
		}
		line.Quantity = quantity
		out = append(out, line)
	}
	return out, nil
}
