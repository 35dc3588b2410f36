package core

import (
	"bizdesk/internal/infra/persistence/memory"
	"bizdesk/internal/observability"
	"bizdesk/pkg/domain"
	"context"
	"log/slog"
	"reflect"
	"time"
)

// Service exposes the transactional CRUD use cases over every collection. It
// validates parent references before a write, refreshes denormalized fields
// and reports each use case to the metrics recorder and observer.
type Service struct {
	store    domain.PersistentStore
	metrics  observability.MetricsRecorder
	observer observability.UseCaseObserver
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMetricsRecorder sets the recorder receiving per-operation observations.
func WithMetricsRecorder(m observability.MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithUseCaseObserver sets the observer receiving use-case events.
func WithUseCaseObserver(o observability.UseCaseObserver) ServiceOption {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the logger used for rule warnings.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		metrics:  observability.NoopMetricsRecorder{},
		observer: observability.NoopUseCaseObserver{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *domain.RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

func (s *Service) observe(ctx context.Context, op string, fields map[string]any, fn func() error) error {
	started := time.Now()
	err := fn()
	elapsed := time.Since(started)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	s.observer.ObserveUseCase(ctx, observability.UseCaseEvent{
		Name:      op,
		Duration:  elapsed,
		Success:   err == nil,
		Err:       err,
		Fields:    fields,
		StartedAt: started,
	})
	return err
}

func (s *Service) read(ctx context.Context, op string, fields map[string]any, fn func(domain.TransactionView) error) error {
	return s.observe(ctx, op, fields, func() error {
		return s.store.View(ctx, fn)
	})
}

func (s *Service) write(ctx context.Context, op string, fields map[string]any, fn func(domain.Transaction) error) (domain.Result, error) {
	var res domain.Result
	err := s.observe(ctx, op, fields, func() error {
		var err error
		res, err = s.store.RunInTransaction(ctx, fn)
		return err
	})
	for _, v := range res.Violations {
		s.logger.WarnContext(ctx, "rule violation",
			"operation", op,
			"rule", v.Rule,
			"severity", string(v.Severity),
			"entity", string(v.Entity),
			"entity_id", v.EntityID,
			"message", v.Message,
		)
	}
	return res, err
}

func idField(id int) map[string]any { return map[string]any{"id": id} }

// Delete removes a record and its dependents as declared by the cascade graph.
func (s *Service) Delete(ctx context.Context, entity domain.EntityType, id int) (domain.CascadeReport, domain.Result, error) {
	var report domain.CascadeReport
	res, err := s.write(ctx, "delete_"+string(entity), idField(id), func(tx domain.Transaction) error {
		var err error
		report, err = tx.Delete(entity, id)
		return err
	})
	return report, res, err
}

// Clients

// ListClients returns clients in insertion order.
func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	var out []domain.Client
	err := s.read(ctx, "list_clients", nil, func(v domain.TransactionView) error {
		out = v.ListClients()
		return nil
	})
	return out, err
}

// GetClient returns one client.
func (s *Service) GetClient(ctx context.Context, id int) (domain.Client, error) {
	var out domain.Client
	err := s.read(ctx, "get_client", idField(id), func(v domain.TransactionView) error {
		c, ok := v.FindClient(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityClient, ID: id}
		}
		out = c
		return nil
	})
	return out, err
}

// CreateClient persists a new client.
func (s *Service) CreateClient(ctx context.Context, in ClientInput) (domain.Client, domain.Result, error) {
	var created domain.Client
	res, err := s.write(ctx, "create_client", nil, func(tx domain.Transaction) error {
		var c domain.Client
		in.apply(&c)
		var err error
		created, err = tx.CreateClient(c)
		return err
	})
	return created, res, err
}

// UpdateClient merges the present fields into an existing client.
func (s *Service) UpdateClient(ctx context.Context, id int, in ClientInput) (domain.Client, domain.Result, error) {
	var updated domain.Client
	res, err := s.write(ctx, "update_client", idField(id), func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateClient(id, func(c *domain.Client) error {
			in.apply(c)
			return nil
		})
		return err
	})
	return updated, res, err
}

// Services

// ListServices returns catalogue services in insertion order.
func (s *Service) ListServices(ctx context.Context) ([]domain.Service, error) {
	var out []domain.Service
	err := s.read(ctx, "list_services", nil, func(v domain.TransactionView) error {
		out = v.ListServices()
		return nil
	})
	return out, err
}

// GetService returns one catalogue service.
func (s *Service) GetService(ctx context.Context, id int) (domain.Service, error) {
	var out domain.Service
	err := s.read(ctx, "get_service", idField(id), func(v domain.TransactionView) error {
		svc, ok := v.FindService(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityService, ID: id}
		}
		out = svc
		return nil
	})
	return out, err
}

// CreateService persists a new catalogue service; price is required.
func (s *Service) CreateService(ctx context.Context, in ServiceInput) (domain.Service, domain.Result, error) {
	var created domain.Service
	res, err := s.write(ctx, "create_service", nil, func(tx domain.Transaction) error {
		var svc domain.Service
		if err := in.apply(&svc, true); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateService(svc)
		return err
	})
	return created, res, err
}

// UpdateService merges the present fields into a catalogue service. Existing
// quote and invoice items keep the values they were written with.
func (s *Service) UpdateService(ctx context.Context, id int, in ServiceInput) (domain.Service, domain.Result, error) {
	var updated domain.Service
	res, err := s.write(ctx, "update_service", idField(id), func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateService(id, func(svc *domain.Service) error {
			return in.apply(svc, false)
		})
		return err
	})
	return updated, res, err
}

// Quotes

// ListQuotes returns enriched copies of every quote without touching storage.
func (s *Service) ListQuotes(ctx context.Context) ([]domain.Quote, error) {
	var out []domain.Quote
	err := s.read(ctx, "list_quotes", nil, func(v domain.TransactionView) error {
		out = NewEnricher(v).Quotes(v.ListQuotes())
		return nil
	})
	return out, err
}

// GetQuote returns the enriched quote and stores the refreshed fields.
func (s *Service) GetQuote(ctx context.Context, id int) (domain.Quote, error) {
	var out domain.Quote
	_, err := s.write(ctx, "get_quote", idField(id), func(tx domain.Transaction) error {
		current, ok := tx.FindQuote(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityQuote, ID: id}
		}
		out = NewEnricher(tx).Quote(current)
		return writeBack(current, out, func(q *domain.Quote) error {
			_, err := tx.UpdateQuote(id, func(stored *domain.Quote) error {
				*stored = *q
				return nil
			})
			return err
		})
	})
	return out, err
}

// CreateQuote validates the client and persists a new quote.
func (s *Service) CreateQuote(ctx context.Context, in QuoteInput) (domain.Quote, domain.Result, error) {
	var created domain.Quote
	res, err := s.write(ctx, "create_quote", nil, func(tx domain.Transaction) error {
		r := NewResolver(tx)
		clientID := pickID(in.ClientID, 0)
		client, ok := r.Client(clientID)
		if !ok {
			return domain.ReferenceError{Entity: domain.EntityQuote, Parent: domain.EntityClient, Field: "client_id", ID: clientID}
		}
		q := domain.Quote{ClientID: clientID, ClientName: client.Name, ClientCompany: client.Company}
		if err := in.apply(&q, r, true); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateQuote(q)
		return err
	})
	return created, res, err
}

// UpdateQuote validates the effective client and merges the present fields.
func (s *Service) UpdateQuote(ctx context.Context, id int, in QuoteInput) (domain.Quote, domain.Result, error) {
	var updated domain.Quote
	res, err := s.write(ctx, "update_quote", idField(id), func(tx domain.Transaction) error {
		current, ok := tx.FindQuote(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityQuote, ID: id}
		}
		r := NewResolver(tx)
		clientID := pickID(in.ClientID, current.ClientID)
		client, ok := r.Client(clientID)
		if !ok {
			return domain.ReferenceError{Entity: domain.EntityQuote, Parent: domain.EntityClient, Field: "client_id", ID: clientID}
		}
		var err error
		updated, err = tx.UpdateQuote(id, func(q *domain.Quote) error {
			if err := in.apply(q, r, false); err != nil {
				return err
			}
			q.ClientID, q.ClientName, q.ClientCompany = clientID, client.Name, client.Company
			return nil
		})
		return err
	})
	return updated, res, err
}

// Projects

// ListProjects returns enriched copies of every project.
func (s *Service) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var out []domain.Project
	err := s.read(ctx, "list_projects", nil, func(v domain.TransactionView) error {
		out = NewEnricher(v).Projects(v.ListProjects())
		return nil
	})
	return out, err
}

// GetProject returns the enriched project and stores the refreshed fields.
func (s *Service) GetProject(ctx context.Context, id int) (domain.Project, error) {
	var out domain.Project
	_, err := s.write(ctx, "get_project", idField(id), func(tx domain.Transaction) error {
		current, ok := tx.FindProject(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityProject, ID: id}
		}
		out = NewEnricher(tx).Project(current)
		return writeBack(current, out, func(p *domain.Project) error {
			_, err := tx.UpdateProject(id, func(stored *domain.Project) error {
				*stored = *p
				return nil
			})
			return err
		})
	})
	return out, err
}

// CreateProject validates the client and persists a new project.
func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (domain.Project, domain.Result, error) {
	var created domain.Project
	res, err := s.write(ctx, "create_project", nil, func(tx domain.Transaction) error {
		clientID := pickID(in.ClientID, 0)
		client, ok := NewResolver(tx).Client(clientID)
		if !ok {
			return domain.ReferenceError{Entity: domain.EntityProject, Parent: domain.EntityClient, Field: "client_id", ID: clientID}
		}
		p := domain.Project{ClientID: clientID, ClientName: client.Name, ClientCompany: client.Company}
		if err := in.apply(&p); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateProject(p)
		return err
	})
	return created, res, err
}

// UpdateProject validates the effective client and merges the present fields.
func (s *Service) UpdateProject(ctx context.Context, id int, in ProjectInput) (domain.Project, domain.Result, error) {
	var updated domain.Project
	res, err := s.write(ctx, "update_project", idField(id), func(tx domain.Transaction) error {
		current, ok := tx.FindProject(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityProject, ID: id}
		}
		clientID := pickID(in.ClientID, current.ClientID)
		client, ok := NewResolver(tx).Client(clientID)
		if !ok {
			return domain.ReferenceError{Entity: domain.EntityProject, Parent: domain.EntityClient, Field: "client_id", ID: clientID}
		}
		var err error
		updated, err = tx.UpdateProject(id, func(p *domain.Project) error {
			if err := in.apply(p); err != nil {
				return err
			}
			p.ClientID, p.ClientName, p.ClientCompany = clientID, client.Name, client.Company
			return nil
		})
		return err
	})
	return updated, res, err
}

// Invoices

// ListInvoices returns enriched copies of every invoice.
func (s *Service) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	var out []domain.Invoice
	err := s.read(ctx, "list_invoices", nil, func(v domain.TransactionView) error {
		out = NewEnricher(v).Invoices(v.ListInvoices())
		return nil
	})
	return out, err
}

// GetInvoice returns the enriched invoice and stores the refreshed fields.
func (s *Service) GetInvoice(ctx context.Context, id int) (domain.Invoice, error) {
	var out domain.Invoice
	_, err := s.write(ctx, "get_invoice", idField(id), func(tx domain.Transaction) error {
		current, ok := tx.FindInvoice(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityInvoice, ID: id}
		}
		out = NewEnricher(tx).Invoice(current)
		return writeBack(current, out, func(i *domain.Invoice) error {
			_, err := tx.UpdateInvoice(id, func(stored *domain.Invoice) error {
				*stored = *i
				return nil
			})
			return err
		})
	})
	return out, err
}

// CreateInvoice validates the client and persists a new invoice. Quote and
// project references are optional and stored even when they do not resolve.
func (s *Service) CreateInvoice(ctx context.Context, in InvoiceInput) (domain.Invoice, domain.Result, error) {
	var created domain.Invoice
	res, err := s.write(ctx, "create_invoice", nil, func(tx domain.Transaction) error {
		r := NewResolver(tx)
		clientID := pickID(in.ClientID, 0)
		client, ok := r.Client(clientID)
		if !ok {
			return domain.ReferenceError{Entity: domain.EntityInvoice, Parent: domain.EntityClient, Field: "client_id", ID: clientID}
		}
		inv := domain.Invoice{ClientID: clientID, ClientName: client.Name, ClientCompany: client.Company}
		if err := in.apply(&inv, r, true); err != nil {
			return err
		}
		inv.ProjectName = invoiceProjectName(r, inv.ProjectID)
		var err error
		created, err = tx.CreateInvoice(inv)
		return err
	})
	return created, res, err
}

// UpdateInvoice validates the effective client and merges the present fields.
func (s *Service) UpdateInvoice(ctx context.Context, id int, in InvoiceInput) (domain.Invoice, domain.Result, error) {
	var updated domain.Invoice
	res, err := s.write(ctx, "update_invoice", idField(id), func(tx domain.Transaction) error {
		current, ok := tx.FindInvoice(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityInvoice, ID: id}
		}
		r := NewResolver(tx)
		clientID := pickID(in.ClientID, current.ClientID)
		client, ok := r.Client(clientID)
		if !ok {
			return domain.ReferenceError{Entity: domain.EntityInvoice, Parent: domain.EntityClient, Field: "client_id", ID: clientID}
		}
		var err error
		updated, err = tx.UpdateInvoice(id, func(inv *domain.Invoice) error {
			if err := in.apply(inv, r, false); err != nil {
				return err
			}
			inv.ClientID, inv.ClientName, inv.ClientCompany = clientID, client.Name, client.Company
			inv.ProjectName = invoiceProjectName(r, inv.ProjectID)
			return nil
		})
		return err
	})
	return updated, res, err
}

func invoiceProjectName(r Resolver, projectID *int) string {
	if project, ok := r.OptionalProject(projectID); ok {
		return project.ProjectName
	}
	return ""
}

// Tasks

// ListTasks returns enriched copies of every task.
func (s *Service) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var out []domain.Task
	err := s.read(ctx, "list_tasks", nil, func(v domain.TransactionView) error {
		out = NewEnricher(v).Tasks(v.ListTasks())
		return nil
	})
	return out, err
}

// GetTask returns the enriched task and stores the refreshed fields.
func (s *Service) GetTask(ctx context.Context, id int) (domain.Task, error) {
	var out domain.Task
	_, err := s.write(ctx, "get_task", idField(id), func(tx domain.Transaction) error {
		current, ok := tx.FindTask(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityTask, ID: id}
		}
		out = NewEnricher(tx).Task(current)
		return writeBack(current, out, func(t *domain.Task) error {
			_, err := tx.UpdateTask(id, func(stored *domain.Task) error {
				*stored = *t
				return nil
			})
			return err
		})
	})
	return out, err
}

// CreateTask validates the project and persists a new task.
func (s *Service) CreateTask(ctx context.Context, in TaskInput) (domain.Task, domain.Result, error) {
	var created domain.Task
	res, err := s.write(ctx, "create_task", nil, func(tx domain.Transaction) error {
		projectID := pickID(in.ProjectID, 0)
		if _, ok := tx.FindProject(projectID); !ok {
			return domain.ReferenceError{Entity: domain.EntityTask, Parent: domain.EntityProject, Field: "project_id", ID: projectID}
		}
		t := domain.Task{ProjectID: projectID}
		if err := in.apply(&t); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateTask(NewEnricher(tx).Task(t))
		return err
	})
	return created, res, err
}

// UpdateTask validates the effective project and merges the present fields.
func (s *Service) UpdateTask(ctx context.Context, id int, in TaskInput) (domain.Task, domain.Result, error) {
	var updated domain.Task
	res, err := s.write(ctx, "update_task", idField(id), func(tx domain.Transaction) error {
		current, ok := tx.FindTask(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityTask, ID: id}
		}
		projectID := pickID(in.ProjectID, current.ProjectID)
		if _, ok := tx.FindProject(projectID); !ok {
			return domain.ReferenceError{Entity: domain.EntityTask, Parent: domain.EntityProject, Field: "project_id", ID: projectID}
		}
		enrich := NewEnricher(tx)
		var err error
		updated, err = tx.UpdateTask(id, func(t *domain.Task) error {
			if err := in.apply(t); err != nil {
				return err
			}
			t.ProjectID = projectID
			*t = enrich.Task(*t)
			return nil
		})
		return err
	})
	return updated, res, err
}

// Bugs

// ListBugs returns enriched copies of every bug.
func (s *Service) ListBugs(ctx context.Context) ([]domain.Bug, error) {
	var out []domain.Bug
	err := s.read(ctx, "list_bugs", nil, func(v domain.TransactionView) error {
		out = NewEnricher(v).Bugs(v.ListBugs())
		return nil
	})
	return out, err
}

// GetBug returns the enriched bug and stores the refreshed fields.
func (s *Service) GetBug(ctx context.Context, id int) (domain.Bug, error) {
	var out domain.Bug
	_, err := s.write(ctx, "get_bug", idField(id), func(tx domain.Transaction) error {
		current, ok := tx.FindBug(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityBug, ID: id}
		}
		out = NewEnricher(tx).Bug(current)
		return writeBack(current, out, func(b *domain.Bug) error {
			_, err := tx.UpdateBug(id, func(stored *domain.Bug) error {
				*stored = *b
				return nil
			})
			return err
		})
	})
	return out, err
}

// CreateBug validates the project and persists a new bug.
func (s *Service) CreateBug(ctx context.Context, in BugInput) (domain.Bug, domain.Result, error) {
	var created domain.Bug
	res, err := s.write(ctx, "create_bug", nil, func(tx domain.Transaction) error {
		projectID := pickID(in.ProjectID, 0)
		if _, ok := tx.FindProject(projectID); !ok {
			return domain.ReferenceError{Entity: domain.EntityBug, Parent: domain.EntityProject, Field: "project_id", ID: projectID}
		}
		b := domain.Bug{ProjectID: projectID}
		if err := in.apply(&b); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateBug(NewEnricher(tx).Bug(b))
		return err
	})
	return created, res, err
}

// UpdateBug validates the effective project and merges the present fields.
func (s *Service) UpdateBug(ctx context.Context, id int, in BugInput) (domain.Bug, domain.Result, error) {
	var updated domain.Bug
	res, err := s.write(ctx, "update_bug", idField(id), func(tx domain.Transaction) error {
		current, ok := tx.FindBug(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityBug, ID: id}
		}
		projectID := pickID(in.ProjectID, current.ProjectID)
		if _, ok := tx.FindProject(projectID); !ok {
			return domain.ReferenceError{Entity: domain.EntityBug, Parent: domain.EntityProject, Field: "project_id", ID: projectID}
		}
		enrich := NewEnricher(tx)
		var err error
		updated, err = tx.UpdateBug(id, func(b *domain.Bug) error {
			if err := in.apply(b); err != nil {
				return err
			}
			b.ProjectID = projectID
			*b = enrich.Bug(*b)
			return nil
		})
		return err
	})
	return updated, res, err
}

// writeBack stores the enriched copy only when enrichment changed something.
func writeBack[T any](current, enriched T, store func(*T) error) error {
	if reflect.DeepEqual(current, enriched) {
		return nil
	}
	return store(&enriched)
}
