package memory

import (
	"bizdesk/pkg/domain"
	"fmt"
	"slices"
)

// transaction represents a mutation set applied to a cloned store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
}

func (tx *transaction) view() transactionView {
	return transactionView{state: &tx.state}
}

// helper to record and append change entries.
func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) ListUsers() []domain.User       { return tx.view().ListUsers() }
func (tx *transaction) ListClients() []domain.Client   { return tx.view().ListClients() }
func (tx *transaction) ListServices() []domain.Service { return tx.view().ListServices() }
func (tx *transaction) ListQuotes() []domain.Quote     { return tx.view().ListQuotes() }
func (tx *transaction) ListProjects() []domain.Project { return tx.view().ListProjects() }
func (tx *transaction) ListInvoices() []domain.Invoice { return tx.view().ListInvoices() }
func (tx *transaction) ListTasks() []domain.Task       { return tx.view().ListTasks() }
func (tx *transaction) ListBugs() []domain.Bug         { return tx.view().ListBugs() }

func (tx *transaction) FindUser(id int) (domain.User, bool)       { return tx.view().FindUser(id) }
func (tx *transaction) FindClient(id int) (domain.Client, bool)   { return tx.view().FindClient(id) }
func (tx *transaction) FindService(id int) (domain.Service, bool) { return tx.view().FindService(id) }
func (tx *transaction) FindQuote(id int) (domain.Quote, bool)     { return tx.view().FindQuote(id) }
func (tx *transaction) FindProject(id int) (domain.Project, bool) { return tx.view().FindProject(id) }
func (tx *transaction) FindInvoice(id int) (domain.Invoice, bool) { return tx.view().FindInvoice(id) }
func (tx *transaction) FindTask(id int) (domain.Task, bool)       { return tx.view().FindTask(id) }
func (tx *transaction) FindBug(id int) (domain.Bug, bool)         { return tx.view().FindBug(id) }

func (tx *transaction) FindUserByUsername(username string) (domain.User, bool) {
	return tx.view().FindUserByUsername(username)
}

func applyCreate[T record](tx *transaction, tbl *table[T], entity domain.EntityType, v T) T {
	tbl.insert(v)
	tx.recordChange(Change{Entity: entity, Action: domain.ActionCreate, After: tbl.clone(v)})
	return tbl.clone(v)
}

func applyUpdate[T record](tx *transaction, tbl *table[T], entity domain.EntityType, id int, mutator func(*T) error) (T, error) {
	var zero T
	idx := tbl.index(id)
	if idx < 0 {
		return zero, domain.NotFoundError{Entity: entity, ID: id}
	}
	before := tbl.clone(tbl.rows[idx])
	current := tbl.clone(tbl.rows[idx])
	if err := mutator(&current); err != nil {
		return zero, err
	}
	if current.RecordID() != id {
		return zero, fmt.Errorf("%s %d: id is immutable", entity, id)
	}
	tbl.rows[idx] = tbl.clone(current)
	tx.recordChange(Change{Entity: entity, Action: domain.ActionUpdate, Before: before, After: tbl.clone(current)})
	return tbl.clone(current), nil
}

func applyDelete[T record](tx *transaction, tbl *table[T], entity domain.EntityType, id int) bool {
	removed, ok := tbl.remove(id)
	if ok {
		tx.recordChange(Change{Entity: entity, Action: domain.ActionDelete, Before: removed})
	}
	return ok
}

func applyDeleteWhere[T record](tx *transaction, tbl *table[T], entity domain.EntityType, match func(T) bool) []int {
	removed := tbl.removeWhere(match)
	ids := make([]int, 0, len(removed))
	for _, r := range removed {
		tx.recordChange(Change{Entity: entity, Action: domain.ActionDelete, Before: r})
		ids = append(ids, r.RecordID())
	}
	return ids
}

// CreateUser stores a new user; usernames are unique.
func (tx *transaction) CreateUser(u domain.User) (domain.User, error) {
	if _, exists := tx.FindUserByUsername(u.Username); exists {
		return domain.User{}, fmt.Errorf("user %q already exists", u.Username)
	}
	u.ID = tx.state.users.nextID()
	return applyCreate(tx, &tx.state.users, domain.EntityUser, u), nil
}

// UpdateUser mutates a user using the provided mutator function.
func (tx *transaction) UpdateUser(id int, mutator func(*domain.User) error) (domain.User, error) {
	return applyUpdate(tx, &tx.state.users, domain.EntityUser, id, mutator)
}

// CreateClient stores a new client.
func (tx *transaction) CreateClient(c domain.Client) (domain.Client, error) {
	c.ID = tx.state.clients.nextID()
	return applyCreate(tx, &tx.state.clients, domain.EntityClient, c), nil
}

// UpdateClient mutates a client using the provided mutator function.
func (tx *transaction) UpdateClient(id int, mutator func(*domain.Client) error) (domain.Client, error) {
	return applyUpdate(tx, &tx.state.clients, domain.EntityClient, id, mutator)
}

// CreateService stores a new catalogue service.
func (tx *transaction) CreateService(s domain.Service) (domain.Service, error) {
	s.ID = tx.state.services.nextID()
	return applyCreate(tx, &tx.state.services, domain.EntityService, s), nil
}

// UpdateService mutates a service using the provided mutator function.
func (tx *transaction) UpdateService(id int, mutator func(*domain.Service) error) (domain.Service, error) {
	return applyUpdate(tx, &tx.state.services, domain.EntityService, id, mutator)
}

// CreateQuote stores a new quote.
func (tx *transaction) CreateQuote(q domain.Quote) (domain.Quote, error) {
	q.ID = tx.state.quotes.nextID()
	return applyCreate(tx, &tx.state.quotes, domain.EntityQuote, q), nil
}

// UpdateQuote mutates a quote using the provided mutator function.
func (tx *transaction) UpdateQuote(id int, mutator func(*domain.Quote) error) (domain.Quote, error) {
	return applyUpdate(tx, &tx.state.quotes, domain.EntityQuote, id, mutator)
}

// CreateProject stores a new project.
func (tx *transaction) CreateProject(p domain.Project) (domain.Project, error) {
	p.ID = tx.state.projects.nextID()
	return applyCreate(tx, &tx.state.projects, domain.EntityProject, p), nil
}

// UpdateProject mutates a project using the provided mutator function.
func (tx *transaction) UpdateProject(id int, mutator func(*domain.Project) error) (domain.Project, error) {
	return applyUpdate(tx, &tx.state.projects, domain.EntityProject, id, mutator)
}

// CreateInvoice stores a new invoice.
func (tx *transaction) CreateInvoice(i domain.Invoice) (domain.Invoice, error) {
	i.ID = tx.state.invoices.nextID()
	return applyCreate(tx, &tx.state.invoices, domain.EntityInvoice, i), nil
}

// UpdateInvoice mutates an invoice using the provided mutator function.
func (tx *transaction) UpdateInvoice(id int, mutator func(*domain.Invoice) error) (domain.Invoice, error) {
	return applyUpdate(tx, &tx.state.invoices, domain.EntityInvoice, id, mutator)
}

// CreateTask stores a new task.
func (tx *transaction) CreateTask(t domain.Task) (domain.Task, error) {
	t.ID = tx.state.tasks.nextID()
	return applyCreate(tx, &tx.state.tasks, domain.EntityTask, t), nil
}

// UpdateTask mutates a task using the provided mutator function.
func (tx *transaction) UpdateTask(id int, mutator func(*domain.Task) error) (domain.Task, error) {
	return applyUpdate(tx, &tx.state.tasks, domain.EntityTask, id, mutator)
}

// CreateBug stores a new bug.
func (tx *transaction) CreateBug(b domain.Bug) (domain.Bug, error) {
	b.ID = tx.state.bugs.nextID()
	return applyCreate(tx, &tx.state.bugs, domain.EntityBug, b), nil
}

// UpdateBug mutates a bug using the provided mutator function.
func (tx *transaction) UpdateBug(id int, mutator func(*domain.Bug) error) (domain.Bug, error) {
	return applyUpdate(tx, &tx.state.bugs, domain.EntityBug, id, mutator)
}

// Delete removes the record and applies the cascade graph to its dependents.
func (tx *transaction) Delete(entity domain.EntityType, id int) (domain.CascadeReport, error) {
	report := domain.CascadeReport{Entity: entity, ID: id}
	var ok bool
	switch entity {
	case domain.EntityUser:
		ok = applyDelete(tx, &tx.state.users, entity, id)
	case domain.EntityClient:
		ok = applyDelete(tx, &tx.state.clients, entity, id)
	case domain.EntityService:
		ok = applyDelete(tx, &tx.state.services, entity, id)
	case domain.EntityQuote:
		ok = applyDelete(tx, &tx.state.quotes, entity, id)
	case domain.EntityProject:
		ok = applyDelete(tx, &tx.state.projects, entity, id)
	case domain.EntityInvoice:
		ok = applyDelete(tx, &tx.state.invoices, entity, id)
	case domain.EntityTask:
		ok = applyDelete(tx, &tx.state.tasks, entity, id)
	case domain.EntityBug:
		ok = applyDelete(tx, &tx.state.bugs, entity, id)
	default:
		return report, fmt.Errorf("unsupported entity %q", entity)
	}
	if !ok {
		return report, domain.NotFoundError{Entity: entity, ID: id}
	}
	tx.cascade(entity, []int{id}, &report)
	return report, nil
}

// cascade removes the dependents of the given parent ids. It descends past the
// first level only when the store is configured for transitive cascades.
func (tx *transaction) cascade(parent domain.EntityType, parentIDs []int, report *domain.CascadeReport) {
	for _, dep := range domain.Dependents(parent) {
		removed := tx.removeChildren(dep.Entity, parentIDs)
		report.Add(dep.Entity, len(removed))
		if tx.store.transitive && len(removed) > 0 {
			tx.cascade(dep.Entity, removed, report)
		}
	}
}

func (tx *transaction) removeChildren(entity domain.EntityType, parentIDs []int) []int {
	switch entity {
	case domain.EntityQuote:
		return applyDeleteWhere(tx, &tx.state.quotes, entity, func(q domain.Quote) bool {
			return slices.Contains(parentIDs, q.ClientID)
		})
	case domain.EntityProject:
		return applyDeleteWhere(tx, &tx.state.projects, entity, func(p domain.Project) bool {
			return slices.Contains(parentIDs, p.ClientID)
		})
	case domain.EntityInvoice:
		return applyDeleteWhere(tx, &tx.state.invoices, entity, func(i domain.Invoice) bool {
			return slices.Contains(parentIDs, i.ClientID)
		})
	case domain.EntityTask:
		return applyDeleteWhere(tx, &tx.state.tasks, entity, func(t domain.Task) bool {
			return slices.Contains(parentIDs, t.ProjectID)
		})
	case domain.EntityBug:
		return applyDeleteWhere(tx, &tx.state.bugs, entity, func(b domain.Bug) bool {
			return slices.Contains(parentIDs, b.ProjectID)
		})
	}
	panic(fmt.Errorf("memory store: no cascade accessor for %q", entity))
}
