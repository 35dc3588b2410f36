package domain

import "context"

// TransactionView provides read-only access to a consistent state.
type TransactionView interface {
	ListUsers() []User
	ListClients() []Client
	ListServices() []Service
	ListQuotes() []Quote
	ListProjects() []Project
	ListInvoices() []Invoice
	ListTasks() []Task
	ListBugs() []Bug
	FindUser(id int) (User, bool)
	FindUserByUsername(username string) (User, bool)
	FindClient(id int) (Client, bool)
	FindService(id int) (Service, bool)
	FindQuote(id int) (Quote, bool)
	FindProject(id int) (Project, bool)
	FindInvoice(id int) (Invoice, bool)
	FindTask(id int) (Task, bool)
	FindBug(id int) (Bug, bool)
}

// Transaction exposes the mutations a persistence implementation must support
// within an atomic scope. Create assigns the next id (max+1) and ignores any id
// set on the argument. Delete applies the cascade graph.
type Transaction interface {
	TransactionView
	Snapshot() TransactionView
	CreateUser(User) (User, error)
	UpdateUser(id int, mutator func(*User) error) (User, error)
	CreateClient(Client) (Client, error)
	UpdateClient(id int, mutator func(*Client) error) (Client, error)
	CreateService(Service) (Service, error)
	UpdateService(id int, mutator func(*Service) error) (Service, error)
	CreateQuote(Quote) (Quote, error)
	UpdateQuote(id int, mutator func(*Quote) error) (Quote, error)
	CreateProject(Project) (Project, error)
	UpdateProject(id int, mutator func(*Project) error) (Project, error)
	CreateInvoice(Invoice) (Invoice, error)
	UpdateInvoice(id int, mutator func(*Invoice) error) (Invoice, error)
	CreateTask(Task) (Task, error)
	UpdateTask(id int, mutator func(*Task) error) (Task, error)
	CreateBug(Bug) (Bug, error)
	UpdateBug(id int, mutator func(*Bug) error) (Bug, error)
	Delete(entity EntityType, id int) (CascadeReport, error)
}

// PersistentStore is the abstraction shared by the in-memory store and the
// snapshotting backends layered on top of it.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ExportState() Snapshot
	ImportState(Snapshot)
}
