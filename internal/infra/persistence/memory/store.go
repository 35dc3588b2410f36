// Package memory provides the in-process transactional store that owns every
// bizdesk collection. The snapshotting backends wrap it.
package memory

import (
	"bizdesk/pkg/domain"
	"context"
	"fmt"
	"sync"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Snapshot aliases domain.Snapshot.
	Snapshot = domain.Snapshot
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// Option configures a Store.
type Option func(*Store)

// WithTransitiveCascade makes deletes follow the cascade graph to its full
// depth. By default only direct dependents are removed.
func WithTransitiveCascade(enabled bool) Option {
	return func(s *Store) { s.transitive = enabled }
}

// Store provides an in-memory transactional store for the business records.
type Store struct {
	mu         sync.RWMutex
	state      memoryState
	engine     *RulesEngine
	transitive bool
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// TransitiveCascade reports whether deletes follow the full cascade depth.
func (s *Store) TransitiveCascade() bool { return s.transitive }

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy is committed only when fn and every blocking rule succeed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, fmt.Errorf("evaluate rules: %w", err)
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return fn(newTransactionView(&snapshot))
}

// transactionView exposes a read-only view of a state to rules and readers.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListUsers() []domain.User       { return v.state.users.list() }
func (v transactionView) ListClients() []domain.Client   { return v.state.clients.list() }
func (v transactionView) ListServices() []domain.Service { return v.state.services.list() }
func (v transactionView) ListQuotes() []domain.Quote     { return v.state.quotes.list() }
func (v transactionView) ListProjects() []domain.Project { return v.state.projects.list() }
func (v transactionView) ListInvoices() []domain.Invoice { return v.state.invoices.list() }
func (v transactionView) ListTasks() []domain.Task       { return v.state.tasks.list() }
func (v transactionView) ListBugs() []domain.Bug         { return v.state.bugs.list() }

func (v transactionView) FindUser(id int) (domain.User, bool)       { return v.state.users.find(id) }
func (v transactionView) FindClient(id int) (domain.Client, bool)   { return v.state.clients.find(id) }
func (v transactionView) FindService(id int) (domain.Service, bool) { return v.state.services.find(id) }
func (v transactionView) FindQuote(id int) (domain.Quote, bool)     { return v.state.quotes.find(id) }
func (v transactionView) FindProject(id int) (domain.Project, bool) { return v.state.projects.find(id) }
func (v transactionView) FindInvoice(id int) (domain.Invoice, bool) { return v.state.invoices.find(id) }
func (v transactionView) FindTask(id int) (domain.Task, bool)       { return v.state.tasks.find(id) }
func (v transactionView) FindBug(id int) (domain.Bug, bool)         { return v.state.bugs.find(id) }

// FindUserByUsername performs an exact, case-sensitive match.
func (v transactionView) FindUserByUsername(username string) (domain.User, bool) {
	for _, u := range v.state.users.rows {
		if u.Username == username {
			return u, true
		}
	}
	return domain.User{}, false
}
