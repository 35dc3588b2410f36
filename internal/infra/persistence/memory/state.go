package memory

import (
	"bizdesk/pkg/domain"
)

// record is satisfied by every domain entity stored in a table.
type record interface {
	RecordID() int
}

// table keeps records of one collection in insertion order.
type table[T record] struct {
	rows  []T
	clone func(T) T
}

func newTable[T record](clone func(T) T) table[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return table[T]{clone: clone}
}

// nextID returns max(existing ids)+1, or 1 for an empty table.
func (t table[T]) nextID() int {
	highest := 0
	for _, r := range t.rows {
		if id := r.RecordID(); id > highest {
			highest = id
		}
	}
	return highest + 1
}

func (t table[T]) index(id int) int {
	for i, r := range t.rows {
		if r.RecordID() == id {
			return i
		}
	}
	return -1
}

func (t table[T]) find(id int) (T, bool) {
	if idx := t.index(id); idx >= 0 {
		return t.clone(t.rows[idx]), true
	}
	var zero T
	return zero, false
}

func (t table[T]) list() []T {
	out := make([]T, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, t.clone(r))
	}
	return out
}

func (t table[T]) copy() table[T] {
	return table[T]{rows: t.list(), clone: t.clone}
}

func (t *table[T]) load(rows []T) {
	t.rows = make([]T, 0, len(rows))
	for _, r := range rows {
		t.rows = append(t.rows, t.clone(r))
	}
}

func (t *table[T]) insert(v T) {
	t.rows = append(t.rows, t.clone(v))
}

func (t *table[T]) remove(id int) (T, bool) {
	idx := t.index(id)
	if idx < 0 {
		var zero T
		return zero, false
	}
	removed := t.rows[idx]
	t.rows = append(t.rows[:idx:idx], t.rows[idx+1:]...)
	return removed, true
}

// removeWhere drops every record matching fn and returns them in order.
func (t *table[T]) removeWhere(fn func(T) bool) []T {
	var removed []T
	kept := t.rows[:0:0]
	for _, r := range t.rows {
		if fn(r) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	t.rows = kept
	return removed
}

type memoryState struct {
	users    table[domain.User]
	clients  table[domain.Client]
	services table[domain.Service]
	quotes   table[domain.Quote]
	projects table[domain.Project]
	invoices table[domain.Invoice]
	tasks    table[domain.Task]
	bugs     table[domain.Bug]
}

func newMemoryState() memoryState {
	return memoryState{
		users:    newTable[domain.User](nil),
		clients:  newTable[domain.Client](nil),
		services: newTable[domain.Service](nil),
		quotes:   newTable(cloneQuote),
		projects: newTable[domain.Project](nil),
		invoices: newTable(cloneInvoice),
		tasks:    newTable[domain.Task](nil),
		bugs:     newTable[domain.Bug](nil),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		users:    s.users.copy(),
		clients:  s.clients.copy(),
		services: s.services.copy(),
		quotes:   s.quotes.copy(),
		projects: s.projects.copy(),
		invoices: s.invoices.copy(),
		tasks:    s.tasks.copy(),
		bugs:     s.bugs.copy(),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	return Snapshot{
		Users:    state.users.list(),
		Clients:  state.clients.list(),
		Services: state.services.list(),
		Quotes:   state.quotes.list(),
		Projects: state.projects.list(),
		Invoices: state.invoices.list(),
		Tasks:    state.tasks.list(),
		Bugs:     state.bugs.list(),
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	state.users.load(s.Users)
	state.clients.load(s.Clients)
	state.services.load(s.Services)
	state.quotes.load(s.Quotes)
	state.projects.load(s.Projects)
	state.invoices.load(s.Invoices)
	state.tasks.load(s.Tasks)
	state.bugs.load(s.Bugs)
	return state
}

func cloneQuote(q domain.Quote) domain.Quote {
	q.Items = domain.CloneItems(q.Items)
	return q
}

func cloneInvoice(i domain.Invoice) domain.Invoice {
	i.Items = domain.CloneItems(i.Items)
	if i.QuoteID != nil {
		i.QuoteID = domain.IntRef(*i.QuoteID)
	}
	if i.ProjectID != nil {
		i.ProjectID = domain.IntRef(*i.ProjectID)
	}
	return i
}
