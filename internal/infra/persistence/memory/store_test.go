package memory

import (
	"bizdesk/pkg/domain"
	"context"
	"errors"
	"testing"
)

func mustRun(t *testing.T, store *Store, fn func(tx domain.Transaction) error) domain.Result {
	t.Helper()
	res, err := store.RunInTransaction(context.Background(), fn)
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	return res
}

func seedGraph(t *testing.T, store *Store) {
	t.Helper()
	mustRun(t, store, func(tx domain.Transaction) error {
		for _, name := range []string{"Alice", "Bob"} {
			if _, err := tx.CreateClient(domain.Client{Name: name}); err != nil {
				return err
			}
		}
		if _, err := tx.CreateQuote(domain.Quote{ClientID: 1}); err != nil {
			return err
		}
		if _, err := tx.CreateInvoice(domain.Invoice{ClientID: 1}); err != nil {
			return err
		}
		if _, err := tx.CreateProject(domain.Project{ProjectName: "Site", ClientID: 1}); err != nil {
			return err
		}
		if _, err := tx.CreateProject(domain.Project{ProjectName: "App", ClientID: 2}); err != nil {
			return err
		}
		for _, projectID := range []int{1, 1, 2} {
			if _, err := tx.CreateTask(domain.Task{ProjectID: projectID}); err != nil {
				return err
			}
			if _, err := tx.CreateBug(domain.Bug{ProjectID: projectID}); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	mustRun(t, store, func(tx domain.Transaction) error {
		if _, ok := tx.FindClient(1); ok {
			t.Fatalf("expected missing client lookup")
		}
		created, err := tx.CreateClient(domain.Client{ID: 42, Name: "Acme"})
		if err != nil {
			return err
		}
		if created.ID != 1 {
			t.Fatalf("expected assigned id 1, got %d", created.ID)
		}
		if len(tx.Snapshot().ListClients()) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if len(store.ExportState().Clients) != 1 {
		t.Fatalf("expected persisted client")
	}
	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ExportState().Clients) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if c := store.ExportState().Clients; len(c) != 1 || c[0].ID != 1 || c[0].Name != "Acme" {
		t.Fatalf("expected restored state, got %+v", c)
	}
	err := store.View(ctx, func(v domain.TransactionView) error {
		if len(v.ListClients()) != 1 {
			t.Fatalf("expected client in view")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStoreFailedTransactionAppliesNothing(t *testing.T) {
	store := NewStore(nil)
	sentinel := errors.New("abort")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateClient(domain.Client{Name: "ghost"}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if len(store.ExportState().Clients) != 0 {
		t.Fatalf("expected rollback")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}}, nil
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateClient(domain.Client{Name: "Fail"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) || !violation.Result.HasBlocking() {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(store.ExportState().Clients) != 0 {
		t.Fatalf("expected blocked transaction to roll back")
	}
}

func TestNextIDIsMaxPlusOne(t *testing.T) {
	store := NewStore(nil)
	mustRun(t, store, func(tx domain.Transaction) error {
		for i := 0; i < 3; i++ {
			if _, err := tx.CreateClient(domain.Client{}); err != nil {
				return err
			}
		}
		return nil
	})
	mustRun(t, store, func(tx domain.Transaction) error {
		_, err := tx.Delete(domain.EntityClient, 2)
		return err
	})
	var created domain.Client
	mustRun(t, store, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateClient(domain.Client{Name: "next"})
		return err
	})
	if created.ID != 4 {
		t.Fatalf("expected id 4 after deleting a middle record, got %d", created.ID)
	}
	mustRun(t, store, func(tx domain.Transaction) error {
		_, err := tx.Delete(domain.EntityClient, 4)
		return err
	})
	mustRun(t, store, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateClient(domain.Client{Name: "reuse"})
		return err
	})
	if created.ID != 4 {
		t.Fatalf("expected max id to be reused after deleting the highest record, got %d", created.ID)
	}
	clients := store.ExportState().Clients
	if len(clients) != 3 || clients[0].ID != 1 || clients[1].ID != 3 || clients[2].ID != 4 {
		t.Fatalf("expected insertion order to be preserved, got %+v", clients)
	}
}

func TestUpdateKeepsIDAndRecordsChange(t *testing.T) {
	store := NewStore(nil)
	seedGraph(t, store)
	mustRun(t, store, func(tx domain.Transaction) error {
		updated, err := tx.UpdateClient(1, func(c *domain.Client) error {
			c.Name = "Alicia"
			return nil
		})
		if err != nil {
			return err
		}
		if updated.Name != "Alicia" || updated.ID != 1 {
			t.Fatalf("unexpected update %+v", updated)
		}
		if _, err := tx.UpdateClient(1, func(c *domain.Client) error {
			c.ID = 99
			return nil
		}); err == nil {
			t.Fatalf("expected id change to be rejected")
		}
		_, err = tx.UpdateClient(77, func(*domain.Client) error { return nil })
		if !domain.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		return nil
	})
}

func TestDeleteClientCascadesDirectChildrenOnly(t *testing.T) {
	store := NewStore(nil)
	seedGraph(t, store)
	var report domain.CascadeReport
	mustRun(t, store, func(tx domain.Transaction) error {
		var err error
		report, err = tx.Delete(domain.EntityClient, 1)
		return err
	})
	if report.Removed[domain.EntityQuote] != 1 || report.Removed[domain.EntityInvoice] != 1 || report.Removed[domain.EntityProject] != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if _, ok := report.Removed[domain.EntityTask]; ok {
		t.Fatalf("expected tasks untouched by default cascade")
	}
	snap := store.ExportState()
	if len(snap.Projects) != 1 || snap.Projects[0].ClientID != 2 {
		t.Fatalf("expected only client 2 project to remain, got %+v", snap.Projects)
	}
	if len(snap.Tasks) != 3 || len(snap.Bugs) != 3 {
		t.Fatalf("expected grandchildren to survive, got %d tasks %d bugs", len(snap.Tasks), len(snap.Bugs))
	}
}

func TestDeleteClientTransitiveCascade(t *testing.T) {
	store := NewStore(nil, WithTransitiveCascade(true))
	if !store.TransitiveCascade() {
		t.Fatalf("expected transitive option applied")
	}
	seedGraph(t, store)
	var report domain.CascadeReport
	mustRun(t, store, func(tx domain.Transaction) error {
		var err error
		report, err = tx.Delete(domain.EntityClient, 1)
		return err
	})
	if report.Removed[domain.EntityTask] != 2 || report.Removed[domain.EntityBug] != 2 {
		t.Fatalf("expected project 1 tasks and bugs removed, got %+v", report)
	}
	snap := store.ExportState()
	for _, task := range snap.Tasks {
		if task.ProjectID == 1 {
			t.Fatalf("expected no task for deleted project, got %+v", task)
		}
	}
	if report.Total() != 7 {
		t.Fatalf("expected 7 dependents removed, got %d", report.Total())
	}
}

func TestDeleteProjectCascade(t *testing.T) {
	store := NewStore(nil)
	seedGraph(t, store)
	mustRun(t, store, func(tx domain.Transaction) error {
		_, err := tx.Delete(domain.EntityProject, 1)
		return err
	})
	for _, task := range store.ExportState().Tasks {
		if task.ProjectID == 1 {
			t.Fatalf("task %d still references deleted project", task.ID)
		}
	}
	for _, bug := range store.ExportState().Bugs {
		if bug.ProjectID == 1 {
			t.Fatalf("bug %d still references deleted project", bug.ID)
		}
	}
	if len(store.ExportState().Tasks) != 1 || len(store.ExportState().Bugs) != 1 {
		t.Fatalf("expected unrelated children to survive")
	}
	if len(store.ExportState().Clients) != 2 {
		t.Fatalf("expected clients untouched")
	}
}

func TestDeleteLeafAndMissing(t *testing.T) {
	store := NewStore(nil)
	seedGraph(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.Delete(domain.EntityBug, 99)
		return err
	})
	var nf domain.NotFoundError
	if !errors.As(err, &nf) || nf.Entity != domain.EntityBug || nf.ID != 99 {
		t.Fatalf("expected bug not found, got %v", err)
	}
	mustRun(t, store, func(tx domain.Transaction) error {
		report, err := tx.Delete(domain.EntityQuote, 1)
		if err == nil && report.Total() != 0 {
			t.Fatalf("quotes have no dependents")
		}
		return err
	})
}

func TestSnapshotsAreDeepCopies(t *testing.T) {
	store := NewStore(nil)
	mustRun(t, store, func(tx domain.Transaction) error {
		_, err := tx.CreateInvoice(domain.Invoice{
			ClientID:  1,
			QuoteID:   domain.IntRef(3),
			ProjectID: domain.IntRef(4),
			Items:     []domain.LineItem{{ServiceID: 1, Price: 10}},
		})
		return err
	})
	snap := store.ExportState()
	snap.Invoices[0].Items[0].Price = 999
	*snap.Invoices[0].QuoteID = 12
	again := store.ExportState()
	if again.Invoices[0].Items[0].Price != 10 || *again.Invoices[0].QuoteID != 3 {
		t.Fatalf("expected export to be isolated from caller mutation")
	}
}

func TestUsersUniqueAndLookup(t *testing.T) {
	store := NewStore(nil)
	mustRun(t, store, func(tx domain.Transaction) error {
		_, err := tx.CreateUser(domain.User{Username: "admin", Role: domain.RoleAdmin})
		return err
	})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateUser(domain.User{Username: "admin"})
		return err
	})
	if err == nil {
		t.Fatalf("expected duplicate username error")
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		if u, ok := v.FindUserByUsername("admin"); !ok || u.ID != 1 {
			t.Fatalf("expected admin lookup")
		}
		if _, ok := v.FindUserByUsername("Admin"); ok {
			t.Fatalf("expected case-sensitive match")
		}
		return nil
	})
}

func TestBucketDigestsReportOnlyChanges(t *testing.T) {
	var digests BucketDigests
	first := map[string][]byte{"clients": []byte(`[]`), "tasks": []byte(`[]`)}
	if got := digests.Changed(first); len(got) != 2 {
		t.Fatalf("expected every bucket before the first mark, got %v", got)
	}
	digests.Mark(first)

	next := map[string][]byte{"clients": []byte(`[]`), "tasks": []byte(`[{"id":1}]`)}
	got := digests.Changed(next)
	if len(got) != 1 || string(got["tasks"]) != `[{"id":1}]` {
		t.Fatalf("expected only tasks to change, got %v", got)
	}
}
