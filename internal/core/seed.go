package core

import (
	"bizdesk/pkg/domain"
	"context"
	"fmt"
)

// PasswordHasher turns a plaintext password into its stored form.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// SeedUser is a starter account with a plaintext password.
type SeedUser struct {
	Username string
	Password string
	Role     domain.Role
}

// DefaultSeedUsers are the starter accounts created on an empty store.
var DefaultSeedUsers = []SeedUser{
	{Username: "admin", Password: "password123", Role: domain.RoleAdmin},
	{Username: "demo", Password: "demo", Role: domain.RoleDemo},
}

// Seed populates an empty store with the starter dataset in one transaction.
// It reports whether anything was written; a store holding any record is left
// untouched.
func Seed(ctx context.Context, store domain.PersistentStore, hasher PasswordHasher) (bool, error) {
	if !store.ExportState().Empty() {
		return false, nil
	}
	users := make([]domain.User, 0, len(DefaultSeedUsers))
	for _, su := range DefaultSeedUsers {
		hash, err := hasher.Hash(su.Password)
		if err != nil {
			return false, fmt.Errorf("hash password for %s: %w", su.Username, err)
		}
		users = append(users, domain.User{Username: su.Username, PasswordHash: hash, Role: su.Role})
	}
	data := SeedData()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, u := range users {
			if _, err := tx.CreateUser(u); err != nil {
				return err
			}
		}
		for _, c := range data.Clients {
			if _, err := tx.CreateClient(c); err != nil {
				return err
			}
		}
		for _, s := range data.Services {
			if _, err := tx.CreateService(s); err != nil {
				return err
			}
		}
		for _, q := range data.Quotes {
			if _, err := tx.CreateQuote(q); err != nil {
				return err
			}
		}
		for _, p := range data.Projects {
			if _, err := tx.CreateProject(p); err != nil {
				return err
			}
		}
		for _, i := range data.Invoices {
			if _, err := tx.CreateInvoice(i); err != nil {
				return err
			}
		}
		for _, t := range data.Tasks {
			if _, err := tx.CreateTask(t); err != nil {
				return err
			}
		}
		for _, b := range data.Bugs {
			if _, err := tx.CreateBug(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed: %w", err)
	}
	return true, nil
}

// SeedData returns the starter business records (users excluded). Records are
// listed in id order so sequential creation reproduces their ids.
func SeedData() domain.Snapshot {
	websiteDesign := domain.LineItem{ServiceID: 1, Name: "Website Design", Price: 1500, Unit: "fixed", Quantity: 1}
	contentPages := domain.LineItem{ServiceID: 2, Name: "Content Writing (per page)", Price: 50, Unit: "per page", Quantity: 2}
	seo := domain.LineItem{ServiceID: 3, Name: "Monthly SEO Package", Price: 300, Unit: "per month", Quantity: 1}
	return domain.Snapshot{
		Clients: []domain.Client{
			{ID: 1, Name: "Alice Smith", Email: "alice@example.com", Phone: "123-456-7890", Company: "ABC Corp", Notes: "Active client, high potential."},
			{ID: 2, Name: "Bob Johnson", Email: "bob@example.com", Phone: "098-765-4321", Company: "XYZ Ltd", Notes: "New lead, follow up next week."},
			{ID: 3, Name: "Charlie Brown", Email: "charlie@example.com", Phone: "555-123-4567", Company: "Peanuts Inc.", Notes: "On hold, awaiting project details."},
		},
		Services: []domain.Service{
			{ID: 1, Name: "Website Design", Description: "Full responsive website design", Price: 1500, Unit: "fixed"},
			{ID: 2, Name: "Content Writing (per page)", Description: "SEO optimized content writing", Price: 50, Unit: "per page"},
			{ID: 3, Name: "Monthly SEO Package", Description: "Ongoing SEO optimization and reporting", Price: 300, Unit: "per month"},
			{ID: 4, Name: "Consultation", Description: "Hourly consultation session", Price: 100, Unit: "per hour"},
		},
		Quotes: []domain.Quote{
			{
				ID: 1, ClientID: 1, ClientName: "Alice Smith", ClientCompany: "ABC Corp",
				QuoteDate: "2023-01-15", Status: "Accepted", TotalAmount: 1600,
				Notes: "Initial quote for website redesign and 2 content pages.",
				Items: []domain.LineItem{websiteDesign, contentPages},
			},
			{
				ID: 2, ClientID: 2, ClientName: "Bob Johnson", ClientCompany: "XYZ Ltd",
				QuoteDate: "2023-02-01", Status: "Draft", TotalAmount: 300,
				Notes: "Draft for monthly SEO service.",
				Items: []domain.LineItem{seo},
			},
		},
		Projects: []domain.Project{
			{
				ID: 1, ProjectName: "ABC Corp Website Redesign", ClientID: 1, ClientName: "Alice Smith", ClientCompany: "ABC Corp",
				Description: "Complete overhaul of ABC Corp's existing website, including new design, content integration, and SEO.",
				StartDate:   "2023-03-01", EndDate: "2023-05-15", Status: "In Progress",
				Notes: "Phase 1 completed. Awaiting client feedback for Phase 2. Due date for next milestone: 2023-04-20.",
			},
			{
				ID: 2, ProjectName: "XYZ Ltd SEO Campaign", ClientID: 2, ClientName: "Bob Johnson", ClientCompany: "XYZ Ltd",
				Description: "Launch and manage a 6-month SEO campaign to improve organic search rankings for key terms.",
				StartDate:   "2023-03-10", EndDate: "2023-09-10", Status: "Planning",
				Notes: "Initial keyword research complete. Awaiting content plan approval.",
			},
		},
		Invoices: []domain.Invoice{
			{
				ID: 1, ClientID: 1, ClientName: "Alice Smith", ClientCompany: "ABC Corp",
				QuoteID: domain.IntRef(1), ProjectID: domain.IntRef(1),
				InvoiceDate: "2023-05-20", DueDate: "2023-06-20", Status: "Paid", TotalAmount: 1600,
				Notes: "Final invoice for website redesign project.",
				Items: []domain.LineItem{websiteDesign, contentPages},
			},
			{
				ID: 2, ClientID: 2, ClientName: "Bob Johnson", ClientCompany: "XYZ Ltd",
				QuoteID: domain.IntRef(2), ProjectID: domain.IntRef(2),
				InvoiceDate: "2023-03-15", DueDate: "2023-04-15", Status: "Sent", TotalAmount: 300,
				Notes: "Invoice for first month of SEO services.",
				Items: []domain.LineItem{seo},
			},
		},
		Tasks: []domain.Task{
			{ID: 1, ProjectID: 1, Name: "Design Homepage Mockup", Category: "Design", DueDate: "2023-03-10", Status: "Completed", Priority: "High", Progress: 100},
			{ID: 2, ProjectID: 1, Name: "Develop User Authentication", Category: "Backend", DueDate: "2023-03-25", Status: "In Progress", Priority: "High", Progress: 70},
			{ID: 3, ProjectID: 2, Name: "Keyword Research for SEO", Category: "SEO", DueDate: "2023-03-15", Status: "Completed", Priority: "Medium", Progress: 100},
			{ID: 4, ProjectID: 2, Name: "Content Plan Creation", Category: "Content", DueDate: "2023-03-30", Status: "Planning", Priority: "Medium", Progress: 20},
			{ID: 5, ProjectID: 1, Name: "Implement Payment Gateway", Category: "Backend", DueDate: "2023-04-10", Status: "Pending", Priority: "High", Progress: 0},
		},
		Bugs: []domain.Bug{
			{ID: 1, ProjectID: 1, Name: "Login button not responsive", Severity: "High", Status: "Open", ReportedDate: "2023-03-20"},
			{ID: 2, ProjectID: 2, Name: "SEO report export error", Severity: "Medium", Status: "Closed", ReportedDate: "2023-03-22"},
		},
	}
}
