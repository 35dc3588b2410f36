// Package domain defines the business records, value types, error taxonomy and
// rule evaluation primitives used by bizdesk.
package domain

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records, cascade reports and
// persistence buckets.
const (
	// EntityUser identifies an account able to open a session.
	EntityUser EntityType = "user"
	// EntityClient identifies a customer record.
	EntityClient EntityType = "client"
	// EntityService identifies a billable service in the catalogue.
	EntityService EntityType = "service"
	// EntityQuote identifies a quote issued to a client.
	EntityQuote EntityType = "quote"
	// EntityProject identifies a project delivered for a client.
	EntityProject EntityType = "project"
	// EntityInvoice identifies an invoice billed to a client.
	EntityInvoice EntityType = "invoice"
	// EntityTask identifies a unit of project work.
	EntityTask EntityType = "task"
	// EntityBug identifies a defect reported against a project.
	EntityBug EntityType = "bug"
)

// Collection returns the plural name used for routes and snapshot buckets.
func (e EntityType) Collection() string {
	return string(e) + "s"
}

// Label returns the capitalised singular name used in user-facing messages.
func (e EntityType) Label() string {
	if e == "" {
		return ""
	}
	b := []byte(e)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

// Role names the capability set attached to a user session.
type Role string

const (
	// RoleAdmin may read and write every collection.
	RoleAdmin Role = "admin"
	// RoleDemo may only read.
	RoleDemo Role = "demo"
)

// User is an account. PasswordHash holds a bcrypt hash and never leaves the
// process through the HTTP surface.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash,omitempty"`
	Role         Role   `json:"role"`
}

// Public returns a copy with the password hash cleared.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// Client is a customer.
type Client struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Notes   string `json:"notes"`
}

// Service is a catalogue entry copied into quote and invoice line items.
type Service struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Unit        string  `json:"unit"`
}

// LineItem is a priced row on a quote or invoice. Name, price and unit are
// frozen when the parent document is written.
type LineItem struct {
	ServiceID int     `json:"service_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Unit      string  `json:"unit"`
	Quantity  float64 `json:"quantity"`
}

// Quote is an offer to a client.
type Quote struct {
	ID            int        `json:"id"`
	ClientID      int        `json:"client_id"`
	ClientName    string     `json:"client_name"`
	ClientCompany string     `json:"client_company"`
	QuoteDate     string     `json:"quote_date"`
	Status        string     `json:"status"`
	TotalAmount   float64    `json:"total_amount"`
	Notes         string     `json:"notes"`
	Items         []LineItem `json:"quote_items"`
}

// Project is a body of work for a client.
type Project struct {
	ID            int    `json:"id"`
	ProjectName   string `json:"project_name"`
	ClientID      int    `json:"client_id"`
	ClientName    string `json:"client_name"`
	ClientCompany string `json:"client_company"`
	Description   string `json:"description"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Status        string `json:"status"`
	Notes         string `json:"notes"`
}

// Invoice bills a client, optionally against a quote and a project.
type Invoice struct {
	ID            int        `json:"id"`
	ClientID      int        `json:"client_id"`
	ClientName    string     `json:"client_name"`
	ClientCompany string     `json:"client_company"`
	QuoteID       *int       `json:"quote_id"`
	ProjectID     *int       `json:"project_id"`
	ProjectName   string     `json:"project_name"`
	InvoiceDate   string     `json:"invoice_date"`
	DueDate       string     `json:"due_date"`
	Status        string     `json:"status"`
	TotalAmount   float64    `json:"total_amount"`
	Notes         string     `json:"notes"`
	Items         []LineItem `json:"invoice_items"`
}

// Task is a unit of work inside a project.
type Task struct {
	ID          int     `json:"id"`
	ProjectID   int     `json:"project_id"`
	ProjectName string  `json:"project_name"`
	ClientName  string  `json:"client_name"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	DueDate     string  `json:"due_date"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	Progress    float64 `json:"progress"`
}

// Bug is a defect reported against a project.
type Bug struct {
	ID           int    `json:"id"`
	ProjectID    int    `json:"project_id"`
	ProjectName  string `json:"project_name"`
	ClientName   string `json:"client_name"`
	Name         string `json:"name"`
	Severity     string `json:"severity"`
	Status       string `json:"status"`
	ReportedDate string `json:"reported_date"`
}

// RecordID implementations let generic collection helpers address records.
func (u User) RecordID() int    { return u.ID }
func (c Client) RecordID() int  { return c.ID }
func (s Service) RecordID() int { return s.ID }
func (q Quote) RecordID() int   { return q.ID }
func (p Project) RecordID() int { return p.ID }
func (i Invoice) RecordID() int { return i.ID }
func (t Task) RecordID() int    { return t.ID }
func (b Bug) RecordID() int     { return b.ID }

// CloneItems returns a copy of the line items slice.
func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// IntRef returns a pointer to a copy of v.
func IntRef(v int) *int { return &v }

// Snapshot captures every collection in insertion order.
type Snapshot struct {
	Users    []User    `json:"users"`
	Clients  []Client  `json:"clients"`
	Services []Service `json:"services"`
	Quotes   []Quote   `json:"quotes"`
	Projects []Project `json:"projects"`
	Invoices []Invoice `json:"invoices"`
	Tasks    []Task    `json:"tasks"`
	Bugs     []Bug     `json:"bugs"`
}

// Empty reports whether the snapshot holds no records at all.
func (s Snapshot) Empty() bool {
	return len(s.Users)+len(s.Clients)+len(s.Services)+len(s.Quotes)+
		len(s.Projects)+len(s.Invoices)+len(s.Tasks)+len(s.Bugs) == 0
}

// Counts reports the number of records per collection.
func (s Snapshot) Counts() map[EntityType]int {
	return map[EntityType]int{
		EntityUser:    len(s.Users),
		EntityClient:  len(s.Clients),
		EntityService: len(s.Services),
		EntityQuote:   len(s.Quotes),
		EntityProject: len(s.Projects),
		EntityInvoice: len(s.Invoices),
		EntityTask:    len(s.Tasks),
		EntityBug:     len(s.Bugs),
	}
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)
