package core

import "bizdesk/pkg/domain"

// Enricher refreshes denormalized display fields from the live parents. A
// parent that no longer resolves leaves the stored value in place.
type Enricher struct {
	resolve Resolver
}

// NewEnricher builds an enricher over view.
func NewEnricher(view domain.TransactionView) Enricher {
	return Enricher{resolve: NewResolver(view)}
}

// Quote refreshes client_name and client_company.
func (e Enricher) Quote(q domain.Quote) domain.Quote {
	if client, ok := e.resolve.Client(q.ClientID); ok {
		q.ClientName = client.Name
		q.ClientCompany = client.Company
	}
	return q
}

// Project refreshes client_name and client_company.
func (e Enricher) Project(p domain.Project) domain.Project {
	if client, ok := e.resolve.Client(p.ClientID); ok {
		p.ClientName = client.Name
		p.ClientCompany = client.Company
	}
	return p
}

// Invoice refreshes the client fields and, when the optional project
// resolves, project_name.
func (e Enricher) Invoice(i domain.Invoice) domain.Invoice {
	if client, ok := e.resolve.Client(i.ClientID); ok {
		i.ClientName = client.Name
		i.ClientCompany = client.Company
	}
	if project, ok := e.resolve.OptionalProject(i.ProjectID); ok {
		i.ProjectName = project.ProjectName
	}
	return i
}

// Task refreshes project_name and client_name through the project.
func (e Enricher) Task(t domain.Task) domain.Task {
	t.ProjectName, t.ClientName = e.projectLabels(t.ProjectID, t.ProjectName, t.ClientName)
	return t
}

// Bug refreshes project_name and client_name through the project.
func (e Enricher) Bug(b domain.Bug) domain.Bug {
	b.ProjectName, b.ClientName = e.projectLabels(b.ProjectID, b.ProjectName, b.ClientName)
	return b
}

// projectLabels resolves the two-hop chain. When the project resolves but its
// client does not, the project's own stored client_name is used.
func (e Enricher) projectLabels(projectID int, projectName, clientName string) (string, string) {
	project, client, projectFound, clientFound := e.resolve.ProjectClient(projectID)
	if !projectFound {
		return projectName, clientName
	}
	if clientFound {
		return project.ProjectName, client.Name
	}
	return project.ProjectName, project.ClientName
}

// Quotes enriches copies of every quote.
func (e Enricher) Quotes(in []domain.Quote) []domain.Quote {
	for i := range in {
		in[i] = e.Quote(in[i])
	}
	return in
}

// Projects enriches copies of every project.
func (e Enricher) Projects(in []domain.Project) []domain.Project {
	for i := range in {
		in[i] = e.Project(in[i])
	}
	return in
}

// Invoices enriches copies of every invoice.
func (e Enricher) Invoices(in []domain.Invoice) []domain.Invoice {
	for i := range in {
		in[i] = e.Invoice(in[i])
	}
	return in
}

// Tasks enriches copies of every task.
func (e Enricher) Tasks(in []domain.Task) []domain.Task {
	for i := range in {
		in[i] = e.Task(in[i])
	}
	return in
}

// Bugs enriches copies of every bug.
func (e Enricher) Bugs(in []domain.Bug) []domain.Bug {
	for i := range in {
		in[i] = e.Bug(in[i])
	}
	return in
}
