package core

import "bizdesk/pkg/domain"

// Resolver answers "does the entity with this id currently exist" against one
// consistent view. Lookups are linear scans over the collection.
type Resolver struct {
	view domain.TransactionView
}

// NewResolver wraps view.
func NewResolver(view domain.TransactionView) Resolver {
	return Resolver{view: view}
}

// Client resolves a client id.
func (r Resolver) Client(id int) (domain.Client, bool) { return r.view.FindClient(id) }

// Project resolves a project id.
func (r Resolver) Project(id int) (domain.Project, bool) { return r.view.FindProject(id) }

// Quote resolves a quote id.
func (r Resolver) Quote(id int) (domain.Quote, bool) { return r.view.FindQuote(id) }

// Service resolves a catalogue service id.
func (r Resolver) Service(id int) (domain.Service, bool) { return r.view.FindService(id) }

// ProjectClient follows Project -> Client. The client lookup only happens
// when the project resolves.
func (r Resolver) ProjectClient(projectID int) (project domain.Project, client domain.Client, projectFound, clientFound bool) {
	project, projectFound = r.Project(projectID)
	if !projectFound {
		return domain.Project{}, domain.Client{}, false, false
	}
	client, clientFound = r.Client(project.ClientID)
	return project, client, true, clientFound
}

// OptionalQuote resolves a nullable quote reference.
func (r Resolver) OptionalQuote(id *int) (domain.Quote, bool) {
	if id == nil {
		return domain.Quote{}, false
	}
	return r.Quote(*id)
}

// OptionalProject resolves a nullable project reference.
func (r Resolver) OptionalProject(id *int) (domain.Project, bool) {
	if id == nil {
		return domain.Project{}, false
	}
	return r.Project(*id)
}
