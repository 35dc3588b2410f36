package domain

// Dependent names a collection whose records reference a parent through Field.
type Dependent struct {
	Entity EntityType
	Field  string
}

// CascadeGraph declares which collections are removed when a parent record is
// deleted. Collections without an entry have no dependents.
var CascadeGraph = map[EntityType][]Dependent{
	EntityClient: {
		{Entity: EntityQuote, Field: "client_id"},
		{Entity: EntityProject, Field: "client_id"},
		{Entity: EntityInvoice, Field: "client_id"},
	},
	EntityProject: {
		{Entity: EntityTask, Field: "project_id"},
		{Entity: EntityBug, Field: "project_id"},
	},
}

// Dependents returns the direct dependents of entity.
func Dependents(entity EntityType) []Dependent {
	return CascadeGraph[entity]
}

// CascadeReport summarises a delete: the root record and the number of
// dependent records removed per collection.
type CascadeReport struct {
	Entity  EntityType         `json:"entity"`
	ID      int                `json:"id"`
	Removed map[EntityType]int `json:"removed"`
}

// Add records n removed records of entity.
func (r *CascadeReport) Add(entity EntityType, n int) {
	if n == 0 {
		return
	}
	if r.Removed == nil {
		r.Removed = make(map[EntityType]int)
	}
	r.Removed[entity] += n
}

// Total returns the number of dependents removed.
func (r CascadeReport) Total() int {
	total := 0
	for _, n := range r.Removed {
		total += n
	}
	return total
}
