package model

import "time"

// Notebook groups incidences under a single calendar collection, with
// its own visibility, sync, sharing, and invitation-plugin settings.
type Notebook struct {
	UID         string
	Name        string
	Description string
	Color       string
	PluginName  string // invitation plugin that owns this notebook, "" for none
	Account     string

	AllowEvents   bool
	AllowTodos    bool
	AllowJournals bool

	Visible      bool
	ReadOnly     bool
	IsDefault    bool
	Shared       bool
	Master       bool // the notebook mkcal itself maintains, never an import target
	Synchronized bool
	RunTimeOnly  bool // never persisted; exists only for the life of the process
	Shareable    bool

	SyncProfile    string
	AttachmentSize int64
	SharedWith     []string

	SyncDate time.Time
	Created  time.Time
	Modified time.Time

	CustomProps []CustomProperty
}

// Clone returns a copy safe to hand to a caller without aliasing the
// original notebook's memory.
func (n *Notebook) Clone() *Notebook {
	if n == nil {
		return nil
	}
	c := *n
	c.SharedWith = append([]string(nil), n.SharedWith...)
	c.CustomProps = append([]CustomProperty(nil), n.CustomProps...)
	return &c
}
