// Package invite defines the invitation plugin interface a notebook
// can be bound to (via Notebook.PluginName) for sending invitations,
// updates, and responses to attendees, plus a registry that dispatches
// to the right plugin per notebook.
package invite

import (
	"context"

	"github.com/go-mkcal/mkcal/internal/model"
)

// Plugin is the narrow surface an invitation transport must implement.
// iCalendar encoding of the outgoing message and the mail/DAV/whatever
// transport beneath it are both deliberately out of scope here: a
// Plugin receives already-decoded domain objects.
type Plugin interface {
	Name() string
	SendInvitation(ctx context.Context, inc *model.Incidence, nb *model.Notebook) error
	SendUpdate(ctx context.Context, inc *model.Incidence, nb *model.Notebook) error
	SendResponse(ctx context.Context, inc *model.Incidence, attendee model.Attendee) error
	ShareNotebook(ctx context.Context, nb *model.Notebook, emails []string) error
}

// Registry dispatches to a Plugin by Notebook.PluginName, falling back
// to a configured default plugin (or a no-op) when a notebook names no
// plugin or one that isn't registered.
type Registry struct {
	plugins map[string]Plugin
	fallback Plugin
}

// NewRegistry returns an empty Registry. Pass nil for fallback to use
// NoopPlugin.
func NewRegistry(fallback Plugin) *Registry {
	if fallback == nil {
		fallback = NoopPlugin{}
	}
	return &Registry{plugins: make(map[string]Plugin), fallback: fallback}
}

// Register adds or replaces a plugin under its own Name().
func (r *Registry) Register(p Plugin) {
	r.plugins[p.Name()] = p
}

// For returns the plugin bound to a notebook's PluginName, or the
// registry's fallback when the name is empty or unregistered.
func (r *Registry) For(nb *model.Notebook) Plugin {
	if nb == nil || nb.PluginName == "" {
		return r.fallback
	}
	if p, ok := r.plugins[nb.PluginName]; ok {
		return p
	}
	return r.fallback
}

// List returns every registered plugin.
func (r *Registry) List() []Plugin {
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	return out
}

// NoopPlugin discards every invitation; used as the default fallback
// when no transport is configured.
type NoopPlugin struct{}

func (NoopPlugin) Name() string { return "noop" }
func (NoopPlugin) SendInvitation(context.Context, *model.Incidence, *model.Notebook) error {
	return nil
}
func (NoopPlugin) SendUpdate(context.Context, *model.Incidence, *model.Notebook) error { return nil }
func (NoopPlugin) SendResponse(context.Context, *model.Incidence, model.Attendee) error {
	return nil
}
func (NoopPlugin) ShareNotebook(context.Context, *model.Notebook, []string) error { return nil }
