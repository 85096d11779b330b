package mcpclient

import "sort"

// ServerStatus is a read model of one registered server for display: what
// it is, how it is reached, and whether it can still serve calls.
type ServerStatus struct {
	Name        string
	Transport   TransportType
	Description string
	ToolCount   int
	Connected   bool
}

// Status reports every registered server, sorted by name.
func (r *Registry) Status() []ServerStatus {
	r.mu.RLock()
	sessions := make([]*ServerSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	statuses := make([]ServerStatus, 0, len(sessions))
	for _, s := range sessions {
		cfg := s.Config()
		statuses = append(statuses, ServerStatus{
			Name:        cfg.Name,
			Transport:   s.transport.Kind(),
			Description: cfg.Description,
			ToolCount:   len(s.Tools()),
			Connected:   s.State() == StateReady,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}
