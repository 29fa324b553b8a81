package monitor

import "time"

type Component struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type Status struct {
	Components map[string]Component `json:"components"`
	LastCheck  time.Time            `json:"lastCheck"`
}

// Healthy reports whether every component is reachable.
func (s Status) Healthy() bool {
	for _, c := range s.Components {
		if !c.OK {
			return false
		}
	}
	return true
}

func (s Status) clone() Status {
	out := Status{LastCheck: s.LastCheck, Components: make(map[string]Component, len(s.Components))}
	for k, v := range s.Components {
		out.Components[k] = v
	}
	return out
}
