package domain

import (
	"encoding/json"
)

// Identity is one entry of an identity namespace in the payload identity map.
type Identity struct {
	ID                 string `json:"id"`
	AuthenticatedState string `json:"authenticatedState,omitempty"`
	Primary            bool   `json:"primary,omitempty"`
}

// StateEntry is a cookie carried inside the payload for endpoints that
// cannot receive it as a header.
type StateEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type State struct {
	Domain         string       `json:"domain,omitempty"`
	CookiesEnabled bool         `json:"cookiesEnabled"`
	Entries        []StateEntry `json:"entries,omitempty"`
}

// Payload accumulates everything sent in one request body. It is owned by
// the call that created it until handed to the dispatcher and is not safe
// for concurrent mutation.
type Payload struct {
	events                []*Event
	identityMap           map[string][]Identity
	state                 *State
	meta                  map[string]any
	useIDThirdPartyDomain bool
}

func NewPayload() *Payload {
	return &Payload{
		identityMap: make(map[string][]Identity),
		meta:        make(map[string]any),
	}
}

func (p *Payload) AddEvent(e *Event) {
	p.events = append(p.events, e)
}

func (p *Payload) Events() []*Event {
	return p.events
}

// AddIdentity appends an identity to the namespace unless the same id is
// already present.
func (p *Payload) AddIdentity(namespace string, identity Identity) {
	for _, existing := range p.identityMap[namespace] {
		if existing.ID == identity.ID {
			return
		}
	}
	p.identityMap[namespace] = append(p.identityMap[namespace], identity)
}

func (p *Payload) Identities(namespace string) []Identity {
	return p.identityMap[namespace]
}

// UseIDThirdPartyDomain routes the request to the identity service's
// third-party domain instead of the configured edge domain.
func (p *Payload) UseIDThirdPartyDomain() {
	p.useIDThirdPartyDomain = true
}

func (p *Payload) IsIDThirdPartyDomain() bool {
	return p.useIDThirdPartyDomain
}

// MergeState folds s into the payload state. Entries with an existing key
// are replaced in place.
func (p *Payload) MergeState(s State) {
	if p.state == nil {
		p.state = &State{}
	}
	if s.Domain != "" {
		p.state.Domain = s.Domain
	}
	p.state.CookiesEnabled = s.CookiesEnabled || p.state.CookiesEnabled

	for _, entry := range s.Entries {
		replaced := false
		for i := range p.state.Entries {
			if p.state.Entries[i].Key == entry.Key {
				p.state.Entries[i].Value = entry.Value
				replaced = true
				break
			}
		}
		if !replaced {
			p.state.Entries = append(p.state.Entries, entry)
		}
	}
}

// State returns a copy of the accumulated state, or nil if none was merged.
func (p *Payload) State() *State {
	if p.state == nil {
		return nil
	}
	cp := *p.state
	cp.Entries = append([]StateEntry(nil), p.state.Entries...)
	return &cp
}

func (p *Payload) MergeMeta(meta map[string]any) {
	DeepMerge(p.meta, meta)
}

type wireXDM struct {
	IdentityMap map[string][]Identity `json:"identityMap"`
}

type wirePayload struct {
	Events []*Event       `json:"events,omitempty"`
	XDM    *wireXDM       `json:"xdm,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

func (p *Payload) MarshalJSON() ([]byte, error) {
	out := wirePayload{Events: p.events}

	if len(p.identityMap) > 0 {
		out.XDM = &wireXDM{IdentityMap: p.identityMap}
	}

	if len(p.meta) > 0 || p.state != nil {
		out.Meta = make(map[string]any, len(p.meta)+1)
		for k, v := range p.meta {
			out.Meta[k] = v
		}
		if p.state != nil {
			out.Meta["state"] = p.state
		}
	}

	return json.Marshal(out)
}
