// Package commands holds the inputs accepted by the collector's public
// operations.
package commands

import (
	"github.com/DanielPopoola/edge-collector/internal/domain"
	"github.com/go-playground/validator"
)

const (
	ActionCollect  = "collect"
	ActionInteract = "interact"
)

var validate = validator.New()

// SendEventCommand describes one experience event to send.
type SendEventCommand struct {
	Type              string         `json:"type,omitempty" validate:"omitempty,max=256"`
	XDM               map[string]any `json:"xdm,omitempty"`
	Data              map[string]any `json:"data,omitempty"`
	MergeID           string         `json:"mergeId,omitempty" validate:"omitempty,max=256"`
	DatasetID         string         `json:"datasetId,omitempty" validate:"omitempty,max=256"`
	DocumentUnloading bool           `json:"documentUnloading,omitempty"`
	RenderDecisions   bool           `json:"renderDecisions,omitempty"`
	DecisionScopes    []string       `json:"decisionScopes,omitempty" validate:"omitempty,dive,required"`
}

func (c SendEventCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return domain.NewInvalidInputError(err)
	}
	return nil
}

// ExpectsResponse reports whether the caller wants something back from the
// server, such as personalization decisions.
func (c SendEventCommand) ExpectsResponse() bool {
	return c.RenderDecisions || len(c.DecisionScopes) > 0
}

// Action picks the endpoint. Events sent while the document unloads and
// without any expected response go to the fire-and-forget endpoint.
func (c SendEventCommand) Action() string {
	if c.DocumentUnloading && !c.ExpectsResponse() {
		return ActionCollect
	}
	return ActionInteract
}

// ToEvent builds the event. User maps are deep-copied so later changes by
// the caller do not leak into the request.
func (c SendEventCommand) ToEvent() *domain.Event {
	event := domain.NewEvent()
	event.SetUserXDM(domain.Clone(c.XDM))
	event.SetUserData(domain.Clone(c.Data))

	if c.Type != "" {
		event.MergeXDM(map[string]any{"eventType": c.Type})
	}
	if c.MergeID != "" {
		event.MergeXDM(map[string]any{"eventMergeId": c.MergeID})
	}
	if c.DatasetID != "" {
		event.MergeMeta(map[string]any{
			"collect": map[string]any{"datasetId": c.DatasetID},
		})
	}
	if len(c.DecisionScopes) > 0 {
		scopes := make([]any, len(c.DecisionScopes))
		for i, s := range c.DecisionScopes {
			scopes[i] = s
		}
		event.MergeQuery(map[string]any{
			"personalization": map[string]any{"decisionScopes": scopes},
		})
	}
	if c.DocumentUnloading {
		event.DocumentMayUnload()
	}
	return event
}
