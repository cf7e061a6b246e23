package domain

// Event is one experience event inside a payload.
type Event struct {
	XDM   map[string]any `json:"xdm,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
	Query map[string]any `json:"query,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`

	documentMayUnload bool
}

func NewEvent() *Event {
	return &Event{}
}

// DocumentMayUnload marks the event as sent while its source is going away.
func (e *Event) DocumentMayUnload() {
	e.documentMayUnload = true
}

func (e *Event) MayUnload() bool {
	return e.documentMayUnload
}

func (e *Event) SetUserXDM(xdm map[string]any) {
	e.XDM = DeepMerge(e.XDM, xdm)
}

func (e *Event) SetUserData(data map[string]any) {
	e.Data = data
}

func (e *Event) MergeXDM(xdm map[string]any) {
	e.XDM = DeepMerge(e.XDM, xdm)
}

func (e *Event) MergeQuery(query map[string]any) {
	e.Query = DeepMerge(e.Query, query)
}

func (e *Event) MergeMeta(meta map[string]any) {
	e.Meta = DeepMerge(e.Meta, meta)
}
