package domain

import (
	"fmt"
	"sync"
)

const HandleTypeStateStore = "state:store"

// ServerMessage is a warning or error embedded in a response body.
type ServerMessage struct {
	Type    string
	Code    string
	Title   string
	Message string
}

// StateStoreItem is a cookie the server asks the client to persist.
type StateStoreItem struct {
	Key    string
	Value  string
	MaxAge *int
}

// Response wraps a validated response body.
type Response struct {
	body map[string]any

	once     sync.Once
	warnings []ServerMessage
	errors   []ServerMessage
}

// NewResponse wraps body, which may be nil for no-content responses.
func NewResponse(body map[string]any) *Response {
	if body == nil {
		body = map[string]any{}
	}
	return &Response{body: body}
}

func (r *Response) Body() map[string]any {
	return r.body
}

func (r *Response) RequestID() string {
	id, _ := r.body["requestId"].(string)
	return id
}

// PayloadsByType flattens the payload arrays of every handle of type t.
func (r *Response) PayloadsByType(t string) []map[string]any {
	handles, _ := r.body["handle"].([]any)
	var out []map[string]any
	for _, h := range handles {
		handle, ok := h.(map[string]any)
		if !ok || handle["type"] != t {
			continue
		}
		items, _ := handle["payload"].([]any)
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

func (r *Response) StateStoreItems() []StateStoreItem {
	var out []StateStoreItem
	for _, p := range r.PayloadsByType(HandleTypeStateStore) {
		key, _ := p["key"].(string)
		if key == "" {
			continue
		}
		item := StateStoreItem{Key: key, Value: stringOf(p["value"])}
		if maxAge, ok := p["maxAge"].(float64); ok {
			v := int(maxAge)
			item.MaxAge = &v
		}
		out = append(out, item)
	}
	return out
}

func (r *Response) Warnings() []ServerMessage {
	r.once.Do(r.derive)
	return r.warnings
}

func (r *Response) Errors() []ServerMessage {
	r.once.Do(r.derive)
	return r.errors
}

func (r *Response) derive() {
	r.warnings = messagesOf(r.body["warnings"])
	r.errors = messagesOf(r.body["errors"])
}

func messagesOf(v any) []ServerMessage {
	list, _ := v.([]any)
	out := make([]ServerMessage, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, ServerMessage{
			Type:    stringOf(m["type"]),
			Code:    stringOf(m["code"]),
			Title:   stringOf(m["title"]),
			Message: stringOf(m["message"]),
		})
	}
	return out
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
