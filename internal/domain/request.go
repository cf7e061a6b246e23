package domain

// Request is a fully addressed call to the edge network.
type Request struct {
	URL       string
	RequestID string
	Payload   *Payload
	Action    string
}

// NetworkResponse is the raw transport result. ParsedBody is nil when the
// server returned no content or a body that is not JSON.
type NetworkResponse struct {
	StatusCode int
	Body       string
	ParsedBody any
}
