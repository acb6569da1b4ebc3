package peerbus

// Wire types for the HTTP publish endpoint. The envelope mirrors the
// in-memory Request/Response pair from pkg/peerbus plus a matched flag so a
// peer can answer "this selector does not address me" without an error.

// selectorWire carries a selector over the wire
type selectorWire struct {
	Target    string `json:"target"`
	MatchType string `json:"matchType"`
}

// publishRequest is the body of POST /api/v1/publish
type publishRequest struct {
	Selector   selectorWire      `json:"selector"`
	Function   string            `json:"function"`
	Args       map[string]string `json:"args,omitempty"`
	SourceNode string            `json:"sourceNode"`
}

// publishResponse is the body of a successful publish call
type publishResponse struct {
	NodeID  string `json:"nodeId"`
	Matched bool   `json:"matched"`
	Payload []byte `json:"payload,omitempty"`
}

// errorResponse is the body of a failed publish call
type errorResponse struct {
	Error string `json:"error"`
}

// healthResponse is the body of GET /api/v1/health
type healthResponse struct {
	Status    string   `json:"status"`
	NodeID    string   `json:"nodeId"`
	Functions []string `json:"functions"`
}
