// Package api defines the wire contract carried over the session
// transport: one externally-tagged JSON value per frame, matching the
// request/response variants of the store's external interface.
package api

import (
	"encoding/json"
	"fmt"
)

// Path is the JSON-array-of-strings path representation used
// throughout the wire contract.
type Path []string

// Request is the externally-tagged union of client requests:
//
//	{"Get": ["hello","world"]}
//	{"Insert": {"path": ["hello"], "value": {"world": "v"}}}
//	{"Update": {"path": ["hello"], "value": {"world": "v"}}}
//	{"Remove": ["hello","world"]}
//	{"Subscribe": ["hello","world"]}
//	{"Unsubscribe": ["hello","world"]}
type Request struct {
	Get         Path
	Insert      *PathValue
	Update      *PathValue
	Remove      Path
	Subscribe   Path
	Unsubscribe Path
}

// PathValue is the payload shape shared by Insert and Update.
type PathValue struct {
	Path  Path            `json:"path"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON renders whichever variant is set as a single-key object.
func (r Request) MarshalJSON() ([]byte, error) {
	switch {
	case r.Get != nil:
		return marshalVariant("Get", r.Get)
	case r.Insert != nil:
		return marshalVariant("Insert", r.Insert)
	case r.Update != nil:
		return marshalVariant("Update", r.Update)
	case r.Remove != nil:
		return marshalVariant("Remove", r.Remove)
	case r.Subscribe != nil:
		return marshalVariant("Subscribe", r.Subscribe)
	case r.Unsubscribe != nil:
		return marshalVariant("Unsubscribe", r.Unsubscribe)
	}
	return nil, fmt.Errorf("api: request has no variant set")
}

// UnmarshalJSON decodes a single-key tagged object into the matching
// variant field.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("api: decode request envelope: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("api: request object must have exactly one tag, got %d", len(raw))
	}

	for tag, body := range raw {
		switch tag {
		case "Get":
			return unmarshalInto(body, &r.Get)
		case "Insert":
			r.Insert = &PathValue{}
			return unmarshalInto(body, r.Insert)
		case "Update":
			r.Update = &PathValue{}
			return unmarshalInto(body, r.Update)
		case "Remove":
			return unmarshalInto(body, &r.Remove)
		case "Subscribe":
			return unmarshalInto(body, &r.Subscribe)
		case "Unsubscribe":
			return unmarshalInto(body, &r.Unsubscribe)
		default:
			return fmt.Errorf("api: unknown request tag %q", tag)
		}
	}
	return nil
}

// Response is the externally-tagged union of server responses.
type Response struct {
	Value              json.RawMessage
	hasValue           bool
	Error              string
	hasError           bool
	SubscriptionUpdate *SubscriptionUpdate
}

// SubscriptionUpdate carries a single event on a subscribed path: Value
// is present on insert of a scalar leaf, nil on remove.
type SubscriptionUpdate struct {
	Path  Path    `json:"path"`
	Value *string `json:"value"`
}

// NewValueResponse wraps a successful Get/mutation result. Pass nil for
// a mutating request's success payload.
func NewValueResponse(v any) (Response, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Response{}, fmt.Errorf("api: encode value response: %w", err)
	}
	return Response{Value: raw, hasValue: true}, nil
}

// NewErrorResponse wraps a human-readable error kind.
func NewErrorResponse(kind string) Response {
	return Response{Error: kind, hasError: true}
}

// NewSubscriptionUpdateResponse wraps a single subscription event.
func NewSubscriptionUpdateResponse(path []string, value *string) Response {
	return Response{SubscriptionUpdate: &SubscriptionUpdate{Path: path, Value: value}}
}

func (r Response) MarshalJSON() ([]byte, error) {
	switch {
	case r.hasValue:
		return marshalVariant("Value", r.Value)
	case r.hasError:
		return marshalVariant("Error", r.Error)
	case r.SubscriptionUpdate != nil:
		return marshalVariant("SubscriptionUpdate", r.SubscriptionUpdate)
	}
	return nil, fmt.Errorf("api: response has no variant set")
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("api: decode response envelope: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("api: response object must have exactly one tag, got %d", len(raw))
	}

	for tag, body := range raw {
		switch tag {
		case "Value":
			r.Value = body
			r.hasValue = true
		case "Error":
			if err := unmarshalInto(body, &r.Error); err != nil {
				return err
			}
			r.hasError = true
		case "SubscriptionUpdate":
			r.SubscriptionUpdate = &SubscriptionUpdate{}
			return unmarshalInto(body, r.SubscriptionUpdate)
		default:
			return fmt.Errorf("api: unknown response tag %q", tag)
		}
	}
	return nil
}

func marshalVariant(tag string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("api: encode %s variant: %w", tag, err)
	}
	return json.Marshal(map[string]json.RawMessage{tag: body})
}

func unmarshalInto(body json.RawMessage, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("api: decode variant body: %w", err)
	}
	return nil
}
