package rpc

import (
	"encoding/json"
	"fmt"
)

// Envelope is the top-level JSON shape of every response: exactly one
// of a success payload or a classified error.
type Envelope struct {
	Data any
	Err  *Error
}

// Success wraps a handler result.
func Success(data any) Envelope {
	return Envelope{Data: data}
}

// Failure wraps a classified error.
func Failure(err *Error) Envelope {
	return Envelope{Err: err}
}

// MarshalJSON renders {"data": ...} for success and
// {"error": code, "message": ..., ...extra} for failure, with extra
// fields flattened into the top level.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Err == nil {
		return json.Marshal(map[string]any{"data": e.Data})
	}

	out := make(map[string]any, 2+len(e.Err.Extra))
	out["error"] = string(e.Err.Code)
	out["message"] = e.Err.Message
	for k, v := range e.Err.Extra {
		if k == "error" || k == "message" {
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

// decodeEnvelope interprets a response body. A body carrying
// {"error", "message", ...} yields an *Error with the remaining fields
// as extras; otherwise the "data" value is returned (nil when absent).
// Empty bodies decode to no data.
func decodeEnvelope(body []byte) (any, *Error, error) {
	if len(body) == 0 {
		return nil, nil, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}

	if errRaw, ok := raw["error"]; ok {
		var code string
		if err := json.Unmarshal(errRaw, &code); err != nil {
			return nil, nil, fmt.Errorf("decode envelope error code: %w", err)
		}

		rpcErr := NewError(Code(code), "")
		if msgRaw, ok := raw["message"]; ok {
			_ = json.Unmarshal(msgRaw, &rpcErr.Message)
		}
		for k, v := range raw {
			if k == "error" || k == "message" {
				continue
			}
			var val any
			if err := json.Unmarshal(v, &val); err == nil {
				rpcErr.WithExtra(k, val)
			}
		}
		return nil, rpcErr, nil
	}

	if dataRaw, ok := raw["data"]; ok {
		var data any
		if err := json.Unmarshal(dataRaw, &data); err != nil {
			return nil, nil, fmt.Errorf("decode envelope data: %w", err)
		}
		return data, nil, nil
	}

	return nil, nil, nil
}
