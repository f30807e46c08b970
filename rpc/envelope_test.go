package rpc

import (
	"encoding/json"
	"testing"
)

func TestEnvelope_MarshalSuccess(t *testing.T) {
	data, err := json.Marshal(Success(map[string]any{"m": "hi"}))
	if err != nil {
		t.Fatalf("Marshal = %v", err)
	}
	if string(data) != `{"data":{"m":"hi"}}` {
		t.Errorf("envelope = %s", data)
	}
}

func TestEnvelope_MarshalFailureFlattensExtra(t *testing.T) {
	env := Failure(NewError(CodeMethodNotFound, "Method not found").
		WithExtra("method", "ghost").
		WithExtra("availableMethods", []string{"echo"}))

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal = %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal = %v", err)
	}
	if out["error"] != "METHOD_NOT_FOUND" {
		t.Errorf("error = %v", out["error"])
	}
	if out["message"] != "Method not found" {
		t.Errorf("message = %v", out["message"])
	}
	if out["method"] != "ghost" {
		t.Errorf("extra method = %v, want flattened at top level", out["method"])
	}
	if _, ok := out["data"]; ok {
		t.Error("failure envelope carries a data field")
	}
}

func TestEnvelope_ExtraCannotShadowCoreFields(t *testing.T) {
	env := Failure(NewError(CodeInternalError, "boom").
		WithExtra("error", "shadow").
		WithExtra("message", "shadow"))

	data, _ := json.Marshal(env)
	var out map[string]any
	_ = json.Unmarshal(data, &out)

	if out["error"] != "INTERNAL_ERROR" || out["message"] != "boom" {
		t.Errorf("core fields shadowed by extras: %v", out)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantData any
		wantCode Code
		wantErr  bool
	}{
		{name: "data", body: `{"data":{"result":8}}`, wantData: map[string]any{"result": float64(8)}},
		{name: "null data", body: `{"data":null}`, wantData: nil},
		{name: "error", body: `{"error":"TIMEOUT","message":"too slow","attempt":3}`, wantCode: CodeTimeout},
		{name: "empty body", body: ""},
		{name: "neither field", body: `{"status":"ok"}`},
		{name: "not json", body: `<html>`, wantErr: true},
		{name: "array body", body: `[1,2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, rpcErr, err := decodeEnvelope([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("decodeEnvelope succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeEnvelope = %v", err)
			}
			if tt.wantCode != "" {
				if rpcErr == nil || rpcErr.Code != tt.wantCode {
					t.Fatalf("rpcErr = %v, want code %s", rpcErr, tt.wantCode)
				}
				if tt.wantCode == CodeTimeout && rpcErr.Extra["attempt"] != float64(3) {
					t.Errorf("extras = %v, want attempt carried over", rpcErr.Extra)
				}
				return
			}
			if rpcErr != nil {
				t.Fatalf("unexpected envelope error %v", rpcErr)
			}
			if tt.wantData != nil {
				got, _ := json.Marshal(data)
				want, _ := json.Marshal(tt.wantData)
				if string(got) != string(want) {
					t.Errorf("data = %s, want %s", got, want)
				}
			}
		})
	}
}
