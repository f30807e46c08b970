package secret

import (
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("RPCMESH_TEST_HOST", "0.0.0.0")
	t.Setenv("RPCMESH_TEST_KEY", "pem-data")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "no variables", in: "localhost", want: "localhost"},
		{name: "braced variable", in: "${RPCMESH_TEST_HOST}", want: "0.0.0.0"},
		{name: "embedded variable", in: "key=${RPCMESH_TEST_KEY}!", want: "key=pem-data!"},
		{name: "escaped dollar", in: "cost: $$5", want: "cost: $5"},
		{name: "missing variable", in: "${RPCMESH_TEST_MISSING}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnvStrict(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExpandEnvStrict(%q) error = nil, want error", tt.in)
				}
				if !strings.Contains(err.Error(), "RPCMESH_TEST_MISSING") {
					t.Errorf("error %q does not name the missing variable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExpandEnvStrict(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ExpandEnvStrict(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandEnvStrict_ReportsAllMissing(t *testing.T) {
	_, err := ExpandEnvStrict("${RPCMESH_TEST_A} ${RPCMESH_TEST_B}")
	if err == nil {
		t.Fatal("expected error for missing variables")
	}
	for _, name := range []string{"RPCMESH_TEST_A", "RPCMESH_TEST_B"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q missing variable name %s", err, name)
		}
	}
}
