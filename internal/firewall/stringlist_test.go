package firewall

import (
	"encoding/json"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestStringList_YAMLScalar(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal([]byte("forward_filter_purge_ignore: '-j DOCKER-USER'\n"), &cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	l := cfg.ForwardFilterPurgeIgnore
	if !l.IsScalar() {
		t.Fatal("IsScalar() = false, want true for bare string")
	}
	if got := l.Values(); !reflect.DeepEqual(got, []string{"-j DOCKER-USER"}) {
		t.Errorf("Values() = %v, want [-j DOCKER-USER]", got)
	}

	out, err := yaml.Marshal(map[string]StringList{"ignore": l})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var back map[string]StringList
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal(%q) error = %v", out, err)
	}
	if !back["ignore"].IsScalar() || back["ignore"].Values()[0] != "-j DOCKER-USER" {
		t.Errorf("round trip of %q = %+v, want scalar -j DOCKER-USER", out, back["ignore"])
	}
}

func TestStringList_YAMLSequence(t *testing.T) {
	var cfg Config
	doc := "postrouting_nat_purge_ignore:\n  - one\n  - two\n"
	if err := yaml.Unmarshal([]byte(doc), &cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	l := cfg.PostroutingNatPurgeIgnore
	if l.IsScalar() {
		t.Fatal("IsScalar() = true, want false for sequence")
	}
	if got := l.Values(); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("Values() = %v, want [one two]", got)
	}
}

func TestStringList_YAMLNull(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal([]byte("output_nat_purge_ignore:\n"), &cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cfg.OutputNatPurgeIgnore.IsScalar() || cfg.OutputNatPurgeIgnore.Len() != 0 {
		t.Errorf("OutputNatPurgeIgnore = %+v, want empty list", cfg.OutputNatPurgeIgnore)
	}
}

func TestStringList_YAMLRejectsMapping(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal([]byte("output_nat_purge_ignore:\n  a: b\n"), &cfg); err == nil {
		t.Fatal("Unmarshal() = nil error, want error for mapping value")
	}
}

func TestStringList_JSON(t *testing.T) {
	tests := []struct {
		in     string
		scalar bool
		values []string
		out    string
	}{
		{`"x"`, true, []string{"x"}, `"x"`},
		{`["a","b"]`, false, []string{"a", "b"}, `["a","b"]`},
		{`[]`, false, []string{}, `[]`},
		{`null`, false, []string{}, `[]`},
	}
	for _, tt := range tests {
		var l StringList
		if err := json.Unmarshal([]byte(tt.in), &l); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
		}
		if l.IsScalar() != tt.scalar {
			t.Errorf("Unmarshal(%s).IsScalar() = %v, want %v", tt.in, l.IsScalar(), tt.scalar)
		}
		if got := l.Values(); !reflect.DeepEqual(got, tt.values) {
			t.Errorf("Unmarshal(%s).Values() = %v, want %v", tt.in, got, tt.values)
		}
		out, err := json.Marshal(l)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if string(out) != tt.out {
			t.Errorf("Marshal(%s) = %s, want %s", tt.in, out, tt.out)
		}
	}
}

func TestStringList_JSONRejectsNumber(t *testing.T) {
	var l StringList
	if err := json.Unmarshal([]byte(`42`), &l); err == nil {
		t.Fatal("Unmarshal(42) = nil error, want error")
	}
}

func TestStringList_Prepend(t *testing.T) {
	got := Scalar("user").Prepend("structural")
	if got.IsScalar() {
		t.Error("Prepend() result is scalar, want list")
	}
	if want := []string{"structural", "user"}; !reflect.DeepEqual(got.Values(), want) {
		t.Errorf("Prepend() = %v, want %v", got.Values(), want)
	}
}

func TestChainSpec_JSONKeepsScalarIgnore(t *testing.T) {
	c := ChainSpec{Table: TableFilter, Name: ChainForward, Ensure: EnsurePresent, Purge: true, Ignore: Scalar("keep").Ptr()}
	out, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"table":"filter","name":"FORWARD","ensure":"present","purge":true,"ignore":"keep"}`
	if string(out) != want {
		t.Errorf("Marshal() = %s, want %s", out, want)
	}
}
