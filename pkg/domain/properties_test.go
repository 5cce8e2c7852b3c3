package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPropertiesPreserveInsertionOrder(t *testing.T) {
	p := NewProperties("zeta", "1", "alpha", "2")
	p.Set("mid", "3")
	p.Set("zeta", "4")
	if got := p.Keys(); !reflect.DeepEqual(got, []string{"zeta", "alpha", "mid"}) {
		t.Fatalf("unexpected key order %v", got)
	}
	if p.Value("zeta") != "4" {
		t.Fatalf("expected in-place update")
	}
	p.Delete("alpha")
	if got := p.Keys(); !reflect.DeepEqual(got, []string{"zeta", "mid"}) {
		t.Fatalf("unexpected keys after delete %v", got)
	}
	p.Delete("missing")
	if p.Has("alpha") {
		t.Fatalf("alpha should be gone")
	}
}

func TestPropertiesJSONRoundTripKeepsOrder(t *testing.T) {
	p := NewProperties("partProperties", "Wheel[4], Axle", "definition", "b1", "author", "x")
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"partProperties":"Wheel[4], Axle","definition":"b1","author":"x"}` {
		t.Fatalf("unexpected encoding %s", raw)
	}
	var back Properties
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back, p) {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, p)
	}
}

func TestPropertiesUnmarshalScalarsAndNull(t *testing.T) {
	var p Properties
	if err := json.Unmarshal([]byte(`{"width": 12.5, "visible": true, "name": "n"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Value("width") != "12.5" || p.Value("visible") != "true" || p.Value("name") != "n" {
		t.Fatalf("unexpected values %+v", p)
	}
	if err := json.Unmarshal([]byte(`null`), &p); err != nil || p != nil {
		t.Fatalf("expected null to clear properties, got %+v (%v)", p, err)
	}
	if err := json.Unmarshal([]byte(`[1]`), &p); err == nil {
		t.Fatalf("expected error for array input")
	}
}

func TestPropertiesCloneIsIndependent(t *testing.T) {
	p := NewProperties("a", "1")
	c := p.Clone()
	c.Set("a", "2")
	if p.Value("a") != "1" {
		t.Fatalf("clone aliases original")
	}
	if (Properties{}).Clone() != nil {
		t.Fatalf("empty clone should be nil")
	}
	if got := PropertiesFromMap(map[string]string{"b": "2", "a": "1"}).Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected map key order %v", got)
	}
}

func TestListHelpers(t *testing.T) {
	if got := SplitList(" a, ,b ,c"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected split %v", got)
	}
	if SplitList("   ") != nil {
		t.Fatalf("blank list should split to nil")
	}
	if JoinList([]string{"a", "b"}) != "a, b" {
		t.Fatalf("unexpected join")
	}
	if CanonicalName("Wheel[2..4]") != "Wheel" || CanonicalName(" Motor ") != "Motor" {
		t.Fatalf("unexpected canonical names")
	}
}

func TestParsePartProperty(t *testing.T) {
	cases := map[string]PartPropertyEntry{
		"B":         {Name: "B", Definition: "B"},
		"B[1..2]":   {Name: "B", Definition: "B", Multiplicity: "1..2"},
		"p:B":       {Name: "p", Definition: "B"},
		"p : B[3] ": {Name: "p", Definition: "B", Multiplicity: "3"},
	}
	for in, want := range cases {
		if got := ParsePartProperty(in); got != want {
			t.Fatalf("%q: got %+v want %+v", in, got, want)
		}
	}
}

func TestSchemaKnownProperty(t *testing.T) {
	if !KnownProperty(ElementBlock, PropPartProperties) {
		t.Fatalf("partProperties should be known for blocks")
	}
	if KnownProperty(ElementBlock, "colour") {
		t.Fatalf("free-form keys are not part of the schema")
	}
}
