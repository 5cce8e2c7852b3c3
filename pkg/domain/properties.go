package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Well-known property keys. Keys outside this set are stored as free-form text.
const (
	PropPartProperties = "partProperties"
	PropPorts          = "ports"
	PropOperations     = "operations"
	PropBehaviors      = "behaviors"
	PropDefinition     = "definition"
	PropMultiplicity   = "multiplicity"
	PropParent         = "parent"
	PropPartElem       = "part_elem"
	PropName           = "name"
	PropDirection      = "direction"
	PropDescription    = "description"
)

// InheritedKeys lists the block properties merged along generalization edges.
var InheritedKeys = []string{PropPartProperties, PropPorts, PropOperations, PropBehaviors}

// Property is a single key/value entry.
type Property struct {
	Key   string
	Value string
}

// Properties is a string-keyed mapping that remembers insertion order. The
// zero value is empty and ready to use.
type Properties []Property

// NewProperties builds a mapping from alternating key/value pairs.
func NewProperties(kv ...string) Properties {
	var p Properties
	for i := 0; i+1 < len(kv); i += 2 {
		p.Set(kv[i], kv[i+1])
	}
	return p
}

// PropertiesFromMap converts a plain map, ordering keys lexically.
func PropertiesFromMap(m map[string]string) Properties {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var p Properties
	for _, k := range keys {
		p.Set(k, m[k])
	}
	return p
}

func (p Properties) index(key string) int {
	for i, prop := range p {
		if prop.Key == key {
			return i
		}
	}
	return -1
}

// Get returns the value for key.
func (p Properties) Get(key string) (string, bool) {
	if i := p.index(key); i >= 0 {
		return p[i].Value, true
	}
	return "", false
}

// Value returns the value for key or "" when absent.
func (p Properties) Value(key string) string {
	v, _ := p.Get(key)
	return v
}

// Has reports whether key is present.
func (p Properties) Has(key string) bool {
	return p.index(key) >= 0
}

// Set updates key in place or appends it at the end.
func (p *Properties) Set(key, value string) {
	if i := p.index(key); i >= 0 {
		(*p)[i].Value = value
		return
	}
	*p = append(*p, Property{Key: key, Value: value})
}

// Delete removes key, preserving the order of the remaining entries.
func (p *Properties) Delete(key string) {
	i := p.index(key)
	if i < 0 {
		return
	}
	*p = append((*p)[:i:i], (*p)[i+1:]...)
}

// Keys returns keys in insertion order.
func (p Properties) Keys() []string {
	keys := make([]string, len(p))
	for i, prop := range p {
		keys[i] = prop.Key
	}
	return keys
}

// Map returns an unordered copy.
func (p Properties) Map() map[string]string {
	out := make(map[string]string, len(p))
	for _, prop := range p {
		out[prop.Key] = prop.Value
	}
	return out
}

// Clone returns an independent copy. Empty mappings clone to nil so that
// snapshots compare equal regardless of how they were built.
func (p Properties) Clone() Properties {
	if len(p) == 0 {
		return nil
	}
	out := make(Properties, len(p))
	copy(out, p)
	return out
}

// MarshalJSON encodes the mapping as a JSON object in insertion order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, prop := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(prop.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(prop.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the document's key order.
// Non-string scalar values are kept in their JSON text form.
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties: expected object, got %v", tok)
	}
	var out Properties
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("properties: expected string key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
		out.Set(key, s)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out.Clone()
	return nil
}

// SplitList parses a comma separated property value, trimming blanks.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JoinList renders list entries the way SplitList reads them.
func JoinList(items []string) string {
	return strings.Join(items, ", ")
}

// CanonicalName strips a trailing bracketed multiplicity ("Wheel[2..4]" -> "Wheel").
func CanonicalName(entry string) string {
	if i := strings.Index(entry, "["); i >= 0 {
		entry = entry[:i]
	}
	return strings.TrimSpace(entry)
}

// PartPropertyEntry is a parsed partProperties list entry of the form
// "name", "name:Definition" or either form with a "[multiplicity]" suffix.
type PartPropertyEntry struct {
	Name         string
	Definition   string
	Multiplicity string
}

// ParsePartProperty splits a partProperties entry into its components.
func ParsePartProperty(entry string) PartPropertyEntry {
	var out PartPropertyEntry
	base := strings.TrimSpace(entry)
	if i := strings.Index(base, "["); i >= 0 {
		if j := strings.LastIndex(base, "]"); j > i {
			out.Multiplicity = strings.TrimSpace(base[i+1 : j])
		}
		base = strings.TrimSpace(base[:i])
	}
	if name, def, ok := strings.Cut(base, ":"); ok {
		out.Name = strings.TrimSpace(name)
		out.Definition = strings.TrimSpace(def)
	} else {
		out.Name = base
		out.Definition = base
	}
	return out
}

// Schema lists the known property keys per element type.
var Schema = map[ElementType][]string{
	ElementBlock: {
		PropPartProperties, PropPorts, PropOperations, PropBehaviors,
		PropDescription, "valueProperties", "referenceProperties", "constraintProperties",
		"analysis", "fit", "qualification", "failureModes",
	},
	ElementPart: {PropDefinition, PropMultiplicity, PropParent, PropPorts, PropDescription},
	ElementPort: {PropParent, PropDirection, "flow", PropDescription},
	ElementBlockBoundary: {PropPorts},
	ElementAction:        {PropDescription, "view", "behaviors"},
	ElementPackage:       {PropDescription},
}

// KnownProperty reports whether key belongs to the typed schema of t.
func KnownProperty(t ElementType, key string) bool {
	return slices.Contains(Schema[t], key)
}
