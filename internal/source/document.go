// Package source implements the Ansible inventory document that the plugin
// accumulates per instance: a mapping of group name -> group record, where
// a group record maps hostnames to their host variables. The document is
// append-friendly: keys it does not understand (group vars, children, or
// arbitrary host variables) survive merges and YAML round-trips verbatim.
package source

import (
	"fmt"
	"reflect"
	"sort"

	"gopkg.in/yaml.v3"
)

// Well-known Ansible host variable names used by the translator.
const (
	VarHost           = "ansible_host"
	VarUser           = "ansible_user"
	VarPassword       = "ansible_ssh_pass"
	VarPrivateKeyFile = "ansible_ssh_private_key_file"
	VarSSHCommonArgs  = "ansible_ssh_common_args"
	VarBecome         = "ansible_become"
	StrictHostKeyArgs = "-o StrictHostKeyChecking=no"
)

// Vars holds the variables of a single host. A nil Vars means the host is a
// group member without host-specific variables and serializes as YAML null.
type Vars map[string]interface{}

// Group is one inventory group: its hosts plus any group-level keys we pass
// through untouched (vars, children, ...).
type Group struct {
	Hosts map[string]Vars        `yaml:"hosts,omitempty"`
	Extra map[string]interface{} `yaml:",inline"`
}

// Document maps group name -> group record. The zero value is usable.
type Document map[string]*Group

// NewDocument returns an empty document.
func NewDocument() Document {
	return Document{}
}

// Merge folds other into d. Groups absent from d are inserted verbatim;
// for groups present in both, other's host entries overwrite same-named
// entries in d and group-level extra keys are overlaid. Merging the same
// fragment twice yields the same result as merging it once.
//
// Merge never mutates other: everything inserted into d is a deep copy.
func (d Document) Merge(other Document) {
	for name, group := range other {
		if group == nil {
			if _, ok := d[name]; !ok {
				d[name] = &Group{}
			}
			continue
		}
		existing, ok := d[name]
		if !ok || existing == nil {
			existing = &Group{}
			d[name] = existing
		}
		for hostname, vars := range group.Hosts {
			if existing.Hosts == nil {
				existing.Hosts = map[string]Vars{}
			}
			existing.Hosts[hostname] = vars.clone()
		}
		for key, value := range group.Extra {
			if existing.Extra == nil {
				existing.Extra = map[string]interface{}{}
			}
			existing.Extra[key] = deepCopyValue(value)
		}
	}
}

// Subtract removes from d exactly the host keys listed in other's groups.
// Groups or hosts absent from d are skipped; a group that loses its last
// host stays in the document as an empty group.
func (d Document) Subtract(other Document) {
	for name, group := range other {
		existing, ok := d[name]
		if !ok || existing == nil || group == nil {
			continue
		}
		for hostname := range group.Hosts {
			delete(existing.Hosts, hostname)
		}
	}
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := NewDocument()
	out.Merge(d)
	return out
}

// Equal reports whether two documents carry the same groups, hosts and
// variables.
func (d Document) Equal(other Document) bool {
	if len(d) != len(other) {
		return false
	}
	for name, group := range d {
		otherGroup, ok := other[name]
		if !ok {
			return false
		}
		if !groupsEqual(group, otherGroup) {
			return false
		}
	}
	return true
}

// GroupNames returns the group names in sorted order.
func (d Document) GroupNames() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func groupsEqual(a, b *Group) bool {
	var aHosts, bHosts map[string]Vars
	var aExtra, bExtra map[string]interface{}
	if a != nil {
		aHosts, aExtra = a.Hosts, a.Extra
	}
	if b != nil {
		bHosts, bExtra = b.Hosts, b.Extra
	}
	if len(aHosts) != len(bHosts) || len(aExtra) != len(bExtra) {
		return false
	}
	for hostname, vars := range aHosts {
		otherVars, ok := bHosts[hostname]
		if !ok {
			return false
		}
		if len(vars) == 0 && len(otherVars) == 0 {
			continue
		}
		if !reflect.DeepEqual(vars, otherVars) {
			return false
		}
	}
	for key, value := range aExtra {
		otherValue, ok := bExtra[key]
		if !ok || !reflect.DeepEqual(value, otherValue) {
			return false
		}
	}
	return true
}

func (v Vars) clone() Vars {
	if v == nil {
		return nil
	}
	out := make(Vars, len(v))
	for key, value := range v {
		out[key] = deepCopyValue(value)
	}
	return out
}

func deepCopyValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[k] = deepCopyValue(v)
		}
		return out
	case Vars:
		return map[string]interface{}(typed.clone())
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, v := range typed {
			out[i] = deepCopyValue(v)
		}
		return out
	default:
		return typed
	}
}

// Marshal serializes d to the YAML inventory form consumed by
// ansible-playbook.
func (d Document) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize inventory document: %w", err)
	}
	return data, nil
}

// ParseDocument deserializes a YAML inventory document.
func ParseDocument(data []byte) (Document, error) {
	doc := NewDocument()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse inventory document: %w", err)
	}
	return doc, nil
}

// FromValue rebuilds a document from the structured value shape the
// property store hands back (nested maps after a serialization round-trip).
// A missing or nil value yields an empty document.
func FromValue(value interface{}) (Document, error) {
	if value == nil {
		return NewDocument(), nil
	}
	if doc, ok := value.(Document); ok {
		return doc.Clone(), nil
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored inventory document: %w", err)
	}
	return ParseDocument(data)
}

// ToValue converts d into the plain nested-map shape stored in the
// property store.
func (d Document) ToValue() interface{} {
	out := map[string]interface{}{}
	for name, group := range d {
		record := map[string]interface{}{}
		if group != nil {
			if group.Hosts != nil {
				hosts := map[string]interface{}{}
				for hostname, vars := range group.Hosts {
					if vars == nil {
						hosts[hostname] = nil
					} else {
						hosts[hostname] = map[string]interface{}(vars.clone())
					}
				}
				record["hosts"] = hosts
			}
			for key, value := range group.Extra {
				record[key] = deepCopyValue(value)
			}
		}
		out[name] = record
	}
	return out
}
