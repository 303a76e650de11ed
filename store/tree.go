package store

import (
	"bytes"
	"encoding/json"
	"sort"
)

func decodeTree(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// normalize turns structs and other values into the generic tree shape.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	raw, ok := v.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	return decodeTree(raw)
}

func getIn(node any, field []string) (any, bool) {
	for _, key := range field {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = m[key]; !ok {
			return nil, false
		}
	}
	return node, node != nil
}

// setIn writes value at field below node and returns the new node. Writing
// below a scalar replaces it with an object. nil deletes, and objects left
// empty by a delete disappear.
func setIn(node any, field []string, value any) any {
	if len(field) == 0 {
		return value
	}

	m, ok := node.(map[string]any)
	if !ok {
		if value == nil {
			return node
		}
		m = map[string]any{}
	}

	child := setIn(m[field[0]], field[1:], value)
	if child == nil {
		delete(m, field[0])
	} else {
		m[field[0]] = child
	}

	if len(m) == 0 {
		return nil
	}
	return m
}

// applyChanges merges changes into the document raw. base is where the change
// keys are rooted inside the document. A nil result means the document is gone.
func applyChanges(raw []byte, base []string, changes map[string]any) ([]byte, error) {
	root, err := decodeTree(raw)
	if err != nil {
		return nil, err
	}

	// parents before children
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := normalize(changes[k])
		if err != nil {
			return nil, err
		}

		field := append(append([]string(nil), base...), splitSegments(k)...)
		root = setIn(root, field, v)
	}

	if root == nil {
		return nil, nil
	}
	return json.Marshal(root)
}

// snapshotOf cuts the value at loc out of a whole document.
func snapshotOf(loc location, doc []byte) (Snapshot, error) {
	snap := Snapshot{Path: loc.path()}
	if len(doc) == 0 {
		return snap, nil
	}

	if loc.isDocument() {
		snap.Exists = true
		snap.Value = append(json.RawMessage(nil), doc...)
		return snap, nil
	}

	root, err := decodeTree(doc)
	if err != nil {
		return snap, err
	}

	v, ok := getIn(root, loc.field)
	if !ok {
		return snap, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return snap, err
	}

	snap.Exists = true
	snap.Value = b
	return snap, nil
}
