package controller

// Document is a decoded JSON object. Health-rule definitions are deeply
// nested and carry many fields this system never interprets (schedules,
// scopes, enablement); keeping them as a plain map guarantees every untouched
// field survives a fetch-mutate-replace round trip. The accessors below
// replace chained type assertions with optional-aware path navigation.
type Document map[string]any

// AsDocument converts a decoded JSON value to a Document.
func AsDocument(v any) (Document, bool) {
	switch d := v.(type) {
	case Document:
		return d, true
	case map[string]any:
		return Document(d), true
	default:
		return nil, false
	}
}

// Name returns the document's "name" field, or "" when absent or not a string.
func (d Document) Name() string {
	name, _ := d.Str("name")
	return name
}

// Child walks nested objects along the given keys. Returns false as soon as a
// key is missing or the value at it is not an object.
func (d Document) Child(keys ...string) (Document, bool) {
	current := d
	for _, key := range keys {
		next, ok := AsDocument(current[key])
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// Seq returns the array at the given path, empty when the path is missing.
// The final key must hold an array; intermediate keys must hold objects.
func (d Document) Seq(keys ...string) []any {
	if len(keys) == 0 {
		return nil
	}
	parent := d
	if len(keys) > 1 {
		var ok bool
		parent, ok = d.Child(keys[:len(keys)-1]...)
		if !ok {
			return nil
		}
	}
	seq, _ := parent[keys[len(keys)-1]].([]any)
	return seq
}

// Str returns the string at the given path.
func (d Document) Str(keys ...string) (string, bool) {
	v, ok := d.value(keys)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Num returns the number at the given path. JSON numbers decode as float64.
func (d Document) Num(keys ...string) (float64, bool) {
	v, ok := d.value(keys)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Has reports whether the given path exists, regardless of its type.
func (d Document) Has(keys ...string) bool {
	_, ok := d.value(keys)
	return ok
}

func (d Document) value(keys []string) (any, bool) {
	if len(keys) == 0 {
		return nil, false
	}
	parent := d
	if len(keys) > 1 {
		var ok bool
		parent, ok = d.Child(keys[:len(keys)-1]...)
		if !ok {
			return nil, false
		}
	}
	v, ok := parent[keys[len(keys)-1]]
	return v, ok
}
