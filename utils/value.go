package utils

// AttributeMap is a loosely typed set of named options as read from a JSON or YAML document.
type AttributeMap map[string]interface{}

// Has returns whether the given attribute is present.
func (am AttributeMap) Has(name string) bool {
	_, has := am[name]
	return has
}
