// Package schema validates decoded documents against JSON schemas.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// rootField is how gojsonschema names the document root.
const rootField = "(root)"

// Violation is one failed constraint, addressed by its field path
// (for example "repositories.0.targets").
type Violation struct {
	Field       string
	Description string
}

// Validator checks documents against one compiled schema. It is safe for
// concurrent use.
type Validator struct {
	schema *gojsonschema.Schema
}

// Compile parses a JSON schema document.
func Compile(doc string) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// MustCompile is like Compile but panics on an invalid schema. It is meant
// for schemas embedded in the binary.
func MustCompile(doc string) *Validator {
	v, err := Compile(doc)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks doc, a value decoded from JSON or YAML. A nil error with no
// violations means the document is valid; an error means doc could not be
// validated at all.
func (v *Validator) Validate(doc any) ([]Violation, error) {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validating document: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, Violation{
			Field:       fieldPath(e),
			Description: e.Description(),
		})
	}
	return violations, nil
}

// fieldPath points "required" failures at the missing property instead of
// its parent object.
func fieldPath(e gojsonschema.ResultError) string {
	field := e.Field()
	if e.Type() != "required" {
		return field
	}
	prop, ok := e.Details()["property"].(string)
	if !ok || prop == "" {
		return field
	}
	if field == rootField {
		return prop
	}
	return field + "." + prop
}
