package models

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// ParamType is the semantic kind of a tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
	ParamObject  ParamType = "object"
)

// ErrInvalidParamType is returned when a parameter type is outside the closed set.
var ErrInvalidParamType = errors.New("invalid parameter type")

// paramAliases maps loosely-typed names seen in backend catalogs to a ParamType.
var paramAliases = map[string]ParamType{
	"string":  ParamString,
	"str":     ParamString,
	"integer": ParamInteger,
	"int":     ParamInteger,
	"number":  ParamNumber,
	"float":   ParamNumber,
	"boolean": ParamBoolean,
	"bool":    ParamBoolean,
	"array":   ParamArray,
	"list":    ParamArray,
	"object":  ParamObject,
	"dict":    ParamObject,
}

// ParseParamType maps a free-form type name onto the closed ParamType set.
func ParseParamType(s string) (ParamType, error) {
	if t, ok := paramAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidParamType, s)
}

// Valid reports whether t is one of the known kinds.
func (t ParamType) Valid() bool {
	switch t {
	case ParamString, ParamInteger, ParamNumber, ParamBoolean, ParamArray, ParamObject:
		return true
	}
	return false
}

// Accepts reports whether a JSON-decoded value is of kind t.
func (t ParamType) Accepts(v any) bool {
	switch t {
	case ParamString:
		_, ok := v.(string)
		return ok
	case ParamBoolean:
		_, ok := v.(bool)
		return ok
	case ParamNumber:
		_, ok := toFloat(v)
		return ok
	case ParamInteger:
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f)
	case ParamArray:
		if v == nil {
			return false
		}
		k := reflect.TypeOf(v).Kind()
		return k == reflect.Slice || k == reflect.Array
	case ParamObject:
		if v == nil {
			return false
		}
		return reflect.TypeOf(v).Kind() == reflect.Map
	}
	return false
}

// ParameterSpec describes one parameter of a tool.
type ParameterSpec struct {
	Type        ParamType `json:"type" jsonschema:"enum=string,enum=integer,enum=number,enum=boolean,enum=array,enum=object"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
	Enum        []any     `json:"enum,omitempty"`
}

// Validate checks the parameter's own invariants: a known type, a default of that
// type, and a default that belongs to the enum when one is declared.
func (p ParameterSpec) Validate() error {
	if !p.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidParamType, p.Type)
	}
	if p.Default == nil {
		return nil
	}
	if !p.Type.Accepts(p.Default) {
		return fmt.Errorf("default %v is not of type %s", p.Default, p.Type)
	}
	if len(p.Enum) > 0 && !p.inEnum(p.Default) {
		return fmt.Errorf("default %v is not one of the allowed values %v", p.Default, p.Enum)
	}
	return nil
}

// ValidateValue checks a call argument against the parameter.
func (p ParameterSpec) ValidateValue(v any) error {
	if !p.Type.Accepts(v) {
		return fmt.Errorf("expected %s, got %T", p.Type, v)
	}
	if len(p.Enum) > 0 && !p.inEnum(v) {
		return fmt.Errorf("value %v is not one of %v", v, p.Enum)
	}
	return nil
}

func (p ParameterSpec) inEnum(v any) bool {
	for _, allowed := range p.Enum {
		if valuesEqual(allowed, v) {
			return true
		}
	}
	return false
}

// clone returns a copy that shares no slices with p.
func (p ParameterSpec) clone() ParameterSpec {
	if p.Enum != nil {
		p.Enum = append([]any(nil), p.Enum...)
	}
	return p
}

// valuesEqual compares JSON-decoded values, treating all numeric kinds alike.
func valuesEqual(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
