package utils

import (
	"reflect"
	"strings"
)

// NormalizePtrDTO trims *string fields and rounds *float64 fields on a pointer-to-struct DTO.
// Only non-nil pointer fields are touched; nils stay nil so GORM won't update them.
// Fields tagged `normalize:"-"` are left alone (quantities, percentages).
func NormalizePtrDTO(dto any) {
	s, ok := structOf(dto)
	if !ok {
		return
	}
	t := s.Type()
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		if f.Kind() != reflect.Ptr || f.IsNil() || skipNormalize(t.Field(i)) {
			continue
		}
		normalizeValue(f.Elem())
	}
}

// NormalizeDTO trims string fields and rounds float64 fields on a pointer-to-struct DTO.
// Nested structs and slices of structs (invoice items) are normalized recursively.
func NormalizeDTO(dto any) {
	s, ok := structOf(dto)
	if !ok {
		return
	}
	normalizeStruct(s)
}

func normalizeStruct(s reflect.Value) {
	t := s.Type()
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		if !f.CanSet() || skipNormalize(t.Field(i)) {
			continue
		}
		switch f.Kind() {
		case reflect.Struct:
			normalizeStruct(f)
		case reflect.Slice:
			for j := 0; j < f.Len(); j++ {
				if e := f.Index(j); e.Kind() == reflect.Struct {
					normalizeStruct(e)
				}
			}
		case reflect.Ptr:
			if !f.IsNil() {
				normalizeValue(f.Elem())
			}
		default:
			normalizeValue(f)
		}
	}
}

func normalizeValue(v reflect.Value) {
	switch v.Kind() {
	case reflect.String:
		v.SetString(strings.TrimSpace(v.String()))
	case reflect.Float64:
		v.SetFloat(Round2(v.Float()))
	}
}

func structOf(dto any) (reflect.Value, bool) {
	v := reflect.ValueOf(dto)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}, false
	}
	s := v.Elem()
	return s, s.Kind() == reflect.Struct
}

func skipNormalize(sf reflect.StructField) bool {
	return sf.Tag.Get("normalize") == "-"
}
