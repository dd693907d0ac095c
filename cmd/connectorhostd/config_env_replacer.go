package main

import "reflect"

// replaceEnvKeys recurses through data (a pointer) replacing any string
// field that begins with "$" with the named environment variable's value,
// verbatim from dexidp-dex's cmd/dex/config_env_replacer.go. This is the
// host config's own $FOO substitution convention, distinct from the
// loader package's ${FOO} convention used inside connector manifests: the
// two config surfaces were modeled on two different parts of the pack
// (this file is an almost-unmodified copy of the teacher's, since its
// reflection-based walk is already fully generic).
func replaceEnvKeys(data any, getenv func(string) string) error {
	val := reflect.ValueOf(data)

	if val.Kind() != reflect.Interface && val.Kind() != reflect.Ptr {
		return nil
	}

	s := val.Elem()
	if !s.CanSet() {
		return nil
	}

	if s.Kind() == reflect.String {
		value := s.Interface().(string)
		if len(value) > 1 && value[0] == '$' {
			s.SetString(getenv(value[1:]))
		}
		return nil
	}

	if s.Kind() == reflect.Struct {
		for i := 0; i < s.NumField(); i++ {
			f := s.Field(i)
			if err := replaceEnvKeys(f.Addr().Interface(), getenv); err != nil {
				return err
			}
		}
		return nil
	}

	if s.Kind() == reflect.Slice {
		for i := 0; i < s.Len(); i++ {
			if err := replaceEnvKeys(s.Index(i).Addr().Interface(), getenv); err != nil {
				return err
			}
		}
		return nil
	}

	return nil
}
