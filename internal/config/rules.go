package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/JonMunkholm/swimresults/internal/roster"
)

// RulesEnvPrefix prefixes environment overrides for matching rules,
// e.g. SWIM_RULES_FUZZY_MIN_OVERLAP=4.
const RulesEnvPrefix = "SWIM_RULES_"

// LoadRules builds the matching rules by layering, lowest first:
//  1. roster.DefaultRules()
//  2. the YAML file at path, when path is not empty
//  3. SWIM_RULES_* environment variables
//
// A key present in a higher layer replaces the default value whole; lists
// and dictionaries are not merged.
func LoadRules(path string) (roster.Rules, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return roster.Rules{}, fmt.Errorf("load rules file %s: %w", path, err)
		}
	}

	lists := listKeys()
	envProvider := env.ProviderWithValue(RulesEnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, RulesEnvPrefix))
		if lists[key] {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return roster.Rules{}, fmt.Errorf("load rules env: %w", err)
	}

	var over roster.Rules
	if err := k.UnmarshalWithConf("", &over, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return roster.Rules{}, fmt.Errorf("decode rules: %w", err)
	}

	rules := roster.DefaultRules()
	overlay(&rules, over, k)

	if err := rules.Validate(); err != nil {
		return roster.Rules{}, fmt.Errorf("invalid matching rules: %w", err)
	}
	return rules, nil
}

// listKeys returns the koanf keys of the string-list rule fields.
func listKeys() map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(roster.Rules{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Kind() == reflect.Slice && f.Type.Elem().Kind() == reflect.String {
			keys[f.Tag.Get("koanf")] = true
		}
	}
	return keys
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// overlay copies every field of src whose koanf key was supplied onto dst.
func overlay(dst *roster.Rules, src roster.Rules, k *koanf.Koanf) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src)
	t := sv.Type()
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("koanf")
		if key == "" || !k.Exists(key) {
			continue
		}
		dv.Field(i).Set(sv.Field(i))
	}
}
