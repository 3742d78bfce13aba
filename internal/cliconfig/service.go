// Package cliconfig backs the config and doctor commands.
package cliconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/TheBase/TheBase/internal/config"
)

// Redacted replaces secret values in Get output.
const Redacted = "********"

// secretPaths are never printed unless explicitly revealed.
var secretPaths = map[string]bool{
	"ingest.secret":    true,
	"store.dsn":        true,
	"slack.webhookUrl": true,
}

// Groups returns the top-level config groups accepted by Set.
func Groups() []string {
	m, err := toMap(config.DefaultConfig())
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get returns the effective config value at a dotted path. Secrets are
// redacted unless reveal is set.
func Get(path string, reveal bool) (any, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	m, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	keys, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	val, ok := getAtPath(m, keys)
	if !ok {
		return nil, fmt.Errorf("path not found: %s", path)
	}
	if !reveal {
		val = redact(strings.Join(keys, "."), val)
	}
	return val, nil
}

func redact(prefix string, v any) any {
	if secretPaths[prefix] {
		if s, ok := v.(string); ok && s == "" {
			return s
		}
		return Redacted
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range obj {
		obj[k] = redact(prefix+"."+k, child)
	}
	return obj
}

// Set writes a value at path into the config file. The value is parsed as
// JSON when possible and stored as a plain string otherwise.
func Set(path, rawValue string) error {
	keys, err := parsePath(path)
	if err != nil {
		return err
	}
	if err := checkGroup(keys[0]); err != nil {
		return err
	}
	m, cfgPath, err := loadFileConfigMap()
	if err != nil {
		return err
	}
	setAtPath(m, keys, parseValue(rawValue))

	// Reject values that would make the file unloadable.
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, config.DefaultConfig()); err != nil {
		return fmt.Errorf("invalid value for %s: %w", path, err)
	}
	return saveFileConfigMap(cfgPath, m)
}

// Unset removes a value at path from the config file.
func Unset(path string) error {
	keys, err := parsePath(path)
	if err != nil {
		return err
	}
	m, cfgPath, err := loadFileConfigMap()
	if err != nil {
		return err
	}
	if !unsetAtPath(m, keys) {
		return fmt.Errorf("path not found: %s", path)
	}
	return saveFileConfigMap(cfgPath, m)
}

func checkGroup(group string) error {
	for _, g := range Groups() {
		if g == group {
			return nil
		}
	}
	return fmt.Errorf("unknown config group %q (expected one of %s)", group, strings.Join(Groups(), ", "))
}

func toMap(cfg *config.Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func loadFileConfigMap() (map[string]any, string, error) {
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, cfgPath, nil
		}
		return nil, "", err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", cfgPath, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, cfgPath, nil
}

func saveFileConfigMap(cfgPath string, m map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cfgPath, data, 0o600)
}

func parsePath(path string) ([]string, error) {
	var keys []string
	for _, k := range strings.Split(strings.TrimSpace(path), ".") {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("path is empty")
	}
	return keys, nil
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func getAtPath(root map[string]any, keys []string) (any, bool) {
	var cur any = root
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[k]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func setAtPath(root map[string]any, keys []string, value any) {
	obj := root
	for _, k := range keys[:len(keys)-1] {
		child, ok := obj[k].(map[string]any)
		if !ok {
			child = map[string]any{}
			obj[k] = child
		}
		obj = child
	}
	obj[keys[len(keys)-1]] = value
}

func unsetAtPath(root map[string]any, keys []string) bool {
	obj := root
	for _, k := range keys[:len(keys)-1] {
		child, ok := obj[k].(map[string]any)
		if !ok {
			return false
		}
		obj = child
	}
	last := keys[len(keys)-1]
	if _, ok := obj[last]; !ok {
		return false
	}
	delete(obj, last)
	return true
}
