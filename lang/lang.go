// Package lang holds the user-facing message catalogue. Messages live in
// a YAML file keyed by language, so server owners can reword or
// translate the bot without recompiling.
package lang

import (
	"log"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	mu       sync.RWMutex
	messages map[string]string
)

// Load parses the catalogue and selects the active language block. A
// missing file leaves the catalogue empty; lookups then render as
// {key} placeholders, which is enough to spot what is missing.
func Load(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[lang] Could not read %s: %v, using key placeholders", path, err)
		mu.Lock()
		messages = make(map[string]string)
		mu.Unlock()
		return
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		log.Fatalf("[lang] Failed to parse %s: %v", path, err)
	}

	active := "en"
	if v, ok := raw["active_language"].(string); ok && v != "" {
		active = v
	}

	block, ok := raw[active].(map[string]interface{})
	if !ok {
		block, ok = raw["en"].(map[string]interface{})
		if !ok {
			log.Printf("[lang] No %q or \"en\" block in %s, using key placeholders", active, path)
			mu.Lock()
			messages = make(map[string]string)
			mu.Unlock()
			return
		}
		log.Printf("[lang] Language %q not found in %s, falling back to \"en\"", active, path)
	}

	m := make(map[string]string, len(block))
	for k, v := range block {
		if s, ok := v.(string); ok {
			m[k] = s
		}
	}

	mu.Lock()
	messages = m
	mu.Unlock()

	log.Printf("[lang] Loaded %d messages", len(m))
}

// T looks up a message and substitutes {name} placeholders from the
// name/value pairs.
func T(key string, pairs ...string) string {
	mu.RLock()
	s, ok := messages[key]
	mu.RUnlock()

	if !ok {
		return "{" + key + "}"
	}

	for j := 0; j+1 < len(pairs); j += 2 {
		s = strings.ReplaceAll(s, "{"+pairs[j]+"}", pairs[j+1])
	}
	return s
}
