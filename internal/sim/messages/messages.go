// Package messages renders player-facing text from a YAML catalogue. Templates
// use {prefix} and {name} placeholders and &-style colour codes, which are
// stripped on render.
package messages

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var defaultsYAML []byte

const defaultPrefix = "&8[&5Totem&8]&r"

var colorCode = regexp.MustCompile(`&[0-9a-fk-orA-FK-OR]`)

type Catalog struct {
	templates map[string]string
	logger    *log.Logger
}

// Default returns the built-in catalogue.
func Default(logger *log.Logger) *Catalog {
	m, err := parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded messages.yaml: %v", err))
	}
	return &Catalog{templates: m, logger: logger}
}

// Load reads path over the built-in catalogue, so keys missing from the file
// keep their default text.
func Load(path string, logger *log.Logger) (*Catalog, error) {
	c := Default(logger)
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	m, err := parse(raw)
	if err != nil {
		return c, fmt.Errorf("messages %s: %w", path, err)
	}
	for k, v := range m {
		c.templates[k] = v
	}
	return c, nil
}

func parse(raw []byte) (map[string]string, error) {
	m := map[string]string{}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *Catalog) Has(key string) bool {
	_, ok := c.templates[key]
	return ok
}

func (c *Catalog) Keys() []string {
	out := make([]string, 0, len(c.templates))
	for k := range c.templates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) Prefix() string {
	if p, ok := c.templates["prefix"]; ok {
		return p
	}
	return defaultPrefix
}

// Render fills the template for key. An unknown key is logged and rendered
// as a visible placeholder line.
func (c *Catalog) Render(key string, vars map[string]string) string {
	tpl, ok := c.templates[key]
	if !ok {
		if c.logger != nil {
			c.logger.Printf("message not found: %s", key)
		}
		return "missing message: " + key
	}
	pairs := []string{"{prefix}", c.Prefix()}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", vars[k])
	}
	return StripColors(strings.NewReplacer(pairs...).Replace(tpl))
}

func StripColors(s string) string {
	return colorCode.ReplaceAllString(s, "")
}
