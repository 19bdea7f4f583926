package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	domainconfig "github.com/felixgeelhaar/toolgate/domain/config"
)

// referencePattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
// A bare $VAR is left alone: shell.env values routinely carry $PATH-style
// references meant for the shell, not the loader.
var referencePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*|:\?[^}]*)?\}`)

// LookupFunc resolves an environment variable.
type LookupFunc func(name string) (string, bool)

// envExpander expands environment references in configuration text.
type envExpander struct {
	// strict fails if a plain ${VAR} is not set.
	strict bool
	// lookup resolves variables (default: os.LookupEnv).
	lookup LookupFunc
	// missing tracks unresolved required variables.
	missing []string
}

// Expand replaces every reference in input.
func (e *envExpander) Expand(input string) (string, error) {
	e.missing = nil
	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	result := referencePattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := referencePattern.FindStringSubmatch(match)
		name, modifier := sub[1], sub[2]
		value, exists := lookup(name)

		switch {
		case strings.HasPrefix(modifier, ":-"):
			if !exists || value == "" {
				return modifier[2:]
			}
		case strings.HasPrefix(modifier, ":?"):
			if !exists || value == "" {
				msg := modifier[2:]
				if msg == "" {
					msg = "not set"
				}
				e.missing = append(e.missing, fmt.Sprintf("%s: %s", name, msg))
				return match
			}
		default:
			if !exists {
				if e.strict {
					e.missing = append(e.missing, name)
				}
				return ""
			}
		}
		return value
	})

	if len(e.missing) > 0 {
		return "", fmt.Errorf("%w: %s", domainconfig.ErrMissingEnvVar, strings.Join(e.missing, ", "))
	}
	return result, nil
}

// ExpandEnv expands references, replacing unset plain variables with "".
// Required references that are unset are left in place.
func ExpandEnv(input string) string {
	e := &envExpander{}
	result, err := e.Expand(input)
	if err != nil {
		return input
	}
	return result
}

// ExpandEnvStrict expands references and fails on any unset variable
// without a default.
func ExpandEnvStrict(input string) (string, error) {
	e := &envExpander{strict: true}
	return e.Expand(input)
}
