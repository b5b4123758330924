package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSrc string

// Load reads a configuration file, checks it against the embedded CUE
// schema, runs structural validation, and returns the group list. The
// first structural violation is returned as the error; use Lint to
// collect all of them.
//
// The format is chosen by file extension: .yaml/.yml is decoded as YAML,
// everything else as JSON (the original wire format).
func Load(path string) ([]Group, error) {
	groups, errs, err := Lint(path)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("config file %s: %w", path, errs[0])
	}
	return groups, nil
}

// Lint reads and decodes a configuration file and returns every
// structural violation instead of stopping at the first. The error
// return covers unreadable, undecodable, or schema-invalid files, where
// structural validation never ran.
func Lint(path string) ([]Group, []ValidationError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read config file: %w", err)
	}

	groups, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return groups, Validate(groups), nil
}

// Parse decodes configuration content and checks it against the
// embedded CUE schema. The ext argument selects the decoder the way
// Load does; an empty ext means JSON. Structural validation is the
// caller's concern (see Validate).
func Parse(data []byte, ext string) ([]Group, error) {
	var (
		raw    any
		groups []Group
	)

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
		if err := yaml.Unmarshal(data, &groups); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
		if err := json.Unmarshal(data, &groups); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	}

	if err := checkSchema(raw); err != nil {
		return nil, err
	}

	return groups, nil
}

// checkSchema unifies the decoded document with the #Config definition
// and reports the first constraint violation. Definitions are closed, so
// this also rejects misspelled or unknown fields.
func checkSchema(raw any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile embedded schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup #Config: %w", err)
	}

	unified := def.Unify(ctx.Encode(raw))
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return fmt.Errorf("schema: %s", formatCUEError(err))
	}
	return nil
}

// formatCUEError flattens a CUE error list into one readable message.
// CUE reports each failing path separately; the first is usually the
// actionable one, the rest are kept for context.
func formatCUEError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}

	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}
