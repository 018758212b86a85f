package api

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/qri-io/jsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

// loadSchemas compiles every embedded schema once, keyed by file name without
// extension.
func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		entries, err := schemaFS.ReadDir("schemas")
		if err != nil {
			schemasErr = fmt.Errorf("read schemas: %w", err)
			return
		}
		out := make(map[string]*jsonschema.Schema, len(entries))
		for _, e := range entries {
			b, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
			if err != nil {
				schemasErr = fmt.Errorf("read schema %s: %w", e.Name(), err)
				return
			}
			rs := &jsonschema.Schema{}
			if err := json.Unmarshal(b, rs); err != nil {
				schemasErr = fmt.Errorf("compile schema %s: %w", e.Name(), err)
				return
			}
			out[strings.TrimSuffix(e.Name(), path.Ext(e.Name()))] = rs
		}
		schemas = out
	})
	return schemas, schemasErr
}

// decodeBody checks the request body against the named schema and decodes it
// into dst.
func decodeBody(r *http.Request, schema string, dst any) error {
	all, err := loadSchemas()
	if err != nil {
		return err
	}
	rs, ok := all[schema]
	if !ok {
		return fmt.Errorf("unknown schema %q", schema)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", errBadRequest)
	}
	if !json.Valid(body) {
		return fmt.Errorf("%w: invalid json", errBadRequest)
	}

	keyErrs, err := rs.ValidateBytes(r.Context(), body)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(keyErrs) > 0 {
		msgs := make([]string, 0, len(keyErrs))
		for _, ke := range keyErrs {
			msgs = append(msgs, strings.TrimSpace(ke.PropertyPath+" "+ke.Message))
		}
		return fmt.Errorf("%w: %s", errBadRequest, strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
