// Package schema implements the process-wide payload schema registry (C1):
// a fixed, immutable-after-init mapping from (kind, version) to a validator
// for that artifact's JSON payload. Per the design note on global mutable
// state, registration happens once in a strictly-enumerated init phase
// (Init) and the registry is read-only afterward — no runtime
// re-registration.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/models"
)

// Key identifies one registered schema.
type Key struct {
	Kind    models.ArtifactKind
	Version int
}

// Validator decodes and validates a raw payload for one (kind, version).
// It returns the decoded value (as an any so callers can type-assert to
// the concrete payload struct) or a validation error.
type Validator func(payload []byte) (any, error)

// Registry is the process-wide (kind, version) -> Validator map.
type Registry struct {
	mu         sync.RWMutex
	validators map[Key]Validator
}

// NewRegistry returns an empty registry. Use Init to populate the fixed set
// of supported kinds at process start.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[Key]Validator)}
}

// Register adds a validator for (kind, version). Fails if the pair is
// already registered, version < 1, or kind is empty.
func (r *Registry) Register(kind models.ArtifactKind, version int, v Validator) error {
	if kind == "" {
		return apierr.New(apierr.KindValidation, apierr.CodeInvalidKind, "kind must not be empty")
	}
	if version < 1 {
		return apierr.New(apierr.KindValidation, apierr.CodeInvalidValue, "schema version must be >= 1")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key{Kind: kind, Version: version}
	if _, exists := r.validators[key]; exists {
		return apierr.New(apierr.KindValidation, apierr.CodeDuplicate,
			fmt.Sprintf("schema already registered for %s v%d", kind, version))
	}
	r.validators[key] = v
	return nil
}

// Validate decodes and validates payload against the registered schema for
// (kind, version). Returns a SchemaInvalid apierr.Error when unregistered or
// when validation fails.
func (r *Registry) Validate(kind models.ArtifactKind, version int, payload []byte) (any, error) {
	r.mu.RLock()
	v, ok := r.validators[Key{Kind: kind, Version: version}]
	r.mu.RUnlock()

	if !ok {
		return nil, apierr.New(apierr.KindSchemaInvalid, apierr.CodeSchemaInvalid,
			fmt.Sprintf("no schema registered for %s v%d", kind, version))
	}

	decoded, err := v(payload)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindSchemaInvalid, apierr.CodeSchemaInvalid,
			fmt.Sprintf("payload failed validation for %s v%d", kind, version), err)
	}
	return decoded, nil
}

// Serialize produces canonical JSON for a decoded payload value.
func (r *Registry) Serialize(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

// GetSchema returns the registered Validator for (kind, version), per §4.1's
// get_schema operation.
func (r *Registry) GetSchema(kind models.ArtifactKind, version int) (Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[Key{Kind: kind, Version: version}]
	return v, ok
}

// IsRegistered reports whether (kind, version) has a validator.
func (r *Registry) IsRegistered(kind models.ArtifactKind, version int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.validators[Key{Kind: kind, Version: version}]
	return ok
}

// CurrentVersion returns the highest registered version for kind, for
// callers (the ML worker) that stamp newly-created envelopes with "the
// current registered version" rather than a caller-supplied one.
func (r *Registry) CurrentVersion(kind models.ArtifactKind) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	best := 0
	found := false
	for k := range r.validators {
		if k.Kind == kind && k.Version > best {
			best = k.Version
			found = true
		}
	}
	return best, found
}

// ListRegistered returns every registered (kind, version) key.
func (r *Registry) ListRegistered() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]Key, 0, len(r.validators))
	for k := range r.validators {
		keys = append(keys, k)
	}
	return keys
}

var structValidator = validator.New()

// validateStruct runs struct-tag validation after a JSON decode — the
// shared tail of every typed payload validator below.
func validateStruct(v any) error {
	return structValidator.Struct(v)
}

func jsonDecode[T any](payload []byte) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("decoding payload: %w", err)
	}
	if err := validateStruct(v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
