package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gowebpki/jcs"
	"github.com/kaptinlin/jsonschema"

	"github.com/dmitrijs2005/growthfarm/internal/client/models"
	"github.com/dmitrijs2005/growthfarm/internal/client/repositories/kv"
)

// Persisted keys. The names are shared with older app releases and must not
// change.
const (
	KeyToken      = "token"
	KeyUser       = "user"
	KeyGuestMode  = "guestMode"
	KeyRememberMe = "rememberMe"
)

// InvalidTokenMarker is a sentinel some releases persisted instead of
// removing a revoked token.
const InvalidTokenMarker = "invalid_token"

// SessionKeys lists every key the session owns.
var SessionKeys = []string{KeyToken, KeyUser, KeyGuestMode, KeyRememberMe}

// credentialKeys are removed by a quick logout.
var credentialKeys = []string{KeyToken, KeyUser, KeyGuestMode}

// Record is the typed form of the persisted session keys.
type Record struct {
	Token      string
	HasToken   bool
	User       *models.UserProfile
	GuestMode  bool
	RememberMe bool
}

const profileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": ["string", "integer"]},
    "username": {"type": "string"},
    "email": {"type": "string"},
    "full_name": {"type": "string"},
    "phone": {"type": "string"},
    "role": {"type": "string"}
  }
}`

var compiledProfileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(profileSchema))
	if err != nil {
		return nil, fmt.Errorf("compile profile schema: %w", err)
	}
	return schema, nil
})

func validateProfile(data []byte) error {
	schema, err := compiledProfileSchema()
	if err != nil {
		return err
	}
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("profile schema validation failed: %v", result.Errors)
}

// EncodeUser returns the canonical JSON form of a profile. The output is
// validated against the same schema ParseRecord applies, so whatever is
// written can be read back.
func EncodeUser(u *models.UserProfile) (string, error) {
	if u == nil {
		return "", errors.New("encode user: nil profile")
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("encode user: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize user: %w", err)
	}
	if err := validateProfile(canonical); err != nil {
		return "", fmt.Errorf("encode user: %w", err)
	}
	return string(canonical), nil
}

func decodeUser(raw string) (*models.UserProfile, error) {
	if err := validateProfile([]byte(raw)); err != nil {
		return nil, err
	}
	var u models.UserProfile
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func parseBool(key, raw string) (bool, error) {
	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s=%q is not a boolean", ErrCorruptRecord, key, raw)
	}
}

// ParseRecord converts raw persisted values into a Record. Missing keys are
// absent fields. Every malformed value is reported, wrapped in
// ErrCorruptRecord; fields that did parse are still filled in.
func ParseRecord(values map[string]string) (Record, error) {
	var (
		rec  Record
		errs []error
	)

	if tok, ok := values[KeyToken]; ok {
		if tok == "" {
			errs = append(errs, fmt.Errorf("%w: empty %s", ErrCorruptRecord, KeyToken))
		} else {
			rec.Token = tok
			rec.HasToken = true
		}
	}

	if raw, ok := values[KeyUser]; ok {
		u, err := decodeUser(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrCorruptRecord, KeyUser, err))
		} else {
			rec.User = u
		}
	}

	if raw, ok := values[KeyGuestMode]; ok {
		v, err := parseBool(KeyGuestMode, raw)
		if err != nil {
			errs = append(errs, err)
		}
		rec.GuestMode = v
	}

	if raw, ok := values[KeyRememberMe]; ok {
		v, err := parseBool(KeyRememberMe, raw)
		if err != nil {
			errs = append(errs, err)
		}
		rec.RememberMe = v
	}

	return rec, errors.Join(errs...)
}

// ReadRecord loads and parses the session keys from store. A store error is
// returned as is; parse errors wrap ErrCorruptRecord.
func ReadRecord(ctx context.Context, store kv.Store) (Record, error) {
	values := make(map[string]string, len(SessionKeys))
	for _, key := range SessionKeys {
		v, ok, err := store.Get(ctx, key)
		if err != nil {
			return Record{}, err
		}
		if ok {
			values[key] = v
		}
	}
	return ParseRecord(values)
}
