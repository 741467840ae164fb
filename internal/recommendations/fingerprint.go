package recommendations

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// EmptyFingerprint is reported for missing or empty source data.
	EmptyFingerprint = "empty-data"
	// FingerprintLength is the length of every non-fallback fingerprint.
	FingerprintLength = 32

	fallbackPrefix = "fallback-"
)

// Fingerprint derives a short printable change-detection token from arbitrary source data.
// Values with equal JSON representations yield equal fingerprints. When the value cannot be
// serialised a unique placeholder is returned so the cache never matches it.
func Fingerprint(source any) (fp string) {
	defer func() {
		if r := recover(); r != nil {
			fp = fallbackFingerprint()
		}
	}()

	if isNil(source) {
		return EmptyFingerprint
	}

	canonical, err := canonicalJSON(source)
	if err != nil {
		return fallbackFingerprint()
	}
	if emptyJSON(canonical) {
		return EmptyFingerprint
	}

	escaped := url.QueryEscape(string(canonical))
	sum := sha256.Sum256([]byte(escaped))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:FingerprintLength]
}

// IsEmptySource reports whether source carries no data worth generating from.
func IsEmptySource(source any) (empty bool) {
	defer func() {
		if r := recover(); r != nil {
			empty = false
		}
	}()

	if isNil(source) {
		return true
	}
	switch v := reflect.ValueOf(source); v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		if v.Len() == 0 {
			return true
		}
	}

	canonical, err := canonicalJSON(source)
	if err != nil {
		return false
	}
	return emptyJSON(canonical)
}

// IsFallbackFingerprint reports whether fp was produced for unserialisable input.
func IsFallbackFingerprint(fp string) bool {
	return strings.HasPrefix(fp, fallbackPrefix)
}

// canonicalJSON re-encodes the value through a generic tree so that structs and maps with
// the same content serialise identically with sorted keys.
func canonicalJSON(source any) ([]byte, error) {
	raw, err := json.Marshal(source)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func emptyJSON(canonical []byte) bool {
	switch string(canonical) {
	case "null", "{}", "[]", `""`:
		return true
	}
	return false
}

func isNil(source any) bool {
	if source == nil {
		return true
	}
	v := reflect.ValueOf(source)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func fallbackFingerprint() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s%d-%s", fallbackPrefix, time.Now().UnixMilli(), suffix)
}
