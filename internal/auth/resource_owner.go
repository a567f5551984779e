package auth

import (
	"encoding/json"
	"fmt"
)

// ResourceOwner is a read-only view over an OVHcloud user info payload.
// Accessors never fail: a missing field reads as the empty string.
type ResourceOwner struct {
	data map[string]any
}

// NewResourceOwner copies data so later changes by the caller are not observed.
func NewResourceOwner(data map[string]any) *ResourceOwner {
	return &ResourceOwner{data: copyMap(data)}
}

// ID returns the stable identifier of the owner, the OIDC "sub" claim.
func (o *ResourceOwner) ID() string {
	return o.Nichandle()
}

// Nichandle returns the OVHcloud account handle, carried in "sub".
func (o *ResourceOwner) Nichandle() string {
	return o.String("sub")
}

// Email returns the "email" field.
func (o *ResourceOwner) Email() string {
	return o.String("email")
}

// FirstName returns the "given_name" field.
func (o *ResourceOwner) FirstName() string {
	return o.String("given_name")
}

// LastName returns the "family_name" field.
func (o *ResourceOwner) LastName() string {
	return o.String("family_name")
}

// Name joins first and last name with a single space. The space is kept even
// when either part is missing.
func (o *ResourceOwner) Name() string {
	return o.FirstName() + " " + o.LastName()
}

// Value returns the raw field stored under key and whether it was present.
func (o *ResourceOwner) Value(key string) (any, bool) {
	v, ok := o.data[key]
	return v, ok
}

// String returns the field stored under key rendered as a string, or "" when
// the field is absent or null.
func (o *ResourceOwner) String(key string) string {
	v, _ := o.Value(key)
	return stringValue(v)
}

// ToRaw returns a copy of the whole payload.
func (o *ResourceOwner) ToRaw() map[string]any {
	return copyMap(o.data)
}

// MarshalJSON encodes the raw payload.
func (o *ResourceOwner) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.data)
}

func stringValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case json.Number:
		return value.String()
	case []string:
		if len(value) > 0 {
			return value[0]
		}
		return ""
	default:
		return fmt.Sprint(value)
	}
}

func copyMap(data map[string]any) map[string]any {
	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}
	return copied
}
