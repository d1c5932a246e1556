package api_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jmerrifield20/certauth/pkg/api"
)

func bodyOf(t *testing.T, r *writeThingRequest) map[string]any {
	t.Helper()
	hr, err := r.Endpoint().HTTPRequest()
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(hr.Body, &m); err != nil {
		t.Fatalf("unmarshal body %q: %v", hr.Body, err)
	}
	return m
}

func TestOptional_unsetFieldsOmitted(t *testing.T) {
	m := bodyOf(t, &writeThingRequest{Mount: "cert", Name: "web", Certificate: "PEM"})
	for _, key := range []string{"enabled", "names", "cache_size", "display_name"} {
		if _, ok := m[key]; ok {
			t.Errorf("unset field %q present in body", key)
		}
	}
}

func TestOptional_falsyValuesSerialized(t *testing.T) {
	m := bodyOf(t, &writeThingRequest{
		Mount:       "cert",
		Name:        "web",
		Enabled:     api.Some(false),
		Names:       api.Some([]string{}),
		CacheSize:   api.Some[uint32](0),
		DisplayName: api.Some(""),
	})
	want := map[string]any{
		"certificate":  "",
		"enabled":      false,
		"names":        []any{},
		"cache_size":   float64(0),
		"display_name": "",
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestOptional_identityFieldsNeverSerialized(t *testing.T) {
	m := bodyOf(t, &writeThingRequest{Mount: "cert", Name: "web", DisplayName: api.Some("Web")})
	for _, key := range []string{"mount", "Mount", "name", "Name"} {
		if _, ok := m[key]; ok {
			t.Errorf("identity field %q leaked into body", key)
		}
	}
}

func TestOptional_GetAndUnmarshal(t *testing.T) {
	var o api.Optional[int]
	if _, ok := o.Get(); ok {
		t.Error("zero Optional reports set")
	}

	if err := json.Unmarshal([]byte(`7`), &o); err != nil {
		t.Fatal(err)
	}
	if v, ok := o.Get(); !ok || v != 7 {
		t.Errorf("Get() = %d, %v; want 7, true", v, ok)
	}

	if err := json.Unmarshal([]byte(`null`), &o); err != nil {
		t.Fatal(err)
	}
	if o.IsSet() {
		t.Error("null should reset the Optional")
	}
}
