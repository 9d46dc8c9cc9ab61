package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		hint       string
		wantType   Type
		wantValue  string
		wantHandle string
	}{
		{name: "at handle", query: "@kulesapanca", wantType: TypeInstagramUsername, wantValue: "kulesapanca", wantHandle: "kulesapanca"},
		{name: "profile url trailing slash", query: "https://instagram.com/kulesapanca/", wantType: TypeInstagramURL, wantValue: "kulesapanca", wantHandle: "kulesapanca"},
		{name: "profile url without scheme and query", query: "www.instagram.com/KuleSapanca?igsh=abc", wantType: TypeInstagramURL, wantValue: "kulesapanca", wantHandle: "kulesapanca"},
		{name: "short domain profile url", query: "http://instagr.am/kule.sapanca", wantType: TypeInstagramURL, wantValue: "kule.sapanca", wantHandle: "kule.sapanca"},
		{name: "website with scheme", query: "https://KuleSapanca.com", wantType: TypeWebsite, wantValue: "kulesapanca.com"},
		{name: "website multi label suffix with path", query: "www.kule-sapanca.com.tr/iletisim", wantType: TypeWebsite, wantValue: "kule-sapanca.com.tr"},
		{name: "bare dotted name is a username first", query: "kulesapanca.com", wantType: TypeInstagramUsername, wantValue: "kulesapanca.com", wantHandle: "kulesapanca.com"},
		{name: "spaced national phone", query: "0543 166 54 54", wantType: TypePhone, wantValue: "+905431665454"},
		{name: "formatted international phone", query: "+90 (543) 166-54-54", wantType: TypePhone, wantValue: "+905431665454"},
		{name: "short digit run is free text", query: "123-45", wantType: TypeFreeText, wantValue: "123-45"},
		{name: "free text collapses spaces", query: "  Kule   Sapanca Otel ", wantType: TypeFreeText, wantValue: "Kule Sapanca Otel"},
		{name: "empty query", query: "   ", wantType: TypeFreeText, wantValue: ""},
		{name: "phone hint short-circuits username", query: "05431665454", hint: "phone", wantType: TypePhone, wantValue: "+905431665454"},
		{name: "website hint short-circuits username", query: "kulesapanca.com", hint: "website", wantType: TypeWebsite, wantValue: "kulesapanca.com"},
		{name: "non-matching hint falls through", query: "@kulesapanca", hint: "website", wantType: TypeInstagramUsername, wantValue: "kulesapanca", wantHandle: "kulesapanca"},
		{name: "unknown hint ignored", query: "@kulesapanca", hint: "telegram", wantType: TypeInstagramUsername, wantValue: "kulesapanca", wantHandle: "kulesapanca"},
		{name: "free text hint ignored", query: "@kulesapanca", hint: "free_text", wantType: TypeInstagramUsername, wantValue: "kulesapanca", wantHandle: "kulesapanca"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.query, tt.hint)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantValue, got.CanonicalValue)
			assert.Equal(t, tt.wantHandle, got.ExtractedHandle)
		})
	}
}

func TestClassifyPhoneKind(t *testing.T) {
	got := Classify("0543 166 54 54", "")
	require.Equal(t, TypePhone, got.Type)
	assert.True(t, got.Phone.IsParsed())

	got = Classify("@kulesapanca", "")
	assert.False(t, got.Phone.IsParsed())
}

func TestClassifyDeterministic(t *testing.T) {
	inputs := [][2]string{
		{"@kulesapanca", ""},
		{"https://instagram.com/kulesapanca/", ""},
		{"0543 166 54 54", ""},
		{"kulesapanca.com", "website"},
		{"Kule Sapanca", "phone"},
	}
	for _, in := range inputs {
		first := Classify(in[0], in[1])
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Classify(in[0], in[1]))
		}
	}
}

func TestParseType(t *testing.T) {
	for _, s := range []string{"instagram_url", "instagram_username", "website", "phone", "free_text", " PHONE "} {
		_, ok := ParseType(s)
		assert.True(t, ok, s)
	}
	for _, s := range []string{"", "url", "instagram"} {
		_, ok := ParseType(s)
		assert.False(t, ok, s)
	}
}
