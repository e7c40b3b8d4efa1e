package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIsDeterministic(t *testing.T) {
	assert.Equal(t, "math_tutor", Normalize("Math Tutor!"))
	assert.Equal(t, "math_tutor", Normalize("math_tutor"))
	assert.Equal(t, "math_tutor", Normalize("MATH   TUTOR"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Hair Salon", "hair_salon"},
		{"  plumber  ", "plumber"},
		{"Dentist's Office", "dentists_office"},
		{"yoga__studio", "yoga_studio"},
		{"_electrician_", "electrician"},
		{"Café & Bakery", "caf_bakery"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.raw), "raw=%q", tt.raw)
	}
}

func TestValidateRejectsGenericNames(t *testing.T) {
	for _, raw := range []string{"general", "service", "Business", "SHOP", "other"} {
		_, ok := Validate(raw)
		assert.False(t, ok, "expected %q to be rejected", raw)
	}
}

func TestValidateRejectsShortAndEmpty(t *testing.T) {
	for _, raw := range []string{"st", "a", "", "!!"} {
		_, ok := Validate(raw)
		assert.False(t, ok, "expected %q to be rejected", raw)
	}
}

func TestValidateAcceptsSpecificCategories(t *testing.T) {
	slug, ok := Validate("Spanish Classes")
	assert.True(t, ok)
	assert.Equal(t, "spanish_classes", slug)

	slug, ok = Validate("dentist")
	assert.True(t, ok)
	assert.Equal(t, "dentist", slug)
}
