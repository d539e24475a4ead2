package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Lat *float64 `validate:"required,latitude"`
	Lng *float64 `validate:"required,longitude"`
}

type keyed struct {
	Key string `validate:"required,origin_key"`
}

func f(v float64) *float64 { return &v }

func TestValidateStruct_Coordinates(t *testing.T) {
	tests := []struct {
		name    string
		in      point
		wantErr bool
	}{
		{"valid", point{Lat: f(1.3521), Lng: f(103.8198)}, false},
		{"zero is a valid coordinate", point{Lat: f(0), Lng: f(0)}, false},
		{"latitude out of range", point{Lat: f(90.1), Lng: f(0)}, true},
		{"longitude out of range", point{Lat: f(0), Lng: f(-180.5)}, true},
		{"missing latitude", point{Lng: f(103.8)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				var ve *ValidationError
				require.True(t, errors.As(err, &ve))
				assert.True(t, ve.HasErrors())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOriginKey(t *testing.T) {
	valid := []string{"1.352,103.820", "-33.869,151.209", "0.000,0.000"}
	invalid := []string{"", "1.35,103.82", "1.3521,103.8198", "1.352;103.820", "abc", "1.352, 103.820"}

	for _, k := range valid {
		assert.True(t, ValidateOriginKey(k), k)
		assert.NoError(t, ValidateStruct(keyed{Key: k}))
	}
	for _, k := range invalid {
		assert.False(t, ValidateOriginKey(k), k)
	}
}

func TestValidationError_Message(t *testing.T) {
	ve := &ValidationError{}
	assert.False(t, ve.HasErrors())

	ve.AddError("origin.lat", "is required")
	ve.AddError("destinations", "must not contain duplicates")
	assert.Equal(t, "validation failed: destinations: must not contain duplicates; origin.lat: is required", ve.Error())
}

func TestRegisterGinValidators(t *testing.T) {
	assert.NoError(t, RegisterGinValidators())
}
