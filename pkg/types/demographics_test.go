package types

import (
	"errors"
	"testing"
)

func TestParseDemographics(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Demographics
		wantErr bool
	}{
		{"complete", `{"gender":"male","ageGroup":"18-30","region":"X"}`, Demographics{"male", "18-30", "X"}, false},
		{"extra fields ignored", `{"gender":"female","ageGroup":"31-45","region":"Y","city":"Z"}`, Demographics{"female", "31-45", "Y"}, false},
		{"empty", "", Demographics{}, true},
		{"not json", "gender=male", Demographics{}, true},
		{"missing region", `{"gender":"male","ageGroup":"18-30"}`, Demographics{}, true},
		{"pipe in field", `{"gender":"male","ageGroup":"18|30","region":"X"}`, Demographics{}, true},
		{"newline in field", `{"gender":"male","ageGroup":"18-30","region":"X\nY"}`, Demographics{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDemographics(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDemographics) {
					t.Errorf("expected ErrInvalidDemographics, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestDemographicsSuffix(t *testing.T) {
	d := Demographics{Gender: "male", AgeGroup: "18-30", Region: "X"}
	if got := d.Suffix(); got != "|male|18-30|X" {
		t.Errorf("expected |male|18-30|X, got %s", got)
	}
}

func TestDemographicsJSONRoundTrip(t *testing.T) {
	d := Demographics{Gender: "female", AgeGroup: "46-60", Region: "North"}
	got, err := ParseDemographics(d.JSON())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != d {
		t.Errorf("expected %+v, got %+v", d, got)
	}
}
