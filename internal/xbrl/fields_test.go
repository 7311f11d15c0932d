package xbrl

import (
	"testing"

	"github.com/orgnr/bolagsdata/internal/models"
)

func TestAvailabilityForFact(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		namespace string
		want      models.FactAvailability
	}{
		{"se-gen-base:Nettoomsattning", "se-gen-base", models.AvailabilityCore},
		{"se-gen-base:NagotOmappat", "se-gen-base", models.AvailabilityCommon},
		{"se-ar-base:RevisorsFornamn", "se-ar-base", models.AvailabilityOptional},
		{"se-k2-base:NagotAnnat", "se-k2-base", models.AvailabilityExtended},
		{"se-mem-base:Medlemsantal", "se-mem-base", models.AvailabilityExtended},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := availabilityForFact(tc.name, tc.namespace); got != tc.want {
				t.Errorf("availabilityForFact(%q, %q) = %q, want %q", tc.name, tc.namespace, got, tc.want)
			}
		})
	}
}
