package combo

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

func TestParseSelections(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []domain.ComboSelection
		wantErr bool
	}{
		{name: "missing", raw: ``},
		{name: "null", raw: `null`},
		{name: "empty object", raw: `{}`},
		{name: "empty list", raw: `[]`},
		{
			name: "keyed object is ordered by id and drops zero quantities",
			raw:  `{"5": 1, "2": 3, "9": 0}`,
			want: []domain.ComboSelection{{ComboID: 2, Quantity: 3}, {ComboID: 5, Quantity: 1}},
		},
		{
			name: "list keeps request order",
			raw:  `[{"comboId": 5, "quantity": 1}, {"comboId": 2, "quantity": 3}]`,
			want: []domain.ComboSelection{{ComboID: 5, Quantity: 1}, {ComboID: 2, Quantity: 3}},
		},
		{name: "keyed negative quantity", raw: `{"1": -1}`, wantErr: true},
		{name: "keyed fractional quantity", raw: `{"1": 1.5}`, wantErr: true},
		{name: "keyed string quantity", raw: `{"1": "2"}`, wantErr: true},
		{name: "keyed non numeric id", raw: `{"popcorn": 2}`, wantErr: true},
		{name: "keyed zero id", raw: `{"0": 2}`, wantErr: true},
		{name: "keyed padded id", raw: `{"3": 1, "03": 2}`, wantErr: true},
		{name: "keyed signed id", raw: `{"+3": 1}`, wantErr: true},
		{name: "keyed repeated key", raw: `{"3": 1, "3": 5}`, wantErr: true},
		{name: "keyed repeated key with zero quantity", raw: `{"3": 0, "3": 2}`, wantErr: true},
		{name: "keyed nested value", raw: `{"3": {"quantity": 1}}`, wantErr: true},
		{name: "keyed trailing data", raw: `{"3": 1} {"4": 1}`, wantErr: true},
		{name: "list zero quantity", raw: `[{"comboId": 1, "quantity": 0}]`, wantErr: true},
		{name: "list missing quantity", raw: `[{"comboId": 1}]`, wantErr: true},
		{name: "list duplicate id", raw: `[{"comboId": 1, "quantity": 1}, {"comboId": 1, "quantity": 2}]`, wantErr: true},
		{name: "list unknown field", raw: `[{"comboId": 1, "quantity": 1, "price": 0}]`, wantErr: true},
		{name: "list of numbers", raw: `[1, 2]`, wantErr: true},
		{name: "scalar", raw: `3`, wantErr: true},
		{name: "string", raw: `"popcorn"`, wantErr: true},
		{name: "broken json", raw: `{"1": `, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSelections(json.RawMessage(tt.raw))

			if tt.wantErr {
				if !domain.IsKind(err, domain.KindValidation) {
					t.Fatalf("ParseSelections(%s) error = %v, want validation error", tt.raw, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseSelections(%s) unexpected error: %v", tt.raw, err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("selections mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
