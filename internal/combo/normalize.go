package combo

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

// ParseSelections normalizes the combo part of a booking request. Two shapes are
// accepted:
//
//	{"3": 2, "5": 1}                                   keyed by combo id
//	[{"comboId": 3, "quantity": 2}, {"comboId": 5, "quantity": 1}]
//
// In the keyed shape a zero quantity means "not selected" and is dropped, and keys must
// be canonical ids. In either shape a combo id may appear once, and list entries must have
// a positive quantity.
// Missing or null input yields no selections.
func ParseSelections(raw json.RawMessage) ([]domain.ComboSelection, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '{':
		return parseKeyed(trimmed)
	case '[':
		return parseList(trimmed)
	default:
		return nil, domain.NewValidationError("combos must be an object keyed by combo id or a list of selections")
	}
}

func parseKeyed(raw []byte) ([]domain.ComboSelection, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	malformed := domain.NewValidationError("malformed combos object")

	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, malformed
	}

	seen := make(map[int]struct{})
	var selections []domain.ComboSelection

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed
		}
		key, ok := tok.(string)
		if !ok {
			return nil, malformed
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, malformed
		}

		// "03" and "3" would otherwise name the same combo
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 || strconv.Itoa(id) != key {
			return nil, domain.NewValidationError("combo id %q must be a positive integer", key)
		}

		if _, dup := seen[id]; dup {
			return nil, domain.NewValidationError("combo %d is selected more than once", id)
		}
		seen[id] = struct{}{}

		qty, ok := integer(value)
		if !ok || qty < 0 {
			return nil, domain.NewValidationError("quantity of combo %d must be a non-negative integer", id)
		}

		if qty == 0 {
			continue
		}

		selections = append(selections, domain.ComboSelection{ComboID: id, Quantity: qty})
	}

	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return nil, malformed
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, malformed
	}

	sort.Slice(selections, func(i, j int) bool {
		return selections[i].ComboID < selections[j].ComboID
	})

	if len(selections) == 0 {
		return nil, nil
	}

	return selections, nil
}

func parseList(raw []byte) ([]domain.ComboSelection, error) {
	var entries []map[string]any
	if err := decodeStrict(raw, &entries); err != nil {
		return nil, domain.NewValidationError("malformed combos list")
	}

	seen := make(map[int]struct{}, len(entries))
	selections := make([]domain.ComboSelection, 0, len(entries))

	for i, entry := range entries {
		for field := range entry {
			if field != "comboId" && field != "quantity" {
				return nil, domain.NewValidationError("combos[%d]: unknown field %q", i, field)
			}
		}

		id, ok := integer(entry["comboId"])
		if !ok || id <= 0 {
			return nil, domain.NewValidationError("combos[%d]: comboId must be a positive integer", i)
		}

		qty, ok := integer(entry["quantity"])
		if !ok || qty <= 0 {
			return nil, domain.NewValidationError("combos[%d]: quantity must be a positive integer", i)
		}

		if _, dup := seen[id]; dup {
			return nil, domain.NewValidationError("combo %d is selected more than once", id)
		}
		seen[id] = struct{}{}

		selections = append(selections, domain.ComboSelection{ComboID: id, Quantity: qty})
	}

	if len(selections) == 0 {
		return nil, nil
	}

	return selections, nil
}

func decodeStrict(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if err := dec.Decode(dst); err != nil {
		return err
	}

	if dec.More() {
		return strconv.ErrSyntax
	}

	return nil
}

func integer(v any) (int, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}

	i, err := strconv.ParseInt(n.String(), 10, 32)
	if err != nil {
		return 0, false
	}

	return int(i), true
}
