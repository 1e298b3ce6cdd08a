package app

import (
	"net/http"

	"github.com/metinatakli/cinema-booking-core/api"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

func (app *Application) ListCombos(w http.ResponseWriter, r *http.Request) {
	combos, err := app.combos.List(r.Context())
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	resp := api.CombosResponse{Combos: make([]api.Combo, 0, len(combos))}
	for _, c := range combos {
		resp.Combos = append(resp.Combos, toComboResponse(c))
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toComboResponse(c domain.Combo) api.Combo {
	items := make([]api.ComboItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, api.ComboItem{Name: item.Name, Quantity: item.Quantity})
	}

	return api.Combo{
		Id:    c.ID,
		Name:  c.Name,
		Items: items,
		Price: c.UnitPrice,
	}
}
