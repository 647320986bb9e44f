package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/api/responses"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/engine"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/inventory"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/config"
	pkgerrors "github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/errors"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
)

type itemView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category,omitempty"`
	Brand        string `json:"brand,omitempty"`
	Model        string `json:"model,omitempty"`
	Location     string `json:"location,omitempty"`
	TotalQty     int    `json:"total_qty"`
	AvailableQty int    `json:"available_qty"`
}

type catalogView struct {
	Items []itemView `json:"items"`
	// CatalogURL points at the human-readable published catalog, when one
	// is configured.
	CatalogURL string `json:"catalog_url,omitempty"`
}

// InventoryList serves the full equipment catalog.
func InventoryList(items inventory.Repository, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := items.ListAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory"))
			return
		}
		views := make([]itemView, 0, len(all))
		for _, item := range all {
			views = append(views, itemView{
				ID:           item.ID,
				Name:         item.Name,
				Category:     item.Category,
				Brand:        item.Brand,
				Model:        item.Model,
				Location:     item.Location,
				TotalQty:     item.TotalQty,
				AvailableQty: item.AvailableQty,
			})
		}
		responses.WriteSuccess(w, catalogView{
			Items:      views,
			CatalogURL: cfg.Telegram.PublicSheetURL,
		})
	}
}

// ItemAvailability serves one item's live availability.
func ItemAvailability(eng *engine.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := chi.URLParam(r, "itemID")
		avail, err := eng.CheckAvailability(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if avail.Item == nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeNotFound, "item "+itemID+" not found"))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"item_id":       avail.Item.ID,
			"name":          avail.Item.Name,
			"available":     avail.Available,
			"available_qty": avail.Qty,
		})
	}
}
