package server

import (
	"net/http"
	"time"

	"github.com/jrsteele09/fleet-console/authflow"
	"github.com/jrsteele09/fleet-console/fleetapi"
)

type warehouseStatusBody struct {
	Status fleetapi.WarehouseStatus `json:"status" validate:"required"`
}

type itemStatusBody struct {
	Status fleetapi.InventoryItemStatus `json:"status" validate:"required"`
}

// Warehouses

func (s *Server) WarehousesHandler() http.HandlerFunc {
	list := listHandler(func(con *Console, r *http.Request) (fleetapi.Page[fleetapi.Warehouse], error) {
		q := r.URL.Query()
		return con.Inventory.ListWarehouses(r.Context(), fleetapi.WarehouseFilter{
			PageParams:      fleetapi.ParsePageParams(q),
			Status:          fleetapi.WarehouseStatus(q.Get("status")),
			IncludeArchived: q.Get("includeArchived") == "true",
		})
	})
	return func(w http.ResponseWriter, r *http.Request) {
		if status := fleetapi.WarehouseStatus(r.URL.Query().Get("status")); status != "" && !status.Valid() {
			invalidQuery(w, "status")
			return
		}
		list(w, r)
	}
}

func (s *Server) CreateWarehouseHandler() http.HandlerFunc {
	return bodyHandler(noResult(func(con *Console, r *http.Request, in fleetapi.WarehouseInput) error {
		return con.Inventory.CreateWarehouse(r.Context(), in)
	}), "Warehouse created")
}

func (s *Server) WarehouseHandler() http.HandlerFunc {
	return getHandler(func(con *Console, r *http.Request) (fleetapi.Warehouse, error) {
		return con.Inventory.GetWarehouse(r.Context(), r.PathValue("id"))
	})
}

func (s *Server) UpdateWarehouseHandler() http.HandlerFunc {
	return bodyHandler(noResult(func(con *Console, r *http.Request, in fleetapi.WarehouseInput) error {
		return con.Inventory.UpdateWarehouse(r.Context(), r.PathValue("id"), in)
	}), "Warehouse updated")
}

func (s *Server) UpdateWarehouseStatusHandler() http.HandlerFunc {
	return bodyHandler(noResult(func(con *Console, r *http.Request, in warehouseStatusBody) error {
		if !in.Status.Valid() {
			return &authflow.ValidationError{Fields: map[string]string{"status": "Invalid warehouse status"}}
		}
		return con.Inventory.UpdateWarehouseStatus(r.Context(), r.PathValue("id"), in.Status)
	}), "Warehouse status updated")
}

func (s *Server) ArchiveWarehouseHandler() http.HandlerFunc {
	return actionHandler(func(con *Console, r *http.Request) error {
		return con.Inventory.ArchiveWarehouse(r.Context(), r.PathValue("id"))
	}, "Warehouse archived")
}

func (s *Server) WarehouseStockHandler() http.HandlerFunc {
	return listHandler(func(con *Console, r *http.Request) (fleetapi.Page[fleetapi.Stock], error) {
		return con.Inventory.WarehouseStock(r.Context(), r.PathValue("id"), fleetapi.ParsePageParams(r.URL.Query()))
	})
}

// Inventory items

func (s *Server) ItemsHandler() http.HandlerFunc {
	list := listHandler(func(con *Console, r *http.Request) (fleetapi.Page[fleetapi.InventoryItem], error) {
		q := r.URL.Query()
		return con.Inventory.ListItems(r.Context(), fleetapi.ItemFilter{
			PageParams: fleetapi.ParsePageParams(q),
			Status:     fleetapi.InventoryItemStatus(q.Get("status")),
			Category:   q.Get("category"),
		})
	})
	return func(w http.ResponseWriter, r *http.Request) {
		if status := fleetapi.InventoryItemStatus(r.URL.Query().Get("status")); status != "" && !status.Valid() {
			invalidQuery(w, "status")
			return
		}
		list(w, r)
	}
}

func (s *Server) CreateItemHandler() http.HandlerFunc {
	return bodyHandler(noResult(func(con *Console, r *http.Request, in fleetapi.InventoryItemInput) error {
		return con.Inventory.CreateItem(r.Context(), in)
	}), "Inventory item created")
}

func (s *Server) ItemHandler() http.HandlerFunc {
	return getHandler(func(con *Console, r *http.Request) (fleetapi.InventoryItem, error) {
		return con.Inventory.GetItem(r.Context(), r.PathValue("id"))
	})
}

func (s *Server) UpdateItemHandler() http.HandlerFunc {
	return bodyHandler(noResult(func(con *Console, r *http.Request, in fleetapi.InventoryItemInput) error {
		return con.Inventory.UpdateItem(r.Context(), r.PathValue("id"), in)
	}), "Inventory item updated")
}

func (s *Server) UpdateItemStatusHandler() http.HandlerFunc {
	return bodyHandler(noResult(func(con *Console, r *http.Request, in itemStatusBody) error {
		if !in.Status.Valid() {
			return &authflow.ValidationError{Fields: map[string]string{"status": "Invalid item status"}}
		}
		return con.Inventory.UpdateItemStatus(r.Context(), r.PathValue("id"), in.Status)
	}), "Inventory item status updated")
}

func (s *Server) ArchiveItemHandler() http.HandlerFunc {
	return actionHandler(func(con *Console, r *http.Request) error {
		return con.Inventory.ArchiveItem(r.Context(), r.PathValue("id"))
	}, "Inventory item archived")
}

// Stock

func (s *Server) StocksHandler() http.HandlerFunc {
	return listHandler(func(con *Console, r *http.Request) (fleetapi.Page[fleetapi.Stock], error) {
		q := r.URL.Query()
		return con.Inventory.ListStock(r.Context(), fleetapi.StockFilter{
			PageParams:      fleetapi.ParsePageParams(q),
			WarehouseID:     q.Get("warehouseId"),
			InventoryItemID: q.Get("inventoryItemId"),
		})
	})
}

func (s *Server) CreateStockHandler() http.HandlerFunc {
	return bodyHandler(func(con *Console, r *http.Request, in fleetapi.NewStockRecord) (fleetapi.Stock, error) {
		return con.Inventory.CreateStockRecord(r.Context(), in)
	}, "Stock record created")
}

func (s *Server) StockHandler() http.HandlerFunc {
	return getHandler(func(con *Console, r *http.Request) (fleetapi.Stock, error) {
		return con.Inventory.GetStock(r.Context(), r.PathValue("id"))
	})
}

func (s *Server) AddStockHandler() http.HandlerFunc {
	return bodyHandler(func(con *Console, r *http.Request, in fleetapi.StockMovement) (fleetapi.Stock, error) {
		return con.Inventory.AddStock(r.Context(), in)
	}, "Stock added")
}

func (s *Server) RemoveStockHandler() http.HandlerFunc {
	return bodyHandler(func(con *Console, r *http.Request, in fleetapi.StockMovement) (fleetapi.Stock, error) {
		return con.Inventory.RemoveStock(r.Context(), in)
	}, "Stock removed")
}

func (s *Server) AdjustStockHandler() http.HandlerFunc {
	return bodyHandler(func(con *Console, r *http.Request, in fleetapi.StockAdjustment) (fleetapi.Stock, error) {
		return con.Inventory.AdjustStock(r.Context(), in)
	}, "Stock adjusted")
}

func (s *Server) TransferStockHandler() http.HandlerFunc {
	return bodyHandler(func(con *Console, r *http.Request, in fleetapi.StockTransfer) (fleetapi.TransferResult, error) {
		return con.Inventory.TransferStock(r.Context(), in)
	}, "Stock transferred")
}

// Stock transactions

func (s *Server) TransactionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := fleetapi.TransactionFilter{
			PageParams:      fleetapi.ParsePageParams(q),
			WarehouseID:     q.Get("warehouseId"),
			InventoryItemID: q.Get("inventoryItemId"),
			Type:            fleetapi.StockTransactionType(q.Get("type")),
		}
		if filter.Type != "" && !filter.Type.Valid() {
			invalidQuery(w, "type")
			return
		}

		var err error
		if filter.StartDate, err = parseDate(q.Get("startDate")); err != nil {
			invalidQuery(w, "startDate")
			return
		}
		if filter.EndDate, err = parseDate(q.Get("endDate")); err != nil {
			invalidQuery(w, "endDate")
			return
		}

		listHandler(func(con *Console, r *http.Request) (fleetapi.Page[fleetapi.StockTransaction], error) {
			return con.Inventory.ListTransactions(r.Context(), filter)
		})(w, r)
	}
}

func (s *Server) TransactionHandler() http.HandlerFunc {
	return getHandler(func(con *Console, r *http.Request) (fleetapi.StockTransaction, error) {
		return con.Inventory.GetTransaction(r.Context(), r.PathValue("id"))
	})
}

// parseDate accepts RFC3339 timestamps and plain dates.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// Operations managers

func (s *Server) OpsManagersHandler() http.HandlerFunc {
	return listHandler(func(con *Console, r *http.Request) (fleetapi.Page[fleetapi.User], error) {
		return con.Admin.ListOperationsManagers(r.Context(), userFilter(r))
	})
}

func (s *Server) InviteOpsManagerHandler() http.HandlerFunc {
	return bodyHandler(noResult(func(con *Console, r *http.Request, in authflow.InviteForm) error {
		return con.Admin.InviteOperationsManager(r.Context(), fleetapi.InviteRequest{Name: in.Name, Email: in.Email})
	}), "Invitation sent")
}

func (s *Server) BlockOpsManagerHandler() http.HandlerFunc {
	return actionHandler(func(con *Console, r *http.Request) error {
		return con.Admin.BlockOperationsManager(r.Context(), r.PathValue("id"))
	}, "Operations manager blocked")
}

func (s *Server) UnblockOpsManagerHandler() http.HandlerFunc {
	return actionHandler(func(con *Console, r *http.Request) error {
		return con.Admin.UnblockOperationsManager(r.Context(), r.PathValue("id"))
	}, "Operations manager unblocked")
}
