package fleetapi

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/jrsteele09/fleet-console/apiclient"
)

const (
	warehousesPath        = "/warehouses"
	inventoryItemsPath    = "/inventory-items"
	stocksPath            = "/stocks"
	stockTransactionsPath = "/stock-transactions"
)

// WarehouseFilter narrows a warehouse listing.
type WarehouseFilter struct {
	PageParams
	Status          WarehouseStatus `json:"status,omitempty"`
	IncludeArchived bool            `json:"includeArchived,omitempty"`
}

func (f WarehouseFilter) values() url.Values {
	v := f.PageParams.values()
	setIf(v, "status", string(f.Status))
	if f.IncludeArchived {
		v.Set("includeArchived", "true")
	}
	return v
}

// ItemFilter narrows an inventory item listing.
type ItemFilter struct {
	PageParams
	Status   InventoryItemStatus `json:"status,omitempty"`
	Category string              `json:"category,omitempty"`
}

func (f ItemFilter) values() url.Values {
	v := f.PageParams.values()
	setIf(v, "status", string(f.Status))
	setIf(v, "category", f.Category)
	return v
}

// StockFilter narrows a stock listing.
type StockFilter struct {
	PageParams
	WarehouseID     string `json:"warehouseId,omitempty"`
	InventoryItemID string `json:"inventoryItemId,omitempty"`
}

func (f StockFilter) values() url.Values {
	v := f.PageParams.values()
	setIf(v, "warehouseId", f.WarehouseID)
	setIf(v, "inventoryItemId", f.InventoryItemID)
	return v
}

// TransactionFilter narrows a stock transaction listing.
type TransactionFilter struct {
	PageParams
	WarehouseID     string               `json:"warehouseId,omitempty"`
	InventoryItemID string               `json:"inventoryItemId,omitempty"`
	Type            StockTransactionType `json:"type,omitempty"`
	StartDate       time.Time            `json:"startDate,omitzero"`
	EndDate         time.Time            `json:"endDate,omitzero"`
}

func (f TransactionFilter) values() url.Values {
	v := f.PageParams.values()
	setIf(v, "warehouseId", f.WarehouseID)
	setIf(v, "inventoryItemId", f.InventoryItemID)
	setIf(v, "type", string(f.Type))
	if !f.StartDate.IsZero() {
		v.Set("startDate", f.StartDate.UTC().Format(time.RFC3339))
	}
	if !f.EndDate.IsZero() {
		v.Set("endDate", f.EndDate.UTC().Format(time.RFC3339))
	}
	return v
}

// InventoryService covers warehouses, inventory items, stock and stock
// transactions of the caller's tenant.
type InventoryService struct {
	client *apiclient.Client
}

func NewInventoryService(client *apiclient.Client) *InventoryService {
	return &InventoryService{client: client}
}

// Warehouses

func (s *InventoryService) ListWarehouses(ctx context.Context, filter WarehouseFilter) (Page[Warehouse], error) {
	return getPage[Warehouse](ctx, s.client, warehousesPath, filter.values())
}

func (s *InventoryService) CreateWarehouse(ctx context.Context, in WarehouseInput) error {
	return s.client.Post(ctx, warehousesPath, in, nil)
}

func (s *InventoryService) GetWarehouse(ctx context.Context, id string) (Warehouse, error) {
	return getOne[Warehouse](ctx, s.client, resourcePath(warehousesPath, id))
}

func (s *InventoryService) UpdateWarehouse(ctx context.Context, id string, in WarehouseInput) error {
	return s.client.Put(ctx, resourcePath(warehousesPath, id), in, nil)
}

func (s *InventoryService) UpdateWarehouseStatus(ctx context.Context, id string, status WarehouseStatus) error {
	return s.client.Patch(ctx, resourcePath(warehousesPath, id, "status"), map[string]WarehouseStatus{"status": status}, nil)
}

// ArchiveWarehouse soft-deletes a warehouse.
func (s *InventoryService) ArchiveWarehouse(ctx context.Context, id string) error {
	return s.client.Delete(ctx, resourcePath(warehousesPath, id), nil)
}

// Inventory items

func (s *InventoryService) ListItems(ctx context.Context, filter ItemFilter) (Page[InventoryItem], error) {
	return getPage[InventoryItem](ctx, s.client, inventoryItemsPath, filter.values())
}

func (s *InventoryService) GetItem(ctx context.Context, id string) (InventoryItem, error) {
	return getOne[InventoryItem](ctx, s.client, resourcePath(inventoryItemsPath, id))
}

func (s *InventoryService) CreateItem(ctx context.Context, in InventoryItemInput) error {
	return s.client.Post(ctx, inventoryItemsPath, in, nil)
}

func (s *InventoryService) UpdateItem(ctx context.Context, id string, in InventoryItemInput) error {
	return s.client.Put(ctx, resourcePath(inventoryItemsPath, id), in, nil)
}

func (s *InventoryService) UpdateItemStatus(ctx context.Context, id string, status InventoryItemStatus) error {
	return s.client.Patch(ctx, resourcePath(inventoryItemsPath, id, "status"), map[string]InventoryItemStatus{"status": status}, nil)
}

// ArchiveItem soft-deletes an inventory item.
func (s *InventoryService) ArchiveItem(ctx context.Context, id string) error {
	return s.client.Delete(ctx, resourcePath(inventoryItemsPath, id), nil)
}

// Stock

func (s *InventoryService) ListStock(ctx context.Context, filter StockFilter) (Page[Stock], error) {
	return getPage[Stock](ctx, s.client, stocksPath, filter.values())
}

func (s *InventoryService) CreateStockRecord(ctx context.Context, in NewStockRecord) (Stock, error) {
	return s.stockCall(ctx, stocksPath, in)
}

func (s *InventoryService) GetStock(ctx context.Context, id string) (Stock, error) {
	return getOne[Stock](ctx, s.client, resourcePath(stocksPath, id))
}

// WarehouseStock lists the stock held at one warehouse.
func (s *InventoryService) WarehouseStock(ctx context.Context, warehouseID string, params PageParams) (Page[Stock], error) {
	return getPage[Stock](ctx, s.client, resourcePath(stocksPath+"/warehouse", warehouseID), params.values())
}

// AddStock records an IN movement.
func (s *InventoryService) AddStock(ctx context.Context, in StockMovement) (Stock, error) {
	return s.stockCall(ctx, stocksPath+"/add", in)
}

// RemoveStock records an OUT movement.
func (s *InventoryService) RemoveStock(ctx context.Context, in StockMovement) (Stock, error) {
	return s.stockCall(ctx, stocksPath+"/remove", in)
}

// AdjustStock records an ADJUSTMENT.
func (s *InventoryService) AdjustStock(ctx context.Context, in StockAdjustment) (Stock, error) {
	return s.stockCall(ctx, stocksPath+"/adjust", in)
}

// TransferStock moves stock between warehouses as a linked OUT/IN pair.
func (s *InventoryService) TransferStock(ctx context.Context, in StockTransfer) (TransferResult, error) {
	var resp Envelope[TransferResult]
	err := s.client.Post(ctx, stocksPath+"/transfer", in, &resp)
	return resp.Data, err
}

func (s *InventoryService) stockCall(ctx context.Context, path string, body any) (Stock, error) {
	var resp Envelope[Stock]
	err := s.client.Post(ctx, path, body, &resp)
	return resp.Data, err
}

// Stock transactions

func (s *InventoryService) ListTransactions(ctx context.Context, filter TransactionFilter) (Page[StockTransaction], error) {
	return getPage[StockTransaction](ctx, s.client, stockTransactionsPath, filter.values())
}

func (s *InventoryService) GetTransaction(ctx context.Context, id string) (StockTransaction, error) {
	return getOne[StockTransaction](ctx, s.client, resourcePath(stockTransactionsPath, id))
}

// ParsePageParams reads page, limit and search from a query string.
func ParsePageParams(q url.Values) PageParams {
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return PageParams{Page: page, Limit: limit, Search: q.Get("search")}.Normalize()
}
