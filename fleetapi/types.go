// Package fleetapi holds typed services over the fleet REST API. Every call
// goes through the console's apiclient so tokens and refresh are handled in
// one place.
package fleetapi

import (
	"net/url"
	"strconv"
	"time"
)

// Envelope is the {message, data} shape of single-resource responses.
type Envelope[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// PageMeta describes a page of a listing.
type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// pageEnvelope is the {message, result:{data, meta}} shape of listings.
type pageEnvelope[T any] struct {
	Message string  `json:"message"`
	Result  Page[T] `json:"result"`
}

// Default paging
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageParams are the common listing parameters.
type PageParams struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Search string `json:"search,omitempty"`
}

// Normalize clamps the paging values to what the API accepts.
func (p PageParams) Normalize() PageParams {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p PageParams) values() url.Values {
	p = p.Normalize()
	v := url.Values{}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("limit", strconv.Itoa(p.Limit))
	setIf(v, "search", p.Search)
	return v
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// Address is a postal address. Coordinates are only set for warehouses.
type Address struct {
	Line1       string       `json:"line1,omitempty"`
	City        string       `json:"city,omitempty"`
	State       string       `json:"state,omitempty"`
	PostalCode  string       `json:"postalCode,omitempty"`
	Country     string       `json:"country,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Tenant is an organisation registered on the platform.
type Tenant struct {
	TenantID     string    `json:"tenantId"`
	Name         string    `json:"name"`
	ContactEmail string    `json:"contactEmail"`
	Industry     string    `json:"industry,omitempty"`
	ContactPhone string    `json:"contactPhone,omitempty"`
	Address      *Address  `json:"address,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// User is a platform user as seen by administrators.
type User struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	TenantID    string     `json:"tenantId,omitempty"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// WarehouseStatus is the lifecycle state of a warehouse.
type WarehouseStatus string

const (
	WarehouseActive      WarehouseStatus = "ACTIVE"
	WarehouseMaintenance WarehouseStatus = "MAINTENANCE"
	WarehouseInactive    WarehouseStatus = "INACTIVE"
	WarehouseArchived    WarehouseStatus = "ARCHIVED"
)

// Valid reports whether s is a known warehouse status.
func (s WarehouseStatus) Valid() bool {
	switch s {
	case WarehouseActive, WarehouseMaintenance, WarehouseInactive, WarehouseArchived:
		return true
	}
	return false
}

// Warehouse is a tenant's storage site.
type Warehouse struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Address   Address         `json:"address"`
	Status    WarehouseStatus `json:"status"`
	TenantID  string          `json:"tenantId"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// WarehouseInput is the writable part of a warehouse.
type WarehouseInput struct {
	Code    string          `json:"code,omitempty"`
	Name    string          `json:"name,omitempty"`
	Address *Address        `json:"address,omitempty"`
	Status  WarehouseStatus `json:"status,omitempty"`
}

// InventoryItemStatus is the lifecycle state of an inventory item.
type InventoryItemStatus string

const (
	ItemActive       InventoryItemStatus = "ACTIVE"
	ItemInactive     InventoryItemStatus = "INACTIVE"
	ItemDiscontinued InventoryItemStatus = "DISCONTINUED"
	ItemArchived     InventoryItemStatus = "ARCHIVED"
)

// Valid reports whether s is a known inventory item status.
func (s InventoryItemStatus) Valid() bool {
	switch s {
	case ItemActive, ItemInactive, ItemDiscontinued, ItemArchived:
		return true
	}
	return false
}

// InventoryItem is a stock-keeping unit in a tenant's catalogue.
type InventoryItem struct {
	ID            string              `json:"id"`
	TenantID      string              `json:"tenantId"`
	SKU           string              `json:"sku"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Category      string              `json:"category,omitempty"`
	Unit          string              `json:"unit"`
	MinStockLevel *int                `json:"minStockLevel,omitempty"`
	MaxStockLevel *int                `json:"maxStockLevel,omitempty"`
	ReorderPoint  *int                `json:"reorderPoint,omitempty"`
	Status        InventoryItemStatus `json:"status"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// InventoryItemInput is the writable part of an inventory item.
type InventoryItemInput struct {
	SKU           string              `json:"sku,omitempty"`
	Name          string              `json:"name,omitempty"`
	Description   string              `json:"description,omitempty"`
	Category      string              `json:"category,omitempty"`
	Unit          string              `json:"unit,omitempty"`
	MinStockLevel *int                `json:"minStockLevel,omitempty"`
	MaxStockLevel *int                `json:"maxStockLevel,omitempty"`
	ReorderPoint  *int                `json:"reorderPoint,omitempty"`
	Status        InventoryItemStatus `json:"status,omitempty"`
}

// WarehouseRef and ItemRef are the summaries embedded in stock records.
type WarehouseRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

type ItemRef struct {
	ID       string `json:"id"`
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Unit     string `json:"unit"`
}

// Stock is the quantity of one item held at one warehouse.
type Stock struct {
	ID              string        `json:"id"`
	TenantID        string        `json:"tenantId"`
	WarehouseID     string        `json:"warehouseId"`
	Warehouse       *WarehouseRef `json:"warehouse,omitempty"`
	InventoryItemID string        `json:"inventoryItemId"`
	InventoryItem   *ItemRef      `json:"inventoryItem,omitempty"`
	Quantity        int           `json:"quantity"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// StockTransactionType is the kind of stock movement.
type StockTransactionType string

const (
	TransactionIn          StockTransactionType = "IN"
	TransactionOut         StockTransactionType = "OUT"
	TransactionAdjustment  StockTransactionType = "ADJUSTMENT"
	TransactionTransferIn  StockTransactionType = "TRANSFER_IN"
	TransactionTransferOut StockTransactionType = "TRANSFER_OUT"
)

// Valid reports whether t is a known transaction type.
func (t StockTransactionType) Valid() bool {
	switch t {
	case TransactionIn, TransactionOut, TransactionAdjustment, TransactionTransferIn, TransactionTransferOut:
		return true
	}
	return false
}

// StockTransaction is a recorded stock movement. Transfers link their
// OUT and IN halves through RelatedTransactionID.
type StockTransaction struct {
	ID                   string               `json:"id"`
	TenantID             string               `json:"tenantId"`
	WarehouseID          string               `json:"warehouseId"`
	Warehouse            WarehouseRef         `json:"warehouse"`
	InventoryItemID      string               `json:"inventoryItemId"`
	InventoryItem        ItemRef              `json:"inventoryItem"`
	Type                 StockTransactionType `json:"type"`
	Quantity             int                  `json:"quantity"`
	Notes                string               `json:"notes,omitempty"`
	ReferenceID          string               `json:"referenceId,omitempty"`
	RelatedTransactionID string               `json:"relatedTransactionId,omitempty"`
	CreatedAt            time.Time            `json:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt"`
}

// StockMovement adds or removes stock.
type StockMovement struct {
	WarehouseID     string `json:"warehouseId" validate:"required"`
	InventoryItemID string `json:"inventoryItemId" validate:"required"`
	Quantity        int    `json:"quantity" validate:"gt=0"`
	Notes           string `json:"notes,omitempty"`
	ReferenceID     string `json:"referenceId,omitempty"`
}

// StockAdjustment corrects a stock level by a signed amount.
type StockAdjustment struct {
	WarehouseID     string `json:"warehouseId" validate:"required"`
	InventoryItemID string `json:"inventoryItemId" validate:"required"`
	Adjustment      int    `json:"adjustment" validate:"ne=0"`
	Notes           string `json:"notes,omitempty"`
	ReferenceID     string `json:"referenceId,omitempty"`
}

// StockTransfer moves stock between two warehouses.
type StockTransfer struct {
	SourceWarehouseID      string `json:"sourceWarehouseId" validate:"required"`
	DestinationWarehouseID string `json:"destinationWarehouseId" validate:"required,nefield=SourceWarehouseID"`
	InventoryItemID        string `json:"inventoryItemId" validate:"required"`
	Quantity               int    `json:"quantity" validate:"gt=0"`
	Notes                  string `json:"notes,omitempty"`
	ReferenceID            string `json:"referenceId,omitempty"`
}

// NewStockRecord opens a stock record for an item at a warehouse.
type NewStockRecord struct {
	WarehouseID     string `json:"warehouseId" validate:"required"`
	InventoryItemID string `json:"inventoryItemId" validate:"required"`
	InitialQuantity *int   `json:"initialQuantity,omitempty" validate:"omitempty,gte=0"`
}

// StockLevel is one side of a transfer result.
type StockLevel struct {
	ID          string `json:"id"`
	WarehouseID string `json:"warehouseId"`
	Quantity    int    `json:"quantity"`
}

// TransferResult is the outcome of a stock transfer.
type TransferResult struct {
	Source      StockLevel `json:"source"`
	Destination StockLevel `json:"destination"`
}
