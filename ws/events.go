package ws

import (
	"encoding/json"
	"fmt"

	"github.com/dinehub/pos-backend/models"
)

// Server -> client event types
const (
	EventOrderPlaced          = "order_placed"
	EventOrderUpdated         = "order_updated"
	EventItemsAdded           = "items_added"
	EventCancellationRequest  = "cancellation_request"
	EventCancellationApproved = "cancellation_approved"
	EventCancellationRejected = "cancellation_rejected"
	EventTableStatusUpdated   = "table_status_updated"
	EventRefreshKDS           = "refresh_kds"
	EventNotification         = "notification"
	EventOrderSnapshot        = "order_snapshot"
	EventTableSnapshot        = "table_snapshot"
)

// Event is the closed set of messages the server pushes to clients. Every
// event marshals to a flat JSON object with a mandatory "type" field.
type Event interface {
	EventType() string
}

type OrderPlaced struct {
	Order models.Order `json:"order"`
}

type OrderUpdated struct {
	Order models.Order `json:"order"`
}

type ItemsAdded struct {
	OrderID uint               `json:"order_id"`
	Items   []models.OrderItem `json:"items"`
}

type CancellationRequest struct {
	OrderID uint   `json:"order_id"`
	ItemID  uint   `json:"item_id"`
	Reason  string `json:"reason,omitempty"`
}

type CancellationApproved struct {
	OrderID uint `json:"order_id"`
	ItemID  uint `json:"item_id"`
}

type CancellationRejected struct {
	OrderID uint `json:"order_id"`
	ItemID  uint `json:"item_id"`
}

type TableStatusUpdated struct {
	Table models.Table     `json:"table"`
	Stats map[string]int64 `json:"stats,omitempty"`
}

type RefreshKDS struct {
	Filter string `json:"filter,omitempty"`
}

type Notification struct {
	Message  string `json:"message"`
	OrderIDs []uint `json:"order_ids,omitempty"`
}

type OrderSnapshot struct {
	Orders []models.Order `json:"orders"`
}

type TableSnapshot struct {
	Tables []models.Table `json:"tables"`
}

func (OrderPlaced) EventType() string          { return EventOrderPlaced }
func (OrderUpdated) EventType() string         { return EventOrderUpdated }
func (ItemsAdded) EventType() string           { return EventItemsAdded }
func (CancellationRequest) EventType() string  { return EventCancellationRequest }
func (CancellationApproved) EventType() string { return EventCancellationApproved }
func (CancellationRejected) EventType() string { return EventCancellationRejected }
func (TableStatusUpdated) EventType() string   { return EventTableStatusUpdated }
func (RefreshKDS) EventType() string           { return EventRefreshKDS }
func (Notification) EventType() string         { return EventNotification }
func (OrderSnapshot) EventType() string        { return EventOrderSnapshot }
func (TableSnapshot) EventType() string        { return EventTableSnapshot }

// EncodeEvent flattens the payload and injects the "type" tag.
func EncodeEvent(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(payload, &flat); err != nil {
		return nil, err
	}
	if flat == nil {
		flat = make(map[string]json.RawMessage)
	}
	tag, _ := json.Marshal(e.EventType())
	flat["type"] = tag
	return json.Marshal(flat)
}

// Client -> server request types
const (
	ReqFilter         = "filter"
	ReqUpdateOrder    = "update_order"
	ReqAddItems       = "add_items"
	ReqCancelItem     = "cancel_item"
	ReqApproveCancel  = "approve_cancellation"
	ReqRejectCancel   = "reject_cancellation"
	ReqPrepareItem    = "prepare_item"
	ReqPrepareOrder   = "prepare_order"
	ReqAcknowledgment = "acknowledgment"
)

// Request is the closed set of messages clients may send.
type Request interface {
	RequestType() string
}

type FilterRequest struct {
	Category string `json:"category"`
}

type UpdateOrderRequest struct {
	OrderID uint    `json:"order_id"`
	Status  *string `json:"status,omitempty"`
	Items   []struct {
		ID       uint    `json:"id"`
		Status   *string `json:"status,omitempty"`
		Quantity *int    `json:"quantity,omitempty"`
		Notes    *string `json:"notes,omitempty"`
	} `json:"items,omitempty"`
}

type AddItemsRequest struct {
	OrderID uint `json:"order_id"`
	Items   []struct {
		Name     string  `json:"name"`
		Category string  `json:"category"`
		Quantity int     `json:"quantity"`
		Price    float64 `json:"price"`
		Notes    string  `json:"notes,omitempty"`
	} `json:"items"`
}

type CancelItemRequest struct {
	OrderID uint   `json:"order_id"`
	ItemID  uint   `json:"item_id"`
	Reason  string `json:"reason,omitempty"`
}

type ApproveCancellationRequest struct {
	OrderID uint `json:"order_id"`
	ItemID  uint `json:"item_id"`
}

type RejectCancellationRequest struct {
	OrderID uint `json:"order_id"`
	ItemID  uint `json:"item_id"`
}

type PrepareItemRequest struct {
	ItemID uint `json:"item_id"`
}

type PrepareOrderRequest struct {
	OrderID uint `json:"order_id"`
}

type AcknowledgmentRequest struct {
	OrderID uint `json:"order_id"`
}

func (FilterRequest) RequestType() string              { return ReqFilter }
func (UpdateOrderRequest) RequestType() string         { return ReqUpdateOrder }
func (AddItemsRequest) RequestType() string            { return ReqAddItems }
func (CancelItemRequest) RequestType() string          { return ReqCancelItem }
func (ApproveCancellationRequest) RequestType() string { return ReqApproveCancel }
func (RejectCancellationRequest) RequestType() string  { return ReqRejectCancel }
func (PrepareItemRequest) RequestType() string         { return ReqPrepareItem }
func (PrepareOrderRequest) RequestType() string        { return ReqPrepareOrder }
func (AcknowledgmentRequest) RequestType() string      { return ReqAcknowledgment }

// DecodeRequest dispatches on the "type" tag. Unknown tags are an error so a
// misbehaving client shows up in the logs instead of being silently dropped.
func DecodeRequest(raw []byte) (Request, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed request: %w", err)
	}

	switch env.Type {
	case ReqFilter:
		var r FilterRequest
		return &r, json.Unmarshal(raw, &r)
	case ReqUpdateOrder:
		var r UpdateOrderRequest
		return &r, json.Unmarshal(raw, &r)
	case ReqAddItems:
		var r AddItemsRequest
		return &r, json.Unmarshal(raw, &r)
	case ReqCancelItem:
		var r CancelItemRequest
		return &r, json.Unmarshal(raw, &r)
	case ReqApproveCancel:
		var r ApproveCancellationRequest
		return &r, json.Unmarshal(raw, &r)
	case ReqRejectCancel:
		var r RejectCancellationRequest
		return &r, json.Unmarshal(raw, &r)
	case ReqPrepareItem:
		var r PrepareItemRequest
		return &r, json.Unmarshal(raw, &r)
	case ReqPrepareOrder:
		var r PrepareOrderRequest
		return &r, json.Unmarshal(raw, &r)
	case ReqAcknowledgment:
		var r AcknowledgmentRequest
		return &r, json.Unmarshal(raw, &r)
	default:
		return nil, fmt.Errorf("unknown request type %q", env.Type)
	}
}
