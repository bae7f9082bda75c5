package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinehub/pos-backend/models"
)

func TestEncodeEventFlattensAndTags(t *testing.T) {
	data, err := EncodeEvent(TableStatusUpdated{
		Table: models.Table{ID: 3, Number: "A3", Status: models.TableOccupied},
		Stats: map[string]int64{models.TableOccupied: 1},
	})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, EventTableStatusUpdated, decoded["type"])

	table := decoded["table"].(map[string]interface{})
	assert.Equal(t, "A3", table["table_number"])

	stats := decoded["stats"].(map[string]interface{})
	assert.EqualValues(t, 1, stats[models.TableOccupied])
}

func TestEncodeEventWithoutPayload(t *testing.T) {
	data, err := EncodeEvent(RefreshKDS{})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, EventRefreshKDS, decoded["type"])
	_, hasFilter := decoded["filter"]
	assert.False(t, hasFilter, "empty filter is omitted")
}

func TestDecodeRequestDispatchesOnType(t *testing.T) {
	raw := []byte(`{"type":"cancel_item","order_id":12,"item_id":4,"reason":"spilled"}`)

	req, err := DecodeRequest(raw)
	require.NoError(t, err)

	cancel, ok := req.(*CancelItemRequest)
	require.True(t, ok)
	assert.EqualValues(t, 12, cancel.OrderID)
	assert.EqualValues(t, 4, cancel.ItemID)
	assert.Equal(t, "spilled", cancel.Reason)
	assert.Equal(t, ReqCancelItem, cancel.RequestType())
}

func TestDecodeRequestUpdateOrderItems(t *testing.T) {
	raw := []byte(`{"type":"update_order","order_id":5,"status":"in_progress","items":[{"id":9,"quantity":3}]}`)

	req, err := DecodeRequest(raw)
	require.NoError(t, err)

	upd, ok := req.(*UpdateOrderRequest)
	require.True(t, ok)
	require.NotNil(t, upd.Status)
	assert.Equal(t, "in_progress", *upd.Status)
	require.Len(t, upd.Items, 1)
	require.NotNil(t, upd.Items[0].Quantity)
	assert.Equal(t, 3, *upd.Items[0].Quantity)
	assert.Nil(t, upd.Items[0].Notes)
}

func TestDecodeRequestUnknownType(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"type":"reboot_kitchen"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reboot_kitchen")
}

func TestDecodeRequestMalformed(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"type":`))
	assert.Error(t, err)
}
