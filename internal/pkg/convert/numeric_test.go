package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFloat64(t *testing.T) {
	assert.Equal(t, 12.5, ToFloat64(" 12.5 "))
	assert.Equal(t, 3.0, ToFloat64(3))
	assert.Equal(t, 0.0, ToFloat64("abc"))
	_, err := ToFloat64E("abc")
	assert.Error(t, err)
	_, err = ToFloat64E(struct{}{})
	assert.Error(t, err)
}

func TestNumberUnmarshal(t *testing.T) {
	var payload struct {
		Qty    Number `json:"qty"`
		Price  Number `json:"price"`
		Absent Number `json:"absent"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"qty":"-15","price":101.5,"absent":null}`), &payload))
	assert.Equal(t, -15.0, payload.Qty.Float64())
	assert.Equal(t, 101.5, payload.Price.Float64())
	assert.Equal(t, 0.0, payload.Absent.Float64())

	assert.Error(t, json.Unmarshal([]byte(`{"qty":"x"}`), &payload))
}
