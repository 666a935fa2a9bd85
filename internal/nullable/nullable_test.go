package nullable

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type patch struct {
	Serial   Field[string] `json:"serial_number"`
	Holder   Field[uint]   `json:"current_holder_party_id"`
	Capacity Field[string] `json:"capacity"`
}

func TestField_AbsentNullValue(t *testing.T) {
	var p patch
	require.NoError(t, json.Unmarshal([]byte(`{"serial_number":"SN-1","current_holder_party_id":null}`), &p))

	assert.True(t, p.Serial.HasValue())
	assert.Equal(t, "SN-1", p.Serial.Value)

	assert.True(t, p.Holder.Set)
	assert.True(t, p.Holder.Null)
	assert.Nil(t, p.Holder.Ptr())

	assert.False(t, p.Capacity.Set)
}

func TestField_Apply(t *testing.T) {
	updates := map[string]any{}
	Of("x").Apply(updates, "a")
	Null[int]().Apply(updates, "b")
	Field[int]{}.Apply(updates, "c")

	assert.Equal(t, "x", updates["a"])
	v, ok := updates["b"]
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = updates["c"]
	assert.False(t, ok)
}

func TestField_Marshal(t *testing.T) {
	out, err := json.Marshal(patch{Serial: Of("A"), Holder: Null[uint]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"serial_number":"A","current_holder_party_id":null,"capacity":null}`, string(out))
}
