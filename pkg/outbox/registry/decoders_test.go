package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0111v/projeto-faculdade/pkg/enums"
	"github.com/0111v/projeto-faculdade/pkg/outbox"
	"github.com/0111v/projeto-faculdade/pkg/outbox/payloads"
)

func TestDecodersByVersion(t *testing.T) {
	d := NewDecoders()
	RegisterDecoder[payloads.ProductDeletedEvent](d, enums.EventProductDeleted, 1)

	id := uuid.New()
	env := outbox.Envelope{Data: json.RawMessage(`{"product_id":"` + id.String() + `","name":"Lamp"}`)}
	out, err := d.Decode(enums.EventProductDeleted, env)
	require.NoError(t, err)
	event, ok := out.(*payloads.ProductDeletedEvent)
	require.True(t, ok)
	assert.Equal(t, id, event.ProductID)
	assert.Equal(t, "Lamp", event.Name)

	env.Version = 2
	_, err = d.Decode(enums.EventProductDeleted, env)
	assert.True(t, IsPermanent(err))

	_, err = d.Decode(enums.EventOrderCompleted, outbox.Envelope{Data: env.Data})
	assert.True(t, IsPermanent(err))

	_, err = d.Decode(enums.EventProductDeleted, outbox.Envelope{Version: 1, Data: json.RawMessage(`[]`)})
	assert.True(t, IsPermanent(err))
}
