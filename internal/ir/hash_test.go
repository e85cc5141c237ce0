package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventDigestDeterminism(t *testing.T) {
	payload := IRObject{"spawn_type": IRString("experience"), "count": IRInt(1)}

	d1, err := EventDigest("spawn_entity", "entity_death", payload, 4)
	require.NoError(t, err)
	d2, err := EventDigest("spawn_entity", "entity_death", payload, 4)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64, "SHA-256 hex is 64 characters")
}

func TestEventDigestChangesWithInput(t *testing.T) {
	payload := IRObject{"count": IRInt(1)}

	base := MustEventDigest("drop_item", "entity_death", payload, 1)
	assert.NotEqual(t, base, MustEventDigest("spawn_entity", "entity_death", payload, 1))
	assert.NotEqual(t, base, MustEventDigest("drop_item", "block_tick", payload, 1))
	assert.NotEqual(t, base, MustEventDigest("drop_item", "entity_death", payload, 2))
	assert.NotEqual(t, base, MustEventDigest("drop_item", "entity_death", IRObject{"count": IRInt(2)}, 1))
}

func TestPayloadHashDomainSeparated(t *testing.T) {
	payload := IRObject{"a": IRInt(1)}
	h, err := PayloadHash(payload)
	require.NoError(t, err)

	canonical, err := MarshalCanonical(payload)
	require.NoError(t, err)
	assert.Equal(t, hashWithDomain(DomainPayload, canonical), h)
	assert.NotEqual(t, hashWithDomain(DomainEvent, canonical), h)
}

func TestEventDigestRejectsNull(t *testing.T) {
	_, err := EventDigest("k", "s", IRObject{"bad": nil}, 1)
	assert.Error(t, err)
}
