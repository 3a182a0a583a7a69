package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindClassification(t *testing.T) {
	err := Ef(KindEmbeddingFailed, "service returned %d", 429)
	assert.True(t, Is(err, KindEmbeddingFailed))
	assert.False(t, Is(err, KindTimeout))
	assert.Equal(t, KindEmbeddingFailed, KindOf(err))
}

func TestWrappedKindSurvives(t *testing.T) {
	inner := E(KindNotFound, errors.New("no such document"))
	wrapped := fmt.Errorf("lookup failed: %w", inner)

	assert.True(t, Is(wrapped, KindNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestUnclassifiedDefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, Is(errors.New("plain"), KindInternal), "Is requires an explicit kind")
}

func TestErrorMessageShape(t *testing.T) {
	assert.Equal(t, "timeout: side deadline", Ef(KindTimeout, "side deadline").Error())
	assert.Contains(t, E(KindLinkStore, errors.New("boom")).Error(), "link_store_error")
}
