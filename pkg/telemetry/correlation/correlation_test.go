package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "cid-1")
	ctx, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "cid-1", cid)
	assert.Equal(t, "cid-1", ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDGenerates(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	assert.Len(t, cid, 26)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))
}

func TestAnnotate(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "cid-2")
	md := Annotate(ctx, nil)
	assert.Equal(t, "cid-2", md["correlation_id"])
	_, hasTrace := md["trace_id"]
	assert.False(t, hasTrace)
}
