package attachments

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("order-1", "Arte Final.PDF")
	assert.True(t, strings.HasPrefix(key, "orders/order-1/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
	assert.NotEqual(t, key, ObjectKey("order-1", "Arte Final.PDF"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("image/png", "x.bin"))
	assert.Equal(t, "image/png", ContentType("application/octet-stream", "logo.png"))
	assert.Equal(t, "application/octet-stream", ContentType("", "file.unknownext"))
}
