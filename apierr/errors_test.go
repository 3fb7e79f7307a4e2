package apierr

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVenueCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("cancel all: %w", &VenueError{StatusCode: 400, Code: CodeNoSuchOrder, Message: "Unknown order sent."})

	assert.True(t, IsVenueCode(err, CodeNoSuchOrder))
	assert.False(t, IsVenueCode(err, -1013))

	venueErr, ok := AsVenueError(err)
	require.True(t, ok)
	assert.Equal(t, 400, venueErr.StatusCode)
	assert.Contains(t, venueErr.Error(), "Unknown order sent.")
}

func TestKindsAreDistinct(t *testing.T) {
	transport := &TransportError{Op: "GET", URL: "http://x", Err: errors.New("refused")}
	decode := &DecodeError{Body: []byte("<html>"), Err: errors.New("invalid character")}
	invalid := Invalid("riskPct", "must be in (0, 100], got %v", 150.0)

	assert.True(t, IsTransport(transport))
	assert.False(t, IsDecode(transport))
	assert.True(t, IsDecode(decode))
	assert.True(t, IsValidation(invalid))
	assert.False(t, IsValidation(decode))
	assert.Equal(t, "validation error: riskPct must be in (0, 100], got 150", invalid.Error())
	assert.ErrorContains(t, transport, "refused")
}

func TestDecodeErrorTruncatesBody(t *testing.T) {
	body := []byte(strings.Repeat("x", 1000))
	err := &DecodeError{Body: body, Err: errors.New("bad")}

	assert.Len(t, err.Body, 1000)
	assert.Less(t, len(err.Error()), 400)
}
