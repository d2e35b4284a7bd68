package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetGlobalLogger(t *testing.T) {
	require := require.New(t)

	original := Logger
	t.Cleanup(func() { SetGlobalLogger(original) })

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf))

	Info().Str("component", "test").Msg("hello")
	require.Contains(buf.String(), `"component":"test"`)
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	require := require.New(t)

	original := Logger
	t.Cleanup(func() { SetGlobalLogger(original) })

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf))

	Ctx(context.Background()).Info().Msg("from context")
	require.Contains(buf.String(), "from context")
}
