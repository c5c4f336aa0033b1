package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/lambdaflow/internal/runtime/errors"
)

type echoHandler struct{}

func (echoHandler) Handle(_ context.Context, input string, _ *InvocationContext) (string, error) {
	return input, nil
}

func TestBuildRejectsNilHandler(t *testing.T) {
	_, err := Build[string, string](nil)
	require.ErrorIs(t, err, errspkg.ErrHandlerRequired)

	var fn HandlerFunc[string, string]
	_, err = Build[string, string](fn)
	require.ErrorIs(t, err, errspkg.ErrHandlerRequired)
}

func TestBuildEchoesStrings(t *testing.T) {
	invoke, err := Build[string, string](echoHandler{})
	require.NoError(t, err)

	body, err := invoke(context.Background(), &InvocationContext{}, []byte("test"))
	require.NoError(t, err)
	assert.Equal(t, "test", string(body))
}

func TestBuildPassesInvocationContext(t *testing.T) {
	ictx := NewInvocationContext("req-7", nil, nil)
	var seen *InvocationContext
	handler := HandlerFunc[map[string]string, map[string]string](func(_ context.Context, in map[string]string, got *InvocationContext) (map[string]string, error) {
		seen = got
		return map[string]string{"test": in["data"]}, nil
	})

	invoke, err := Build[map[string]string, map[string]string](handler)
	require.NoError(t, err)

	body, err := invoke(context.Background(), ictx, []byte(`{"data":"123"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"test":"123"}`, string(body))
	assert.Same(t, ictx, seen)
}

func TestBuildTextOutputOption(t *testing.T) {
	handler := HandlerFunc[string, int](func(context.Context, string, *InvocationContext) (int, error) {
		return 98, nil
	})

	invoke, err := Build[string, int](handler, WithTextOutput(), nil)
	require.NoError(t, err)

	body, err := invoke(context.Background(), &InvocationContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "98", string(body))
}

func TestBuildVoidOutput(t *testing.T) {
	called := false
	handler := HandlerFunc[map[string]any, *Void](func(context.Context, map[string]any, *InvocationContext) (*Void, error) {
		called = true
		return nil, nil
	})

	invoke, err := Build[map[string]any, *Void](handler)
	require.NoError(t, err)

	body, err := invoke(context.Background(), &InvocationContext{}, []byte("null"))
	require.NoError(t, err)
	assert.True(t, called)
	assert.Empty(t, body)
}

func TestBuildPropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	handler := HandlerFunc[string, string](func(context.Context, string, *InvocationContext) (string, error) {
		return "ignored", boom
	})

	invoke, err := Build[string, string](handler)
	require.NoError(t, err)

	body, err := invoke(context.Background(), &InvocationContext{}, []byte("x"))
	require.ErrorIs(t, err, boom)
	assert.Nil(t, body)
}

func TestBuildSkipsHandlerOnDecodeError(t *testing.T) {
	called := false
	handler := HandlerFunc[order, string](func(context.Context, order, *InvocationContext) (string, error) {
		called = true
		return "", nil
	})

	invoke, err := Build[order, string](handler)
	require.NoError(t, err)

	_, err = invoke(context.Background(), &InvocationContext{}, []byte("{"))
	var decodeErr *errspkg.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.False(t, called)
}
