package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcprest/tcprest-go/internal/convert"
	"github.com/tcprest/tcprest-go/internal/mapper"
	"github.com/tcprest/tcprest-go/internal/rpcerrors"
)

// counterResource is a stateful singleton-friendly test resource: Increment
// mutates state, so its behavior differs between a singleton binding and a
// class (fresh-per-call) binding.
type counterResource struct {
	count int
}

func (c *counterResource) Increment(by int) int {
	c.count += by
	return c.count
}

func (c *counterResource) Greet(name string) string {
	return "hello, " + name
}

func (c *counterResource) Fail(message string) error {
	return rpcerrors.NewBusinessError("com.example.BadInput", message)
}

func (c *counterResource) Panic() string {
	panic("boom")
}

func TestRegistryAddSingletonAndResolve(t *testing.T) {
	r := NewRegistry()
	shared := &counterResource{}
	require.NoError(t, r.AddSingleton("com.example.Counter", shared))

	instance, err := r.Resolve("com.example.Counter")
	require.NoError(t, err)
	assert.Same(t, shared, instance)
}

func TestRegistryAddResourceGivesFreshInstancePerResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddResource("com.example.Counter", &counterResource{}))

	a, err := r.Resolve("com.example.Counter")
	require.NoError(t, err)
	b, err := r.Resolve("com.example.Counter")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestRegistryResolveUnknownClass(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("com.example.Missing")
	require.Error(t, err)
	var unknown *ErrUnknownClass
	require.ErrorAs(t, err, &unknown)
}

func TestRegistryClassNamesAndHas(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddSingleton("com.example.Counter", &counterResource{}))

	assert.True(t, r.Has("com.example.Counter"))
	assert.False(t, r.Has("com.example.Other"))
	assert.Contains(t, r.ClassNames(), "com.example.Counter")
}

func TestResolverResolvesByNameAndValidatesArgs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddSingleton("com.example.Counter", &counterResource{}))
	resolver := NewResolver(r)

	resolved, err := resolver.Resolve("com.example.Counter", "Greet", []string{mapper.TypeString})
	require.NoError(t, err)
	assert.Equal(t, "Greet", resolved.Method.Name)
}

func TestResolverRejectsUnknownMethod(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddSingleton("com.example.Counter", &counterResource{}))
	resolver := NewResolver(r)

	_, err := resolver.Resolve("com.example.Counter", "Nonexistent", nil)
	require.Error(t, err)
	var unknown *ErrUnknownMethod
	require.ErrorAs(t, err, &unknown)
}

func TestResolverRejectsArityMismatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddSingleton("com.example.Counter", &counterResource{}))
	resolver := NewResolver(r)

	_, err := resolver.Resolve("com.example.Counter", "Greet", []string{mapper.TypeString, mapper.TypeInt})
	require.Error(t, err)
	var arity *ErrArityMismatch
	require.ErrorAs(t, err, &arity)
}

func TestResolverRejectsTypeMismatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddSingleton("com.example.Counter", &counterResource{}))
	resolver := NewResolver(r)

	_, err := resolver.Resolve("com.example.Counter", "Greet", []string{mapper.TypeInt})
	require.Error(t, err)
	var mismatch *ErrTypeMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestResolverAllowsWideningConversions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddSingleton("com.example.Counter", &counterResource{}))
	resolver := NewResolver(r)

	// Increment(int) declared as "int"; an "java.lang.Integer"-tagged
	// argument should still widen-match per isAssignableFQN.
	_, err := resolver.Resolve("com.example.Counter", "Increment", []string{mapper.TypeInteger})
	require.NoError(t, err)
}

func TestDispatchSingletonPreservesStateAcrossCalls(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddSingleton("com.example.Counter", &counterResource{}))
	mappers := mapper.NewRegistry()

	tokens := []convert.Token{{Value: "5", TypeFQN: mapper.TypeInt}}
	first, err := Dispatch(r, "com.example.Counter", "Increment", tokens, mappers)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Value)

	second, err := Dispatch(r, "com.example.Counter", "Increment", tokens, mappers)
	require.NoError(t, err)
	assert.Equal(t, 10, second.Value)
}

func TestDispatchClassResourceResetsStateEachCall(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddResource("com.example.Counter", &counterResource{}))
	mappers := mapper.NewRegistry()

	tokens := []convert.Token{{Value: "5", TypeFQN: mapper.TypeInt}}
	first, err := Dispatch(r, "com.example.Counter", "Increment", tokens, mappers)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Value)

	second, err := Dispatch(r, "com.example.Counter", "Increment", tokens, mappers)
	require.NoError(t, err)
	assert.Equal(t, 5, second.Value)
}

func TestDispatchPropagatesBusinessError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddSingleton("com.example.Counter", &counterResource{}))
	mappers := mapper.NewRegistry()

	tokens := []convert.Token{{Value: "bad", TypeFQN: mapper.TypeString}}
	_, err := Dispatch(r, "com.example.Counter", "Fail", tokens, mappers)
	require.Error(t, err)

	var be *rpcerrors.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, rpcerrors.StatusBusiness, rpcerrors.StatusOf(err))
}

func TestDispatchUnknownClassIsProtocolError(t *testing.T) {
	r := NewRegistry()
	mappers := mapper.NewRegistry()

	_, err := Dispatch(r, "com.example.Missing", "Greet", nil, mappers)
	require.Error(t, err)
	assert.Equal(t, rpcerrors.StatusProtocol, rpcerrors.StatusOf(err))
}

func TestDispatchRecoversPanicAsServerError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddSingleton("com.example.Counter", &counterResource{}))
	mappers := mapper.NewRegistry()

	_, err := Dispatch(r, "com.example.Counter", "Panic", nil, mappers)
	require.Error(t, err)
	assert.Equal(t, rpcerrors.StatusServer, rpcerrors.StatusOf(err))
}

func TestDispatchErrorOnlyMethodReturnsItsError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddSingleton("com.example.Counter", &counterResource{}))
	mappers := mapper.NewRegistry()

	tokens := []convert.Token{{Value: "hello", TypeFQN: mapper.TypeString}}
	_, err := Dispatch(r, "com.example.Counter", "Fail", tokens, mappers)
	require.Error(t, err) // Fail always errors; exercised above for status classification only.
}
