package dispatch

import (
	"fmt"
	"reflect"

	"github.com/tcprest/tcprest-go/internal/convert"
	"github.com/tcprest/tcprest-go/internal/mapper"
	"github.com/tcprest/tcprest-go/internal/rpcerrors"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Result is the outcome of a successful dispatch: the decoded return
// value (nil for void methods) and the wire type FQN it should be
// encoded as.
type Result struct {
	Value   any
	TypeFQN string
}

// Dispatch resolves classFQN.method against registry, decodes paramTokens
// through mappers into the method's declared parameter types, invokes it,
// and classifies any failure into the rpcerrors sum type. Every error this
// function returns is one of *rpcerrors.BusinessError, *rpcerrors.ServerError,
// or *rpcerrors.ProtocolError — never a bare error — so callers can feed it
// straight to rpcerrors.StatusOf.
func Dispatch(registry *Registry, classFQN, method string, paramTokens []convert.Token, mappers *mapper.Registry) (*Result, error) {
	argFQNs := make([]string, len(paramTokens))
	for i, tok := range paramTokens {
		if tok.Value == mapper.NullSentinel {
			argFQNs[i] = mapper.NullSentinel
			continue
		}
		argFQNs[i] = tok.TypeFQN
	}

	resolver := NewResolver(registry)
	resolved, err := resolver.Resolve(classFQN, method, argFQNs)
	if err != nil {
		return nil, classifyResolveError(classFQN, method, err)
	}

	args, err := convert.DecodeArgs(paramTokens, mappers)
	if err != nil {
		return nil, rpcerrors.NewProtocolError(fmt.Sprintf("decoding arguments for %s.%s: %v", classFQN, method, err))
	}

	return invoke(classFQN, method, resolved, args)
}

func classifyResolveError(classFQN, method string, err error) error {
	switch err.(type) {
	case *ErrUnknownClass, *ErrUnknownMethod, *ErrArityMismatch, *ErrTypeMismatch:
		return rpcerrors.NewProtocolError(fmt.Sprintf("resolving %s.%s: %v", classFQN, method, err))
	default:
		return rpcerrors.NewServerError("dispatch.ResolveError", fmt.Sprintf("resolving %s.%s", classFQN, method), err)
	}
}

// invoke calls the resolved method via reflection and classifies its
// error return, if any, recovering from a panic in user code as a
// ServerError rather than letting it crash the dispatching goroutine —
// one handler's misbehaving method must never take down the server loop.
func invoke(classFQN, method string, resolved *Resolved, args []any) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = rpcerrors.NewServerError(classFQN, fmt.Sprintf("panic in %s.%s: %v", classFQN, method, r), nil)
		}
	}()

	rvArgs := make([]reflect.Value, len(args)+1)
	rvArgs[0] = reflect.ValueOf(resolved.Instance)
	for i, a := range args {
		if a == nil {
			rvArgs[i+1] = reflect.Zero(resolved.Method.ParamTypes[i])
			continue
		}
		rvArgs[i+1] = coerce(reflect.ValueOf(a), resolved.Method.ParamTypes[i])
	}

	rvResults := resolved.Method.Func.Func.Call(rvArgs)
	if resolved.Method.ReturnsError {
		if errOut := rvResults[len(rvResults)-1]; !errOut.IsNil() {
			callErr := errOut.Interface().(error)
			return nil, classifyCallError(classFQN, method, callErr)
		}
	}

	if !resolved.Method.ReturnsValue {
		return &Result{Value: nil, TypeFQN: mapper.TypeVoid}, nil
	}
	return &Result{Value: rvResults[0].Interface(), TypeFQN: resolved.Method.ReturnFQN}, nil
}

// coerce widens v to fit Go method parameters declared under a wire type
// that allows more than one concrete Go representation (e.g. "long"
// parameters backed by int64 accepting an int-mapper-decoded int, per the
// same widening isAssignableFQN permits at resolve time).
func coerce(v reflect.Value, want reflect.Type) reflect.Value {
	if v.Type() == want {
		return v
	}
	if v.Type().ConvertibleTo(want) {
		return v.Convert(want)
	}
	return v
}

// classifyCallError preserves a *rpcerrors.BusinessError returned
// verbatim by resource code (the declared-exception path) and wraps
// anything else as a ServerError (the unanticipated-failure path),
// matching the split rpcerrors.go documents between the two statuses.
func classifyCallError(classFQN, method string, callErr error) error {
	if be, ok := callErr.(*rpcerrors.BusinessError); ok {
		return be
	}
	return rpcerrors.NewServerError(classFQN, fmt.Sprintf("%s.%s failed", classFQN, method), callErr)
}
