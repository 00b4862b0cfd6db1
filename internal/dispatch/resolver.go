package dispatch

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/tcprest/tcprest-go/internal/mapper"
)

// MethodInfo is the reflected shape of one dispatchable method: its
// callable reflect.Value, its declared parameter types (both as
// reflect.Type and as the wire type FQN each parameter accepts), and
// whether it returns a value and/or a trailing error. A dispatch target
// method has one of the shapes func (receiver) Name(args...) (T, error),
// Name(args...) T, Name(args...) error, or Name(args...).
type MethodInfo struct {
	Name         string
	Func         reflect.Method
	ParamTypes   []reflect.Type
	ParamFQNs    []string
	ReturnType   reflect.Type
	ReturnFQN    string
	ReturnsValue bool
	ReturnsError bool
}

// classMethods is expensive to compute via reflection, so it's cached per
// Go type the way Vanadium's rpc.ReflectInvoker memoizes reflectInfo.
type classMethods struct {
	mu      sync.RWMutex
	methods map[string]*MethodInfo
}

var methodCache sync.Map // reflect.Type -> *classMethods

// describeMethods returns the exported, TCPREST-shaped methods of rt,
// computing and caching them on first use.
func describeMethods(rt reflect.Type) (map[string]*MethodInfo, error) {
	if cached, ok := methodCache.Load(rt); ok {
		return cached.(*classMethods).snapshot(), nil
	}

	methods := make(map[string]*MethodInfo)
	for i := 0; i < rt.NumMethod(); i++ {
		m := rt.Method(i)
		info, ok, err := describeMethod(m)
		if err != nil {
			return nil, fmt.Errorf("dispatch: method %s.%s: %w", rt, m.Name, err)
		}
		if ok {
			methods[m.Name] = info
		}
	}

	cm := &classMethods{methods: methods}
	actual, _ := methodCache.LoadOrStore(rt, cm)
	return actual.(*classMethods).snapshot(), nil
}

func (cm *classMethods) snapshot() map[string]*MethodInfo {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.methods
}

// describeMethod type-checks one reflect.Method against the dispatch
// convention. The receiver is always in-arg 0 for a method obtained via
// Type.Method (unlike Value.Method); with two out-args the second must be
// error. Methods with any other result shape are silently skipped,
// mirroring rpc.ReflectInvoker's treatment of incompatible methods rather
// than failing registration outright.
func describeMethod(m reflect.Method) (*MethodInfo, bool, error) {
	mtype := m.Type
	numOut := mtype.NumOut()
	if numOut > 2 {
		return nil, false, nil
	}
	returnsError := numOut > 0 && mtype.Out(numOut-1) == errorType
	if numOut == 2 && !returnsError {
		return nil, false, nil
	}

	info := &MethodInfo{Name: m.Name, Func: m, ReturnsError: returnsError, ReturnsValue: numOut == 2 || (numOut == 1 && !returnsError)}
	if info.ReturnsValue {
		info.ReturnType = mtype.Out(0)
		fqn, err := typeFQNForGoType(info.ReturnType)
		if err != nil {
			return nil, false, nil
		}
		info.ReturnFQN = fqn
	}

	for i := 1; i < mtype.NumIn(); i++ { // skip receiver
		pt := mtype.In(i)
		fqn, err := typeFQNForGoType(pt)
		if err != nil {
			return nil, false, nil
		}
		info.ParamTypes = append(info.ParamTypes, pt)
		info.ParamFQNs = append(info.ParamFQNs, fqn)
	}
	return info, true, nil
}

// typeFQNForGoType maps a Go parameter/return type to the wire type FQN a
// client would tag it with. Only the primitive/string surface the built-in
// mappers cover is supported; anything else is reported via err so the
// caller can decide whether to skip the method or require an explicit
// mapper registration.
func typeFQNForGoType(t reflect.Type) (string, error) {
	switch t.Kind() {
	case reflect.String:
		return mapper.TypeString, nil
	case reflect.Int, reflect.Int32:
		return mapper.TypeInt, nil
	case reflect.Int64:
		return mapper.TypeLong, nil
	case reflect.Bool:
		return mapper.TypeBoolean, nil
	case reflect.Float64, reflect.Float32:
		return mapper.TypeDouble, nil
	default:
		return "", fmt.Errorf("unsupported parameter/return kind %s", t.Kind())
	}
}

// isAssignableFQN reports whether a value tagged with suppliedFQN on the
// wire may be passed to a parameter declared with declaredFQN, allowing
// the same widening TCPREST's legacy mappers always allowed (int -> long,
// float -> double) and boxed <-> primitive conversion (Integer <-> int,
// Boolean <-> boolean) in addition to an exact match.
func isAssignableFQN(suppliedFQN, declaredFQN string) bool {
	if suppliedFQN == declaredFQN {
		return true
	}
	switch declaredFQN {
	case mapper.TypeInt:
		return suppliedFQN == mapper.TypeInteger
	case mapper.TypeBoolean:
		return suppliedFQN == mapper.TypeBool
	case mapper.TypeLong:
		return suppliedFQN == mapper.TypeInt || suppliedFQN == mapper.TypeInteger
	case mapper.TypeDouble:
		return suppliedFQN == mapper.TypeFloat
	case mapper.TypeInteger:
		return suppliedFQN == mapper.TypeInt
	case mapper.TypeBool:
		return suppliedFQN == mapper.TypeBoolean
	}
	return false
}

// Resolver looks up the dispatch target for (classFQN, method, argFQNs)
// against a Registry. Go forbids method overloading — a type may declare
// only one method per name — so unlike the legacy protocol's full
// name+arity+type-sequence overload search, resolution here is by name
// first and then validates the supplied argument count and type
// sequence against that single candidate's declared signature, using the
// same exact-match-then-assignable-match rule the legacy search used to
// break ties between overloads, reinterpreted for Go's single-method-per-name
// model.
type Resolver struct {
	registry *Registry
}

// NewResolver builds a Resolver over registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolved is a fully resolved dispatch target: the live instance to
// invoke against and the matched method description.
type Resolved struct {
	Instance any
	Method   *MethodInfo
}

// ErrUnknownMethod is returned when classFQN has no method named method.
type ErrUnknownMethod struct {
	ClassFQN, Method string
}

func (e *ErrUnknownMethod) Error() string {
	return fmt.Sprintf("dispatch: class %q has no method %q", e.ClassFQN, e.Method)
}

// ErrArityMismatch is returned when the supplied argument count doesn't
// match the resolved method's declared parameter count.
type ErrArityMismatch struct {
	ClassFQN, Method string
	Supplied, Wanted int
}

func (e *ErrArityMismatch) Error() string {
	return fmt.Sprintf("dispatch: %s.%s expects %d argument(s), got %d", e.ClassFQN, e.Method, e.Wanted, e.Supplied)
}

// ErrTypeMismatch is returned when a supplied argument's type FQN cannot
// be assigned to the corresponding declared parameter.
type ErrTypeMismatch struct {
	ClassFQN, Method string
	Index            int
	Supplied, Wanted string
}

func (e *ErrTypeMismatch) Error() string {
	return fmt.Sprintf("dispatch: %s.%s argument %d: cannot use %q as %q", e.ClassFQN, e.Method, e.Index, e.Supplied, e.Wanted)
}

// Resolve finds the dispatch target for classFQN.method and validates
// argFQNs against its declared signature.
func (r *Resolver) Resolve(classFQN, method string, argFQNs []string) (*Resolved, error) {
	instance, err := r.registry.Resolve(classFQN)
	if err != nil {
		return nil, err
	}

	methods, err := describeMethods(reflect.TypeOf(instance))
	if err != nil {
		return nil, err
	}
	info, ok := methods[method]
	if !ok {
		return nil, &ErrUnknownMethod{ClassFQN: classFQN, Method: method}
	}
	if len(argFQNs) != len(info.ParamFQNs) {
		return nil, &ErrArityMismatch{ClassFQN: classFQN, Method: method, Supplied: len(argFQNs), Wanted: len(info.ParamFQNs)}
	}
	for i, supplied := range argFQNs {
		if supplied == mapper.NullSentinel {
			continue // null is accepted for any parameter; invoke passes the type's zero value
		}
		if !isAssignableFQN(supplied, info.ParamFQNs[i]) {
			return nil, &ErrTypeMismatch{ClassFQN: classFQN, Method: method, Index: i, Supplied: supplied, Wanted: info.ParamFQNs[i]}
		}
	}

	return &Resolved{Instance: instance, Method: info}, nil
}
