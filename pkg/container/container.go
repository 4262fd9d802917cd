package container

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/dig"
)

// inType dig.In 的反射类型，用于动态构造带名称的参数对象
var inType = reflect.TypeOf(dig.In{})

// binding 一条可按类型查找的服务注册
type binding struct {
	typ  reflect.Type
	name string
}

// Container 基于 dig 的服务容器
// 在 dig 的依赖图之上维护两张索引：
//   - bindings：类型名 -> 已注册服务，用于 LookupByType
//   - types：类型名 -> 构造函数，相当于运行时的"已知类型"表，用于 KnowsType/Construct
//
// dig 本身不是并发安全的，所有对 dig 的调用由 digMu 串行化。
// 构造函数内部可以回调容器，但不能依赖正在构造的服务本身
type Container struct {
	dig      *dig.Container
	digMu    digLock
	mu       sync.RWMutex
	bindings map[string][]binding
	types    map[string]reflect.Value
}

// New 创建空容器
func New() *Container {
	return &Container{
		dig:      dig.New(),
		bindings: make(map[string][]binding),
		types:    make(map[string]reflect.Value),
	}
}

// ProvideOption 注册选项
type ProvideOption func(*provideOptions)

type provideOptions struct {
	name          string
	notAutowired  bool
	registerKnown bool
}

// WithName 以名称注册服务（对应 dig.Name）
func WithName(name string) ProvideOption {
	return func(o *provideOptions) {
		o.name = name
	}
}

// NotAutowired 服务不参与 LookupByType，只能通过名称注入
func NotAutowired() ProvideOption {
	return func(o *provideOptions) {
		o.notAutowired = true
	}
}

// AsKnownType 同时把构造函数登记为已知类型
func AsKnownType() ProvideOption {
	return func(o *provideOptions) {
		o.registerKnown = true
	}
}

func applyOptions(opts []ProvideOption) provideOptions {
	var o provideOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Provide 注册构造函数，参数由容器自动装配
// 构造函数形如 func(deps...) T 或 func(deps...) (T, error)
func (c *Container) Provide(ctor any, opts ...ProvideOption) error {
	fn := reflect.ValueOf(ctor)
	if err := checkConstructor(fn); err != nil {
		return err
	}

	o := applyOptions(opts)
	var digOpts []dig.ProvideOption
	if o.name != "" {
		digOpts = append(digOpts, dig.Name(o.name))
	}
	c.digMu.lock()
	err := c.dig.Provide(ctor, digOpts...)
	c.digMu.unlock()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ft := fn.Type()
	for i := 0; i < ft.NumOut(); i++ {
		out := ft.Out(i)
		if out == errorType || dig.IsOut(out) {
			continue
		}
		if !o.notAutowired {
			name := TypeName(out)
			c.bindings[name] = append(c.bindings[name], binding{typ: out, name: o.name})
		}
	}
	if o.registerKnown {
		c.types[TypeName(ft.Out(0))] = fn
	}

	return nil
}

// Supply 注册已有实例，注册类型为实例的动态类型
func (c *Container) Supply(value any, opts ...ProvideOption) error {
	if value == nil {
		return ErrNilValue
	}
	return c.supply(reflect.TypeOf(value), reflect.ValueOf(value), opts)
}

// SupplyAs 以类型 T（通常为接口）注册已有实例
func SupplyAs[T any](c *Container, value T, opts ...ProvideOption) error {
	v := reflect.ValueOf(&value).Elem()
	if !v.IsValid() || (v.Kind() == reflect.Interface && v.IsNil()) {
		return ErrNilValue
	}
	return c.supply(v.Type(), v, opts)
}

func (c *Container) supply(typ reflect.Type, value reflect.Value, opts []ProvideOption) error {
	ft := reflect.FuncOf(nil, []reflect.Type{typ}, false)
	ctor := reflect.MakeFunc(ft, func([]reflect.Value) []reflect.Value {
		return []reflect.Value{value}
	})
	return c.Provide(ctor.Interface(), opts...)
}

// RegisterType 登记已知类型及其构造函数
// 类型名取自构造函数的第一个返回值；重复登记会覆盖
func (c *Container) RegisterType(ctor any) error {
	fn := reflect.ValueOf(ctor)
	if err := checkConstructor(fn); err != nil {
		return err
	}

	c.mu.Lock()
	c.types[TypeName(fn.Type().Out(0))] = fn
	c.mu.Unlock()

	return nil
}

// KnowsType 类型名是否已登记（与是否注册为服务无关）
func (c *Container) KnowsType(typeName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.types[typeName]
	return ok
}

// KnownTypes 列出所有已登记的类型名
func (c *Container) KnownTypes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupByType 按类型名查找唯一的服务实例
//   - 无注册：返回 nil, nil
//   - 多个注册：返回 ErrAmbiguousService
//   - 唯一注册：由 dig 解析（首次解析时构造，之后复用）
func (c *Container) LookupByType(typeName string) (any, error) {
	c.mu.RLock()
	found := c.bindings[typeName]
	c.mu.RUnlock()

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return c.resolve(found[0])
	default:
		return nil, fmt.Errorf("%w: %q has %d registrations", ErrAmbiguousService, typeName, len(found))
	}
}

// Construct 使用已登记的构造函数创建新实例，参数由容器自动装配
// 构造函数返回的错误原样返回
func (c *Container) Construct(typeName string) (any, error) {
	c.mu.RLock()
	ctor, ok := c.types[typeName]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}

	ft := ctor.Type()
	in := make([]reflect.Type, ft.NumIn())
	for i := range in {
		in[i] = ft.In(i)
	}

	var result any
	invoker := reflect.MakeFunc(reflect.FuncOf(in, []reflect.Type{errorType}, false), func(args []reflect.Value) []reflect.Value {
		outs := ctor.Call(args)
		if len(outs) == 2 && !outs[1].IsNil() {
			return []reflect.Value{outs[1]}
		}
		result = outs[0].Interface()
		return []reflect.Value{reflect.Zero(errorType)}
	})

	if err := c.invoke(invoker.Interface()); err != nil {
		return nil, err
	}
	return result, nil
}

// ConstructStatement 按构造描述创建实例
// Args 通过 mapstructure 写入实例的导出字段
func (c *Container) ConstructStatement(stmt Statement) (any, error) {
	instance, err := c.Construct(stmt.Type)
	if err != nil {
		return nil, err
	}
	if len(stmt.Args) == 0 {
		return instance, nil
	}
	if err := mapstructure.Decode(stmt.Args, instance); err != nil {
		return nil, fmt.Errorf("container: apply args to %q: %w", stmt.Type, err)
	}
	return instance, nil
}

// Invoke 调用函数，参数由容器自动装配
func (c *Container) Invoke(fn any) error {
	return c.invoke(fn)
}

func (c *Container) invoke(fn any) error {
	c.digMu.lock()
	defer c.digMu.unlock()
	return c.dig.Invoke(fn)
}

// resolve 通过 dig 解析一条注册
// 带名称的注册需要动态构造嵌入 dig.In 的参数对象
func (c *Container) resolve(b binding) (any, error) {
	var (
		out     reflect.Value
		fnType  reflect.Type
		capture func(args []reflect.Value)
	)

	if b.name == "" {
		fnType = reflect.FuncOf([]reflect.Type{b.typ}, nil, false)
		capture = func(args []reflect.Value) { out = args[0] }
	} else {
		param := reflect.StructOf([]reflect.StructField{
			{Name: "In", Type: inType, Anonymous: true},
			{Name: "Value", Type: b.typ, Tag: reflect.StructTag(fmt.Sprintf("name:%q", b.name))},
		})
		fnType = reflect.FuncOf([]reflect.Type{param}, nil, false)
		capture = func(args []reflect.Value) { out = args[0].Field(1) }
	}

	fn := reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		capture(args)
		return nil
	})
	if err := c.invoke(fn.Interface()); err != nil {
		return nil, err
	}

	return out.Interface(), nil
}

// checkConstructor 校验构造函数签名
func checkConstructor(fn reflect.Value) error {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return fmt.Errorf("%w: expected a function, got %v", ErrInvalidConstructor, fn.Kind())
	}
	if fn.IsNil() {
		return fmt.Errorf("%w: nil function", ErrInvalidConstructor)
	}

	ft := fn.Type()
	if ft.IsVariadic() {
		return fmt.Errorf("%w: variadic constructor %v", ErrInvalidConstructor, ft)
	}
	switch ft.NumOut() {
	case 1:
		if ft.Out(0) == errorType {
			return fmt.Errorf("%w: constructor %v only returns an error", ErrInvalidConstructor, ft)
		}
	case 2:
		if ft.Out(0) == errorType || ft.Out(1) != errorType {
			return fmt.Errorf("%w: constructor %v must return (T, error)", ErrInvalidConstructor, ft)
		}
	default:
		return fmt.Errorf("%w: constructor %v must return T or (T, error)", ErrInvalidConstructor, ft)
	}

	return nil
}
