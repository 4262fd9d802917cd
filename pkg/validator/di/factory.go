package di

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"katydid-validator-di/pkg/container"
	"katydid-validator-di/pkg/validator"
)

// Locator 工厂依赖的容器能力
type Locator interface {
	// LookupByType 按类型名查找唯一的已注册服务，无注册时返回 nil, nil
	LookupByType(typeName string) (any, error)
	// KnowsType 类型名是否可构造
	KnowsType(typeName string) bool
	// Construct 构造新实例，构造函数的依赖由容器注入
	Construct(typeName string) (any, error)
}

var _ Locator = (*container.Container)(nil)

// ContainerValidatorFactory 通过服务容器解析约束验证器
//
// 解析顺序：
//  1. 已缓存的实例
//  2. 容器中按类型注册的服务
//  3. 已登记类型的新实例（依赖自动注入）
//
// 每个类型名在工厂生命周期内最多解析成功一次，之后始终返回同一实例。
// 失败不缓存，下次调用会重新解析
type ContainerValidatorFactory struct {
	locator    Locator
	validators sync.Map // map[string]validator.ConstraintValidator
	group      singleflight.Group
}

var _ validator.ValidatorFactory = (*ContainerValidatorFactory)(nil)

// NewContainerValidatorFactory 创建工厂，locator 由调用方持有
func NewContainerValidatorFactory(locator Locator) *ContainerValidatorFactory {
	return &ContainerValidatorFactory{locator: locator}
}

// GetInstance 实现 validator.ValidatorFactory
// 容器返回的错误原样返回
func (f *ContainerValidatorFactory) GetInstance(constraint validator.Constraint) (validator.ConstraintValidator, error) {
	if constraint == nil {
		return nil, validator.ErrNilConstraint
	}

	name := validator.ResolveValidatorName(constraint)
	if cached, ok := f.validators.Load(name); ok {
		return cached.(validator.ConstraintValidator), nil
	}

	v, err, _ := f.group.Do(name, func() (any, error) {
		if cached, ok := f.validators.Load(name); ok {
			return cached, nil
		}

		instance, err := f.resolve(name, constraint)
		if err != nil {
			return nil, err
		}

		handle, ok := instance.(validator.ConstraintValidator)
		if !ok {
			return nil, &validator.UnexpectedTypeError{Value: instance, Expected: "ConstraintValidator"}
		}

		f.validators.Store(name, handle)
		return handle, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(validator.ConstraintValidator), nil
}

// resolve 先查找已注册服务，再构造已登记类型
func (f *ContainerValidatorFactory) resolve(name string, constraint validator.Constraint) (any, error) {
	instance, err := f.locator.LookupByType(name)
	if err != nil {
		return nil, err
	}
	if instance != nil {
		return instance, nil
	}

	if !f.locator.KnowsType(name) {
		return nil, &validator.ConfigurationError{
			ValidatorName:  name,
			ConstraintType: fmt.Sprintf("%T", constraint),
		}
	}

	return f.locator.Construct(name)
}

// Len 已缓存的验证器数量
func (f *ContainerValidatorFactory) Len() int {
	n := 0
	f.validators.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
