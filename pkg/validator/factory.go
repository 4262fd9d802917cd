package validator

import (
	"fmt"
	"sync"
)

// ConstraintValidatorFactory 默认验证器工厂
// 按类型名登记无参构造函数，实例按类型名缓存；不具备依赖注入能力
type ConstraintValidatorFactory struct {
	mu           sync.RWMutex
	constructors map[string]func() ConstraintValidator
	validators   map[string]ConstraintValidator
}

var _ ValidatorFactory = (*ConstraintValidatorFactory)(nil)

// NewConstraintValidatorFactory 创建默认工厂，已登记内置表达式验证器
func NewConstraintValidatorFactory() *ConstraintValidatorFactory {
	f := &ConstraintValidatorFactory{
		constructors: make(map[string]func() ConstraintValidator),
		validators:   make(map[string]ConstraintValidator),
	}
	f.Register(ExpressionValidatorName, func() ConstraintValidator {
		return NewExpressionValidator()
	})
	return f
}

// Register 登记验证器构造函数
func (f *ConstraintValidatorFactory) Register(name string, ctor func() ConstraintValidator) *ConstraintValidatorFactory {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.constructors[name] = ctor
	delete(f.validators, name)
	return f
}

// GetInstance 实现 ValidatorFactory
func (f *ConstraintValidatorFactory) GetInstance(constraint Constraint) (ConstraintValidator, error) {
	if constraint == nil {
		return nil, ErrNilConstraint
	}

	name := ResolveValidatorName(constraint)

	f.mu.RLock()
	cached, ok := f.validators[name]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.validators[name]; ok {
		return cached, nil
	}

	ctor, ok := f.constructors[name]
	if !ok {
		return nil, &ConfigurationError{ValidatorName: name, ConstraintType: fmt.Sprintf("%T", constraint)}
	}

	instance := ctor()
	f.validators[name] = instance
	return instance, nil
}

// ResolveValidatorName 约束对应的验证器类型名，表达式逻辑名会被替换
func ResolveValidatorName(constraint Constraint) string {
	name := constraint.ValidatedBy()
	if name == ExpressionSentinel {
		return ExpressionValidatorName
	}
	return name
}
