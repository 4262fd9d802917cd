package validator

import (
	"github.com/go-playground/validator/v10"
)

// Constraint 约束声明
// 约束绑定到一个 go-playground 标签，并指明由哪个验证器类型负责执行
type Constraint interface {
	// Tag 约束在规则字符串中使用的标签名
	Tag() string

	// ValidatedBy 负责执行该约束的验证器的完整类型名
	ValidatedBy() string
}

// ConstraintValidator 约束验证器
type ConstraintValidator interface {
	// Validate 验证字段值是否满足约束
	// 需要终止整个验证（而不是报告违规）时调用 Abort
	Validate(fl validator.FieldLevel, constraint Constraint) bool
}

// ValidatorFactory 约束验证器工厂
// 引擎每遇到一个约束都会向工厂索取对应的验证器实例
type ValidatorFactory interface {
	GetInstance(constraint Constraint) (ConstraintValidator, error)
}

// NullAwareConstraint 值为 nil 时仍需执行的约束
type NullAwareConstraint interface {
	CallValidationEvenIfNull() bool
}

// Basic 通用约束：标签 + 验证器类型名
type Basic struct {
	Name          string `mapstructure:"tag"`
	ValidatorName string `mapstructure:"validatedBy"`
	// EvenIfNull 值为 nil 时是否仍执行验证
	EvenIfNull bool `mapstructure:"evenIfNull"`
}

// NewConstraint 创建通用约束
func NewConstraint(tag, validatedBy string) *Basic {
	return &Basic{Name: tag, ValidatorName: validatedBy}
}

// Tag 实现 Constraint
func (b *Basic) Tag() string {
	return b.Name
}

// ValidatedBy 实现 Constraint
func (b *Basic) ValidatedBy() string {
	return b.ValidatorName
}

// CallValidationEvenIfNull 实现 NullAwareConstraint
func (b *Basic) CallValidationEvenIfNull() bool {
	return b.EvenIfNull
}

// ValidatorFunc 函数形式的约束验证器
type ValidatorFunc func(fl validator.FieldLevel, constraint Constraint) bool

// Validate 实现 ConstraintValidator
func (f ValidatorFunc) Validate(fl validator.FieldLevel, constraint Constraint) bool {
	return f(fl, constraint)
}

// callEvenIfNull 约束是否声明了空值也要验证
func callEvenIfNull(c Constraint) bool {
	if aware, ok := c.(NullAwareConstraint); ok {
		return aware.CallValidationEvenIfNull()
	}
	return false
}
