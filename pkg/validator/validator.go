package validator

import (
	"context"
	"errors"
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// Validator 由 Builder 构建的验证器
// 并发安全：构建完成后内部状态只读
type Validator struct {
	engine       *validator.Validate
	initializers []ObjectInitializer
	translator   ut.Translator
	messages     ut.Translator
	domain       string
}

// Struct 验证结构体
// 存在违规时返回 *Violations；约束验证器调用 Abort 时返回其错误
func (v *Validator) Struct(obj any) error {
	return v.StructCtx(context.Background(), obj)
}

// StructCtx 带上下文的结构体验证
func (v *Validator) StructCtx(ctx context.Context, obj any) (err error) {
	if isNil(obj) {
		return ErrNilTarget
	}

	for _, initializer := range v.initializers {
		initializer.Initialize(obj)
	}

	defer recoverAbort(&err)
	return v.convert(v.engine.StructCtx(ctx, obj))
}

// Var 按规则验证单个值
func (v *Validator) Var(value any, rule string) error {
	return v.VarCtx(context.Background(), value, rule)
}

// VarCtx 带上下文的单值验证
func (v *Validator) VarCtx(ctx context.Context, value any, rule string) (err error) {
	defer recoverAbort(&err)
	return v.convert(v.engine.VarCtx(ctx, value, rule))
}

// Engine 底层 go-playground 引擎，用于注册额外的验证函数
func (v *Validator) Engine() *validator.Validate {
	return v.engine
}

// Translator 配置的翻译器，未配置时为 nil
func (v *Validator) Translator() ut.Translator {
	return v.translator
}

// TranslationDomain 翻译域
func (v *Validator) TranslationDomain() string {
	return v.domain
}

// convert 把引擎的验证错误转换为 *Violations，其它错误原样返回
func (v *Validator) convert(err error) error {
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	violations := &Violations{Errors: make([]*FieldError, 0, len(validationErrors))}
	for _, fe := range validationErrors {
		violations.Add(newFieldErrorFromEngine(fe, translate(v.messages, v.domain, fe)))
	}
	return violations
}

// isNil 判断值或指针是否为 nil
func isNil(obj any) bool {
	if obj == nil {
		return true
	}
	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
