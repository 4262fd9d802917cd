package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

// errorMessageEstimateLen 单条错误消息的预估长度，用于预分配
const errorMessageEstimateLen = 64

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Violations 一次验证产生的全部违规
type Violations struct {
	// Errors 所有字段错误
	Errors []*FieldError `json:"errors,omitempty"`
}

// FieldError 单个字段的验证错误
// 国际化时，可以通过 Tag + Param 查找对应的翻译
type FieldError struct {
	// FieldName 结构体字段名
	FieldName string `json:"field_name,omitempty"`
	// JsonName JSON 字段名
	JsonName string `json:"json_name"`
	// Tag 验证标签（如 required, email, min 等）
	Tag string `json:"tag"`
	// Param 验证参数（如 min=3 中的 "3"）
	Param string `json:"param,omitempty"`
	// Value 字段的实际值
	Value any `json:"value,omitempty"`
	// Message 翻译后的错误消息（未配置翻译器时为空）
	Message string `json:"message,omitempty"`
	// Namespace 字段的完整命名空间（如 User.Profile.Email）
	Namespace string `json:"namespace,omitempty"`
}

// newFieldErrorFromEngine 由 go-playground 的字段错误转换
func newFieldErrorFromEngine(fe validator.FieldError, message string) *FieldError {
	return &FieldError{
		FieldName: fe.StructField(),
		JsonName:  fe.Field(),
		Tag:       fe.Tag(),
		Param:     fe.Param(),
		Value:     fe.Value(),
		Message:   message,
		Namespace: fe.Namespace(),
	}
}

// Error 实现 error 接口
func (v *Violations) Error() string {
	if len(v.Errors) == 0 {
		return "validation passed: no errors"
	}

	var builder strings.Builder
	builder.Grow(len(v.Errors) * errorMessageEstimateLen)

	for i, err := range v.Errors {
		if i > 0 {
			builder.WriteString("; ")
		}
		builder.WriteString(err.String())
	}

	return builder.String()
}

// String 返回友好的错误信息
func (fe *FieldError) String() string {
	if fe.Message != "" {
		return fmt.Sprintf("field '%s': %s", fe.JsonName, fe.Message)
	}
	return fmt.Sprintf("field '%s' validation failed on tag '%s'", fe.JsonName, fe.Tag)
}

// HasErrors 是否存在违规
func (v *Violations) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add 添加字段错误
func (v *Violations) Add(err *FieldError) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// ToJSON 转换为 JSON 格式
func (v *Violations) ToJSON() ([]byte, error) {
	return json.Marshal(v)
}

// ByNamespace 按命名空间获取错误
func (v *Violations) ByNamespace(namespace string) []*FieldError {
	var errs []*FieldError
	for _, err := range v.Errors {
		if err.Namespace == namespace {
			errs = append(errs, err)
		}
	}
	return errs
}

// ByTag 按验证标签获取错误
func (v *Violations) ByTag(tag string) []*FieldError {
	var errs []*FieldError
	for _, err := range v.Errors {
		if err.Tag == tag {
			errs = append(errs, err)
		}
	}
	return errs
}
