package validator

import (
	"errors"
	"fmt"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	zhtranslations "github.com/go-playground/validator/v10/translations/zh"
)

// defaultTranslations 各语言的默认翻译注册函数
var defaultTranslations = map[string]func(v *validator.Validate, trans ut.Translator) error{
	"en": entranslations.RegisterDefaultTranslations,
	"zh": zhtranslations.RegisterDefaultTranslations,
}

// NewTranslator 创建指定语言的翻译器（支持 en、zh）
// 每次调用都会创建独立的 UniversalTranslator，互不共享翻译表
func NewTranslator(locale string) (ut.Translator, error) {
	universal := ut.New(en.New(), en.New(), zh.New())
	trans, found := universal.GetTranslator(locale)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocale, locale)
	}
	return trans, nil
}

// engineTranslator 引擎专属的翻译器视图
// 翻译表仍写入共享的翻译器，已存在的翻译项保留原内容；
// 引擎按翻译器实例保存翻译函数，每个引擎持有自己的视图，翻译函数因此总能完整注册
type engineTranslator struct {
	ut.Translator
}

// Add 实现 ut.Translator，忽略冲突
func (t *engineTranslator) Add(key any, text string, override bool) error {
	return ignoreConflict(t.Translator.Add(key, text, override))
}

// AddCardinal 实现 ut.Translator，忽略冲突
func (t *engineTranslator) AddCardinal(key any, text string, rule locales.PluralRule, override bool) error {
	return ignoreConflict(t.Translator.AddCardinal(key, text, rule, override))
}

// AddOrdinal 实现 ut.Translator，忽略冲突
func (t *engineTranslator) AddOrdinal(key any, text string, rule locales.PluralRule, override bool) error {
	return ignoreConflict(t.Translator.AddOrdinal(key, text, rule, override))
}

// AddRange 实现 ut.Translator，忽略冲突
func (t *engineTranslator) AddRange(key any, text string, rule locales.PluralRule, override bool) error {
	return ignoreConflict(t.Translator.AddRange(key, text, rule, override))
}

func ignoreConflict(err error) error {
	var conflict *ut.ErrConflictingTranslation
	if errors.As(err, &conflict) {
		return nil
	}
	return err
}

// registerDefaultTranslations 为引擎注册翻译器所属语言的默认消息
// 返回引擎翻译时使用的翻译器；不支持的语言只使用已有的翻译表
func registerDefaultTranslations(engine *validator.Validate, trans ut.Translator) (ut.Translator, error) {
	view := &engineTranslator{Translator: trans}
	register, ok := defaultTranslations[trans.Locale()]
	if !ok {
		return view, nil
	}
	if err := register(engine, view); err != nil {
		return nil, err
	}
	return view, nil
}

// translate 生成字段错误的消息
// 先查找 <domain>.<tag> 翻译，再使用引擎注册的翻译，最后直接按标签查找
func translate(trans ut.Translator, domain string, fe validator.FieldError) string {
	if trans == nil {
		return ""
	}
	if domain != "" {
		if msg, err := trans.T(domain+"."+fe.Tag(), fe.Field(), fe.Param()); err == nil {
			return msg
		}
	}
	if msg := fe.Translate(trans); msg != fe.Error() {
		return msg
	}
	if msg, err := trans.T(fe.Tag(), fe.Field(), fe.Param()); err == nil {
		return msg
	}
	return ""
}
