package validator

import (
	"encoding/xml"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"katydid-validator-di/pkg/typename"
)

// TypeMetadata 单个类型的约束映射：字段名 -> 规则字符串
type TypeMetadata struct {
	TypeName string            `json:"type"`
	Rules    map[string]string `json:"rules,omitempty"`

	typ reflect.Type
}

// NewTypeMetadata 为类型创建空映射
func NewTypeMetadata(typ reflect.Type) *TypeMetadata {
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return &TypeMetadata{
		TypeName: typename.Of(typ),
		Rules:    make(map[string]string),
		typ:      typ,
	}
}

// Type 映射所属的类型
func (m *TypeMetadata) Type() reflect.Type {
	return m.typ
}

// AddRule 追加字段规则，同一字段的多条规则以逗号合并
func (m *TypeMetadata) AddRule(field, rule string) {
	rule = strings.TrimSpace(rule)
	if field == "" || rule == "" {
		return
	}
	if m.Rules == nil {
		m.Rules = make(map[string]string)
	}
	if existing, ok := m.Rules[field]; ok && existing != "" {
		m.Rules[field] = existing + "," + rule
		return
	}
	m.Rules[field] = rule
}

// Fields 已映射的字段名（有序）
func (m *TypeMetadata) Fields() []string {
	fields := make([]string, 0, len(m.Rules))
	for field := range m.Rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Loader 约束映射加载器
type Loader interface {
	// LoadTypeMetadata 向 meta 写入映射，返回是否加载到任何内容
	LoadTypeMetadata(meta *TypeMetadata) (bool, error)
}

// LoaderChain 依次执行多个加载器
type LoaderChain struct {
	loaders []Loader
}

// NewLoaderChain 创建加载器链
func NewLoaderChain(loaders ...Loader) *LoaderChain {
	return &LoaderChain{loaders: loaders}
}

// Loaders 链中的加载器
func (c *LoaderChain) Loaders() []Loader {
	return c.loaders
}

// LoadTypeMetadata 实现 Loader
func (c *LoaderChain) LoadTypeMetadata(meta *TypeMetadata) (bool, error) {
	loaded := false
	for _, loader := range c.loaders {
		ok, err := loader.LoadTypeMetadata(meta)
		if err != nil {
			return loaded, err
		}
		loaded = loaded || ok
	}
	return loaded, nil
}

// ============================================================================
// 文件加载器
// ============================================================================

// fileMappings 按类型名索引的文件映射，首次使用时解析
type fileMappings struct {
	fs     afero.Fs
	path   string
	parse  func(data []byte) (map[string]map[string]string, error)
	once   sync.Once
	byType map[string]map[string]string
	err    error
}

func (f *fileMappings) load(meta *TypeMetadata) (bool, error) {
	f.once.Do(func() {
		data, err := afero.ReadFile(f.fs, f.path)
		if err != nil {
			f.err = fmt.Errorf("read mapping %s: %w", f.path, err)
			return
		}
		f.byType, f.err = f.parse(data)
		if f.err != nil {
			f.err = fmt.Errorf("%w: %s: %v", ErrInvalidMapping, f.path, f.err)
		}
	})
	if f.err != nil {
		return false, f.err
	}

	rules, ok := f.byType[meta.TypeName]
	if !ok {
		return false, nil
	}
	fields := make([]string, 0, len(rules))
	for field := range rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		meta.AddRule(field, rules[field])
	}
	return true, nil
}

// XMLFileLoader 从 XML 文件加载映射
//
//	<constraint-mapping>
//	  <type name="example.com/app.User">
//	    <field name="Email" rules="required,email"/>
//	  </type>
//	</constraint-mapping>
type XMLFileLoader struct {
	mappings *fileMappings
}

type xmlConstraintMapping struct {
	XMLName xml.Name  `xml:"constraint-mapping"`
	Types   []xmlType `xml:"type"`
}

type xmlType struct {
	Name   string     `xml:"name,attr"`
	Fields []xmlField `xml:"field"`
}

type xmlField struct {
	Name  string `xml:"name,attr"`
	Rules string `xml:"rules,attr"`
}

// NewXMLFileLoader 创建 XML 加载器
func NewXMLFileLoader(fs afero.Fs, path string) *XMLFileLoader {
	return &XMLFileLoader{mappings: &fileMappings{fs: fs, path: path, parse: parseXMLMapping}}
}

// Path 映射文件路径
func (l *XMLFileLoader) Path() string {
	return l.mappings.path
}

// LoadTypeMetadata 实现 Loader
func (l *XMLFileLoader) LoadTypeMetadata(meta *TypeMetadata) (bool, error) {
	return l.mappings.load(meta)
}

func parseXMLMapping(data []byte) (map[string]map[string]string, error) {
	var doc xmlConstraintMapping
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	byType := make(map[string]map[string]string, len(doc.Types))
	for _, t := range doc.Types {
		if t.Name == "" {
			return nil, fmt.Errorf("type without name")
		}
		rules := byType[t.Name]
		if rules == nil {
			rules = make(map[string]string)
			byType[t.Name] = rules
		}
		for _, f := range t.Fields {
			if existing := rules[f.Name]; existing != "" {
				rules[f.Name] = existing + "," + f.Rules
				continue
			}
			rules[f.Name] = f.Rules
		}
	}
	return byType, nil
}

// YAMLFileLoader 从 YAML 文件加载映射
//
//	example.com/app.User:
//	  fields:
//	    Email: required,email
type YAMLFileLoader struct {
	mappings *fileMappings
}

type yamlType struct {
	Fields map[string]string `yaml:"fields"`
}

// NewYAMLFileLoader 创建 YAML 加载器
func NewYAMLFileLoader(fs afero.Fs, path string) *YAMLFileLoader {
	return &YAMLFileLoader{mappings: &fileMappings{fs: fs, path: path, parse: parseYAMLMapping}}
}

// Path 映射文件路径
func (l *YAMLFileLoader) Path() string {
	return l.mappings.path
}

// LoadTypeMetadata 实现 Loader
func (l *YAMLFileLoader) LoadTypeMetadata(meta *TypeMetadata) (bool, error) {
	return l.mappings.load(meta)
}

func parseYAMLMapping(data []byte) (map[string]map[string]string, error) {
	var doc map[string]yamlType
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	byType := make(map[string]map[string]string, len(doc))
	for name, t := range doc {
		rules := make(map[string]string, len(t.Fields))
		for field, rule := range t.Fields {
			rules[field] = rule
		}
		byType[name] = rules
	}
	return byType, nil
}

// ============================================================================
// 方法加载器
// ============================================================================

// MethodLoader 通过调用类型上的方法加载映射
// 方法签名必须为 func() map[string]string，接收者可以是值或指针
type MethodLoader struct {
	method string
}

var rulesFuncType = reflect.TypeOf(func() map[string]string { return nil })

// NewMethodLoader 创建方法加载器
func NewMethodLoader(method string) *MethodLoader {
	return &MethodLoader{method: method}
}

// Method 方法名
func (l *MethodLoader) Method() string {
	return l.method
}

// LoadTypeMetadata 实现 Loader
func (l *MethodLoader) LoadTypeMetadata(meta *TypeMetadata) (bool, error) {
	if meta.typ == nil {
		return false, nil
	}

	m := reflect.New(meta.typ).MethodByName(l.method)
	if !m.IsValid() {
		return false, nil
	}
	if m.Type() != rulesFuncType {
		return false, fmt.Errorf("%w: method %s.%s must be func() map[string]string, got %v",
			ErrInvalidMapping, meta.TypeName, l.method, m.Type())
	}

	rules, _ := m.Call(nil)[0].Interface().(map[string]string)
	fields := make([]string, 0, len(rules))
	for field := range rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		meta.AddRule(field, rules[field])
	}
	return true, nil
}
