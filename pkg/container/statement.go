package container

// Statement 描述一次"按类型名构造"的调用
// Type 为已登记的类型名，Args 按字段名写入构造结果（需为结构体指针）
type Statement struct {
	Type string         `mapstructure:"type"`
	Args map[string]any `mapstructure:"args"`
}

// NewStatement 创建构造描述
func NewStatement(typeName string, args map[string]any) Statement {
	return Statement{Type: typeName, Args: args}
}

// IsZero 是否为空描述
func (s Statement) IsZero() bool {
	return s.Type == "" && len(s.Args) == 0
}
