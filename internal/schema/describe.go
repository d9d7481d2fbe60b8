package schema

import (
	"strings"
)

// Describe renders the catalog as the markdown block embedded in the translator system prompt.
// Sensitive and internal fields are left out so the model never learns their names.
func (c *Catalog) Describe() string {
	var b strings.Builder
	b.WriteString("## 可用实体和字段\n\n")
	for _, entity := range c.entities {
		describeEntity(&b, entity)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func describeEntity(b *strings.Builder, entity EntitySchema) {
	b.WriteString("### " + entity.Name + " (" + entity.DisplayName + ")\n")
	if entity.Description != "" {
		b.WriteString("描述: " + entity.Description + "\n")
	}
	if len(entity.Aliases) > 0 {
		b.WriteString("别名: " + strings.Join(entity.Aliases, ", ") + "\n")
	}

	b.WriteString("字段:\n")
	for _, field := range entity.Fields {
		if field.Sensitive || field.Internal {
			continue
		}
		nullability := "必填"
		if field.Nullable {
			nullability = "可空"
		}
		line := "- " + field.Name + " (" + field.DisplayName + "): " + string(field.Type) + ", " + nullability
		if len(field.Aliases) > 0 {
			line += " (别名: " + strings.Join(field.Aliases, ", ") + ")"
		}
		b.WriteString(line + "\n")
		if len(field.EnumValues) > 0 {
			values := make([]string, 0, len(field.EnumValues))
			for _, item := range field.EnumValues {
				values = append(values, item.Name+"="+item.DisplayName)
			}
			b.WriteString("  可选值: " + strings.Join(values, ", ") + "\n")
		}
	}

	if len(entity.Relations) > 0 {
		b.WriteString("关系:\n")
		for _, relation := range entity.Relations {
			b.WriteString("- " + relation.Name + " -> " + relation.RelatedEntity + " (" + relation.Kind + ")\n")
		}
	}
	b.WriteString("\n")
}
