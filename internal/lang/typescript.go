package lang

// TypeScript and TSX share node kinds; only the grammar differs.
const typescriptQuery = `
(function_declaration name: (identifier) @name) @definition.function
(method_definition name: (property_identifier) @name) @definition.function
(class_declaration name: (type_identifier) @name) @definition.class
(interface_declaration name: (type_identifier) @name) @definition.class
(variable_declarator name: (identifier) @name value: (arrow_function)) @definition.function
`

func init() {
	Register(&Spec{
		Language:         TypeScript,
		FileExtensions:   []string{".ts", ".mts", ".cts"},
		DefinitionQuery:  typescriptQuery,
		CallNodeTypes:    []string{"call_expression", "new_expression"},
		ImportNodeTypes:  []string{"import_statement"},
		InheritNodeTypes: []string{"class_heritage", "extends_clause", "implements_clause", "extends_type_clause"},
		LSPLanguageID:    "typescript",
		ServerCommand:    []string{"typescript-language-server", "--stdio"},
	})
	Register(&Spec{
		Language:         TSX,
		FileExtensions:   []string{".tsx"},
		DefinitionQuery:  typescriptQuery,
		CallNodeTypes:    []string{"call_expression", "new_expression"},
		ImportNodeTypes:  []string{"import_statement"},
		InheritNodeTypes: []string{"class_heritage", "extends_clause", "implements_clause", "extends_type_clause"},
		LSPLanguageID:    "typescriptreact",
		ServerCommand:    []string{"typescript-language-server", "--stdio"},
	})
}
