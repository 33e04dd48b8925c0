package lang

func init() {
	Register(&Spec{
		Language:       JavaScript,
		FileExtensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		DefinitionQuery: `
(function_declaration name: (identifier) @name) @definition.function
(generator_function_declaration name: (identifier) @name) @definition.function
(method_definition name: (property_identifier) @name) @definition.function
(class_declaration name: (identifier) @name) @definition.class
(variable_declarator name: (identifier) @name value: (arrow_function)) @definition.function
`,
		CallNodeTypes:    []string{"call_expression", "new_expression"},
		ImportNodeTypes:  []string{"import_statement"},
		InheritNodeTypes: []string{"class_heritage"},
		LSPLanguageID:    "javascript",
		ServerCommand:    []string{"typescript-language-server", "--stdio"},
	})
}
