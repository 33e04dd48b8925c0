package lang

func init() {
	Register(&Spec{
		Language:       Go,
		FileExtensions: []string{".go"},
		DefinitionQuery: `
(function_declaration name: (identifier) @name) @definition.function
(method_declaration name: (field_identifier) @name) @definition.function
(type_declaration (type_spec name: (type_identifier) @name type: (struct_type))) @definition.class
(type_declaration (type_spec name: (type_identifier) @name type: (interface_type))) @definition.class
`,
		CallNodeTypes:   []string{"call_expression"},
		ImportNodeTypes: []string{"import_declaration", "import_spec"},
		LSPLanguageID:   "go",
		ServerCommand:   []string{"gopls"},
	})
}
