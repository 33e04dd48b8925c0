package lang

func init() {
	Register(&Spec{
		Language:       Python,
		FileExtensions: []string{".py"},
		DefinitionQuery: `
(function_definition name: (identifier) @name) @definition.function
(class_definition name: (identifier) @name) @definition.class
`,
		CallNodeTypes:   []string{"call"},
		ImportNodeTypes: []string{"import_statement", "import_from_statement"},
		// In "class Foo(Base):" the bases are the argument_list directly
		// under the class_definition, not a call's argument_list.
		InheritNodeTypes: []string{"class_definition/argument_list"},
		LSPLanguageID:    "python",
		ServerCommand:    []string{"pyright-langserver", "--stdio"},
	})
}
