package lang

func init() {
	Register(&Spec{
		Language:       Ruby,
		FileExtensions: []string{".rb", ".rake"},
		DefinitionQuery: `
(method name: (identifier) @name) @definition.function
(singleton_method name: (identifier) @name) @definition.function
(class name: (constant) @name) @definition.class
(module name: (constant) @name) @definition.class
`,
		CallNodeTypes:    []string{"call"},
		InheritNodeTypes: []string{"superclass"},
		LSPLanguageID:    "ruby",
		ServerCommand:    []string{"solargraph", "stdio"},
	})
}
