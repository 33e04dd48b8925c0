package lang

func init() {
	Register(&Spec{
		Language:       Java,
		FileExtensions: []string{".java"},
		DefinitionQuery: `
(method_declaration name: (identifier) @name) @definition.function
(constructor_declaration name: (identifier) @name) @definition.function
(class_declaration name: (identifier) @name) @definition.class
(interface_declaration name: (identifier) @name) @definition.class
(enum_declaration name: (identifier) @name) @definition.class
`,
		CallNodeTypes:    []string{"method_invocation", "object_creation_expression"},
		ImportNodeTypes:  []string{"import_declaration"},
		InheritNodeTypes: []string{"superclass", "super_interfaces", "extends_interfaces"},
		LSPLanguageID:    "java",
		ServerCommand:    []string{"jdtls"},
	})
}
