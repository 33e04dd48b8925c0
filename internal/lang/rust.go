package lang

func init() {
	Register(&Spec{
		Language:       Rust,
		FileExtensions: []string{".rs"},
		DefinitionQuery: `
(function_item name: (identifier) @name) @definition.function
(struct_item name: (type_identifier) @name) @definition.class
(enum_item name: (type_identifier) @name) @definition.class
(trait_item name: (type_identifier) @name) @definition.class
`,
		CallNodeTypes:   []string{"call_expression", "macro_invocation"},
		ImportNodeTypes: []string{"use_declaration"},
		// In "impl Trait for Type" the trait and type names are direct
		// children of the impl_item; anything deeper hits call/use kinds
		// first.
		InheritNodeTypes: []string{"impl_item/type_identifier"},
		LSPLanguageID:    "rust",
		ServerCommand:    []string{"rust-analyzer"},
	})
}
