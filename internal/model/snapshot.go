package model

// FieldInventory describes the interactive surface of a page, grouped by
// kind, for the planner's truncated field-inventory context.
type FieldInventory struct {
	Inputs    []FieldDescriptor
	Selects   []FieldDescriptor
	Textareas []FieldDescriptor
	Buttons   []FieldDescriptor
	Links     []FieldDescriptor
	// Tables holds extracted tabular content (header row + data rows), a
	// feature AGiXT's extract_table_with_playwright exposes. Folded into
	// the field inventory get_fields returns rather than a new Step.operation.
	Tables [][]string
}

// FieldDescriptor is a single input/select/button/link entry.
type FieldDescriptor struct {
	Selector    string
	Label       string
	Placeholder string
	Type        string
}

// PageSnapshot is the immutable view of the current page used for planning.
type PageSnapshot struct {
	URL             string
	ContentText     string
	ContentDigest   string
	StableSelectors []string
	ClickableTexts  []string
	Fields          FieldInventory
}
