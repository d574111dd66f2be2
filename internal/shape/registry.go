// Package shape holds the closed set of wireframe shape types and what the sync layer needs to
// know about each of them.
package shape

import "sort"

// Type is a shape tag as it travels on the wire.
type Type string

// Category groups types in the element picker.
type Category int

const (
	CategoryElement Category = iota
	CategorySection
)

// Edit describes how a shape's content is edited locally.
type Edit int

const (
	EditNone Edit = iota // content is replaced wholesale (inner markup)
	EditText             // a text control; content edits are debounced before emission
)

// Kind is the registry entry for a Type.
type Kind struct {
	Type           Type
	Name           string
	Category       Category
	Edit           Edit
	DefaultContent string
}

// Editable reports whether content edits go through the debounced text path.
func (k Kind) Editable() bool { return k.Edit == EditText }

const (
	Rectangle           Type = "rectangle"
	BlockText           Type = "block-text"
	Image               Type = "image"
	Icon                Type = "icon"
	Button              Type = "button"
	TextInput           Type = "text-input"
	BlockList           Type = "block-list"
	BlockHeadline       Type = "block-headline"
	Dropdown            Type = "dropdown"
	LineHorizontal      Type = "line-horizontal"
	LineVertical        Type = "line-vertical"
	Checkbox            Type = "checkbox"
	Radio               Type = "radio"
	Slider              Type = "slider"
	Progress            Type = "progress"
	ScrollbarHorizontal Type = "scrollbar-horizontal"
	ScrollbarVertical   Type = "scrollbar-vertical"

	Navbar         Type = "navbar"
	Header         Type = "header"
	Footer         Type = "footer"
	Sidebar        Type = "sidebar"
	Form           Type = "form"
	Card           Type = "card"
	Modal          Type = "modal"
	Table          Type = "table"
	Tab            Type = "tab"
	Accordion      Type = "accordion"
	Breadcrumb     Type = "breadcrumb"
	Pagination     Type = "pagination"
	HeroSection    Type = "hero-section"
	ContentSection Type = "content-section"
	Gallery        Type = "gallery"
	Testimonial    Type = "testimonial"
)

var registry = map[Type]Kind{}

func register(k Kind) { registry[k.Type] = k }

func init() {
	for _, k := range []Kind{
		{Type: Rectangle, Name: "Box"},
		{Type: BlockText, Name: "Block Text", Edit: EditText, DefaultContent: "Lorem ipsum dolor sit amet, consectetur adipiscing elit..."},
		{Type: Image, Name: "Image"},
		{Type: Icon, Name: "Icon", DefaultContent: "⭐"},
		{Type: Button, Name: "Button", DefaultContent: "Button"},
		{Type: TextInput, Name: "Text Input", Edit: EditText, DefaultContent: "Enter text..."},
		{Type: BlockList, Name: "Block List"},
		{Type: BlockHeadline, Name: "Block Headline", DefaultContent: "Headline"},
		{Type: Dropdown, Name: "Dropdown"},
		{Type: LineHorizontal, Name: "Line (Horizontal)"},
		{Type: LineVertical, Name: "Line (Vertical)"},
		{Type: Checkbox, Name: "Checkbox"},
		{Type: Radio, Name: "Radio Button"},
		{Type: Slider, Name: "Slider"},
		{Type: Progress, Name: "Progress Bar"},
		{Type: ScrollbarHorizontal, Name: "Scrollbar (Horizontal)"},
		{Type: ScrollbarVertical, Name: "Scrollbar (Vertical)"},
	} {
		k.Category = CategoryElement
		register(k)
	}
	for _, k := range []Kind{
		{Type: Navbar, Name: "Navbar"},
		{Type: Header, Name: "Header"},
		{Type: Footer, Name: "Footer"},
		{Type: Sidebar, Name: "Sidebar"},
		{Type: Form, Name: "Form"},
		{Type: Card, Name: "Card"},
		{Type: Modal, Name: "Modal"},
		{Type: Table, Name: "Table"},
		{Type: Tab, Name: "Tab"},
		{Type: Accordion, Name: "Accordion"},
		{Type: Breadcrumb, Name: "Breadcrumb"},
		{Type: Pagination, Name: "Pagination"},
		{Type: HeroSection, Name: "Hero Section"},
		{Type: ContentSection, Name: "Content Section"},
		{Type: Gallery, Name: "Gallery"},
		{Type: Testimonial, Name: "Testimonial"},
	} {
		k.Category = CategorySection
		register(k)
	}
}

// Lookup returns the registry entry for t.
func Lookup(t Type) (Kind, bool) {
	k, ok := registry[t]
	return k, ok
}

// Resolve returns the entry for t, or a generic box named after the tag when t is unknown.
// Unknown tags still synchronize; they just render as a labelled box.
func Resolve(t Type) Kind {
	if k, ok := registry[t]; ok {
		return k
	}
	return Kind{Type: t, Name: string(t), Category: CategoryElement}
}

// Known reports whether t is registered.
func Known(t Type) bool {
	_, ok := Lookup(t)
	return ok
}

// All returns every registered kind of the given category, sorted by name.
func All(c Category) []Kind {
	out := make([]Kind, 0, len(registry))
	for _, k := range registry {
		if k.Category == c {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
