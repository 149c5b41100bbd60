package markup

// Kind identifies the type of a structural event
type Kind uint8

const (
	EndOfStream Kind = iota
	ElementOpen
	Text
	ElementClose
)

func (k Kind) String() string {
	switch k {
	case ElementOpen:
		return "ElementOpen"
	case Text:
		return "Text"
	case ElementClose:
		return "ElementClose"
	default:
		return "EndOfStream"
	}
}

// Attr is a single element attribute with an entity-decoded value
type Attr struct {
	Name  string
	Value string
}

// Event is a single structural event produced by the Reader
type Event struct {
	Kind  Kind
	Name  string // Element local name (ElementOpen, ElementClose)
	Attrs []Attr // Attributes in document order (ElementOpen)
	Text  string // Trimmed text content (Text)
}

// Attr returns the value of the named attribute. If the attribute repeats
// the last value wins.
func (e Event) Attr(name string) (string, bool) {
	for i := len(e.Attrs) - 1; i >= 0; i-- {
		if e.Attrs[i].Name == name {
			return e.Attrs[i].Value, true
		}
	}
	return "", false
}
