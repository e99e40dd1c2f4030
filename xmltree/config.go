package xmltree

const (
	GMLNamespace   = "http://www.opengis.net/gml/3.2"
	XLinkNamespace = "http://www.w3.org/1999/xlink"
	xmlNamespace   = "http://www.w3.org/XML/1998/namespace"
)

// DefaultMaxDepth limits the length of cross-reference chains that are
// followed during a comparison.
const DefaultMaxDepth = 32

// Config defines which attributes and elements carry identities and
// cross-references.
type Config struct {
	// IDNamespace is the namespace of identifier attributes and elements.
	IDNamespace string
	// IDNames are the local names of identifier attributes and elements.
	IDNames []string
	// HrefNamespace and HrefAttr name the cross-reference attribute.
	HrefNamespace string
	HrefAttr      string
	// MaxDepth is the maximum number of nested cross-references that are
	// resolved. Deeper references are reported as different.
	MaxDepth int
}

// DefaultConfig returns the configuration for GML identifiers (gml:id,
// gml:identifier) and XLink references (xlink:href).
func DefaultConfig() *Config {
	return &Config{
		IDNamespace:   GMLNamespace,
		IDNames:       []string{"id", "identifier"},
		HrefNamespace: XLinkNamespace,
		HrefAttr:      "href",
		MaxDepth:      DefaultMaxDepth,
	}
}

func (c *Config) isIDName(n Name) bool {
	if n.Space != c.IDNamespace {
		return false
	}
	for _, local := range c.IDNames {
		if n.Local == local {
			return true
		}
	}
	return false
}

func (c *Config) isHref(n Name) bool {
	return n.Space == c.HrefNamespace && n.Local == c.HrefAttr
}

func (c *Config) maxDepth() int {
	if c.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return c.MaxDepth
}
