// Package osmxml reads and writes entity graphs in the OSM XML format with
// the action attributes used by editing clients.
package osmxml

import (
	"compress/gzip"
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	osm "github.com/omniscale/go-osm"
	"github.com/pkg/errors"

	"github.com/omniscale/aixmdiff/element"
)

// Read parses a complete graph from r. Elements with malformed values or
// unresolvable references are skipped and returned as entity errors. The
// error is only set if the document itself is not well-formed.
func Read(r io.Reader) (*element.Graph, []error, error) {
	p := &parser{graph: element.NewGraph()}
	if err := p.parse(r); err != nil {
		return nil, p.errs, err
	}
	p.errs = append(p.errs, p.graph.RemoveInvalid()...)
	return p.graph, p.errs, nil
}

// ReadFile reads the graph from filename, which can be GZIP compressed
// (.gz suffix).
func ReadFile(filename string) (*element.Graph, []error, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening graph file")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(filename, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "opening %s", filename)
		}
		defer gz.Close()
		r = gz
	}
	g, errs, err := Read(r)
	if err != nil {
		return nil, errs, errors.Wrapf(err, "reading %s", filename)
	}
	return g, errs, nil
}

type parser struct {
	graph *element.Graph
	errs  []error
}

// attrParser collects the first error of a sequence of attribute
// conversions.
type attrParser struct {
	err error
}

func (a *attrParser) parseInt(name, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil && a.err == nil {
		a.err = errors.Errorf("invalid %s %q", name, v)
	}
	return i
}

func (a *attrParser) parseFloat(name, v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil && a.err == nil {
		a.err = errors.Errorf("invalid %s %q", name, v)
	}
	return f
}

func (a *attrParser) parseTime(name, v string) time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil && a.err == nil {
		a.err = errors.Errorf("invalid %s %q", name, v)
	}
	return t
}

func (a *attrParser) parseAction(v string) element.Action {
	action, ok := element.ActionValues[v]
	if !ok && a.err == nil {
		a.err = errors.Errorf("invalid action %q", v)
	}
	return action
}

// common parses the attributes shared by nodes, ways and relations.
// common parses the attributes shared by all element types. Elements with
// visible="false" are deleted, regardless of their action.
func (a *attrParser) common(attrs []xml.Attr, elem *osm.Element, action *element.Action) {
	deleted := false
	defer func() {
		if deleted {
			*action = element.Delete
		}
	}()
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "visible":
			deleted = attr.Value == "false"
		case "id":
			elem.ID = a.parseInt("id", attr.Value)
		case "action":
			*action = a.parseAction(attr.Value)
		case "version":
			metadata(elem).Version = int32(a.parseInt("version", attr.Value))
		case "timestamp":
			metadata(elem).Timestamp = a.parseTime("timestamp", attr.Value)
		case "uid":
			metadata(elem).UserID = int32(a.parseInt("uid", attr.Value))
		case "user":
			metadata(elem).UserName = attr.Value
		case "changeset":
			metadata(elem).Changeset = a.parseInt("changeset", attr.Value)
		}
	}
}

func metadata(elem *osm.Element) *osm.Metadata {
	if elem.Metadata == nil {
		elem.Metadata = &osm.Metadata{}
	}
	return elem.Metadata
}

func (p *parser) addError(kind element.ErrorKind, typ string, id int64, err error) {
	p.errs = append(p.errs, &element.EntityError{Kind: kind, Type: typ, ID: id, Err: err})
}

func (p *parser) parse(r io.Reader) error {
	decoder := xml.NewDecoder(r)

	var node *element.Node
	var way *element.Way
	var rel *element.Relation
	var tags element.Tags
	// skip is set while the children of an invalid element are consumed
	var skip bool

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "decoding next XML token")
		}

		switch tok := token.(type) {
		case xml.StartElement:
			switch tok.Name.Local {
			case "node":
				node = &element.Node{}
				tags = nil
				a := attrParser{}
				a.common(tok.Attr, &node.Element, &node.Action)
				for _, attr := range tok.Attr {
					switch attr.Name.Local {
					case "lat":
						node.Lat = a.parseFloat("lat", attr.Value)
					case "lon":
						node.Long = a.parseFloat("lon", attr.Value)
					}
				}
				skip = a.err != nil
				if skip {
					p.addError(element.ValueError, "node", node.ID, a.err)
				}
			case "way":
				way = &element.Way{}
				tags = nil
				a := attrParser{}
				a.common(tok.Attr, &way.Element, &way.Action)
				skip = a.err != nil
				if skip {
					p.addError(element.ValueError, "way", way.ID, a.err)
				}
			case "relation":
				rel = &element.Relation{}
				tags = nil
				a := attrParser{}
				a.common(tok.Attr, &rel.Element, &rel.Action)
				skip = a.err != nil
				if skip {
					p.addError(element.ValueError, "relation", rel.ID, a.err)
				}
			case "nd":
				if skip || way == nil {
					continue
				}
				for _, attr := range tok.Attr {
					if attr.Name.Local == "ref" {
						ref, err := strconv.ParseInt(attr.Value, 10, 64)
						if err != nil {
							p.addError(element.ValueError, "way", way.ID, errors.Errorf("invalid nd ref %q", attr.Value))
							skip = true
							continue
						}
						way.Refs = append(way.Refs, ref)
					}
				}
			case "member":
				if skip || rel == nil {
					continue
				}
				member, err := parseMember(tok.Attr)
				if err != nil {
					p.addError(element.ValueError, "relation", rel.ID, err)
					skip = true
					continue
				}
				rel.Members = append(rel.Members, member)
			case "tag":
				if skip {
					continue
				}
				var k, v string
				for _, attr := range tok.Attr {
					if attr.Name.Local == "k" {
						k = attr.Value
					} else if attr.Name.Local == "v" {
						v = attr.Value
					}
				}
				if tags == nil {
					tags = make(element.Tags)
				}
				tags[k] = v
			}
		case xml.EndElement:
			switch tok.Name.Local {
			case "node":
				if !skip {
					node.Tags = tags
					p.graph.AddNode(node)
				}
				node, tags, skip = nil, nil, false
			case "way":
				if !skip {
					way.Tags = tags
					p.graph.AddWay(way)
				}
				way, tags, skip = nil, nil, false
			case "relation":
				if !skip {
					rel.Tags = tags
					p.graph.AddRelation(rel)
				}
				rel, tags, skip = nil, nil, false
			}
		}
	}
}

func parseMember(attrs []xml.Attr) (osm.Member, error) {
	member := osm.Member{}
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "type":
			t, ok := element.MemberTypeValues[attr.Value]
			if !ok {
				return member, errors.Errorf("invalid member type %q", attr.Value)
			}
			member.Type = t
		case "ref":
			ref, err := strconv.ParseInt(attr.Value, 10, 64)
			if err != nil {
				return member, errors.Errorf("invalid member ref %q", attr.Value)
			}
			member.ID = ref
		case "role":
			member.Role = attr.Value
		}
	}
	return member, nil
}
