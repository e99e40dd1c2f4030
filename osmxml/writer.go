package osmxml

import (
	"bufio"
	"compress/gzip"
	"encoding/xml"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	osm "github.com/omniscale/go-osm"
	"github.com/pkg/errors"

	"github.com/omniscale/aixmdiff/element"
)

const Generator = "aixmdiff"

// Write writes all elements of g to w, ordered by type and id. Pending
// elements are listed first.
func Write(w io.Writer, g *element.Graph) error {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	root := xml.StartElement{
		Name: xml.Name{Local: "osm"},
		Attr: []xml.Attr{
			attr("version", "0.6"),
			attr("upload", "true"),
			attr("generator", Generator),
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}

	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		start := xml.StartElement{Name: xml.Name{Local: "node"}}
		start.Attr = elementAttrs(&n.Element, n.Action)
		start.Attr = append(start.Attr,
			attr("lat", formatCoord(n.Lat)),
			attr("lon", formatCoord(n.Long)),
		)
		if err := encodeElement(enc, start, n.Tags, nil); err != nil {
			return errors.Wrapf(err, "writing node %d", id)
		}
	}

	for _, id := range g.WayIDs() {
		way := g.Ways[id]
		start := xml.StartElement{Name: xml.Name{Local: "way"}}
		start.Attr = elementAttrs(&way.Element, way.Action)
		children := make([]xml.StartElement, len(way.Refs))
		for i, ref := range way.Refs {
			children[i] = xml.StartElement{
				Name: xml.Name{Local: "nd"},
				Attr: []xml.Attr{attr("ref", strconv.FormatInt(ref, 10))},
			}
		}
		if err := encodeElement(enc, start, way.Tags, children); err != nil {
			return errors.Wrapf(err, "writing way %d", id)
		}
	}

	for _, id := range g.RelationIDs() {
		rel := g.Relations[id]
		start := xml.StartElement{Name: xml.Name{Local: "relation"}}
		start.Attr = elementAttrs(&rel.Element, rel.Action)
		children := make([]xml.StartElement, len(rel.Members))
		for i, m := range rel.Members {
			children[i] = xml.StartElement{
				Name: xml.Name{Local: "member"},
				Attr: []xml.Attr{
					attr("type", element.MemberTypeNames[m.Type]),
					attr("ref", strconv.FormatInt(m.ID, 10)),
					attr("role", m.Role),
				},
			}
		}
		if err := encodeElement(enc, start, rel.Tags, children); err != nil {
			return errors.Wrapf(err, "writing relation %d", id)
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteFile writes g to filename, GZIP compressed if filename ends with .gz.
func WriteFile(filename string, g *element.Graph) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "creating graph file")
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	var w io.Writer = buf
	var gz *gzip.Writer
	if strings.HasSuffix(filename, ".gz") {
		gz = gzip.NewWriter(buf)
		w = gz
	}
	if err := Write(w, g); err != nil {
		return errors.Wrapf(err, "writing %s", filename)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return errors.Wrapf(err, "writing %s", filename)
		}
	}
	if err := buf.Flush(); err != nil {
		return errors.Wrapf(err, "writing %s", filename)
	}
	return f.Close()
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func formatCoord(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}

func elementAttrs(elem *osm.Element, action element.Action) []xml.Attr {
	attrs := []xml.Attr{attr("id", strconv.FormatInt(elem.ID, 10))}
	if action != element.None {
		attrs = append(attrs, attr("action", action.String()))
	}
	attrs = append(attrs, attr("visible", "true"))
	if m := elem.Metadata; m != nil {
		if m.Version != 0 {
			attrs = append(attrs, attr("version", strconv.FormatInt(int64(m.Version), 10)))
		}
		if !m.Timestamp.IsZero() {
			attrs = append(attrs, attr("timestamp", m.Timestamp.UTC().Format(time.RFC3339)))
		}
		if m.UserID != 0 {
			attrs = append(attrs, attr("uid", strconv.FormatInt(int64(m.UserID), 10)))
		}
		if m.UserName != "" {
			attrs = append(attrs, attr("user", m.UserName))
		}
		if m.Changeset != 0 {
			attrs = append(attrs, attr("changeset", strconv.FormatInt(m.Changeset, 10)))
		}
	}
	return attrs
}

// encodeElement writes start with the given child elements followed by
// the tags, sorted by key.
func encodeElement(enc *xml.Encoder, start xml.StartElement, tags element.Tags, children []xml.StartElement) error {
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, child := range children {
		if err := enc.EncodeToken(child); err != nil {
			return err
		}
		if err := enc.EncodeToken(child.End()); err != nil {
			return err
		}
	}
	for _, k := range sortedTagKeys(tags) {
		tag := xml.StartElement{
			Name: xml.Name{Local: "tag"},
			Attr: []xml.Attr{attr("k", k), attr("v", tags[k])},
		}
		if err := enc.EncodeToken(tag); err != nil {
			return err
		}
		if err := enc.EncodeToken(tag.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func sortedTagKeys(tags element.Tags) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
