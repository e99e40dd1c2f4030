package binary

import (
	"sort"
	"testing"

	"github.com/omniscale/aixmdiff/element"
)

func TestTagsAsAndFromArray(t *testing.T) {
	tags := element.Tags{"icao": "LHBP", "aeroway": "runway", "surface": "asphalt"}
	array := tagsAsArray(tags)

	if len(array) != 3 {
		t.Fatal("invalid length", array)
	}

	sort.Strings(array)
	for i, expected := range []string{
		"\x01LHBP",
		string(tagsToCodePoint["aeroway"]["runway"]),
		string(tagsToCodePoint["surface"]["asphalt"]),
	} {
		if array[i] != expected {
			t.Fatal("invalid value", array, i, expected)
		}
	}

	tags = tagsFromArray(array)
	if len(tags) != 3 {
		t.Fatal("invalid length", tags)
	}
	if tags["icao"] != "LHBP" || tags["aeroway"] != "runway" || tags["surface"] != "asphalt" {
		t.Fatal("invalid tags", tags)
	}
}

func TestCodePoints(t *testing.T) {
	// codepoints should never change, so check a few for sanity
	if c := tagsToCodePoint["aeroway"]["aerodrome"]; c != codepoint('\ue000') {
		t.Fatalf("%x\n", c)
	}
	if c := tagsToCodePoint["type"]["multipolygon"]; c != codepoint('\ue00c') {
		t.Fatalf("%x\n", c)
	}
	if c := commonKeys["designator"]; c != 3 {
		t.Fatalf("%x\n", c)
	}
}

func TestEscapedTags(t *testing.T) {
	tags := element.Tags{
		"\x0a" + "aeroway":  "runway",
		"\ue000" + "aeroway": "\ufffd",
		"\ufffd":            "\x01",
		"plain":             "",
	}
	array := tagsAsArray(tags)
	if len(array) != 8 {
		t.Fatal("invalid length", array)
	}
	got := tagsFromArray(array)
	if len(got) != len(tags) {
		t.Fatal("invalid length", got)
	}
	for k, v := range tags {
		if got[k] != v {
			t.Errorf("%q: expected %q, got %q", k, v, got[k])
		}
	}
}

func TestDecodeCorruptTags(t *testing.T) {
	for _, arr := range [][]string{
		{"key"},
		{"\x1fvalue"},
		{"\ufffdkey"},
	} {
		if _, err := decodeTags(arr); err != ErrCorrupt {
			t.Errorf("expected ErrCorrupt for %q, got %v", arr, err)
		}
	}
}
