package binary

// Tags are serialized to an array of interleaved key and value strings.
// Common keys of aeronautical data (icao, designator, etc.) are replaced by
// a single ASCII control char (0x01-0x1f) in front of the value. Common
// tags like aeroway=runway are replaced by a single char from the Unicode
// Private Use Area (U+E000 to U+F8FF).
//
// Keys and values that start with one of these chars are escaped with
// the Unicode replacement char.

import (
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/omniscale/aixmdiff/element"
)

type codepoint rune

type tag struct {
	Key   string
	Value string
}

var tagsToCodePoint = map[string]map[string]codepoint{}
var codePointToTag = map[codepoint]tag{}

var commonKeys = map[string]codepoint{}
var codePointToCommonKey = map[uint8]string{}
var nextKeyCodePoint = codepoint(1)

const maxKeyCodePoint = codepoint(31)

const minCodePoint = codepoint('\uE000')
const maxCodePoint = codepoint('\uF8FF')

var nextCodePoint = minCodePoint

const escapeRune = '\ufffd' // unicode replacement char

// ErrCorrupt is returned for tag arrays that can not be decoded.
var ErrCorrupt = errors.New("corrupt tag array")

func addTagCodePoint(key, value string) {
	if nextCodePoint > maxCodePoint {
		panic("all codepoints used")
	}
	valMap, ok := tagsToCodePoint[key]
	if !ok {
		valMap = map[string]codepoint{}
		tagsToCodePoint[key] = valMap
	}
	if _, ok := valMap[value]; ok {
		panic("duplicate entry for tag codepoints: " + key + " " + value)
	}
	valMap[value] = nextCodePoint
	codePointToTag[nextCodePoint] = tag{key, value}
	nextCodePoint++
}

func addCommonKey(key string) {
	if nextKeyCodePoint > maxKeyCodePoint {
		panic("all key codepoints used")
	}
	commonKeys[key] = nextKeyCodePoint
	codePointToCommonKey[uint8(nextKeyCodePoint)] = key
	nextKeyCodePoint++
}

func tagsFromArray(arr []string) element.Tags {
	tags, err := decodeTags(arr)
	if err != nil {
		// arrays are only written by tagsAsArray
		panic(err)
	}
	return tags
}

func decodeTags(arr []string) (element.Tags, error) {
	if len(arr) == 0 {
		return nil, nil
	}
	result := make(element.Tags)
	for i := 0; i < len(arr); i++ {
		if r, size := utf8.DecodeRuneInString(arr[i]); size >= 3 {
			if r == escapeRune {
				if len(arr) <= i+1 {
					return nil, ErrCorrupt
				}
				result[arr[i][size:]] = unescape(arr[i+1])
				i++
				continue
			} else if codepoint(r) >= minCodePoint && codepoint(r) < nextCodePoint {
				tag, ok := codePointToTag[codepoint(r)]
				if !ok {
					return nil, ErrCorrupt
				}
				result[tag.Key] = tag.Value
				continue
			}
		} else if len(arr[i]) > 0 && arr[i][0] < 32 {
			key, ok := codePointToCommonKey[arr[i][0]]
			if !ok {
				return nil, ErrCorrupt
			}
			result[key] = arr[i][1:]
			continue
		}
		if len(arr) <= i+1 {
			return nil, ErrCorrupt
		}
		result[arr[i]] = unescape(arr[i+1])
		i++
	}
	return result, nil
}

func tagsAsArray(tags element.Tags) []string {
	if len(tags) == 0 {
		return nil
	}
	result := make([]string, 0, 2*len(tags))
	for key, val := range tags {
		result = appendTag(result, key, val)
	}
	return result
}

func appendTag(arr []string, key, val string) []string {
	if valMap, ok := tagsToCodePoint[key]; ok {
		if codePoint, ok := valMap[val]; ok {
			return append(arr, string(codePoint))
		}
	}
	if codepoint, ok := commonKeys[key]; ok {
		return append(arr, string(codepoint)+val)
	}
	return append(arr, escape(key), escape(val))
}

func needsEscape(s string) bool {
	if len(s) > 0 && s[0] < 32 {
		return true
	}
	r, size := utf8.DecodeRuneInString(s)
	return size >= 3 && ((codepoint(r) >= minCodePoint && codepoint(r) <= maxCodePoint) || r == escapeRune)
}

func escape(s string) string {
	if needsEscape(s) {
		return string(escapeRune) + s
	}
	return s
}

func unescape(s string) string {
	if r, size := utf8.DecodeRuneInString(s); r == escapeRune {
		return s[size:]
	}
	return s
}

func init() {
	//
	// DO NOT EDIT, REMOVE, REORDER ANY OF THE FOLLOWING LINES!
	// Cached revisions depend on the order.
	//

	// most common keys with variable values
	addCommonKey("icao")
	addCommonKey("name")
	addCommonKey("designator")
	addCommonKey("ref")
	addCommonKey("ele")
	addCommonKey("iata")
	addCommonKey("remarks")
	addCommonKey("length")
	addCommonKey("width")
	addCommonKey("uuid")

	// most common tags
	addTagCodePoint("aeroway", "aerodrome")
	addTagCodePoint("aeroway", "runway")
	addTagCodePoint("aeroway", "taxiway")
	addTagCodePoint("aeroway", "apron")
	addTagCodePoint("aeroway", "helipad")
	addTagCodePoint("aeroway", "holding_position")
	addTagCodePoint("aeroway", "stopway")
	addTagCodePoint("aeroway", "navigationaid")
	addTagCodePoint("surface", "asphalt")
	addTagCodePoint("surface", "concrete")
	addTagCodePoint("surface", "grass")
	addTagCodePoint("surface", "paved")
	addTagCodePoint("type", "multipolygon")
	addTagCodePoint("airspace", "yes")
	addTagCodePoint("navaid", "vor")
	addTagCodePoint("navaid", "ndb")
	addTagCodePoint("navaid", "dme")
}
