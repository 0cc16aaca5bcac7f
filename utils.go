package nosqlbench

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hhkbp2/go-strftime"
	"gopkg.in/yaml.v3"
)

type Properties map[string]string

func NewProperties() Properties {
	return make(Properties)
}

func (self Properties) Get(key string) string {
	v, _ := self[key]
	return v
}

func (self Properties) GetDefault(key string, defaultValue string) string {
	if v, ok := self[key]; ok {
		return v
	}
	return defaultValue
}

func (self Properties) Add(key, value string) {
	self[key] = value
}

func (self Properties) Merge(other map[string]string) {
	for k, v := range other {
		self[k] = v
	}
}

// LoadProperties reads a property file. Files ending in .yaml or .yml are
// decoded as a flat YAML mapping, everything else as "name=value" lines
// where '#' and '!' start a comment.
func LoadProperties(fileName string) (Properties, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".yaml", ".yml":
		return readYAMLProperties(f)
	default:
		return readProperties(f)
	}
}

func readProperties(r io.Reader) (Properties, error) {
	props := NewProperties()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' || line[0] == '!' {
			continue
		}
		index := strings.IndexAny(line, "=:")
		if index <= 0 {
			return nil, NewErrorf("invalid property at line %d: %q", lineNo, line)
		}
		props.Add(strings.TrimSpace(line[:index]), strings.TrimSpace(line[index+1:]))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return props, nil
}

func readYAMLProperties(r io.Reader) (Properties, error) {
	raw := make(map[string]interface{})
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}
	props := NewProperties()
	flattenYAML("", raw, props)
	return props, nil
}

// Nested mappings become dotted names, so "threads: {max: 8}" is
// equivalent to "threads.max=8".
func flattenYAML(prefix string, m map[string]interface{}, props Properties) {
	for k, v := range m {
		name := k
		if len(prefix) > 0 {
			name = prefix + "." + k
		}
		switch value := v.(type) {
		case map[string]interface{}:
			flattenYAML(name, value, props)
		case []interface{}:
			parts := make([]string, 0, len(value))
			for _, e := range value {
				parts = append(parts, fmt.Sprintf("%v", e))
			}
			props.Add(name, strings.Join(parts, ","))
		case nil:
			props.Add(name, "")
		default:
			props.Add(name, fmt.Sprintf("%v", value))
		}
	}
}

func Output(format string, args ...interface{}) {
	fmt.Printf(format, args...)
	fmt.Println("")
}

func OutputProperties(p Properties) {
	Output("***************** properties *****************")
	if p != nil {
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			Output("\"%s\"=\"%s\"", k, p[k])
		}
	}
	Output("**********************************************")
}

func MillisecondToNanosecond(millis int64) int64 {
	return millis * 1000 * 1000
}

func MillisecondToSecond(millis int64) int64 {
	return millis / 1000
}

func SecondToNanosecond(second int64) int64 {
	return second * 1000 * 1000 * 1000
}

func NanosecondToMicrosecond(nanos int64) int64 {
	return nanos / 1000
}

func NanosecondToMillisecond(nanos int64) int64 {
	return nanos / 1000 / 1000
}

// DurationToMillisecond returns d in fractional milliseconds.
func DurationToMillisecond(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FillValue builds the value payload shared by every driver: size-1 '#'
// bytes followed by a zero byte.
func FillValue(size int) []byte {
	if size <= 0 {
		return []byte{}
	}
	b := make([]byte, size)
	for i := 0; i < size-1; i++ {
		b[i] = '#'
	}
	b[size-1] = 0
	return b
}

// FormatFileName expands strftime directives such as %Y%m%d-%H%M%S in
// pattern against t. Names without directives are returned unchanged.
func FormatFileName(pattern string, t time.Time) string {
	if !strings.Contains(pattern, "%") {
		return pattern
	}
	return strftime.Format(pattern, t)
}
