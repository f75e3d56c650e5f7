// Package oplog implements the apply protocol's structured, ordered
// event record and its deterministic plaintext serialization (spec.md
// §4.8). The log is the snapshot-testing oracle for the whole apply
// pipeline: identical inputs must serialize identically.
package oplog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the closed vocabulary of apply-protocol events.
type Kind string

const (
	KindNetAdd          Kind = "NET_ADD"
	KindNetRemove       Kind = "NET_REMOVE"
	KindGroupRemove     Kind = "GR_REMOVE"
	KindFootprintRemove Kind = "FP_REMOVE"
	KindFootprintAdd    Kind = "FP_ADD"
	KindGroupAdd        Kind = "GR_ADD"
	KindFootprintReplace Kind = "FP_REPLACE"
	KindGroupMember     Kind = "GR_MEMBER"
	KindFragTrack       Kind = "FRAG_TRACK"
	KindFragVia         Kind = "FRAG_VIA"
	KindFragZone        Kind = "FRAG_ZONE"
	KindFragGraphic     Kind = "FRAG_GRAPHIC"
	KindPlaceFootprint  Kind = "PLACE_FP"
	KindPlaceGroup      Kind = "PLACE_GR"
	KindPlaceFootprintInherit Kind = "PLACE_FP_INHERIT"
)

// Event is one structured apply-protocol action. Fields preserves
// insertion order so serialization is deterministic without needing a
// second sort pass over map keys.
type Event struct {
	Kind   Kind
	Fields []Field
}

// Field is one key/value pair attached to an event.
type Field struct {
	Key   string
	Value any // string, int64, int, or bool
}

// New builds an Event from ordered key/value pairs.
func New(kind Kind, kv ...any) Event {
	if len(kv)%2 != 0 {
		panic("oplog.New: odd number of key/value arguments")
	}
	ev := Event{Kind: kind}
	for i := 0; i < len(kv); i += 2 {
		ev.Fields = append(ev.Fields, Field{Key: kv[i].(string), Value: kv[i+1]})
	}
	return ev
}

// OpLog is the ordered sequence of events recorded by one apply run.
type OpLog struct {
	Events []Event
}

// Add appends an event.
func (l *OpLog) Add(e Event) {
	l.Events = append(l.Events, e)
}

// formatValue renders one field value per spec.md §4.8: integers and
// strings render bare, strings containing whitespace are JSON-quoted.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		if strings.ContainsAny(t, " \t\n") {
			b, _ := json.Marshal(t)
			return string(b)
		}
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Serialize renders the log as "KIND k1=v1 k2=v2 ...", one event per
// line, in recorded order.
func (l OpLog) Serialize() string {
	var b strings.Builder
	for _, ev := range l.Events {
		b.WriteString(string(ev.Kind))
		for _, f := range ev.Fields {
			b.WriteByte(' ')
			b.WriteString(f.Key)
			b.WriteByte('=')
			b.WriteString(formatValue(f.Value))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// SortByKey stable-sorts a slice of events by one field's string value.
// Events missing the field sort as the empty string. The apply protocol
// does not call it; its phases sort their inputs before recording
// events.
func SortByKey(events []Event, key string) {
	sort.SliceStable(events, func(i, j int) bool {
		return fieldString(events[i], key) < fieldString(events[j], key)
	})
}

func fieldString(e Event, key string) string {
	for _, f := range e.Fields {
		if f.Key == key {
			return formatValue(f.Value)
		}
	}
	return ""
}
