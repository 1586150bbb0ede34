package state

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrConflict is returned by Store.Save when the stored session changed
// since it was loaded.
var ErrConflict = errors.New("state: session version conflict")

// ValueKind tags the shape of a scratch value.
type ValueKind string

const (
	KindText   ValueKind = "text"
	KindPhoto  ValueKind = "photo"
	KindGeo    ValueKind = "geo"
	KindTime   ValueKind = "time"
	KindChoice ValueKind = "choice"
	KindBool   ValueKind = "bool"
)

// Value is one collected answer.
type Value struct {
	Kind ValueKind `cbor:"k"`
	// Text carries free text, an image file reference or a choice token.
	Text string    `cbor:"s,omitempty"`
	Time time.Time `cbor:"t"`
	Lat  float64   `cbor:"la,omitempty"`
	Lng  float64   `cbor:"ln,omitempty"`
	Flag bool      `cbor:"b,omitempty"`
}

// Text wraps a free-text answer.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Photo wraps an image reference token.
func Photo(fileID string) Value { return Value{Kind: KindPhoto, Text: fileID} }

// Geo wraps a coordinate pair.
func Geo(lat, lng float64) Value { return Value{Kind: KindGeo, Lat: lat, Lng: lng} }

// Timestamp wraps a point in time.
func Timestamp(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// Choice wraps an enumerated option token.
func Choice(token string) Value { return Value{Kind: KindChoice, Text: token} }

// Bool wraps a yes/no answer.
func Bool(b bool) Value { return Value{Kind: KindBool, Flag: b} }

// String renders the value the way it is shown back to users.
func (v Value) String() string {
	switch v.Kind {
	case KindGeo:
		return strconv.FormatFloat(v.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(v.Lng, 'f', -1, 64)
	case KindTime:
		return v.Time.Format("2006-01-02 15:04")
	case KindBool:
		if v.Flag {
			return "да"
		}
		return "нет"
	default:
		return v.Text
	}
}

// Scratch accumulates answers by field name.
type Scratch map[string]Value

// Get returns the value for field if present.
func (s Scratch) Get(field string) (Value, bool) {
	v, ok := s[field]
	return v, ok
}

// Item is one entry of a selection list.
type Item struct {
	ID       string `cbor:"id"`
	Label    string `cbor:"label"`
	Selected bool   `cbor:"sel,omitempty"`
}

// MessageRef points at a message sent to the user.
type MessageRef struct {
	ChatID    int64 `cbor:"chat"`
	MessageID int   `cbor:"msg"`
}

// Session is the conversation state of a single user.
type Session struct {
	UserID  int64
	Flow    string
	Step    string
	Scratch Scratch
	Items   []Item
	// Prompts lists messages whose buttons are still live.
	Prompts   []MessageRef
	Version   int64
	UpdatedAt time.Time
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Scratch != nil {
		out.Scratch = make(Scratch, len(s.Scratch))
		for k, v := range s.Scratch {
			out.Scratch[k] = v
		}
	}
	out.Items = append([]Item(nil), s.Items...)
	out.Prompts = append([]MessageRef(nil), s.Prompts...)
	return &out
}

// Store persists sessions keyed by user.
//
// Save is a compare-and-set on Version: the caller passes the session with
// the version it loaded (zero for a new session) and on success Version is
// incremented in place. Delete is idempotent.
type Store interface {
	Load(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}
