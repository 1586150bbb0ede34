package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler writes one flat line per record. Fields come from the
// record, the handler's attrs and the update metadata carried by ctx, in
// that order of precedence.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}
	isJSON := h.cfg.format == formatJSON

	fields := make(map[string]any, 16)
	ts := r.Time.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	fields["level"] = normalizeLevel(r.Level.String())
	if isJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}
	for _, a := range h.attrs {
		h.collect(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collect(fields, a)
		return true
	})
	addContextFields(ctx, fields)

	if rid, _ := stringField(fields, "rid"); rid != "" {
		if compact := compactRID(rid); compact != rid {
			if _, seen := fields["rid_full"]; isJSON && !seen {
				fields["rid_full"] = rid
			}
			fields["rid"] = compact
		}
	}
	if event, _ := stringField(fields, "event"); event == "" {
		fields["event"] = r.Message
		if r.Message == "" {
			fields["event"] = "unknown"
		}
	}
	if component, _ := stringField(fields, "component"); component == "" {
		fields["component"] = "app"
	}
	sanitizeEnumerations(fields)
	pruneEmpty(fields)

	keys := orderedKeys(fields, h.cfg.keyOrder)
	var (
		line []byte
		err  error
	)
	if isJSON {
		line, err = formatJSONLine(fields, keys)
		if err != nil {
			return err
		}
	} else {
		line = formatKVLine(fields, keys)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *structuredHandler) collect(fields map[string]any, attr slog.Attr) {
	flattenAttr(strings.Join(h.groups, "."), attr, func(k string, v slog.Value) {
		if key, val, ok := normalizeAttr(k, v); ok {
			fields[key] = val
		}
	})
}

func flattenAttr(prefix string, attr slog.Attr, fn func(string, slog.Value)) {
	key := attr.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, child := range attr.Value.Group() {
			flattenAttr(key, child, fn)
		}
		return
	}
	fn(key, attr.Value)
}

func normalizeAttr(key string, val slog.Value) (string, any, bool) {
	if key == "" {
		return "", nil, false
	}
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		if u := val.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, val.Uint64(), true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := val.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey names a duration field in milliseconds: duration becomes
// duration_ms and backoff becomes backoff_ms.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_duration"):
		return key + "_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

func sanitizeEnumerations(fields map[string]any) {
	if level, ok := stringField(fields, "level"); ok {
		fields["level"] = normalizeLevel(level)
	}
	if s, _ := stringField(fields, "status"); s != "" {
		fields["status"], _ = normalizeStatus(s)
	}
	if o, _ := stringField(fields, "outcome"); o != "" {
		if normalized, valid := normalizeOutcome(o); valid {
			fields["outcome"] = normalized
		} else {
			delete(fields, "outcome")
		}
	}
}

func pruneEmpty(fields map[string]any) {
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
			delete(fields, k)
		case string:
			if val == "" {
				delete(fields, k)
			}
		case fmt.Stringer:
			if val.String() == "" {
				delete(fields, k)
			}
		}
	}
}

// orderedKeys lists the configured keys first, then the rest sorted.
func orderedKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(order))
	for _, key := range order {
		if _, ok := fields[key]; ok {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}
	rest := len(keys)
	for key := range fields {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys[rest:])
	return keys
}

func formatJSONLine(fields map[string]any, keys []string) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, key := range keys {
		data, err := json.Marshal(fields[key])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(key))
		b.WriteByte(':')
		b.Write(data)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func formatKVLine(fields map[string]any, keys []string) []byte {
	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(formatValueKV(fields[key]))
	}
	return []byte(b.String())
}

func formatValueKV(val any) string {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case bool:
		return strconv.FormatBool(v)
	case int, int64, uint64, float64:
		return fmt.Sprint(v)
	default:
		s = fmt.Sprint(v)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= 32 || r == '=' || r == '"'
}

func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}

type contextField struct {
	key   string
	value any
}

// addContextFields copies the update metadata stored in ctx. A field set
// explicitly on the record is never overwritten.
func addContextFields(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	flow, step := FlowFrom(ctx)
	for _, f := range []contextField{
		{"rid", RIDFrom(ctx)},
		{"flow", flow},
		{"step", step},
		{"user_id", UserIDFrom(ctx)},
		{"update_id", UpdateIDFrom(ctx)},
		{"chat_id", ChatIDFrom(ctx)},
		{"handler", handlerFrom(ctx)},
	} {
		if _, ok := fields[f.key]; ok {
			continue
		}
		switch v := f.value.(type) {
		case string:
			if v != "" {
				fields[f.key] = v
			}
		case int64:
			if v != 0 {
				fields[f.key] = v
			}
		case int:
			if v != 0 {
				fields[f.key] = v
			}
		}
	}
}
