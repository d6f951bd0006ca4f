package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	MetadataItemID    = "item_id"
	MetadataQuantity  = "quantity"
	MetadataUnitPrice = "unit_price"
	MetadataEmail     = "email"
)

// Metadata is the free-form block echoed back by the gateway.
type Metadata map[string]any

// ParseMetadata accepts a JSON object, a JSON-encoded object string, or
// nothing. Anything else yields empty metadata and ok=false.
func ParseMetadata(raw json.RawMessage) (Metadata, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == `""` {
		return Metadata{}, true
	}

	var md Metadata
	if err := decodeNumbers([]byte(trimmed), &md); err == nil {
		if md == nil {
			md = Metadata{}
		}
		return md, true
	}

	var encoded string
	if err := json.Unmarshal([]byte(trimmed), &encoded); err != nil {
		return Metadata{}, false
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return Metadata{}, true
	}
	if err := decodeNumbers([]byte(encoded), &md); err != nil {
		return Metadata{}, false
	}
	if md == nil {
		md = Metadata{}
	}
	return md, true
}

func decodeNumbers(data []byte, out *Metadata) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	return dec.Decode(out)
}

// ItemID is the wish id. Numbers and numeric strings are accepted.
func (m Metadata) ItemID() (snowflake.ID, bool) {
	raw := m.readString(MetadataItemID)
	if raw == "" {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Quantity defaults to 1 when missing, invalid or not positive.
func (m Metadata) Quantity() int64 {
	raw := m.readString(MetadataQuantity)
	if raw == "" {
		return 1
	}
	qty, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		d, derr := decimal.NewFromString(raw)
		if derr != nil || !d.Equal(d.Truncate(0)) || !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
			return 1
		}
		qty = d.IntPart()
	}
	if qty <= 0 {
		return 1
	}
	return qty
}

// UnitPrice defaults to zero when missing, invalid or negative.
func (m Metadata) UnitPrice() decimal.Decimal {
	raw := m.readString(MetadataUnitPrice)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func (m Metadata) Email() string {
	return m.readString(MetadataEmail)
}

func (m Metadata) readString(key string) string {
	if m == nil {
		return ""
	}
	value, ok := m[key]
	if !ok || value == nil {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case json.Number:
		return cast.String()
	case float64:
		return strconv.FormatFloat(cast, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(cast, 10)
	case int:
		return strconv.Itoa(cast)
	}
	return ""
}

// ResolveEmail picks the first non-empty address in gateway precedence order.
func ResolveEmail(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return UnknownDonorEmail
}

// ItemIDString is the raw item id, or empty when absent.
func (m Metadata) ItemIDString() string {
	return m.readString(MetadataItemID)
}
