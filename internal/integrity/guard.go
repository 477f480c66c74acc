package integrity

import (
	"bytes"
	"encoding/json"

	"github.com/sakif/agromarket/internal/apperror"
)

// Patch is a partial update as received: field name to raw JSON value.
type Patch map[string]json.RawMessage

// Present reports whether field carries a value. A missing key, JSON null and
// the empty string all count as absent; zero and false are values.
func (p Patch) Present(field string) bool {
	raw, ok := p[field]
	if !ok {
		return false
	}
	v := bytes.TrimSpace(raw)
	return len(v) > 0 && !bytes.Equal(v, []byte("null")) && !bytes.Equal(v, []byte(`""`))
}

// Without returns a copy of p lacking the given fields.
func (p Patch) Without(fields ...string) Patch {
	out := make(Patch, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Decode unmarshals the patch into dst, typically a struct of pointer fields.
func (p Patch) Decode(dst any) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// Guard rejects updates touching fields fixed at creation.
type Guard struct {
	Kind   string   // document kind used in the error advice
	Fields []string // checked in this order
}

// Check returns an immutable-field error for the first present field.
func (g Guard) Check(p Patch) error {
	for _, f := range g.Fields {
		if p.Present(f) {
			return apperror.ImmutableField(f, g.Kind)
		}
	}
	return nil
}

// OfferGuard lists what an offer keeps for its whole life.
var OfferGuard = Guard{
	Kind:   "offer",
	Fields: []string{"offer_start", "user_id", "product_id", "unit_price", "unit", "info"},
}

// OrderGuard keeps the buyer of an order fixed.
var OrderGuard = Guard{Kind: "order", Fields: []string{"user_id"}}
