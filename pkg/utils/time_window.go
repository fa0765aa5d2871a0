package utils

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"fleettrack-service/internal/domain/entity"

	"go.mongodb.org/mongo-driver/bson"
)

// ParseTimeWindow turns whatever is stored in a load's time_window field into a
// TimeWindow. Missing or malformed input yields an empty record, never an error:
// an absent time window just means nothing has been planned yet.
func ParseTimeWindow(raw interface{}) entity.TimeWindow {
	tw, _ := DecodeTimeWindow(raw)
	return tw
}

// DecodeTimeWindow is ParseTimeWindow that also reports whether raw could be
// read. Blank input is readable; text that is not a document is not. Origin,
// destination and backload are decoded field by field, so a mistyped value
// loses only itself and never its siblings.
func DecodeTimeWindow(raw interface{}) (entity.TimeWindow, bool) {
	switch v := raw.(type) {
	case nil:
		return entity.TimeWindow{}, true
	case entity.TimeWindow:
		return v, true
	case *entity.TimeWindow:
		if v == nil {
			return entity.TimeWindow{}, true
		}
		return *v, true
	case string:
		return decodeTimeWindowJSON([]byte(v), true)
	case []byte:
		return decodeTimeWindowJSON(v, true)
	case bson.RawValue:
		switch v.Type {
		case 0, bson.TypeNull, bson.TypeUndefined:
			return entity.TimeWindow{}, true
		case bson.TypeString:
			return decodeTimeWindowJSON([]byte(v.StringValue()), true)
		case bson.TypeEmbeddedDocument:
			return decodeTimeWindowBSON(v.Value)
		}
		return entity.TimeWindow{}, false
	}

	if doc, ok := asDocument(raw); ok {
		return timeWindowFromDocument(doc), true
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return entity.TimeWindow{}, false
	}
	return decodeTimeWindowJSON(data, false)
}

// decodeTimeWindowJSON also unwraps one level of double encoding, which some
// legacy writers produced by serializing an already serialized document.
func decodeTimeWindowJSON(data []byte, unwrap bool) (entity.TimeWindow, bool) {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return entity.TimeWindow{}, true
	}

	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return entity.TimeWindow{}, false
	}
	switch x := v.(type) {
	case map[string]interface{}:
		return timeWindowFromDocument(x), true
	case string:
		if unwrap {
			return decodeTimeWindowJSON([]byte(x), false)
		}
	}
	return entity.TimeWindow{}, false
}

func decodeTimeWindowBSON(data []byte) (entity.TimeWindow, bool) {
	doc, ok := asDocument(bson.Raw(data))
	if !ok {
		return entity.TimeWindow{}, false
	}
	return timeWindowFromDocument(doc), true
}

func timeWindowFromDocument(doc map[string]interface{}) entity.TimeWindow {
	tw := entity.TimeWindow{
		Origin:         legWindowFromDocument(doc["origin"]),
		Destination:    legWindowFromDocument(doc["destination"]),
		VarianceReason: stringField(doc, "varianceReason"),
	}
	if b, ok := asDocument(doc["backload"]); ok {
		backload := backloadFromDocument(b)
		tw.Backload = &backload
	}
	return tw
}

func legWindowFromDocument(v interface{}) entity.LegWindow {
	doc, ok := asDocument(v)
	if !ok {
		return entity.LegWindow{}
	}
	return entity.LegWindow{
		PlannedArrival:   stringField(doc, "plannedArrival"),
		PlannedDeparture: stringField(doc, "plannedDeparture"),
		ActualArrival:    stringField(doc, "actualArrival"),
		ActualDeparture:  stringField(doc, "actualDeparture"),
		ArrivalNote:      stringField(doc, "arrivalNote"),
		DepartureNote:    stringField(doc, "departureNote"),
	}
}

func backloadFromDocument(doc map[string]interface{}) entity.Backload {
	b := entity.Backload{
		Enabled:      boolField(doc, "enabled"),
		IsThirdParty: boolField(doc, "isThirdParty"),
		Destination:  stringField(doc, "destination"),
		CargoType:    stringField(doc, "cargoType"),
		Notes:        stringField(doc, "notes"),
	}
	if q, ok := asDocument(doc["quantities"]); ok {
		b.Quantities = entity.Quantities{
			Bins:    intField(q, "bins"),
			Crates:  intField(q, "crates"),
			Pallets: intField(q, "pallets"),
		}
	}
	if tp, ok := asDocument(doc["thirdParty"]); ok {
		b.ThirdParty = &entity.ThirdPartyBackload{
			Company:      stringField(tp, "company"),
			ContactName:  stringField(tp, "contactName"),
			ContactPhone: stringField(tp, "contactPhone"),
			Reference:    stringField(tp, "reference"),
		}
	}
	return b
}

// asDocument accepts the map shapes JSON and BSON decoding produce.
func asDocument(v interface{}) (map[string]interface{}, bool) {
	switch d := v.(type) {
	case map[string]interface{}:
		return d, true
	case bson.M:
		return d, true
	case bson.D:
		m := make(map[string]interface{}, len(d))
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m, true
	case bson.Raw:
		var m bson.M
		if err := bson.Unmarshal(d, &m); err != nil {
			return nil, false
		}
		return m, true
	}
	return nil, false
}

func stringField(doc map[string]interface{}, key string) string {
	switch v := doc[key].(type) {
	case string:
		return v
	case int32, int64, int:
		return fmt.Sprint(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// intField reads counts typed into form inputs, which arrive as text as often
// as numbers.
func intField(doc map[string]interface{}, key string) int {
	switch v := doc[key].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}

func boolField(doc map[string]interface{}, key string) bool {
	switch v := doc[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	return false
}

// MergeTimeWindow applies patch on top of existing field by field. Anything the
// patch leaves nil keeps its existing value, so notes and backload details set
// by other flows survive unrelated updates. existing is not modified.
func MergeTimeWindow(existing entity.TimeWindow, patch *entity.TimeWindowPatch) entity.TimeWindow {
	out := existing
	if existing.Backload != nil {
		b := *existing.Backload
		if b.ThirdParty != nil {
			tp := *b.ThirdParty
			b.ThirdParty = &tp
		}
		out.Backload = &b
	}
	if patch == nil {
		return out
	}

	mergeLegWindow(&out.Origin, patch.Origin)
	mergeLegWindow(&out.Destination, patch.Destination)
	if patch.Backload != nil {
		if out.Backload == nil {
			out.Backload = &entity.Backload{}
		}
		mergeBackload(out.Backload, patch.Backload)
	}
	setString(&out.VarianceReason, patch.VarianceReason)
	return out
}

func mergeLegWindow(dst *entity.LegWindow, p *entity.LegWindowPatch) {
	if p == nil {
		return
	}
	setString(&dst.PlannedArrival, p.PlannedArrival)
	setString(&dst.PlannedDeparture, p.PlannedDeparture)
	setString(&dst.ActualArrival, p.ActualArrival)
	setString(&dst.ActualDeparture, p.ActualDeparture)
	setString(&dst.ArrivalNote, p.ArrivalNote)
	setString(&dst.DepartureNote, p.DepartureNote)
}

func mergeBackload(dst *entity.Backload, p *entity.BackloadPatch) {
	if p.Enabled != nil {
		dst.Enabled = *p.Enabled
	}
	if p.IsThirdParty != nil {
		dst.IsThirdParty = *p.IsThirdParty
	}
	setString(&dst.Destination, p.Destination)
	setString(&dst.CargoType, p.CargoType)
	setString(&dst.Notes, p.Notes)
	if q := p.Quantities; q != nil {
		setInt(&dst.Quantities.Bins, q.Bins)
		setInt(&dst.Quantities.Crates, q.Crates)
		setInt(&dst.Quantities.Pallets, q.Pallets)
	}
	if tp := p.ThirdParty; tp != nil {
		if dst.ThirdParty == nil {
			dst.ThirdParty = &entity.ThirdPartyBackload{}
		}
		setString(&dst.ThirdParty.Company, tp.Company)
		setString(&dst.ThirdParty.ContactName, tp.ContactName)
		setString(&dst.ThirdParty.ContactPhone, tp.ContactPhone)
		setString(&dst.ThirdParty.Reference, tp.Reference)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
