package jobs

import "encoding/json"

// UpdateKind identifies which operation a generic job update payload targets.
type UpdateKind int

const (
	UpdateUnknown UpdateKind = iota
	UpdateProgress
	UpdateMaterialUsage
	UpdateExpenses
	UpdateTimeframe
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateProgress:
		return "progress"
	case UpdateMaterialUsage:
		return "material_usage"
	case UpdateExpenses:
		return "expenses"
	case UpdateTimeframe:
		return "timeframe"
	}
	return "unknown"
}

// ClassifyUpdate picks the operation for a payload by the keys it carries.
// Keys are checked in a fixed order so mixed payloads resolve predictably.
func ClassifyUpdate(payload map[string]json.RawMessage) UpdateKind {
	has := func(key string) bool {
		_, ok := payload[key]
		return ok
	}
	switch {
	case has("progress_status"):
		return UpdateProgress
	case has("material_id") && has("additional_usage_meters"):
		return UpdateMaterialUsage
	case has("expenses"):
		return UpdateExpenses
	case has("start_date"), has("end_date"):
		return UpdateTimeframe
	}
	return UpdateUnknown
}
