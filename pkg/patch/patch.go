// Package patch implements the RFC-6902 subset (add/replace/remove) JSON
// Patch engine described in spec §4.4: a Hardware plus its
// AvailabilityWindow rows are assembled into one virtual document, the
// patch is applied one operation at a time against it, and the result is
// diffed back into a Hardware field update plus window add/update/remove
// lists. Grounded on doni's api/utils.py apply_jsonpatch /
// apply_patch_updates_to_list.
package patch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"github.com/cuemby/hardwared/pkg/errs"
	"github.com/cuemby/hardwared/pkg/types"
)

// rootFields are the only Hardware attributes a patch may touch (spec
// §4.4). hardware_type is accepted here; the API's patch handler rejects
// any actual change to it, and the store layer does not check it.
var rootFields = map[string]bool{
	"name":          true,
	"hardware_type": true,
	"properties":    true,
	"availability":  true,
}

// Op is one RFC-6902 operation.
type Op struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Result is the diff between the virtual document before and after the
// patch: the updated Hardware field values, plus the three window lists
// the store must commit in one transaction.
type Result struct {
	Name         string
	HardwareType string
	Properties   map[string]any
	ToAdd        []*types.AvailabilityWindow
	ToUpdate     []*types.AvailabilityWindow
	ToRemove     []string
}

type windowDoc struct {
	UUID  string    `json:"uuid,omitempty"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Apply builds the virtual document from hw and windows, applies ops one
// at a time (so a failing op can be identified in the error), and returns
// the diffed result. Adding a brand-new root attribute is rejected
// up-front, matching apply_jsonpatch.
func Apply(hw *types.Hardware, windows []*types.AvailabilityWindow, ops []Op) (*Result, error) {
	doc := map[string]any{
		"name":          hw.Name,
		"hardware_type": hw.HardwareType,
		"properties":    hw.Properties,
		"availability":  availabilityDoc(windows),
	}

	for _, op := range ops {
		if op.Op == "add" && strings.Count(op.Path, "/") == 1 {
			field := strings.TrimPrefix(op.Path, "/")
			if !rootFields[field] {
				return nil, errs.PatchError(opString(op), fmt.Sprintf("adding a new attribute (%s) to the root of the resource is not allowed", field))
			}
		}
	}

	for _, op := range ops {
		next, err := applyOne(doc, op)
		if err != nil {
			return nil, errs.PatchError(opString(op), err.Error())
		}
		doc = next
	}

	return diff(hw, windows, doc)
}

func availabilityDoc(windows []*types.AvailabilityWindow) map[string]windowDoc {
	out := make(map[string]windowDoc, len(windows))
	for _, w := range windows {
		out[w.UUID] = windowDoc{UUID: w.UUID, Start: w.Start, End: w.End}
	}
	return out
}

func applyOne(doc map[string]any, op Op) (map[string]any, error) {
	patchPath := op.Path
	if op.Op == "add" && strings.HasSuffix(patchPath, "/-") {
		// Appending to the availability map: synthesize a fresh key so the
		// single-operation RFC-6902 patch below can target it, mirroring
		// "/availability/-" meaning "append a new window".
		patchPath = strings.TrimSuffix(patchPath, "-") + newWindowPlaceholder()
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	opJSON := []byte(fmt.Sprintf(`[{"op":%q,"path":%q%s}]`, op.Op, patchPath, valueClause(op.Value)))
	p, err := jsonpatch.DecodePatch(opJSON)
	if err != nil {
		return nil, err
	}

	patched, err := p.ApplyWithOptions(docJSON, jsonpatch.NewApplyOptions())
	if err != nil {
		return nil, err
	}

	var next map[string]any
	if err := json.Unmarshal(patched, &next); err != nil {
		return nil, err
	}
	return next, nil
}

func valueClause(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	return fmt.Sprintf(`,"value":%s`, string(v))
}

var placeholderSeq int

// newWindowPlaceholder generates a synthetic key for an appended
// availability window before it has a real UUID assigned by the store.
func newWindowPlaceholder() string {
	placeholderSeq++
	return fmt.Sprintf("__new_%d", placeholderSeq)
}

func opString(op Op) string {
	return fmt.Sprintf("%s %s", op.Op, op.Path)
}

func diff(hw *types.Hardware, before []*types.AvailabilityWindow, doc map[string]any) (*Result, error) {
	result := &Result{
		Name:         hw.Name,
		HardwareType: hw.HardwareType,
		Properties:   hw.Properties,
	}
	if name, ok := doc["name"].(string); ok {
		result.Name = name
	}
	if hwType, ok := doc["hardware_type"].(string); ok {
		result.HardwareType = hwType
	}
	if props, ok := doc["properties"].(map[string]any); ok {
		result.Properties = props
	}

	availRaw, _ := doc["availability"].(map[string]any)
	beforeByUUID := make(map[string]*types.AvailabilityWindow, len(before))
	for _, w := range before {
		beforeByUUID[w.UUID] = w
	}

	seen := make(map[string]bool, len(availRaw))
	for key, raw := range availRaw {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		var wd windowDoc
		if err := json.Unmarshal(data, &wd); err != nil {
			return nil, fmt.Errorf("availability entry %q: %w", key, err)
		}

		if strings.HasPrefix(key, "__new_") {
			result.ToAdd = append(result.ToAdd, &types.AvailabilityWindow{
				UUID:         generateWindowUUID(),
				HardwareUUID: hw.UUID,
				Start:        wd.Start,
				End:          wd.End,
			})
			continue
		}

		seen[key] = true
		existing, ok := beforeByUUID[key]
		if !ok {
			return nil, fmt.Errorf("availability window %q not found", key)
		}
		if !existing.Start.Equal(wd.Start) || !existing.End.Equal(wd.End) {
			result.ToUpdate = append(result.ToUpdate, &types.AvailabilityWindow{
				UUID:         key,
				HardwareUUID: hw.UUID,
				Start:        wd.Start,
				End:          wd.End,
			})
		}
	}

	for uuid := range beforeByUUID {
		if !seen[uuid] {
			result.ToRemove = append(result.ToRemove, uuid)
		}
	}

	return result, nil
}

// generateWindowUUID is overridable in tests for deterministic output.
var generateWindowUUID = func() string { return uuid.NewString() }
