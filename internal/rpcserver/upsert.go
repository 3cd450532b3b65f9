package rpcserver

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Globidev/globibot-rs/internal/wire"
)

// commandFields is the subset of a slash-command body the upsert algorithm
// inspects. Everything else in the submitted/existing JSON is opaque.
type commandFields struct {
	Name        string            `json:"name"`
	Description *string           `json:"description"`
	Options     []json.RawMessage `json:"options"`
}

func parseCommandFields(body json.RawMessage) (commandFields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return commandFields{}, fmt.Errorf("decoding command body: %w", err)
	}

	nameRaw, ok := raw["name"]
	if !ok {
		return commandFields{}, fmt.Errorf("command body missing required %q field", "name")
	}
	var fields commandFields
	if err := json.Unmarshal(nameRaw, &fields.Name); err != nil {
		return commandFields{}, fmt.Errorf("command %q field must be a string: %w", "name", err)
	}

	if descRaw, ok := raw["description"]; ok {
		var desc string
		if err := json.Unmarshal(descRaw, &desc); err != nil {
			return commandFields{}, fmt.Errorf("command %q field must be a string: %w", "description", err)
		}
		fields.Description = &desc
	}

	if optsRaw, ok := raw["options"]; ok {
		var opts []json.RawMessage
		if err := json.Unmarshal(optsRaw, &opts); err != nil {
			return commandFields{}, fmt.Errorf("command %q field must be an array: %w", "options", err)
		}
		fields.Options = opts
	}

	return fields, nil
}

// canonicalJSON re-marshals arbitrary JSON so two structurally equal values
// compare equal byte-for-byte regardless of submitted key order or
// whitespace: encoding/json sorts object keys when marshaling a decoded
// map[string]any.
func canonicalJSON(raw json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func optionName(raw json.RawMessage) (string, bool) {
	var opt struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &opt); err != nil {
		return "", false
	}
	return opt.Name, true
}

// optionsChanged implements the options half of spec §4.9's upsert
// predicate: any submitted option either has no same-named counterpart in
// existing, or differs from it once both sides are canonicalized.
func optionsChanged(submitted, existing []json.RawMessage) (bool, error) {
	byName := make(map[string]json.RawMessage, len(existing))
	for _, opt := range existing {
		if name, ok := optionName(opt); ok {
			byName[name] = opt
		}
	}

	for _, opt := range submitted {
		name, ok := optionName(opt)
		if !ok {
			return true, nil
		}
		existingOpt, found := byName[name]
		if !found {
			return true, nil
		}

		left, err := canonicalJSON(opt)
		if err != nil {
			return false, err
		}
		right, err := canonicalJSON(existingOpt)
		if err != nil {
			return false, err
		}
		if !bytes.Equal(left, right) {
			return true, nil
		}
	}
	return false, nil
}

// upsertChanged decides whether a submitted command body differs from the
// matching existing command enough to warrant an edit, per spec §4.9 step 4.
func upsertChanged(submitted, existing commandFields, hasOptions bool) (bool, error) {
	if submitted.Description != nil && (existing.Description == nil || *submitted.Description != *existing.Description) {
		return true, nil
	}

	if !hasOptions {
		return len(existing.Options) > 0, nil
	}
	return optionsChanged(submitted.Options, existing.Options)
}

// runUpsert implements the full create-or-edit algorithm from spec §4.9. It
// is pure with respect to JSON parsing and comparison; create/edit are
// injected so the two scopes (global, guild) share one implementation.
func runUpsert(
	submittedBody json.RawMessage,
	existing []wire.Command,
	create func(body json.RawMessage) (wire.Command, error),
	edit func(id string, body json.RawMessage) (wire.Command, error),
) (wire.Command, error) {
	submitted, err := parseCommandFields(submittedBody)
	if err != nil {
		return wire.Command{}, err
	}

	var match *wire.Command
	var matchFields commandFields
	for i := range existing {
		fields, err := parseCommandFields(existing[i].Body)
		if err != nil {
			continue
		}
		if fields.Name == submitted.Name {
			match = &existing[i]
			matchFields = fields
			break
		}
	}

	if match == nil {
		return create(submittedBody)
	}

	hasOptions := hasOptionsKey(submittedBody)
	changed, err := upsertChanged(submitted, matchFields, hasOptions)
	if err != nil {
		return wire.Command{}, err
	}
	if !changed {
		return *match, nil
	}
	return edit(match.ID, submittedBody)
}

func hasOptionsKey(body json.RawMessage) bool {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return false
	}
	_, ok := raw["options"]
	return ok
}
