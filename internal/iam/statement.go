// Package iam implements IAM-style policy evaluation for Emberstore.
// Policies are JSON documents of statements; the engine resolves request
// principals, normalizes stored documents into statements, and renders an
// allow/deny decision with deny-overrides semantics.
package iam

import (
	"encoding/json"
	"errors"
)

// Effect is the outcome a statement contributes when it applies.
type Effect string

const (
	// EffectAllow grants the matched action on the matched resource.
	EffectAllow Effect = "Allow"

	// EffectDeny forbids the matched action regardless of other statements.
	EffectDeny Effect = "Deny"
)

// Statement is one normalized policy statement. All fields are flat string
// slices; the flexible JSON shapes are resolved during parsing.
type Statement struct {
	// Sid is the optional statement identifier, kept for diagnostics.
	Sid string

	// Effect is Allow or Deny.
	Effect Effect

	// Principal holds principal match patterns (emr:user:*, emr:role:*,
	// emr:anonymous, or wildcards). Empty means the statement matches
	// no principal.
	Principal []string

	// Action holds action match patterns (e.g. "s3:GetObject", "s3:*").
	Action []string

	// Resource holds resource match patterns (emr:bucket:...). Empty means
	// the statement matches no resource.
	Resource []string
}

// errInvalidStatement marks a statement whose shape is not acceptable.
// It is internal: a bad statement is dropped, never surfaced.
var errInvalidStatement = errors.New("invalid statement")

// rawStatement mirrors the JSON shape before normalization.
type rawStatement struct {
	Sid       string          `json:"Sid"`
	Effect    string          `json:"Effect"`
	Principal json.RawMessage `json:"Principal"`
	Action    json.RawMessage `json:"Action"`
	Resource  json.RawMessage `json:"Resource"`
}

// rawPolicy mirrors the top-level policy document shape.
type rawPolicy struct {
	Version   string          `json:"Version"`
	Statement json.RawMessage `json:"Statement"`
}

// ParseStatements parses a policy document into its valid statements.
// A document that is not JSON, or has no Statement key, yields an empty
// slice. Individual statements that fail validation are dropped; the rest
// survive. The Statement value may be a single object or an array.
func ParseStatements(document []byte) []Statement {
	var policy rawPolicy
	if err := json.Unmarshal(document, &policy); err != nil {
		return nil
	}
	if len(policy.Statement) == 0 {
		return nil
	}

	var raws []rawStatement
	if err := json.Unmarshal(policy.Statement, &raws); err != nil {
		// Single-object form.
		var one rawStatement
		if err := json.Unmarshal(policy.Statement, &one); err != nil {
			return nil
		}
		raws = []rawStatement{one}
	}

	statements := make([]Statement, 0, len(raws))
	for _, raw := range raws {
		st, err := normalizeStatement(raw)
		if err != nil {
			continue
		}
		statements = append(statements, st)
	}

	return statements
}

// normalizeStatement validates one raw statement and flattens its fields.
func normalizeStatement(raw rawStatement) (Statement, error) {
	if raw.Effect != string(EffectAllow) && raw.Effect != string(EffectDeny) {
		return Statement{}, errInvalidStatement
	}

	actions, err := parseStringOrList(raw.Action)
	if err != nil || len(actions) == 0 {
		return Statement{}, errInvalidStatement
	}

	// Resources may be absent; the statement then matches no resource.
	// Only a malformed value invalidates it.
	resources, err := parseStringOrList(raw.Resource)
	if err != nil {
		return Statement{}, errInvalidStatement
	}

	principals, err := parsePrincipal(raw.Principal)
	if err != nil {
		return Statement{}, errInvalidStatement
	}

	return Statement{
		Sid:       raw.Sid,
		Effect:    Effect(raw.Effect),
		Principal: principals,
		Action:    actions,
		Resource:  resources,
	}, nil
}

// parseStringOrList accepts a JSON string or an array of strings.
// Anything else, including a non-string element inside the array, is an
// error. An absent value yields nil without error.
func parseStringOrList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, errInvalidStatement
	}
	return list, nil
}

// parsePrincipal accepts the Principal shapes: absent, a string, an array
// of strings, or a map. Map entries flatten to "key:value" pairs; a map
// value may itself be a string or an array of strings. Any non-string leaf
// invalidates the statement.
func parsePrincipal(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	if flat, err := parseStringOrList(raw); err == nil {
		return flat, nil
	}

	var byKey map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, errInvalidStatement
	}

	var principals []string
	for key, rawValue := range byKey {
		values, err := parseStringOrList(rawValue)
		if err != nil {
			return nil, errInvalidStatement
		}
		for _, value := range values {
			principals = append(principals, key+":"+value)
		}
	}

	return principals, nil
}
