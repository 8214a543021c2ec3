package audit

import (
	"strconv"
	"strings"
)

// HTTP methods derived from the action segment of an event type.
const (
	MethodPost    = "POST"
	MethodGet     = "GET"
	MethodPut     = "PUT"
	MethodDelete  = "DELETE"
	MethodUnknown = "UNKNOWN"
)

// Rule describes how one event type maps to audit metadata: the entity it
// concerns, the HTTP method its action implies, and the synthetic REST path.
// ItemScoped rules append "/{id}" to the collection path when the payload
// carries a numeric id.
type Rule struct {
	EntityType string
	HTTPMethod string
	Collection string
	ItemScoped bool
}

// Endpoint renders the synthetic REST path for this rule.
func (r Rule) Endpoint(entityID *int64) string {
	if r.ItemScoped && entityID != nil {
		return r.Collection + "/" + strconv.FormatInt(*entityID, 10)
	}
	return r.Collection
}

// Derive infers a Rule from an event type by string splitting. The entity is
// the segment before the first dot, capitalized; the action is the last
// segment. Used as the fallback for event types nobody registered.
func Derive(eventType string) Rule {
	entity := eventType
	if i := strings.Index(eventType, "."); i >= 0 {
		entity = eventType[:i]
	}

	action := eventType
	if i := strings.LastIndex(eventType, "."); i >= 0 {
		action = eventType[i+1:]
	}

	return Rule{
		EntityType: capitalize(entity),
		HTTPMethod: methodForAction(action),
		Collection: "/" + pluralize(entity),
		ItemScoped: action != "created" && action != "listed",
	}
}

func methodForAction(action string) string {
	switch action {
	case "created":
		return MethodPost
	case "fetched", "listed":
		return MethodGet
	case "updated":
		return MethodPut
	case "deleted":
		return MethodDelete
	default:
		return MethodUnknown
	}
}

// pluralize is deliberately naive suffix-s appending, matching the endpoint
// scheme of the producing services. Not linguistically aware.
func pluralize(entity string) string {
	return entity + "s"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
