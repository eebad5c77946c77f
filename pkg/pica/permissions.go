package pica

import (
	"net/http"
	"strings"
)

// Permissions gates which actions the client is willing to execute.
type Permissions string

const (
	// PermissionsRead allows only non-mutating operations (GET).
	PermissionsRead Permissions = "read"
	// PermissionsWrite allows everything except DELETE.
	PermissionsWrite Permissions = "write"
	// PermissionsAdmin allows every operation. This is the default.
	PermissionsAdmin Permissions = "admin"
)

// readVerbs are title prefixes that identify a read-only action when an
// action carries no explicit method. All comparisons are case-insensitive.
var readVerbs = []string{"get", "list", "fetch", "read", "retrieve", "search", "query", "count", "describe", "download"}

// allowsMethod reports whether the permission level admits the given HTTP
// method. An empty or unknown method is treated as mutating, so read-level
// clients refuse it.
func (p Permissions) allowsMethod(method string) bool {
	m := strings.ToUpper(strings.TrimSpace(method))
	switch p {
	case PermissionsRead:
		return m == http.MethodGet || m == http.MethodHead
	case PermissionsWrite:
		return m != http.MethodDelete && m != ""
	default:
		return true
	}
}

// allowsAction reports whether the permission level admits an action row in
// a listing. The action's method is preferred when present; otherwise the
// leading verb of its title decides whether it reads or mutates.
func (p Permissions) allowsAction(action AvailableAction) bool {
	switch p {
	case PermissionsAdmin, "":
		return true
	case PermissionsRead:
		if m := action.method(); m != "" {
			return p.allowsMethod(m)
		}
		return titleReadsOnly(action.Title)
	case PermissionsWrite:
		if m := action.method(); m != "" {
			return p.allowsMethod(m)
		}
		return !titleDeletes(action.Title)
	default:
		return true
	}
}

func titleReadsOnly(title string) bool {
	first := firstWord(title)
	for _, verb := range readVerbs {
		if first == verb {
			return true
		}
	}
	return false
}

func titleDeletes(title string) bool {
	first := firstWord(title)
	return first == "delete" || first == "remove" || first == "destroy"
}

func firstWord(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
